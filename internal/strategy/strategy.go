package strategy

import (
	"github.com/haldis-labs/reverseproxy-lb/internal/registry"
)

// Strategy picks one record out of a healthy snapshot to receive the next
// forwarded request. Implementations must return nil for a nil or empty
// snapshot and must never select a record the caller did not include.
type Strategy interface {
	Select(snapshot []*registry.Record) *registry.Record
	Name() string
}

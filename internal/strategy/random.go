package strategy

import (
	"math/rand/v2"

	"github.com/haldis-labs/reverseproxy-lb/internal/registry"
)

type randomStrategy struct{}

// NewRandomStrategy creates a Strategy that picks a uniformly random
// record from the snapshot on every call.
func NewRandomStrategy() Strategy {
	return &randomStrategy{}
}

func (r *randomStrategy) Select(snapshot []*registry.Record) *registry.Record {
	if len(snapshot) == 0 {
		return nil
	}

	return snapshot[rand.IntN(len(snapshot))]
}

func (r *randomStrategy) Name() string { return "random" }

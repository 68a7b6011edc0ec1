package discovery

import "context"

// Source produces the current set of backend URLs the registry should
// track. List never returns a nil slice on success; an empty non-nil
// slice means "no backends right now". On hard error it returns (nil,
// err) and callers are expected to treat that the same as an empty list.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Name() string
	SupportsDynamic() bool
}

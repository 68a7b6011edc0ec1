package strategy

import (
	"sync/atomic"

	"github.com/haldis-labs/reverseproxy-lb/internal/registry"
)

type roundRobinStrategy struct {
	current uint64
}

// NewRoundRobinStrategy creates a Strategy that cycles through a snapshot
// via a shared atomic counter, distributing load evenly only in
// expectation under contention.
func NewRoundRobinStrategy() Strategy {
	return &roundRobinStrategy{}
}

func (rb *roundRobinStrategy) Select(snapshot []*registry.Record) *registry.Record {
	n := len(snapshot)
	if n == 0 {
		return nil
	}

	for attempt := 0; attempt < n; attempt++ {
		i := atomic.AddUint64(&rb.current, 1) - 1
		candidate := snapshot[i%uint64(n)]
		if candidate.Healthy() {
			return candidate
		}
	}

	return nil
}

func (rb *roundRobinStrategy) Name() string { return "round-robin" }

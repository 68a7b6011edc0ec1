package strategy

import (
	"github.com/haldis-labs/reverseproxy-lb/internal/registry"
)

type leastResponseTimeStrategy struct{}

// NewLeastResponseTimeStrategy creates a Strategy that scans the snapshot
// for the healthy record with the lowest EMA latency, keeping the
// first-encountered record on a tie.
func NewLeastResponseTimeStrategy() Strategy {
	return &leastResponseTimeStrategy{}
}

func (l *leastResponseTimeStrategy) Select(snapshot []*registry.Record) *registry.Record {
	var chosen *registry.Record
	var best int64

	for _, r := range snapshot {
		if !r.Healthy() {
			continue
		}
		if ema := r.EMALatencyMs(); chosen == nil || ema < best {
			chosen = r
			best = ema
		}
	}

	return chosen
}

func (l *leastResponseTimeStrategy) Name() string { return "least-response-time" }

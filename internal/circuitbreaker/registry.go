package circuitbreaker

import (
	"sync"
	"time"
)

// Registry hands out one CircuitBreaker per backend URL, creating it
// lazily on first use so the forwarding engine never has to pre-register
// a backend before it can consult its breaker.
type Registry struct {
	mutex     sync.RWMutex
	breakers  map[string]*CircuitBreaker
	threshold int
	timeout   time.Duration
}

// NewRegistry creates a Registry whose breakers all share threshold and
// timeout.
func NewRegistry(threshold int, timeout time.Duration) *Registry {
	return &Registry{
		breakers:  make(map[string]*CircuitBreaker),
		threshold: threshold,
		timeout:   timeout,
	}
}

// GetBreaker returns the breaker for backendURL, creating it on first
// access.
func (r *Registry) GetBreaker(backendURL string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[backendURL]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if cb, exists = r.breakers[backendURL]; exists {
		return cb
	}

	cb = NewCircuitBreaker(r.threshold, r.timeout)
	r.breakers[backendURL] = cb
	return cb
}

// Reset discards every tracked breaker, e.g. for test isolation.
func (r *Registry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.breakers = make(map[string]*CircuitBreaker)
}

// Stats returns a snapshot of every tracked breaker's state, keyed by
// backend URL. Consulted by admin.Handler.Discovery to enrich its
// projection with per-backend circuit-breaker state.
func (r *Registry) Stats() map[string]State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]State, len(r.breakers))
	for url, cb := range r.breakers {
		stats[url] = cb.State()
	}
	return stats
}

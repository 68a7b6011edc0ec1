package circuitbreaker

import (
	"sync"
	"time"
)

// State is one of the three states of a CircuitBreaker.
type State int

const (
	StateClosed   State = iota // normal operation, requests pass through
	StateOpen                  // fast-failing every request until resetTimeout elapses
	StateHalfOpen              // letting trial requests through until one succeeds or fails
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker fast-fails calls to a single backend once it has failed
// too many times in a row, without waiting for the health monitor's next
// tick to catch it. It is orthogonal to the registry: it never reads or
// mutates a Record.
type CircuitBreaker struct {
	mutex sync.Mutex

	state       State
	failures    int
	lastFailure time.Time

	failureThreshold int
	resetTimeout     time.Duration
}

// NewCircuitBreaker creates a closed CircuitBreaker that opens after
// threshold consecutive failures and stays open for timeout before
// allowing a half-open trial.
func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: threshold,
		resetTimeout:     timeout,
	}
}

// Allow reports whether a call should be attempted. An open breaker
// transitions to half-open and allows exactly one trial call once
// resetTimeout has elapsed since the last failure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) >= cb.resetTimeout {
			cb.state = StateHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// RecordFailure counts a failed call. A failure in the half-open state
// reopens the breaker immediately; enough consecutive closed-state
// failures opens it too.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.state == StateHalfOpen {
		cb.state = StateOpen
		return
	}

	if cb.failures >= cb.failureThreshold {
		cb.state = StateOpen
	}
}

// RecordSuccess resets the breaker to closed with a clean failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures = 0
	cb.state = StateClosed
}

// State returns the breaker's current state, for admin inspection.
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

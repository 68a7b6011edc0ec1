package registry

import (
	"sync"
	"time"

	"github.com/haldis-labs/reverseproxy-lb/internal/timewindow"
)

// SlownessPolicy carries the thresholds the slowness detector evaluates
// against a Record's response-time window. It is supplied by the caller
// rather than stored on the Record, since it is shared configuration, not
// per-backend state.
type SlownessPolicy struct {
	SlowThresholdMs int64
	MinSamples      int
	ThresholdRatio  float64
	CooldownSeconds int64
}

// Record holds everything the load balancer tracks about a single backend:
// its health flag, its EMA latency, its response-time window, and its
// slowness-cooldown state. All fields are guarded by mu; transitions that
// touch more than one field (markSlow, health-probe application) are single
// critical sections rather than field-by-field writes.
type Record struct {
	mu sync.Mutex

	url string

	healthy             bool
	emaLatencyMs        int64
	window              *timewindow.Window
	consecutiveFailures int
	lastHealthCheckAt   time.Time
	lastSlowAt          *time.Time
	inSlowCooldown      bool

	now func() time.Time
}

// NewRecord creates a Record for url, born healthy with the given seed
// latency and an empty response-time window bounded by windowMs/maxEntries.
func NewRecord(url string, initialLatencyMs int64, windowMs int64, maxEntries int) *Record {
	return &Record{
		url:          url,
		healthy:      true,
		emaLatencyMs: initialLatencyMs,
		window:       timewindow.New(windowMs, maxEntries),
		now:          time.Now,
	}
}

// URL returns the backend URL this record tracks. Immutable for the life
// of the record.
func (r *Record) URL() string {
	return r.url
}

// Healthy reports whether the record is currently selectable for routing.
func (r *Record) Healthy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.healthy
}

// EMALatencyMs returns the current exponentially weighted moving average
// latency.
func (r *Record) EMALatencyMs() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emaLatencyMs
}

// ConsecutiveFailures returns the current consecutive-failure count.
func (r *Record) ConsecutiveFailures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.consecutiveFailures
}

// LastHealthCheckAt returns the timestamp of the most recently applied
// health-probe result.
func (r *Record) LastHealthCheckAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastHealthCheckAt
}

// InSlowCooldown reports whether the record is currently quarantined by the
// slowness detector.
func (r *Record) InSlowCooldown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inSlowCooldown
}

// WindowAverageMs returns the average latency of samples in the
// response-time window (0 if empty).
func (r *Record) WindowAverageMs() float64 {
	return r.window.Average()
}

// setHealthyLocked applies a new healthy value, maintaining the
// consecutive-failure counter per the invariant: it resets on false→true
// and increments on any assertion of false. Must be called with mu held.
func (r *Record) setHealthyLocked(healthy bool) {
	if healthy {
		r.consecutiveFailures = 0
	} else {
		r.consecutiveFailures++
	}
	r.healthy = healthy
}

// MarkUnhealthy forces the record unhealthy, as done by the forwarding
// engine after a transport failure. reason is accepted for symmetry with
// the registry-level API and logging call sites; it is not stored.
func (r *Record) MarkUnhealthy(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setHealthyLocked(false)
}

// ApplyHealthProbe applies the outcome of a health-monitor probe, honoring
// cooldown dominance: while StillInSlowCooldown holds, the probe result is
// discarded and healthy is forced false. An expired cooldown is cleared
// first so the probe result can then take effect normally. It reports
// whether this call cleared an active cooldown, so a caller with access to
// a metrics collector can reflect the transition.
func (r *Record) ApplyHealthProbe(probeHealthy bool, at time.Time, cooldownSeconds int64) (clearedCooldown bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stillInSlowCooldownLocked(cooldownSeconds, at) {
		r.healthy = false
		r.lastHealthCheckAt = at
		return false
	}

	if r.inSlowCooldown {
		r.inSlowCooldown = false
		r.lastSlowAt = nil
		clearedCooldown = true
	}

	r.setHealthyLocked(probeHealthy)
	r.lastHealthCheckAt = at
	return clearedCooldown
}

// RecordLatency records a user-request latency sample: it feeds the
// response-time window, updates the EMA per the fixed update law, and then
// evaluates the slowness policy, marking the record slow if it now
// qualifies. It reports whether this call put the record into cooldown, so
// a caller with access to a metrics collector can reflect the transition.
func (r *Record) RecordLatency(latencyMs int64, at time.Time, policy SlownessPolicy) (enteredCooldown bool) {
	r.window.Add(latencyMs, at)

	if latencyMs < 0 {
		latencyMs = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.emaLatencyMs = (r.emaLatencyMs*4 + latencyMs) / 5

	if r.inSlowCooldown {
		return false
	}
	if !r.window.HasEnough(policy.MinSamples) {
		return false
	}
	if r.window.SlowRatio(policy.SlowThresholdMs) < policy.ThresholdRatio {
		return false
	}

	r.markSlowLocked(at)
	return true
}

// markSlowLocked puts the record into slowness cooldown. Must be called
// with mu held.
func (r *Record) markSlowLocked(at time.Time) {
	t := at
	r.lastSlowAt = &t
	r.inSlowCooldown = true
	r.healthy = false
}

// StillInSlowCooldown reports whether the record is still within an active
// slowness cooldown as of now.
func (r *Record) StillInSlowCooldown(cooldownSeconds int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stillInSlowCooldownLocked(cooldownSeconds, r.now())
}

func (r *Record) stillInSlowCooldownLocked(cooldownSeconds int64, at time.Time) bool {
	if !r.inSlowCooldown || r.lastSlowAt == nil {
		return false
	}
	expiry := r.lastSlowAt.Add(time.Duration(cooldownSeconds) * time.Second)
	return at.Before(expiry)
}

// ClearSlowCooldown clears any active slowness cooldown. Idempotent.
func (r *Record) ClearSlowCooldown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inSlowCooldown = false
	r.lastSlowAt = nil
}

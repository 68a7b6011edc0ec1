package obsmetrics

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// EventType identifies the kind of observation carried by a MetricEvent.
type EventType string

const (
	EventRequestReceived   EventType = "request_received"
	EventBackendSelected   EventType = "backend_selected"
	EventResponseCompleted EventType = "response_completed"
	EventBackendFailed     EventType = "backend_failed"
	EventHealthChanged     EventType = "health_changed"
	EventSlowCooldown      EventType = "slow_cooldown"
)

// MetricEvent is one observation emitted by the ingress handler, the
// forwarding engine, or the health monitor. Only the fields relevant to
// Type are populated.
type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Backend    string
	Duration   time.Duration
	StatusCode int
	Healthy    bool
	InCooldown bool
}

// Collector drains a buffered channel of MetricEvent on its own goroutine
// and applies each one to the Prometheus collectors in this package. The
// channel indirection keeps request-handling goroutines from blocking on
// metric bookkeeping; a full channel silently drops the event rather than
// applying backpressure to a live request.
type Collector struct {
	eventCh chan MetricEvent
	logger  *slog.Logger
}

// NewCollector creates a Collector with the given event-buffer size.
func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		logger:  logger,
	}
}

// EventChannel returns the send-only side callers use to emit events.
func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Start launches the collector's drain loop in its own goroutine.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("metrics collector started")
	defer c.logger.Info("metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventRequestReceived:
		requestsTotal.Inc()

	case EventBackendSelected:
		backendSelections.WithLabelValues(event.Backend).Inc()

	case EventResponseCompleted:
		responseDuration.WithLabelValues(event.Backend, strconv.Itoa(event.StatusCode)).Observe(event.Duration.Seconds())

	case EventBackendFailed:
		backendFailures.WithLabelValues(event.Backend).Inc()

	case EventHealthChanged:
		v := 0.0
		if event.Healthy {
			v = 1.0
		}
		backendHealth.WithLabelValues(event.Backend).Set(v)

	case EventSlowCooldown:
		v := 0.0
		if event.InCooldown {
			v = 1.0
		}
		inSlowCooldown.WithLabelValues(event.Backend).Set(v)
	}
}

// drain flushes any events still buffered when the collector is asked to
// stop, so a shutdown never silently loses the tail of a request burst.
func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

// Emit sends event to the collector, dropping it if the buffer is full
// rather than blocking the caller.
func (c *Collector) Emit(event MetricEvent) {
	select {
	case c.eventCh <- event:
	default:
	}
}

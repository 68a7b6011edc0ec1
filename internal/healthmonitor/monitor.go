package healthmonitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/haldis-labs/reverseproxy-lb/internal/obsmetrics"
	"github.com/haldis-labs/reverseproxy-lb/internal/registry"
)

// probeResponse is the subset of the health-endpoint body the monitor
// cares about. Any other fields are ignored.
type probeResponse struct {
	Status string `json:"status"`
}

// Monitor periodically probes every backend record in a Registry via
// GET {url}/actuator/health and applies the result.
type Monitor struct {
	registry        *registry.Registry
	client          *http.Client
	interval        time.Duration
	cooldownSeconds int64
	metrics         *obsmetrics.Collector
	logger          *slog.Logger
}

// New creates a Monitor that probes reg's backends every interval, using
// timeout as the per-probe HTTP client timeout. metrics may be nil, in
// which case probe outcomes are not reflected in the metrics surface.
func New(reg *registry.Registry, interval, timeout time.Duration, cooldownSeconds int64, metrics *obsmetrics.Collector, logger *slog.Logger) *Monitor {
	return &Monitor{
		registry:        reg,
		client:          &http.Client{Timeout: timeout},
		interval:        interval,
		cooldownSeconds: cooldownSeconds,
		metrics:         metrics,
		logger:          logger,
	}
}

// Run blocks, probing on every tick until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("health monitor stopped")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick reconciles the registry (if the discovery source supports dynamic
// updates) and then fans a probe out to every tracked backend
// concurrently. Per-backend errors are swallowed and logged so one slow
// or failing probe never blocks or aborts its siblings.
func (m *Monitor) tick(ctx context.Context) {
	if m.registry.SourceSupportsDynamic() {
		if err := m.registry.Reconcile(ctx); err != nil {
			m.logger.Warn("reconcile failed during health tick", slog.String("error", err.Error()))
		}
	}

	records := m.registry.AllSnapshot()

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range records {
		r := r
		g.Go(func() error {
			m.probeOne(gctx, r)
			return nil
		})
	}
	_ = g.Wait()
}

// probeOne issues one health probe against r's backend and applies the
// result. Any transport, decode, or non-2xx outcome is treated as
// unhealthy; nothing here returns an error to the caller, since a
// per-probe failure must not affect its siblings.
func (m *Monitor) probeOne(ctx context.Context, r *registry.Record) {
	healthy := m.probe(ctx, r.URL())
	if r.ApplyHealthProbe(healthy, time.Now(), m.cooldownSeconds) {
		m.emit(obsmetrics.MetricEvent{Type: obsmetrics.EventSlowCooldown, Backend: r.URL(), InCooldown: false})
	}
	m.emit(obsmetrics.MetricEvent{Type: obsmetrics.EventHealthChanged, Backend: r.URL(), Healthy: r.Healthy()})
}

func (m *Monitor) emit(event obsmetrics.MetricEvent) {
	if m.metrics == nil {
		return
	}
	m.metrics.Emit(event)
}

func (m *Monitor) probe(ctx context.Context, backendURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, backendURL+"/actuator/health", nil)
	if err != nil {
		m.logger.Warn("failed to build health probe request", slog.String("server", backendURL), slog.String("error", err.Error()))
		return false
	}

	res, err := m.client.Do(req)
	if err != nil {
		m.logger.Warn("health probe failed", slog.String("server", backendURL), slog.String("error", err.Error()))
		return false
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return false
	}

	var body probeResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		m.logger.Warn("health probe returned an undecodable body", slog.String("server", backendURL), slog.String("error", err.Error()))
		return false
	}

	return strings.EqualFold(body.Status, "UP")
}

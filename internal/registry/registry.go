package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/haldis-labs/reverseproxy-lb/internal/discovery"
)

// Config carries the record-construction and slowness-policy parameters
// the registry needs when it creates records during reconcile and when it
// forwards latency samples to them.
type Config struct {
	InitialLatencyMs int64
	WindowMs         int64
	WindowMaxEntries int
	Slowness         SlownessPolicy
}

// Registry holds the set of known backend records, keyed by URL, behind a
// reader/writer lock. It is populated and pruned by Reconcile against a
// discovery.Source; record state is otherwise changed only through
// per-record methods (MarkUnhealthy, RecordLatency, and the health
// monitor's ApplyHealthProbe on snapshot records).
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record

	source discovery.Source
	cfg    Config
	logger *slog.Logger
}

// New creates an empty Registry backed by source, using cfg to seed new
// records as they are discovered.
func New(source discovery.Source, cfg Config, logger *slog.Logger) *Registry {
	return &Registry{
		records: make(map[string]*Record),
		source:  source,
		cfg:     cfg,
		logger:  logger,
	}
}

// Reconcile fetches the current backend list from the discovery source and
// applies it under the write lock: URLs not yet tracked get a fresh
// Record, and, only if the source supports dynamic updates, URLs no
// longer present are removed. Additions and removals are logged. A List
// error is treated as an empty list and returned once it has been applied.
func (d *Registry) Reconcile(ctx context.Context) error {
	urls, err := d.source.List(ctx)
	if err != nil {
		d.logger.Warn("discovery list failed, treating it as an empty list",
			slog.String("source", d.source.Name()),
			slog.String("error", err.Error()))
		urls = nil
	}

	present := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		present[u] = struct{}{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range urls {
		if _, ok := d.records[u]; ok {
			continue
		}
		d.records[u] = NewRecord(u, d.cfg.InitialLatencyMs, d.cfg.WindowMs, d.cfg.WindowMaxEntries)
		d.logger.Info("backend added", slog.String("server", u))
	}

	if !d.source.SupportsDynamic() {
		return err
	}

	for u := range d.records {
		if _, ok := present[u]; !ok {
			delete(d.records, u)
			d.logger.Info("backend removed", slog.String("server", u))
		}
	}

	return err
}

// HealthySnapshot returns an immutable slice of the records currently
// healthy and not in an active slowness cooldown.
func (d *Registry) HealthySnapshot() []*Record {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Record, 0, len(d.records))
	for _, r := range d.records {
		if r.Healthy() && !r.StillInSlowCooldown(d.cfg.Slowness.CooldownSeconds) {
			out = append(out, r)
		}
	}
	return out
}

// AllSnapshot returns an immutable slice of every tracked record,
// regardless of health.
func (d *Registry) AllSnapshot() []*Record {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Record, 0, len(d.records))
	for _, r := range d.records {
		out = append(out, r)
	}
	return out
}

// SourceSupportsDynamic reports whether the backing discovery source can
// signal backend removals, which the health monitor uses to decide
// whether to reconcile on every tick.
func (d *Registry) SourceSupportsDynamic() bool {
	return d.source.SupportsDynamic()
}

// SourceName identifies the backing discovery source, e.g. "static" or
// "file:servers.txt".
func (d *Registry) SourceName() string {
	return d.source.Name()
}

// Get returns the record for url, or nil if it is not tracked.
func (d *Registry) Get(url string) *Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.records[url]
}

// MarkUnhealthy locates the record for url and forces it unhealthy. It is
// a no-op if the URL is not tracked, e.g. it was removed by a concurrent
// reconcile.
func (d *Registry) MarkUnhealthy(url string, reason string) {
	if r := d.Get(url); r != nil {
		r.MarkUnhealthy(reason)
	}
}

// RecordLatency locates the record for url and forwards a latency sample
// to it, driving the slowness detector. No-op if the URL is not tracked.
// It reports whether this sample put the backend into slowness cooldown.
func (d *Registry) RecordLatency(url string, latencyMs int64) (enteredCooldown bool) {
	if r := d.Get(url); r != nil {
		return r.RecordLatency(latencyMs, time.Now(), d.cfg.Slowness)
	}
	return false
}

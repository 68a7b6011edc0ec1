package admin

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/haldis-labs/reverseproxy-lb/internal/circuitbreaker"
	"github.com/haldis-labs/reverseproxy-lb/internal/registry"
	"github.com/haldis-labs/reverseproxy-lb/internal/strategy"
)

// Handler serves the read-only admin endpoints over the current registry,
// selection strategy, and circuit-breaker state.
type Handler struct {
	registry *registry.Registry
	strategy strategy.Strategy
	breakers *circuitbreaker.Registry
}

// New creates a Handler. breakers may be nil, in which case the discovery
// projection omits circuit-breaker state.
func New(reg *registry.Registry, strat strategy.Strategy, breakers *circuitbreaker.Registry) *Handler {
	return &Handler{registry: reg, strategy: strat, breakers: breakers}
}

type healthProjection struct {
	URL                 string     `json:"url"`
	Healthy             bool       `json:"healthy"`
	AverageResponseTime int64      `json:"averageResponseTime"`
	LastHealthCheck     *time.Time `json:"lastHealthCheck"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	InSlowCooldown      bool       `json:"inSlowCooldown"`
}

// Health handles GET /admin/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	records := h.registry.AllSnapshot()
	out := make([]healthProjection, 0, len(records))
	for _, rec := range records {
		var lastCheck *time.Time
		if t := rec.LastHealthCheckAt(); !t.IsZero() {
			lastCheck = &t
		}
		out = append(out, healthProjection{
			URL:                 rec.URL(),
			Healthy:             rec.Healthy(),
			AverageResponseTime: rec.EMALatencyMs(),
			LastHealthCheck:     lastCheck,
			ConsecutiveFailures: rec.ConsecutiveFailures(),
			InSlowCooldown:      rec.InSlowCooldown(),
		})
	}
	writeJSON(w, out)
}

// Strategy handles GET /admin/strategy.
func (h *Handler) Strategy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"strategy": h.strategy.Name()})
}

// Stats handles GET /admin/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	records := h.registry.AllSnapshot()

	var healthy, unhealthy int
	var latencySum int64
	for _, rec := range records {
		if rec.Healthy() {
			healthy++
			latencySum += rec.EMALatencyMs()
		} else {
			unhealthy++
		}
	}

	var avg int64
	if healthy > 0 {
		avg = int64(math.Round(float64(latencySum) / float64(healthy)))
	}

	writeJSON(w, map[string]any{
		"totalServers":        len(records),
		"healthyServers":      healthy,
		"unhealthyServers":    unhealthy,
		"averageResponseTime": avg,
		"strategy":            h.strategy.Name(),
	})
}

// Discovery handles GET /admin/discovery.
func (h *Handler) Discovery(w http.ResponseWriter, r *http.Request) {
	records := h.registry.AllSnapshot()
	urls := make([]string, 0, len(records))
	for _, rec := range records {
		urls = append(urls, rec.URL())
	}

	out := map[string]any{
		"strategyName":           h.registry.SourceName(),
		"supportsDynamicUpdates": h.registry.SourceSupportsDynamic(),
		"discoveredServers":      urls,
		"serverCount":            len(urls),
	}
	if h.breakers != nil {
		out["circuitBreakers"] = h.breakerStates(records)
	}
	writeJSON(w, out)
}

func (h *Handler) breakerStates(records []*registry.Record) map[string]string {
	stats := h.breakers.Stats()
	states := make(map[string]string, len(records))
	for _, rec := range records {
		if state, ok := stats[rec.URL()]; ok {
			states[rec.URL()] = state.String()
			continue
		}
		states[rec.URL()] = circuitbreaker.StateClosed.String()
	}
	return states
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

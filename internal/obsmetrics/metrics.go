package obsmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric definitions. All names carry the reverseproxylb_ prefix so they
// don't collide with another exporter sharing the same registry.
var (
	requestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reverseproxylb_requests_total",
		Help: "Total number of requests received by the ingress handler.",
	})

	backendSelections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reverseproxylb_backend_selections_total",
		Help: "Number of times each backend was chosen by the selection strategy.",
	}, []string{"backend"})

	backendFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reverseproxylb_backend_failures_total",
		Help: "Number of transport failures observed per backend.",
	}, []string{"backend"})

	responseDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reverseproxylb_response_duration_seconds",
		Help:    "Observed backend response latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "status"})

	backendHealth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reverseproxylb_backend_health",
		Help: "Backend health status (1 = healthy, 0 = unhealthy).",
	}, []string{"backend"})

	inSlowCooldown = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reverseproxylb_backend_slow_cooldown",
		Help: "Whether a backend is currently quarantined by the slowness detector (1 = yes).",
	}, []string{"backend"})
)

func init() {
	prometheus.MustRegister(
		requestsTotal,
		backendSelections,
		backendFailures,
		responseDuration,
		backendHealth,
		inSlowCooldown,
	)
}

// Handler exposes the Prometheus text-format scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

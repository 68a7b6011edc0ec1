// Package obsmetrics collects Prometheus metrics about the load balancer:
// request volume, backend selections, latency, failures, and health/
// slowness-cooldown state. Callers emit MetricEvent values onto a
// Collector's channel; a background goroutine applies them to the
// underlying Prometheus collectors so the hot request path never blocks
// on metrics bookkeeping.
package obsmetrics

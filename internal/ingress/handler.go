package ingress

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/haldis-labs/reverseproxy-lb/internal/forward"
	"github.com/haldis-labs/reverseproxy-lb/internal/obsmetrics"
)

// Handler is the catch-all HTTP surface. It never consults the registry
// itself; every decision about where a request goes is delegated to the
// forwarding engine.
type Handler struct {
	engine  *forward.Engine
	metrics *obsmetrics.Collector
	logger  *slog.Logger
}

// New creates a Handler backed by engine.
func New(engine *forward.Engine, metrics *obsmetrics.Collector, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, metrics: metrics, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := extractClientIP(r)

	h.logger.Info("received request",
		slog.String("from", clientIP),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))

	h.emit(obsmetrics.MetricEvent{Type: obsmetrics.EventRequestReceived, Timestamp: time.Now()})

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	res := h.engine.Forward(r.Context(), forward.Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  parseQuery(r.URL.RawQuery),
		Header: r.Header.Clone(),
		Body:   body,
	})

	writeResponse(w, res)
}

func writeResponse(w http.ResponseWriter, res forward.Response) {
	header := w.Header()
	for key, values := range res.Header {
		for _, v := range values {
			header.Add(key, v)
		}
	}
	w.WriteHeader(res.StatusCode)
	if len(res.Body) > 0 {
		w.Write(res.Body)
	}
}

// parseQuery splits a raw query string into ordered key/value pairs without
// re-encoding, mirroring the verbatim passthrough the forwarding engine
// expects.
func parseQuery(raw string) []forward.QueryParam {
	if raw == "" {
		return nil
	}

	pairs := strings.Split(raw, "&")
	params := make([]forward.QueryParam, 0, len(pairs))
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		params = append(params, forward.QueryParam{Key: key, Value: value})
	}
	return params
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) emit(event obsmetrics.MetricEvent) {
	if h.metrics == nil {
		return
	}
	h.metrics.Emit(event)
}

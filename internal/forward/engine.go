package forward

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/haldis-labs/reverseproxy-lb/internal/circuitbreaker"
	"github.com/haldis-labs/reverseproxy-lb/internal/obsmetrics"
	"github.com/haldis-labs/reverseproxy-lb/internal/registry"
	"github.com/haldis-labs/reverseproxy-lb/internal/strategy"
)

// httpResponseError models a transport that surfaces a completed HTTP
// response as a Go error rather than as a normal (*http.Response, nil)
// pair. net/http's Client never does this itself (Do returns a nil
// response whenever it returns a non-nil error); ordinary backend 4xx/5xx
// statuses are classified in handleResponse instead. This branch exists
// so a custom http.RoundTripper (or a future client swap) preserving
// exception-carries-response behavior would still be honored without
// changing Forward's contract.
type httpResponseError interface {
	error
	Response() *http.Response
}

// Engine selects a backend via a Strategy, proxies the request to it, and
// classifies the outcome per the retry contract in Forward.
type Engine struct {
	registry *registry.Registry
	strategy strategy.Strategy
	breakers *circuitbreaker.Registry
	client   *http.Client
	metrics  *obsmetrics.Collector
	logger   *slog.Logger
}

// New creates an Engine. timeout bounds every outbound request to a
// backend.
func New(reg *registry.Registry, strat strategy.Strategy, breakers *circuitbreaker.Registry, timeout time.Duration, metrics *obsmetrics.Collector, logger *slog.Logger) *Engine {
	return &Engine{
		registry: reg,
		strategy: strat,
		breakers: breakers,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Forward selects a backend from the current healthy snapshot, proxies
// req to it, and returns the response to hand back to the original
// caller. It never returns an error: exhaustion and unavailability are
// encoded as 503 responses, and a responding-but-erroring backend is
// encoded as a 502.
func (e *Engine) Forward(ctx context.Context, req Request) Response {
	snapshot := e.registry.HealthySnapshot()
	return e.forwardAttempt(ctx, req, snapshot, 0)
}

func (e *Engine) forwardAttempt(ctx context.Context, req Request, snapshot []*registry.Record, attempt int) Response {
	if attempt >= len(snapshot) {
		return plainTextResponse(http.StatusServiceUnavailable, "All backend servers are unavailable")
	}

	chosen := e.strategy.Select(snapshot)
	if chosen == nil {
		return plainTextResponse(http.StatusServiceUnavailable, "No healthy servers available")
	}

	e.emit(obsmetrics.MetricEvent{Type: obsmetrics.EventBackendSelected, Backend: chosen.URL()})

	breaker := e.breakers.GetBreaker(chosen.URL())
	if !breaker.Allow() {
		e.logger.Warn("circuit breaker open, skipping backend", slog.String("server", chosen.URL()))
		return e.forwardAttempt(ctx, req, snapshot, attempt+1)
	}

	httpReq, err := e.buildRequest(ctx, chosen.URL(), req)
	if err != nil {
		e.logger.Error("failed to build outbound request", slog.String("server", chosen.URL()), slog.String("error", err.Error()))
		return e.forwardAttempt(ctx, req, snapshot, attempt+1)
	}

	start := time.Now()
	res, err := e.client.Do(httpReq)
	elapsed := time.Since(start)

	if err == nil {
		return e.handleResponse(chosen, breaker, res, elapsed)
	}

	var hre httpResponseError
	if errors.As(err, &hre) && hre.Response() != nil {
		return e.handleClientSurfacedError(chosen, breaker, hre, elapsed)
	}

	e.logger.Warn("backend transport failure", slog.String("server", chosen.URL()), slog.String("error", err.Error()))
	e.registry.MarkUnhealthy(chosen.URL(), err.Error())
	breaker.RecordFailure()
	e.emit(obsmetrics.MetricEvent{Type: obsmetrics.EventBackendFailed, Backend: chosen.URL()})
	e.emit(obsmetrics.MetricEvent{Type: obsmetrics.EventHealthChanged, Backend: chosen.URL(), Healthy: false})

	return e.forwardAttempt(ctx, req, snapshot, attempt+1)
}

func (e *Engine) handleResponse(chosen *registry.Record, breaker *circuitbreaker.CircuitBreaker, res *http.Response, elapsed time.Duration) Response {
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		body = nil
	}

	if e.registry.RecordLatency(chosen.URL(), elapsed.Milliseconds()) {
		e.logger.Warn("backend marked slow based on moving average",
			slog.String("server", chosen.URL()),
			slog.Float64("windowAverageMs", chosen.WindowAverageMs()))
		e.emit(obsmetrics.MetricEvent{Type: obsmetrics.EventSlowCooldown, Backend: chosen.URL(), InCooldown: true})
	}
	breaker.RecordSuccess()
	e.emit(obsmetrics.MetricEvent{Type: obsmetrics.EventResponseCompleted, Backend: chosen.URL(), Duration: elapsed, StatusCode: res.StatusCode})

	if res.StatusCode >= http.StatusBadRequest {
		return plainTextResponse(http.StatusBadGateway, "Backend server error: "+res.Status)
	}

	return Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       body,
	}
}

func (e *Engine) handleClientSurfacedError(chosen *registry.Record, breaker *circuitbreaker.CircuitBreaker, hre httpResponseError, elapsed time.Duration) Response {
	res := hre.Response()
	defer res.Body.Close()

	if e.registry.RecordLatency(chosen.URL(), elapsed.Milliseconds()) {
		e.logger.Warn("backend marked slow based on moving average",
			slog.String("server", chosen.URL()),
			slog.Float64("windowAverageMs", chosen.WindowAverageMs()))
		e.emit(obsmetrics.MetricEvent{Type: obsmetrics.EventSlowCooldown, Backend: chosen.URL(), InCooldown: true})
	}
	breaker.RecordSuccess()
	e.emit(obsmetrics.MetricEvent{Type: obsmetrics.EventResponseCompleted, Backend: chosen.URL(), Duration: elapsed, StatusCode: res.StatusCode})

	return plainTextResponse(http.StatusBadGateway, "Backend server error: "+hre.Error())
}

// buildRequest composes the outbound request URL by concatenating the
// backend's base URL, the original path, and the query string
// reassembled verbatim (no re-encoding), matching the source behavior
// called out as a deliberate compatibility choice.
func (e *Engine) buildRequest(ctx context.Context, backendURL string, req Request) (*http.Request, error) {
	target := backendURL + req.Path
	if len(req.Query) > 0 {
		pairs := make([]string, 0, len(req.Query))
		for _, q := range req.Query {
			pairs = append(pairs, q.Key+"="+q.Value)
		}
		target += "?" + strings.Join(pairs, "&")
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("build outbound request: %w", err)
	}
	httpReq.Header = req.Header.Clone()

	return httpReq, nil
}

func (e *Engine) emit(event obsmetrics.MetricEvent) {
	if e.metrics == nil {
		return
	}
	e.metrics.Emit(event)
}

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/haldis-labs/reverseproxy-lb/internal/admin"
	"github.com/haldis-labs/reverseproxy-lb/internal/circuitbreaker"
	"github.com/haldis-labs/reverseproxy-lb/internal/discovery"
	"github.com/haldis-labs/reverseproxy-lb/internal/forward"
	"github.com/haldis-labs/reverseproxy-lb/internal/ingress"
	"github.com/haldis-labs/reverseproxy-lb/internal/registry"
	"github.com/haldis-labs/reverseproxy-lb/internal/strategy"
)

var _ = Describe("setupRouter", func() {
	It("routes /admin/* to the admin handler and everything else to ingress", func() {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("from-backend"))
		}))
		defer backend.Close()

		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		src := discovery.NewStaticSource([]string{backend.URL})
		reg := registry.New(src, registry.Config{
			InitialLatencyMs: 100,
			WindowMs:         30000,
			WindowMaxEntries: 5,
			Slowness:         registry.SlownessPolicy{SlowThresholdMs: 300, MinSamples: 3, ThresholdRatio: 0.6, CooldownSeconds: 60},
		}, log)
		Expect(reg.Reconcile(context.Background())).To(Succeed())

		strat := strategy.NewRoundRobinStrategy()
		breakers := circuitbreaker.NewRegistry(3, time.Second)
		eng := forward.New(reg, strat, breakers, time.Second, nil, log)

		router := setupRouter(ingress.New(eng, nil, log), admin.New(reg, strat, breakers))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/strategy", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("round-robin"))

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/some/path", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("from-backend"))
	})
})

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haldis-labs/reverseproxy-lb/config"
	"github.com/haldis-labs/reverseproxy-lb/internal/admin"
	"github.com/haldis-labs/reverseproxy-lb/internal/circuitbreaker"
	"github.com/haldis-labs/reverseproxy-lb/internal/discovery"
	"github.com/haldis-labs/reverseproxy-lb/internal/forward"
	"github.com/haldis-labs/reverseproxy-lb/internal/healthmonitor"
	"github.com/haldis-labs/reverseproxy-lb/internal/httpserver"
	"github.com/haldis-labs/reverseproxy-lb/internal/ingress"
	"github.com/haldis-labs/reverseproxy-lb/internal/obsmetrics"
	"github.com/haldis-labs/reverseproxy-lb/internal/registry"
	"github.com/haldis-labs/reverseproxy-lb/internal/strategy"
	"github.com/haldis-labs/reverseproxy-lb/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	source := newDiscoverySource(cfg, log)

	reg := registry.New(source, registryConfig(cfg), log)
	if err := reg.Reconcile(ctx); err != nil {
		log.Warn("initial discovery reconcile failed, starting with an empty registry", slog.Any("err", err))
	}

	strat, err := createStrategy(log, cfg.Strategy.Type)
	if err != nil {
		log.Error("failed to create strategy", slog.String("strategy", cfg.Strategy.Type), slog.Any("err", err))
		os.Exit(1)
	}

	breakers := circuitbreaker.NewRegistry(cfg.CircuitBreaker.FailureThreshold, time.Duration(cfg.CircuitBreaker.ResetTimeoutSeconds)*time.Second)

	metricsCollector := obsmetrics.NewCollector(256, log)
	metricsCollector.Start(ctx)

	monitor := healthmonitor.New(
		reg,
		time.Duration(cfg.HealthCheck.IntervalMs)*time.Millisecond,
		time.Duration(cfg.HealthCheck.TimeoutSeconds)*time.Second,
		cfg.Slowness.CooldownSeconds,
		metricsCollector,
		log,
	)
	go monitor.Run(ctx)

	engine := forward.New(
		reg,
		strat,
		breakers,
		time.Duration(cfg.Forward.RequestTimeoutSeconds)*time.Second,
		metricsCollector,
		log,
	)

	ingressHandler := ingress.New(engine, metricsCollector, log)
	adminHandler := admin.New(reg, strat, breakers)
	router := setupRouter(ingressHandler, adminHandler)

	srv, err := httpserver.New(cfg.Server.Address, router)
	if err != nil {
		log.Error("failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("error starting server", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func newDiscoverySource(cfg *config.Config, log *slog.Logger) discovery.Source {
	if cfg.Discovery.Strategy == config.DiscoveryFile {
		return discovery.NewFileSource(cfg.Discovery.FilePath, log)
	}
	return discovery.NewStaticSource(cfg.Discovery.StaticServers)
}

func registryConfig(cfg *config.Config) registry.Config {
	return registry.Config{
		InitialLatencyMs: cfg.Record.InitialLatencyMs,
		WindowMs:         cfg.Slowness.WindowTimeMs,
		WindowMaxEntries: cfg.Slowness.WindowSize,
		Slowness: registry.SlownessPolicy{
			SlowThresholdMs: cfg.Slowness.SlowThresholdMs,
			MinSamples:      cfg.Slowness.WindowSize,
			ThresholdRatio:  cfg.Slowness.ThresholdRatio,
			CooldownSeconds: cfg.Slowness.CooldownSeconds,
		},
	}
}

func createStrategy(log *slog.Logger, strategyType string) (strategy.Strategy, error) {
	switch strategyType {
	case config.StrategyRoundRobin:
		return strategy.NewRoundRobinStrategy(), nil
	case config.StrategyLeastResponse:
		return strategy.NewLeastResponseTimeStrategy(), nil
	case config.StrategyRandom:
		return strategy.NewRandomStrategy(), nil
	default:
		if strategyType != "" {
			log.Warn("unknown strategy, defaulting to round-robin", slog.String("requested", strategyType))
		}
		return strategy.NewRoundRobinStrategy(), nil
	}
}

package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tournevent/freight/internal/config"
	"github.com/tournevent/freight/internal/graphql"
	"github.com/tournevent/freight/internal/telemetry"
	"github.com/tournevent/freight/pkg/cache"
	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/freight/brasilapi"
	"github.com/tournevent/freight/pkg/freight/osrm"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

// initTracer returns a nil tracer when tracing is disabled; components then
// fall back to the global no-op provider.
func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.OTELEnabled {
		return nil, noop, nil
	}

	tracer, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Attributes()...)
	if err != nil {
		return nil, noop, err
	}
	return tracer, shutdown, nil
}

// services is the wired object graph shared by every command.
type services struct {
	cache     *cache.Client
	cep       *brasilapi.Client
	routes    *osrm.Client
	distances *freight.DistanceService
	quoter    *freight.Quoter
	metrics   *telemetry.Metrics
	registry  *prometheus.Registry
}

func initServices(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer) *services {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(registry)
	hooks := metrics.Hooks()

	cacheClient := cache.New(cfg.Cache(), logger)

	cep := brasilapi.New(brasilapi.Config{
		BaseURL:  cfg.BrasilAPIURL,
		Timeout:  cfg.HTTPTimeout,
		UseMock:  cfg.BrasilAPIUseMock,
		CacheTTL: cfg.CEPCacheTTL,
		Policy:   cfg.CEPPolicy(),
		Hooks:    hooks,
	}, cacheClient, logger, tracer)

	routes := osrm.New(osrm.Config{
		BaseURL:  cfg.OSRMURL,
		Timeout:  cfg.HTTPTimeout,
		UseMock:  cfg.OSRMUseMock,
		CacheTTL: cfg.CacheTTL,
		Policy:   cfg.RoutingPolicy(),
		Hooks:    hooks,
	}, cacheClient, logger, tracer)

	distances := freight.NewDistanceService(cep, routes, logger, tracer)
	quoter := freight.NewQuoter(freight.DefaultRegistry(), distances, logger, tracer)

	logger.Info("Providers configured",
		zap.String("brasilapi", cfg.BrasilAPIURL),
		zap.Bool("brasilapi_mock", cfg.BrasilAPIUseMock),
		zap.String("osrm", cfg.OSRMURL),
		zap.Bool("osrm_mock", cfg.OSRMUseMock),
		zap.String("cache", cfg.Cache().Addr()),
	)

	return &services{
		cache:     cacheClient,
		cep:       cep,
		routes:    routes,
		distances: distances,
		quoter:    quoter,
		metrics:   metrics,
		registry:  registry,
	}
}

func (s *services) resolver(logger *otelzap.Logger) *graphql.Resolver {
	return graphql.NewResolver(s.quoter, s.distances,
		[]graphql.ServiceHealth{s.cep, s.routes}, s.cache, logger, s.metrics)
}

func (s *services) Close() error {
	return s.cache.Close()
}

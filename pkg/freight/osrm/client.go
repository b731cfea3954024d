// Package osrm looks up road distances through the OSRM route service,
// behind retry, a circuit breaker, and an optional cache.
package osrm

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tournevent/freight/pkg/cache"
	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/resilience"
)

const serviceName = "osrm"

// DefaultCacheTTL is how long route distances stay cached.
const DefaultCacheTTL = time.Hour

// DefaultPolicy is the routing call-site policy: two attempts, waits capped at 5s.
var DefaultPolicy = resilience.Policy{
	MaxAttempts: 2,
	MinWait:     time.Second,
	MaxWait:     5 * time.Second,
}

// Config holds OSRM configuration.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	UseMock  bool // When true, uses mock API client
	CacheTTL time.Duration
	Policy   resilience.Policy
	Hooks    freight.Hooks
}

// Client is the OSRM route provider. One Client owns the breaker for the
// service, so build one per process and share it.
type Client struct {
	config    Config
	apiClient APIClient
	guarded   *resilience.Guarded[*RouteRequest, *RouteResponse]
	distance  resilience.ResilientClient[*RouteRequest, float64]
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new OSRM client.
// If cfg.UseMock is true, it uses a mock API client.
// Otherwise, it uses the real HTTP API client.
func New(cfg Config, cacheClient *cache.Client, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
	}

	return NewWithAPIClient(cfg, apiClient, cacheClient, logger, tracer)
}

// NewWithAPIClient creates a new OSRM client with a custom API client.
// This is useful for injecting mock clients in tests. cacheClient may be nil.
func NewWithAPIClient(cfg Config, apiClient APIClient, cacheClient *cache.Client, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/freight/pkg/freight/osrm")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}

	c := &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}

	retryOpts := append(DefaultPolicy.RetryOptions(), cfg.Policy.RetryOptions()...)
	retryOpts = append(retryOpts,
		resilience.WithRetryName(serviceName),
		resilience.WithRetryLogger(logger),
		resilience.WithErrorClassifier(freight.Classifier()),
		cfg.Hooks.RetryOption(),
	)
	breakerOpts := append(cfg.Policy.BreakerOptions(),
		resilience.WithBreakerName(serviceName),
		resilience.WithBreakerLogger(logger),
		cfg.Hooks.BreakerOption(),
	)

	c.guarded = resilience.Guard[*RouteRequest, *RouteResponse](
		resilience.ClientFunc[*RouteRequest, *RouteResponse](apiClient.GetRoute),
		breakerOpts,
		retryOpts...,
	)

	c.distance = cache.NewWrapper[*RouteRequest, float64](
		resilience.ClientFunc[*RouteRequest, float64](c.interpret),
		cacheClient,
		CacheKey,
		cache.WithTTL(cfg.CacheTTL),
		cache.WithLogger(logger),
		cache.WithOnLookup(cfg.Hooks.CacheLookup(serviceName)),
		cache.WithValidate(func(km float64) bool { return km >= 0 }),
	)

	return c
}

// CacheKey is the cache key of a route query.
func CacheKey(req *RouteRequest) string {
	return cache.Key(serviceName, "distance",
		formatCoord(req.Origin.Longitude), formatCoord(req.Origin.Latitude),
		formatCoord(req.Destination.Longitude), formatCoord(req.Destination.Latitude))
}

// Name returns the service name.
func (c *Client) Name() string {
	return serviceName
}

// Distance returns the driving distance in kilometres between two points.
func (c *Client) Distance(ctx context.Context, origin, destination freight.GeoCoordinate) (float64, error) {
	ctx, span := c.tracer.Start(ctx, "osrm.Distance",
		trace.WithAttributes(
			attribute.String("origin", origin.String()),
			attribute.String("destination", destination.String()),
		))
	defer span.End()

	km, err := c.distance.Execute(ctx, &RouteRequest{Origin: origin, Destination: destination})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, freight.UserMessage(err))
		c.logger.Ctx(ctx).Warn("Failed to fetch route distance",
			zap.Stringer("origin", origin),
			zap.Stringer("destination", destination),
			zap.Error(err))
		return 0, err
	}

	span.SetAttributes(attribute.Float64("distance.km", km))
	return km, nil
}

// interpret runs the guarded call and converts the first route to
// kilometres. Responses without a route are not retried and do not count
// against the breaker.
func (c *Client) interpret(ctx context.Context, req *RouteRequest) (float64, error) {
	resp, err := c.guarded.Execute(ctx, req)
	if err != nil {
		return 0, freight.ServiceError(serviceName, err)
	}

	meters, ok := resp.Meters()
	if !ok {
		return 0, freight.ExternalService(serviceName, freight.CodeDistanceNotFound,
			"Distance not found in OSRM response.")
	}

	km := meters / 1000
	c.logger.Ctx(ctx).Debug("Resolved route",
		zap.String("path", RoutePath(req)),
		zap.Float64("distance_km", km))
	return km, nil
}

// Health reports the breaker's state.
func (c *Client) Health() resilience.HealthStatus {
	return c.guarded.GetHealth()
}

// BreakerState returns the breaker's current state.
func (c *Client) BreakerState() resilience.CircuitBreakerState {
	return c.guarded.Breaker().State()
}

// RetryConfig returns the effective retry configuration.
func (c *Client) RetryConfig() resilience.RetryConfig {
	return c.guarded.Retry().Config()
}

var _ freight.RouteProvider = (*Client)(nil)

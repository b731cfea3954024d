// Package brasilapi resolves Brazilian postal codes (CEP) to coordinates
// through BrasilAPI, behind a cache, retry and a circuit breaker.
package brasilapi

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

const serviceName = "brasilapi"

// DefaultCacheTTL is how long resolved coordinates stay cached.
const DefaultCacheTTL = 24 * time.Hour

// Config holds BrasilAPI configuration.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	UseMock  bool // When true, uses mock API client
	CacheTTL time.Duration
	Policy   resilience.Policy
	Hooks    freight.Hooks
}

// Client is the BrasilAPI coordinate resolver. One Client owns the breaker
// for the service, so build one per process and share it.
type Client struct {
	config    Config
	apiClient APIClient
	guarded   *resilience.Guarded[string, *CEPResponse]
	resolve   resilience.ResilientClient[string, freight.GeoCoordinate]
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new BrasilAPI client.
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

// NewWithAPIClient creates a new BrasilAPI client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, cacheClient *cache.Client, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/freight/pkg/freight/brasilapi")
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

	breakerOpts := append(cfg.Policy.BreakerOptions(),
		resilience.WithBreakerName(serviceName),
		resilience.WithBreakerLogger(logger),
		cfg.Hooks.BreakerOption(),
	)
	retryOpts := append(cfg.Policy.RetryOptions(),
		resilience.WithRetryName(serviceName),
		resilience.WithRetryLogger(logger),
		resilience.WithErrorClassifier(freight.Classifier()),
		cfg.Hooks.RetryOption(),
	)

	c.guarded = resilience.Guard[string, *CEPResponse](
		resilience.ClientFunc[string, *CEPResponse](apiClient.GetCEP),
		breakerOpts,
		retryOpts...,
	)

	c.resolve = cache.NewWrapper[string, freight.GeoCoordinate](
		resilience.ClientFunc[string, freight.GeoCoordinate](c.interpret),
		cacheClient,
		CacheKey,
		cache.WithTTL(cfg.CacheTTL),
		cache.WithLogger(logger),
		cache.WithOnLookup(cfg.Hooks.CacheLookup(serviceName)),
		cache.WithValidate(func(coords freight.GeoCoordinate) bool {
			return coords.Valid() && coords != freight.GeoCoordinate{}
		}),
	)

	return c
}

// CacheKey is the cache key of a normalized CEP.
func CacheKey(cep string) string {
	return cache.Key(serviceName, "coordinates", cep)
}

// Name returns the service name.
func (c *Client) Name() string {
	return serviceName
}

// Coordinates resolves cep to coordinates.
func (c *Client) Coordinates(ctx context.Context, cep string) (freight.GeoCoordinate, error) {
	ctx, span := c.tracer.Start(ctx, "brasilapi.Coordinates",
		trace.WithAttributes(attribute.String("cep", cep)))
	defer span.End()

	if !freight.IsValidCEP(cep) {
		err := freight.InvalidInput("Invalid CEP: %s", cep)
		span.SetStatus(codes.Error, err.Message)
		return freight.GeoCoordinate{}, err
	}

	coords, err := c.resolve.Execute(ctx, freight.NormalizeCEP(cep))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, freight.UserMessage(err))
		c.logger.Ctx(ctx).Warn("Failed to resolve CEP",
			zap.String("cep", cep),
			zap.Error(err))
		return freight.GeoCoordinate{}, err
	}

	span.SetAttributes(
		attribute.Float64("latitude", coords.Latitude),
		attribute.Float64("longitude", coords.Longitude),
	)
	return coords, nil
}

// interpret runs the guarded call and turns its answer into coordinates.
// It sits outside the breaker, so unknown CEPs never count as failures.
func (c *Client) interpret(ctx context.Context, cep string) (freight.GeoCoordinate, error) {
	resp, err := c.guarded.Execute(ctx, cep)
	if err != nil {
		return freight.GeoCoordinate{}, freight.ServiceError(serviceName, err)
	}

	if !resp.Found() {
		return freight.GeoCoordinate{}, freight.InvalidCep(cep).WithStatusCode(resp.StatusCode)
	}

	coords, ok := freight.CoordinatesFromPayload(resp.Payload)
	if !ok {
		return freight.GeoCoordinate{}, freight.InvalidCep(cep)
	}

	c.logger.Ctx(ctx).Debug("Resolved CEP",
		zap.String("cep", cep),
		zap.Stringer("coordinates", coords))
	return coords, nil
}

// Health reports the breaker's state.
func (c *Client) Health() resilience.HealthStatus {
	return c.guarded.GetHealth()
}

// BreakerState returns the breaker's current state.
func (c *Client) BreakerState() resilience.CircuitBreakerState {
	return c.guarded.Breaker().State()
}

var _ freight.CoordinateResolver = (*Client)(nil)

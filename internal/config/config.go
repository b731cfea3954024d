package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tournevent/freight/pkg/cache"
	"github.com/tournevent/freight/pkg/resilience"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"80"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// BrasilAPI
	BrasilAPIURL     string `envconfig:"BRASIL_API_URL" default:"https://brasilapi.com.br/api/cep/v2/"`
	BrasilAPIUseMock bool   `envconfig:"BRASIL_API_USE_MOCK" default:"false"`

	// OSRM
	OSRMURL     string `envconfig:"OSRM_API_URL" default:"https://router.project-osrm.org/route/v1/driving/"`
	OSRMUseMock bool   `envconfig:"OSRM_USE_MOCK" default:"false"`

	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`

	// Redis
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	CacheTTL    time.Duration `envconfig:"CACHE_TTL" default:"1h"`
	CEPCacheTTL time.Duration `envconfig:"CEP_CACHE_TTL" default:"24h"`

	// Circuit breakers, one per dependency
	BreakerFailMax      uint32        `envconfig:"BREAKER_FAIL_MAX" default:"3"`
	BreakerResetTimeout time.Duration `envconfig:"BREAKER_RESET_TIMEOUT" default:"30s"`

	// Retry
	CEPRetryMaxAttempts     int           `envconfig:"CEP_RETRY_MAX_ATTEMPTS" default:"3"`
	CEPRetryMinWait         time.Duration `envconfig:"CEP_RETRY_MIN_WAIT" default:"1s"`
	CEPRetryMaxWait         time.Duration `envconfig:"CEP_RETRY_MAX_WAIT" default:"10s"`
	RoutingRetryMaxAttempts int           `envconfig:"ROUTING_RETRY_MAX_ATTEMPTS" default:"2"`
	RoutingRetryMinWait     time.Duration `envconfig:"ROUTING_RETRY_MIN_WAIT" default:"1s"`
	RoutingRetryMaxWait     time.Duration `envconfig:"ROUTING_RETRY_MAX_WAIT" default:"5s"`
	RetryMultiplier         time.Duration `envconfig:"RETRY_MULTIPLIER" default:"1s"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"freight"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the resilience layer cannot run with.
func (c *Config) Validate() error {
	if c.CEPRetryMaxAttempts < 1 || c.RoutingRetryMaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1")
	}
	if c.BreakerFailMax < 1 {
		return fmt.Errorf("BREAKER_FAIL_MAX must be at least 1")
	}
	if c.CEPRetryMinWait > c.CEPRetryMaxWait || c.RoutingRetryMinWait > c.RoutingRetryMaxWait {
		return fmt.Errorf("retry min wait must not exceed max wait")
	}
	return nil
}

// Cache returns the Redis connection settings.
func (c *Config) Cache() cache.Config {
	return cache.Config{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		DB:       c.RedisDB,
		Password: c.RedisPassword,
	}
}

// CEPPolicy returns the breaker and retry settings for CEP lookups.
func (c *Config) CEPPolicy() resilience.Policy {
	return resilience.Policy{
		MaxAttempts:      c.CEPRetryMaxAttempts,
		MinWait:          c.CEPRetryMinWait,
		MaxWait:          c.CEPRetryMaxWait,
		Multiplier:       c.RetryMultiplier,
		FailureThreshold: c.BreakerFailMax,
		ResetTimeout:     c.BreakerResetTimeout,
	}
}

// RoutingPolicy returns the breaker and retry settings for route lookups.
func (c *Config) RoutingPolicy() resilience.Policy {
	return resilience.Policy{
		MaxAttempts:      c.RoutingRetryMaxAttempts,
		MinWait:          c.RoutingRetryMinWait,
		MaxWait:          c.RoutingRetryMaxWait,
		Multiplier:       c.RetryMultiplier,
		FailureThreshold: c.BreakerFailMax,
		ResetTimeout:     c.BreakerResetTimeout,
	}
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("brasilapi.mock", c.BrasilAPIUseMock),
		attribute.Bool("osrm.mock", c.OSRMUseMock),
		attribute.Int("breaker.fail_max", int(c.BreakerFailMax)),
	}
}

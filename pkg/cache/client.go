// Package cache is a Redis-backed key/value cache that degrades to a no-op
// whenever the store cannot be reached. Values are stored as JSON text.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// DefaultTTL is used when Set is given a non-positive expiry.
const DefaultTTL = time.Hour

// Config holds the store connection settings.
type Config struct {
	Host     string
	Port     int
	DB       int
	Password string

	// ProbeTimeout bounds every store round trip. Default: 500ms
	ProbeTimeout time.Duration
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Client is the process-wide cache handle. Construct one in the composition
// root and pass it to every component that caches. A nil *Client is valid and
// behaves as a permanently unavailable store.
type Client struct {
	rdb     redis.UniversalClient
	timeout time.Duration
	logger  *otelzap.Logger
}

// New creates a client for cfg. It never fails: the connection is lazy, and
// an unreachable store only shows up as IsAvailable returning false.
func New(cfg Config, logger *otelzap.Logger) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newClient(rdb, cfg.ProbeTimeout, logger)
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(rdb redis.UniversalClient, logger *otelzap.Logger) *Client {
	return newClient(rdb, 0, logger)
}

func newClient(rdb redis.UniversalClient, timeout time.Duration, logger *otelzap.Logger) *Client {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &Client{rdb: rdb, timeout: timeout, logger: logger}
}

// Get loads key into dst. It reports false on a miss, on any store error,
// and when the stored text does not decode into dst.
func (c *Client) Get(ctx context.Context, key string, dst any) bool {
	if c == nil || c.rdb == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Ctx(ctx).Debug("Cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Ctx(ctx).Warn("Cache entry could not be decoded", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set stores value under key for ttl.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Ctx(ctx).Warn("Cache value could not be encoded", zap.String("key", key), zap.Error(err))
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Ctx(ctx).Debug("Cache set failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Delete removes key. Deleting a missing key succeeds.
func (c *Client) Delete(ctx context.Context, key string) bool {
	if c == nil || c.rdb == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		c.logger.Ctx(ctx).Debug("Cache delete failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// IsAvailable probes the store with PING.
func (c *Client) IsAvailable(ctx context.Context) bool {
	if c == nil || c.rdb == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.rdb.Ping(ctx).Err() == nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}

package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/tournevent/freight/pkg/resilience"
)

// Key joins prefix, operation name and arguments with ':'.
//
//	cache.Key("brasilapi", "coordinates", "01310100") // "brasilapi:coordinates:01310100"
func Key(prefix, op string, args ...any) string {
	parts := make([]string, 0, len(args)+2)
	parts = append(parts, prefix, op)
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, ":")
}

// KeyFunc derives the cache key of one request.
type KeyFunc[Req any] func(req Req) string

// Option configures a Wrapper.
type Option func(*wrapperConfig)

type wrapperConfig struct {
	ttl      time.Duration
	logger   *otelzap.Logger
	onLookup func(key string, hit bool)
	validate func(v any) bool
}

// WithTTL sets the expiry of cached results.
func WithTTL(ttl time.Duration) Option {
	return func(c *wrapperConfig) {
		c.ttl = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(logger *otelzap.Logger) Option {
	return func(c *wrapperConfig) {
		c.logger = logger
	}
}

// WithOnLookup registers a callback invoked for every hit or miss.
func WithOnLookup(fn func(key string, hit bool)) Option {
	return func(c *wrapperConfig) {
		c.onLookup = fn
	}
}

// WithValidate rejects cached values for which valid returns false. A rejected
// entry is treated as a miss and overwritten by the fresh result.
func WithValidate[Resp any](valid func(Resp) bool) Option {
	return func(c *wrapperConfig) {
		c.validate = func(v any) bool {
			r, ok := v.(Resp)
			return ok && valid(r)
		}
	}
}

// Wrapper is the outermost layer of a resilient call: a hit returns without
// touching the wrapped client, a miss calls it and stores a successful result.
// Errors are never cached.
type Wrapper[Req, Resp any] struct {
	next   resilience.ResilientClient[Req, Resp]
	cache  *Client
	key    KeyFunc[Req]
	config wrapperConfig
}

// NewWrapper caches next's results in c.
func NewWrapper[Req, Resp any](
	next resilience.ResilientClient[Req, Resp],
	c *Client,
	key KeyFunc[Req],
	opts ...Option,
) *Wrapper[Req, Resp] {
	config := wrapperConfig{ttl: DefaultTTL}
	for _, opt := range opts {
		opt(&config)
	}
	if config.logger == nil {
		config.logger = otelzap.New(zap.NewNop())
	}

	return &Wrapper[Req, Resp]{
		next:   next,
		cache:  c,
		key:    key,
		config: config,
	}
}

// Execute implements resilience.ResilientClient.
func (w *Wrapper[Req, Resp]) Execute(ctx context.Context, req Req) (Resp, error) {
	if !w.cache.IsAvailable(ctx) {
		return w.next.Execute(ctx, req)
	}

	key := w.key(req)

	var cached Resp
	if w.cache.Get(ctx, key, &cached) {
		if w.config.validate == nil || w.config.validate(cached) {
			w.lookup(key, true)
			w.config.logger.Ctx(ctx).Debug("Cache hit", zap.String("key", key))
			return cached, nil
		}
		w.config.logger.Ctx(ctx).Warn("Cached value rejected, refetching", zap.String("key", key))
	}
	w.lookup(key, false)

	resp, err := w.next.Execute(ctx, req)
	if err != nil {
		return resp, err
	}

	if !w.cache.Set(ctx, key, resp, w.config.ttl) {
		w.config.logger.Ctx(ctx).Debug("Result not cached", zap.String("key", key))
	}
	return resp, nil
}

// TTL returns the configured expiry.
func (w *Wrapper[Req, Resp]) TTL() time.Duration {
	return w.config.ttl
}

func (w *Wrapper[Req, Resp]) lookup(key string, hit bool) {
	if w.config.onLookup != nil {
		w.config.onLookup(key, hit)
	}
}

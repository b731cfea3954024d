package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// RetryWrapper wraps a ResilientClient with bounded exponential retry.
// Breaker rejections are never retried, whatever the classifier says.
type RetryWrapper[Req, Resp any] struct {
	client     ResilientClient[Req, Resp]
	config     *RetryConfig
	logger     *otelzap.Logger
	classifier ErrorClassifier
	stats      *retryStats
}

type retryStats struct {
	mu             sync.RWMutex
	totalAttempts  int64
	totalRetries   int64
	totalSuccesses int64
	totalFailures  int64
	lastError      error
}

// RetryStats is a snapshot of a wrapper's counters.
type RetryStats struct {
	TotalAttempts  int64
	TotalRetries   int64
	TotalSuccesses int64
	TotalFailures  int64
	LastError      error
}

// NewRetryWrapper creates a new retry wrapper around a ResilientClient.
//
// Example:
//
//	wrapper := resilience.NewRetryWrapper(
//	    breaker,
//	    resilience.WithMaxAttempts(3),
//	    resilience.WithExponentialBackoff(time.Second, 10*time.Second),
//	)
func NewRetryWrapper[Req, Resp any](
	client ResilientClient[Req, Resp],
	opts ...RetryOption,
) *RetryWrapper[Req, Resp] {
	config := DefaultRetryConfig()
	for _, opt := range opts {
		opt(config)
	}

	if config.Logger == nil {
		config.Logger = otelzap.New(zap.NewNop())
	}
	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultErrorClassifier()
	}
	if config.MaxAttempts > 1000 {
		config.MaxAttempts = 1000
	}

	return &RetryWrapper[Req, Resp]{
		client:     client,
		config:     config,
		logger:     config.Logger,
		classifier: NotOnCircuitOpen(config.ErrorClassifier),
		stats:      &retryStats{},
	}
}

// Execute performs the request, retrying retryable failures up to MaxAttempts
// times in total. When every attempt failed retryably the result is an
// *ExhaustedError wrapping the last failure; any other failure is returned
// unchanged.
func (w *RetryWrapper[Req, Resp]) Execute(ctx context.Context, req Req) (Resp, error) {
	var zero Resp

	if w.config.MaxAttempts <= 0 {
		return zero, errors.New("max attempts must be positive")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	var (
		response      Resp
		attempts      int
		lastRetryable bool
	)

	backoff := newBoundedExponential(w.config.MaxAttempts, w.config.Multiplier, w.config.MinWait, w.config.MaxWait)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		w.trackAttempt(attempts)

		resp, err := w.client.Execute(ctx, req)
		if err == nil {
			if attempts > 1 {
				w.logger.Ctx(ctx).Info("Request succeeded after retry",
					zap.String("client", w.config.Name),
					zap.Int("attempts", attempts))
			}
			response = resp
			return nil
		}

		if !w.classifier.IsRetryable(err) {
			lastRetryable = false
			w.logger.Ctx(ctx).Debug("Non-retryable error, giving up",
				zap.String("client", w.config.Name),
				zap.Int("attempt", attempts),
				zap.Error(err))
			return err
		}

		lastRetryable = true
		if attempts < w.config.MaxAttempts {
			w.logger.Ctx(ctx).Warn("Retrying request",
				zap.String("client", w.config.Name),
				zap.Int("attempt", attempts),
				zap.Int("max_attempts", w.config.MaxAttempts),
				zap.Duration("wait", ExponentialDelay(attempts, w.config.Multiplier, w.config.MinWait, w.config.MaxWait)),
				zap.Error(err))
			if w.config.OnRetry != nil {
				w.config.OnRetry(w.config.Name, attempts, err)
			}
		}

		return retry.RetryableError(err)
	})
	if err != nil {
		if lastRetryable && attempts >= w.config.MaxAttempts && ctx.Err() == nil {
			err = &ExhaustedError{Attempts: attempts, Err: err}
			w.logger.Ctx(ctx).Error("Request failed after retries",
				zap.String("client", w.config.Name),
				zap.Int("attempts", attempts),
				zap.Error(err))
		}
		w.trackFailure(err)
		return zero, err
	}

	w.stats.mu.Lock()
	w.stats.totalSuccesses++
	w.stats.mu.Unlock()

	return response, nil
}

// Config returns the effective configuration.
func (w *RetryWrapper[Req, Resp]) Config() RetryConfig {
	return *w.config
}

// GetRetryStats returns a snapshot of the wrapper's counters.
func (w *RetryWrapper[Req, Resp]) GetRetryStats() RetryStats {
	w.stats.mu.RLock()
	defer w.stats.mu.RUnlock()

	return RetryStats{
		TotalAttempts:  w.stats.totalAttempts,
		TotalRetries:   w.stats.totalRetries,
		TotalSuccesses: w.stats.totalSuccesses,
		TotalFailures:  w.stats.totalFailures,
		LastError:      w.stats.lastError,
	}
}

// Delays lists the waits between attempts for the current configuration.
func (w *RetryWrapper[Req, Resp]) Delays() []time.Duration {
	if w.config.MaxAttempts <= 1 {
		return nil
	}
	delays := make([]time.Duration, 0, w.config.MaxAttempts-1)
	for i := 1; i < w.config.MaxAttempts; i++ {
		delays = append(delays, ExponentialDelay(i, w.config.Multiplier, w.config.MinWait, w.config.MaxWait))
	}
	return delays
}

func (w *RetryWrapper[Req, Resp]) trackAttempt(attempt int) {
	w.stats.mu.Lock()
	defer w.stats.mu.Unlock()
	w.stats.totalAttempts++
	if attempt > 1 {
		w.stats.totalRetries++
	}
}

func (w *RetryWrapper[Req, Resp]) trackFailure(err error) {
	w.stats.mu.Lock()
	defer w.stats.mu.Unlock()
	w.stats.totalFailures++
	w.stats.lastError = err
}

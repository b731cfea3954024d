package resilience

import (
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

// RetryConfig holds retry configuration options.
type RetryConfig struct {
	// Name labels log lines and OnRetry callbacks.
	Name string

	// ErrorClassifier determines which errors should trigger retries.
	// Default: DefaultErrorClassifier
	ErrorClassifier ErrorClassifier

	// Logger for retry operations.
	Logger *otelzap.Logger

	// MaxAttempts is the maximum number of attempts, including the first.
	// Default: 3
	MaxAttempts int

	// MinWait floors every delay. Default: 1 second
	MinWait time.Duration

	// MaxWait caps every delay. Default: 10 seconds
	MaxWait time.Duration

	// Multiplier is the base unit: delay n is Multiplier * 2^(n-1).
	// Default: 1 second
	Multiplier time.Duration

	// OnRetry is called before waiting for attempt+1.
	OnRetry func(name string, attempt int, err error)
}

// RetryOption is a functional option for configuring retry behavior.
type RetryOption func(*RetryConfig)

// WithRetryName sets the name used in logs.
func WithRetryName(name string) RetryOption {
	return func(c *RetryConfig) {
		c.Name = name
	}
}

// WithMaxAttempts sets the maximum number of attempts.
//
// Example:
//
//	resilience.WithMaxAttempts(2) // first try plus one retry
func WithMaxAttempts(attempts int) RetryOption {
	return func(c *RetryConfig) {
		c.MaxAttempts = attempts
	}
}

// WithExponentialBackoff sets the delay bounds.
//
// Example:
//
//	resilience.WithExponentialBackoff(time.Second, 10*time.Second)
//	// With Multiplier 1s: 1s, 2s, 4s, 8s, 10s (capped)
func WithExponentialBackoff(minWait, maxWait time.Duration) RetryOption {
	return func(c *RetryConfig) {
		c.MinWait = minWait
		c.MaxWait = maxWait
	}
}

// WithMultiplier sets the base delay unit.
func WithMultiplier(unit time.Duration) RetryOption {
	return func(c *RetryConfig) {
		c.Multiplier = unit
	}
}

// WithErrorClassifier sets a custom error classifier for retry decisions.
func WithErrorClassifier(classifier ErrorClassifier) RetryOption {
	return func(c *RetryConfig) {
		c.ErrorClassifier = classifier
	}
}

// WithRetryLogger sets a custom logger for retry operations.
func WithRetryLogger(logger *otelzap.Logger) RetryOption {
	return func(c *RetryConfig) {
		c.Logger = logger
	}
}

// WithOnRetry registers a callback invoked for every retry.
func WithOnRetry(fn func(name string, attempt int, err error)) RetryOption {
	return func(c *RetryConfig) {
		c.OnRetry = fn
	}
}

// DefaultRetryConfig returns retry configuration with sensible defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		Name:            "resilient-client",
		MaxAttempts:     3,
		MinWait:         time.Second,
		MaxWait:         10 * time.Second,
		Multiplier:      time.Second,
		ErrorClassifier: DefaultErrorClassifier(),
	}
}

// CircuitBreakerConfig holds circuit breaker configuration options.
type CircuitBreakerConfig struct {
	// Name identifies the guarded dependency.
	Name string

	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Default: 3
	FailureThreshold uint32

	// ResetTimeout is how long the breaker stays open before it lets a single
	// trial request through. Default: 30 seconds
	ResetTimeout time.Duration

	// OnStateChange is called whenever the circuit breaker changes state.
	OnStateChange func(name string, from, to CircuitBreakerState)

	// Logger for circuit breaker operations.
	Logger *otelzap.Logger
}

// CircuitBreakerOption is a functional option for configuring circuit breaker behavior.
type CircuitBreakerOption func(*CircuitBreakerConfig)

// WithBreakerName sets the dependency name.
func WithBreakerName(name string) CircuitBreakerOption {
	return func(c *CircuitBreakerConfig) {
		c.Name = name
	}
}

// WithFailureThreshold sets the consecutive failures needed to open.
func WithFailureThreshold(n uint32) CircuitBreakerOption {
	return func(c *CircuitBreakerConfig) {
		c.FailureThreshold = n
	}
}

// WithResetTimeout sets how long the breaker stays open.
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(c *CircuitBreakerConfig) {
		c.ResetTimeout = d
	}
}

// WithOnStateChange registers a state transition callback.
func WithOnStateChange(fn func(name string, from, to CircuitBreakerState)) CircuitBreakerOption {
	return func(c *CircuitBreakerConfig) {
		c.OnStateChange = fn
	}
}

// WithBreakerLogger sets a custom logger.
func WithBreakerLogger(logger *otelzap.Logger) CircuitBreakerOption {
	return func(c *CircuitBreakerConfig) {
		c.Logger = logger
	}
}

// DefaultCircuitBreakerConfig returns circuit breaker configuration with sensible defaults.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             "resilient-client",
		FailureThreshold: 3,
		ResetTimeout:     30 * time.Second,
	}
}

// Policy is the flat form of a breaker plus retry configuration, as read from
// the environment. Zero fields keep the defaults.
type Policy struct {
	MaxAttempts      int
	MinWait          time.Duration
	MaxWait          time.Duration
	Multiplier       time.Duration
	FailureThreshold uint32
	ResetTimeout     time.Duration
}

// RetryOptions converts the retry half of p.
func (p Policy) RetryOptions() []RetryOption {
	var opts []RetryOption
	if p.MaxAttempts > 0 {
		opts = append(opts, WithMaxAttempts(p.MaxAttempts))
	}
	if p.MinWait > 0 || p.MaxWait > 0 {
		defaults := DefaultRetryConfig()
		minWait, maxWait := p.MinWait, p.MaxWait
		if minWait <= 0 {
			minWait = defaults.MinWait
		}
		if maxWait <= 0 {
			maxWait = defaults.MaxWait
		}
		opts = append(opts, WithExponentialBackoff(minWait, maxWait))
	}
	if p.Multiplier > 0 {
		opts = append(opts, WithMultiplier(p.Multiplier))
	}
	return opts
}

// BreakerOptions converts the breaker half of p.
func (p Policy) BreakerOptions() []CircuitBreakerOption {
	var opts []CircuitBreakerOption
	if p.FailureThreshold > 0 {
		opts = append(opts, WithFailureThreshold(p.FailureThreshold))
	}
	if p.ResetTimeout > 0 {
		opts = append(opts, WithResetTimeout(p.ResetTimeout))
	}
	return opts
}

package resilience

import (
	"context"
	"errors"
	"fmt"
)

// ErrCircuitOpen is matched by every rejection issued by a circuit breaker,
// whether the breaker is open or its half-open trial slot is taken.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerError is returned when a breaker rejects a call without executing it.
type BreakerError struct {
	Name  string
	State CircuitBreakerState
	Cause error
}

// Error implements the error interface.
func (e *BreakerError) Error() string {
	return fmt.Sprintf("circuit breaker %s rejected request (%s)", e.Name, e.State)
}

// Unwrap returns the underlying gobreaker error.
func (e *BreakerError) Unwrap() error {
	return e.Cause
}

// Is matches ErrCircuitOpen.
func (e *BreakerError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("service unavailable after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// ErrorClassifier determines whether an error should trigger a retry.
type ErrorClassifier interface {
	// IsRetryable returns true if the error represents a transient failure.
	IsRetryable(err error) bool
}

// ClassifierFunc adapts a predicate to ErrorClassifier.
type ClassifierFunc func(err error) bool

// IsRetryable calls f.
func (f ClassifierFunc) IsRetryable(err error) bool {
	return f(err)
}

// DefaultErrorClassifier retries everything except breaker rejections and
// context cancellation.
func DefaultErrorClassifier() ErrorClassifier {
	return ClassifierFunc(func(err error) bool {
		if err == nil {
			return false
		}
		if errors.Is(err, ErrCircuitOpen) {
			return false
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		return true
	})
}

// NotOnCircuitOpen guards a classifier so breaker rejections are never retried.
func NotOnCircuitOpen(c ErrorClassifier) ErrorClassifier {
	return ClassifierFunc(func(err error) bool {
		if errors.Is(err, ErrCircuitOpen) {
			return false
		}
		return c.IsRetryable(err)
	})
}

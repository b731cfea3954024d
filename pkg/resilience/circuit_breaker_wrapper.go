package resilience

import (
	"context"
	"errors"

	"github.com/sony/gobreaker/v2"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// CircuitBreakerState is the state of a breaker.
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateHalfOpen
	StateOpen
)

// String returns the state name.
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreakerCounts mirrors the breaker's request counters.
type CircuitBreakerCounts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
	TotalExclusions      uint32
}

// CircuitBreakerWrapper guards one dependency. Create one per dependency and
// share it between all callers; transitions are serialized by the breaker.
//
// Closed: failures count up; FailureThreshold consecutive failures open it.
// Open: calls are rejected with ErrCircuitOpen until ResetTimeout elapses.
// Half-open: one trial call passes; success closes, failure reopens.
//
// Every error returned by the wrapped client counts as a failure, so callers
// keep caller-side errors (bad input, unknown CEP) outside the wrapped client.
// A call that fails after the caller's context ended is excluded: it counts
// as neither success nor failure.
type CircuitBreakerWrapper[Req, Resp any] struct {
	client ResilientClient[Req, Resp]
	cb     *gobreaker.CircuitBreaker[Resp]
	name   string
	logger *otelzap.Logger
}

// NewCircuitBreakerWrapper creates a new circuit breaker wrapper around a ResilientClient.
func NewCircuitBreakerWrapper[Req, Resp any](
	client ResilientClient[Req, Resp],
	opts ...CircuitBreakerOption,
) *CircuitBreakerWrapper[Req, Resp] {
	config := DefaultCircuitBreakerConfig()
	for _, opt := range opts {
		opt(config)
	}

	if config.Logger == nil {
		config.Logger = otelzap.New(zap.NewNop())
	}
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 1
	}

	logger := config.Logger
	threshold := config.FailureThreshold

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: 1,
		Timeout:     config.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromState := convertGobreakerState(from)
			toState := convertGobreakerState(to)

			switch toState {
			case StateOpen:
				logger.Warn("Circuit OPEN: the service is unavailable",
					zap.String("breaker", name),
					zap.String("from", fromState.String()))
			case StateHalfOpen:
				logger.Info("Circuit HALF-OPEN: the service is being tested",
					zap.String("breaker", name))
			case StateClosed:
				logger.Info("Circuit CLOSED: the service is back online",
					zap.String("breaker", name))
			}

			if config.OnStateChange != nil {
				config.OnStateChange(name, fromState, toState)
			}
		},
		IsExcluded: func(err error) bool {
			var aborted *callerAborted
			return errors.As(err, &aborted)
		},
	}

	return &CircuitBreakerWrapper[Req, Resp]{
		client: client,
		cb:     gobreaker.NewCircuitBreaker[Resp](settings),
		name:   config.Name,
		logger: logger,
	}
}

// Execute executes the request through the circuit breaker.
// Rejections are returned as *BreakerError, which matches ErrCircuitOpen.
func (w *CircuitBreakerWrapper[Req, Resp]) Execute(ctx context.Context, req Req) (Resp, error) {
	var zero Resp

	resp, err := w.cb.Execute(func() (Resp, error) {
		resp, err := w.client.Execute(ctx, req)
		if err != nil && ctx.Err() != nil {
			return resp, &callerAborted{err: err}
		}
		return resp, err
	})
	if err != nil {
		var aborted *callerAborted
		if errors.As(err, &aborted) {
			w.logger.Ctx(ctx).Debug("Call abandoned by caller, not counted",
				zap.String("breaker", w.name),
				zap.Error(aborted.err))
			return zero, aborted.err
		}
		switch {
		case errors.Is(err, gobreaker.ErrOpenState):
			w.logger.Ctx(ctx).Warn("Circuit breaker is open, request rejected",
				zap.String("breaker", w.name),
				zap.Uint32("consecutive_failures", w.cb.Counts().ConsecutiveFailures))
			return zero, &BreakerError{Name: w.name, State: StateOpen, Cause: err}
		case errors.Is(err, gobreaker.ErrTooManyRequests):
			w.logger.Ctx(ctx).Debug("Circuit breaker trial in progress, request rejected",
				zap.String("breaker", w.name))
			return zero, &BreakerError{Name: w.name, State: StateHalfOpen, Cause: err}
		default:
			w.logger.Ctx(ctx).Error("Circuit breaker call failed",
				zap.String("breaker", w.name),
				zap.Error(err))
		}
		return zero, err
	}

	return resp, nil
}

// Name returns the guarded dependency name.
func (w *CircuitBreakerWrapper[Req, Resp]) Name() string {
	return w.name
}

// State returns the current state of the circuit breaker.
func (w *CircuitBreakerWrapper[Req, Resp]) State() CircuitBreakerState {
	return convertGobreakerState(w.cb.State())
}

// Counts returns the current counts of the circuit breaker.
func (w *CircuitBreakerWrapper[Req, Resp]) Counts() CircuitBreakerCounts {
	counts := w.cb.Counts()
	return CircuitBreakerCounts{
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
		TotalExclusions:      counts.TotalExclusions,
	}
}

// GetHealth returns the health status of the circuit breaker.
func (w *CircuitBreakerWrapper[Req, Resp]) GetHealth() HealthStatus {
	state := w.State()
	counts := w.Counts()

	return HealthStatus{
		Name:                 w.name,
		Healthy:              state != StateOpen,
		State:                state.String(),
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
	}
}

// callerAborted marks a failure caused by the caller's context ending.
type callerAborted struct {
	err error
}

func (e *callerAborted) Error() string { return e.err.Error() }

func (e *callerAborted) Unwrap() error { return e.err }

func convertGobreakerState(state gobreaker.State) CircuitBreakerState {
	switch state {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

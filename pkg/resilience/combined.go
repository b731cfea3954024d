package resilience

import "context"

// Guarded is a client wrapped with a circuit breaker (inner) and retry (outer).
// Retry sees every breaker rejection as non-retryable, so an open breaker ends
// the retry loop at once.
type Guarded[Req, Resp any] struct {
	retry   *RetryWrapper[Req, Resp]
	breaker *CircuitBreakerWrapper[Req, Resp]
}

// Guard builds the standard chain around client.
func Guard[Req, Resp any](
	client ResilientClient[Req, Resp],
	breakerOpts []CircuitBreakerOption,
	retryOpts ...RetryOption,
) *Guarded[Req, Resp] {
	breaker := NewCircuitBreakerWrapper(client, breakerOpts...)
	return &Guarded[Req, Resp]{
		retry:   NewRetryWrapper[Req, Resp](breaker, retryOpts...),
		breaker: breaker,
	}
}

// Execute runs req through retry then breaker.
func (g *Guarded[Req, Resp]) Execute(ctx context.Context, req Req) (Resp, error) {
	return g.retry.Execute(ctx, req)
}

// Breaker returns the inner breaker.
func (g *Guarded[Req, Resp]) Breaker() *CircuitBreakerWrapper[Req, Resp] {
	return g.breaker
}

// Retry returns the outer retry wrapper.
func (g *Guarded[Req, Resp]) Retry() *RetryWrapper[Req, Resp] {
	return g.retry
}

// GetHealth reports the breaker's health.
func (g *Guarded[Req, Resp]) GetHealth() HealthStatus {
	return g.breaker.GetHealth()
}

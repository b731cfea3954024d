// Package resilience provides generic retry and circuit breaker wrappers for
// outbound calls. Wrappers share the ResilientClient contract so they can be
// chained explicitly: the outermost wrapper is the one the caller holds.
package resilience

import (
	"context"
)

// ResilientClient executes one request against a dependency.
//
// Example:
//
//	raw := resilience.ClientFunc[string, *Payload](api.GetCEP)
//	guarded := resilience.NewCircuitBreakerWrapper(raw, resilience.WithBreakerName("brasilapi"))
//	client := resilience.NewRetryWrapper(guarded, resilience.WithMaxAttempts(3))
type ResilientClient[Req, Resp any] interface {
	// Execute performs a request and returns a response or error.
	Execute(ctx context.Context, req Req) (Resp, error)
}

// ClientFunc adapts a plain function to ResilientClient.
type ClientFunc[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// Execute calls f.
func (f ClientFunc[Req, Resp]) Execute(ctx context.Context, req Req) (Resp, error) {
	return f(ctx, req)
}

// Package freight prices shipments from weight and distance, resolving the
// distance between two CEPs through external geocoding and routing providers.
package freight

import (
	"context"

	"github.com/tournevent/freight/pkg/resilience"
)

// CoordinateResolver resolves a CEP to coordinates.
type CoordinateResolver interface {
	// Coordinates returns the location of a CEP. Malformed codes fail with
	// ErrInvalidInput, codes without coordinates with ErrInvalidCep.
	Coordinates(ctx context.Context, cep string) (GeoCoordinate, error)
}

// RouteProvider returns the road distance between two points.
type RouteProvider interface {
	// Distance returns the road distance in kilometres.
	Distance(ctx context.Context, origin, destination GeoCoordinate) (float64, error)
}

// DistanceResolver returns the road distance between two CEPs.
type DistanceResolver interface {
	Distance(ctx context.Context, originCEP, destinationCEP string) (float64, error)
}

// Hooks observe the resilience layer of a provider. Nil fields are skipped.
type Hooks struct {
	OnRetry       func(service string, attempt int, err error)
	OnStateChange func(service string, from, to resilience.CircuitBreakerState)
	OnCacheLookup func(service string, hit bool)
}

// RetryOption forwards OnRetry to a retry wrapper.
func (h Hooks) RetryOption() resilience.RetryOption {
	return resilience.WithOnRetry(func(name string, attempt int, err error) {
		if h.OnRetry != nil {
			h.OnRetry(name, attempt, err)
		}
	})
}

// BreakerOption forwards OnStateChange to a breaker.
func (h Hooks) BreakerOption() resilience.CircuitBreakerOption {
	return resilience.WithOnStateChange(func(name string, from, to resilience.CircuitBreakerState) {
		if h.OnStateChange != nil {
			h.OnStateChange(name, from, to)
		}
	})
}

// CacheLookup returns an OnLookup callback tagged with service.
func (h Hooks) CacheLookup(service string) func(key string, hit bool) {
	return func(_ string, hit bool) {
		if h.OnCacheLookup != nil {
			h.OnCacheLookup(service, hit)
		}
	}
}

// Classifier retries only errors IsRetryable accepts.
func Classifier() resilience.ErrorClassifier {
	return resilience.ClassifierFunc(IsRetryable)
}

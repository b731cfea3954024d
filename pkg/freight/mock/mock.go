// Package mock provides in-memory resolvers for testing.
package mock

import (
	"context"
	"sync"

	"github.com/tournevent/freight/pkg/freight"
)

// Resolver is a mock CoordinateResolver backed by a map. Unknown CEPs fail
// with InvalidCep; malformed ones with InvalidInput.
type Resolver struct {
	mu     sync.Mutex
	coords map[string]freight.GeoCoordinate
	errs   map[string]error
	calls  map[string]int
}

// NewResolver creates a resolver that knows coords.
func NewResolver(coords map[string]freight.GeoCoordinate) *Resolver {
	r := &Resolver{
		coords: make(map[string]freight.GeoCoordinate, len(coords)),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
	for cep, c := range coords {
		r.coords[freight.NormalizeCEP(cep)] = c
	}
	return r
}

// FailWith makes lookups of cep return err.
func (r *Resolver) FailWith(cep string, err error) *Resolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[freight.NormalizeCEP(cep)] = err
	return r
}

// Calls returns how many lookups cep received.
func (r *Resolver) Calls(cep string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[freight.NormalizeCEP(cep)]
}

// Coordinates implements freight.CoordinateResolver.
func (r *Resolver) Coordinates(ctx context.Context, cep string) (freight.GeoCoordinate, error) {
	if !freight.IsValidCEP(cep) {
		return freight.GeoCoordinate{}, freight.InvalidInput("Invalid CEP: %s", cep)
	}
	key := freight.NormalizeCEP(cep)

	r.mu.Lock()
	r.calls[key]++
	err := r.errs[key]
	c, ok := r.coords[key]
	r.mu.Unlock()

	if err != nil {
		return freight.GeoCoordinate{}, err
	}
	if !ok {
		return freight.GeoCoordinate{}, freight.InvalidCep(key)
	}
	return c, nil
}

// Router is a mock RouteProvider returning a fixed distance.
type Router struct {
	mu    sync.Mutex
	km    float64
	err   error
	calls []Route
}

// Route is one recorded Router call.
type Route struct {
	Origin      freight.GeoCoordinate
	Destination freight.GeoCoordinate
}

// NewRouter creates a router that always answers km.
func NewRouter(km float64) *Router {
	return &Router{km: km}
}

// FailWith makes every call return err.
func (r *Router) FailWith(err error) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	return r
}

// Calls returns the recorded calls.
func (r *Router) Calls() []Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Route(nil), r.calls...)
}

// Distance implements freight.RouteProvider.
func (r *Router) Distance(ctx context.Context, origin, destination freight.GeoCoordinate) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Route{Origin: origin, Destination: destination})
	if r.err != nil {
		return 0, r.err
	}
	return r.km, nil
}

var (
	_ freight.CoordinateResolver = (*Resolver)(nil)
	_ freight.RouteProvider      = (*Router)(nil)
)

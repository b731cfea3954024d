package osrm

import (
	"context"

	"github.com/tournevent/freight/pkg/freight"
)

// APIClient defines the interface for OSRM route lookups.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// GetRoute fetches the driving route between two points.
	GetRoute(ctx context.Context, req *RouteRequest) (*RouteResponse, error)
}

// RouteRequest is a two-point route query.
type RouteRequest struct {
	Origin      freight.GeoCoordinate
	Destination freight.GeoCoordinate
}

// RouteResponse matches the OSRM route service response. OSRM answers some
// client errors (NoRoute, InvalidQuery) with a body in this same shape.
type RouteResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message,omitempty"`
	Routes  []Route `json:"routes"`
}

// Route is one route alternative. Distance is in metres and is nil when the
// field is absent from the response.
type Route struct {
	Distance *float64 `json:"distance"`
	Duration float64  `json:"duration"`
}

// Meters returns the distance of the first route.
func (r *RouteResponse) Meters() (float64, bool) {
	if r == nil || len(r.Routes) == 0 || r.Routes[0].Distance == nil {
		return 0, false
	}
	return *r.Routes[0].Distance, true
}

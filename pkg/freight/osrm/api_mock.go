package osrm

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/tournevent/freight/pkg/freight"
)

// roadFactor approximates road distance from great-circle distance.
const roadFactor = 1.25

const earthRadiusMeters = 6371000.0

// MockAPIClient is a mock implementation of APIClient for testing and for
// running without network access.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetRoute func(ctx context.Context, req *RouteRequest) (*RouteResponse, error)

	calls atomic.Int64
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// Calls returns how many times GetRoute ran.
func (m *MockAPIClient) Calls() int {
	return int(m.calls.Load())
}

// GetRoute returns one route whose length is the great-circle distance
// scaled by a fixed road factor.
func (m *MockAPIClient) GetRoute(ctx context.Context, req *RouteRequest) (*RouteResponse, error) {
	m.calls.Add(1)

	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.SimulateErrors {
		return nil, freight.ExternalService(serviceName, freight.CodeTransport, "Simulated API error").
			WithRetryable(true)
	}

	if m.OnGetRoute != nil {
		return m.OnGetRoute(ctx, req)
	}

	meters := math.Round(haversine(req.Origin, req.Destination)*roadFactor*10) / 10
	return RouteResult(meters), nil
}

// RouteResult builds a successful response with one route.
func RouteResult(meters float64) *RouteResponse {
	return &RouteResponse{
		Code:   "Ok",
		Routes: []Route{{Distance: &meters, Duration: meters / 22}},
	}
}

func haversine(a, b freight.GeoCoordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)

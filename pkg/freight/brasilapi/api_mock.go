package brasilapi

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/tournevent/freight/pkg/freight"
)

// MockAPIClient is a mock implementation of APIClient for testing and for
// running without network access.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	// Records overrides the generated payload for specific CEPs.
	Records map[string]map[string]any

	OnGetCEP func(ctx context.Context, cep string) (*CEPResponse, error)

	calls atomic.Int64
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// Calls returns how many times GetCEP ran.
func (m *MockAPIClient) Calls() int {
	return int(m.calls.Load())
}

// GetCEP returns a record for any CEP except 00000000, which is unknown.
// Generated coordinates are stable per CEP and fall inside Brazil.
func (m *MockAPIClient) GetCEP(ctx context.Context, cep string) (*CEPResponse, error) {
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

	if m.OnGetCEP != nil {
		return m.OnGetCEP(ctx, cep)
	}

	if record, ok := m.Records[cep]; ok {
		return &CEPResponse{StatusCode: http.StatusOK, Payload: record}, nil
	}

	if cep == "00000000" {
		return &CEPResponse{StatusCode: http.StatusNotFound}, nil
	}

	n, _ := strconv.Atoi(cep)
	lat := -5.0 - float64(n%2500)/100
	lon := -38.0 - float64((n/2500)%1500)/100

	return &CEPResponse{
		StatusCode: http.StatusOK,
		Payload:    Record(cep, lat, lon),
	}, nil
}

// Record builds a CEP payload shaped like a BrasilAPI v2 response.
func Record(cep string, lat, lon float64) map[string]any {
	return map[string]any{
		"cep":          cep,
		"state":        "SP",
		"city":         "São Paulo",
		"neighborhood": "",
		"street":       "",
		"service":      "mock",
		"location": map[string]any{
			"type": "Point",
			"coordinates": map[string]any{
				"latitude":  strconv.FormatFloat(lat, 'f', -1, 64),
				"longitude": strconv.FormatFloat(lon, 'f', -1, 64),
			},
		},
	}
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)

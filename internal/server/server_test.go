package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/tournevent/freight/internal/graphql"
	"github.com/tournevent/freight/internal/server"
	"github.com/tournevent/freight/internal/telemetry"
	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/freight/mock"
	"github.com/tournevent/freight/pkg/resilience"
)

type fakeService resilience.HealthStatus

func (f fakeService) Health() resilience.HealthStatus { return resilience.HealthStatus(f) }

func newTestServer(t *testing.T, services ...graphql.ServiceHealth) http.Handler {
	t.Helper()

	logger := otelzap.New(zap.NewNop())
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	resolver := mock.NewResolver(map[string]freight.GeoCoordinate{
		"01310-100": {Latitude: -23.5614, Longitude: -46.6559},
		"80010-000": {Latitude: -25.4296, Longitude: -49.2713},
	})
	distances := freight.NewDistanceService(resolver, mock.NewRouter(100), logger, nil)
	quoter := freight.NewQuoter(nil, distances, logger, nil)

	r := graphql.NewResolver(quoter, distances, services, nil, logger, metrics)
	return server.New(server.Config{Port: 8080}, r, reg, logger).Handler()
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec, resp
}

func TestServer_Health(t *testing.T) {
	h := newTestServer(t, fakeService{Name: "brasilapi", Healthy: true, State: "closed"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report graphql.HealthReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, "ok", report.Status)
	assert.False(t, report.CacheAvailable)
	require.Len(t, report.Services, 1)
	assert.Equal(t, "brasilapi", report.Services[0].Name)
}

func TestServer_Health_BreakerOpen(t *testing.T) {
	h := newTestServer(t, fakeService{Name: "osrm", Healthy: false, State: "open"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

func TestServer_GraphQL_MethodNotAllowed(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/graphql", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	errors, ok := resp["errors"].([]any)
	require.True(t, ok)
	assert.Len(t, errors, 1)
}

func TestServer_GraphQL_InvalidJSON(t *testing.T) {
	rec, resp := post(t, newTestServer(t), `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errors := resp["errors"].([]any)
	assert.Contains(t, errors[0].(map[string]any)["message"], "Invalid JSON")
}

func TestServer_GraphQL_MissingQuery(t *testing.T) {
	rec, _ := post(t, newTestServer(t), `{"query": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_GraphQL_Quote(t *testing.T) {
	body := `{
		"query": "query($w: Float!, $d: Float!) { quote(weight: $w, distance: $d, option: SEDEX_10) { price } }",
		"variables": {"w": 3.4, "d": 500}
	}`
	rec, resp := post(t, newTestServer(t), body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, resp["errors"])
	quote := resp["data"].(map[string]any)["quote"].(map[string]any)
	assert.Equal(t, "1715.00", quote["price"])
	assert.NotEmpty(t, resp["extensions"].(map[string]any)["requestId"])
}

func TestServer_GraphQL_QuoteByCEP(t *testing.T) {
	body := `{"query": "{ quote(weight: 2, originCep: \"01310-100\", destinationCep: \"80010-000\") { price } }"}`
	rec, resp := post(t, newTestServer(t), body)

	assert.Equal(t, http.StatusOK, rec.Code)
	quote := resp["data"].(map[string]any)["quote"].(map[string]any)
	assert.Equal(t, "205.00", quote["price"])
}

func TestServer_GraphQL_FieldError(t *testing.T) {
	body := `{"query": "{ quote(weight: 1, originCep: \"123\", destinationCep: \"80010-000\") { price } }"}`
	rec, resp := post(t, newTestServer(t), body)

	assert.Equal(t, http.StatusOK, rec.Code)
	errors := resp["errors"].([]any)
	require.Len(t, errors, 1)
	assert.Equal(t, "Invalid CEP: 123", errors[0].(map[string]any)["message"])
}

func TestServer_GraphQL_SyntaxError(t *testing.T) {
	rec, resp := post(t, newTestServer(t), `{"query": "{ quote("}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, resp["data"])
	assert.NotEmpty(t, resp["errors"])
}

func TestServer_Metrics(t *testing.T) {
	h := newTestServer(t)
	post(t, h, `{"query": "{ quote(weight: 2, distance: 500) { price } }"}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `freight_requests_total{operation="quote",option="Normal",status="success"} 1`)
}

func TestServer_Run_StopsOnCancel(t *testing.T) {
	logger := otelzap.New(zap.NewNop())
	r := graphql.NewResolver(nil, nil, nil, nil, logger, nil)
	srv := server.New(server.Config{Port: 0}, r, prometheus.NewRegistry(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()

	assert.NoError(t, <-done)
}

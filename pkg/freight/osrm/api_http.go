package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/tournevent/freight/pkg/freight"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL    string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &HTTPAPIClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// RoutePath formats the coordinate pair segment: lon,lat;lon,lat.
func RoutePath(req *RouteRequest) string {
	return formatCoord(req.Origin.Longitude) + "," + formatCoord(req.Origin.Latitude) + ";" +
		formatCoord(req.Destination.Longitude) + "," + formatCoord(req.Destination.Latitude)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// GetRoute fetches <baseURL><lon1>,<lat1>;<lon2>,<lat2>.
func (c *HTTPAPIClient) GetRoute(ctx context.Context, req *RouteRequest) (*RouteResponse, error) {
	resp, err := c.doRequest(ctx, c.baseURL+RoutePath(req))
	if err != nil {
		return nil, freight.ExternalService(serviceName, freight.CodeTransport, "Failed to fetch distance from OSRM").
			WithCause(err).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return nil, c.parseError(resp)
	}

	var result RouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, freight.ExternalService(serviceName, freight.CodeMalformedResponse, "Malformed OSRM response").
			WithCause(fmt.Errorf("failed to decode route response: %w", err)).
			WithStatusCode(resp.StatusCode)
	}

	return &result, nil
}

// doRequest performs a GET with JSON headers.
func (c *HTTPAPIClient) doRequest(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tournevent-freight/1.0")

	return c.httpClient.Do(req)
}

// parseError turns a non-2xx response into a freight error. Throttling and
// server errors are transient; anything else is not.
func (c *HTTPAPIClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var cause error = fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	var apiErr RouteResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		cause = fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}

	retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return freight.ExternalService(serviceName, fmt.Sprintf("HTTP_%d", resp.StatusCode), "Failed to fetch distance from OSRM").
		WithStatusCode(resp.StatusCode).
		WithRetryable(retryable).
		WithCause(cause)
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)

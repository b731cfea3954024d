package brasilapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
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

// GetCEP fetches <baseURL><cep>.
func (c *HTTPAPIClient) GetCEP(ctx context.Context, cep string) (*CEPResponse, error) {
	resp, err := c.doRequest(ctx, c.baseURL+url.PathEscape(cep))
	if err != nil {
		return nil, freight.ExternalService(serviceName, freight.CodeTransport, "Failed to fetch CEP data").
			WithCause(err).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		_, _ = io.Copy(io.Discard, resp.Body)
		return &CEPResponse{StatusCode: resp.StatusCode}, nil
	default:
		return nil, c.parseError(resp)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, freight.ExternalService(serviceName, freight.CodeMalformedResponse, "Malformed CEP response").
			WithCause(fmt.Errorf("failed to decode CEP response: %w", err)).
			WithStatusCode(resp.StatusCode)
	}

	return &CEPResponse{StatusCode: resp.StatusCode, Payload: payload}, nil
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

	var apiErr APIError
	var cause error = fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		cause = &apiErr
	}

	retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return freight.ExternalService(serviceName, fmt.Sprintf("HTTP_%d", resp.StatusCode), "Failed to fetch CEP data").
		WithStatusCode(resp.StatusCode).
		WithRetryable(retryable).
		WithCause(cause)
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)

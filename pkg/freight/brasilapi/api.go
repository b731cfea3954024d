package brasilapi

import (
	"context"
)

// APIClient defines the interface for BrasilAPI CEP lookups.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// GetCEP fetches the raw CEP record. A CEP the service does not know is
	// not an error: it comes back as a response with a 4xx StatusCode and no
	// payload, so it never counts against the breaker.
	GetCEP(ctx context.Context, cep string) (*CEPResponse, error)
}

// CEPResponse is the BrasilAPI v2 CEP record. Payload is kept loosely typed
// because coordinates may be missing, null, or string-encoded.
type CEPResponse struct {
	StatusCode int            `json:"status_code"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Found reports whether the service returned a record.
func (r *CEPResponse) Found() bool {
	return r != nil && r.StatusCode/100 == 2 && r.Payload != nil
}

// APIError represents an error body returned by BrasilAPI.
type APIError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return e.Name + ": " + e.Message
}

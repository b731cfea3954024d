package freight

import (
	"errors"
	"fmt"

	"github.com/tournevent/freight/pkg/resilience"
)

// Kind classifies a freight error for callers.
type Kind string

const (
	// KindInvalidInput covers malformed CEPs, non-positive distance or weight,
	// and unknown pricing options. Never retried.
	KindInvalidInput Kind = "INVALID_INPUT"

	// KindInvalidCep covers well-formed CEPs that resolve to no valid coordinates.
	KindInvalidCep Kind = "INVALID_CEP"

	// KindExternalService covers transport failures, malformed upstream
	// responses, retry exhaustion and breaker rejections.
	KindExternalService Kind = "EXTERNAL_SERVICE"
)

// Error codes shared by the providers.
const (
	CodeTransport          = "TRANSPORT"
	CodeMalformedResponse  = "MALFORMED_RESPONSE"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeCircuitOpen        = "CIRCUIT_OPEN"
	CodeDistanceNotFound   = "DISTANCE_NOT_FOUND"
)

const unexpectedMessage = "An unexpected error occurred"

// Error is a classified error raised while quoting freight.
type Error struct {
	Kind       Kind
	Service    string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Service != "" {
		prefix = e.Service + " error"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", prefix, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", prefix, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the kind sentinels and other *Error values with the same code.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidInput:
		return e.Kind == KindInvalidInput
	case ErrInvalidCep:
		return e.Kind == KindInvalidCep
	case ErrExternalService:
		return e.Kind == KindExternalService
	case ErrServiceUnavailable:
		return e.Code == CodeServiceUnavailable || e.Code == CodeCircuitOpen
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new Error.
func NewError(kind Kind, code, message string) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// InvalidInput creates a KindInvalidInput error.
func InvalidInput(format string, args ...any) *Error {
	return NewError(KindInvalidInput, string(KindInvalidInput), fmt.Sprintf(format, args...))
}

// InvalidCep creates a KindInvalidCep error for the given code.
func InvalidCep(cep string) *Error {
	return NewError(KindInvalidCep, string(KindInvalidCep),
		fmt.Sprintf("CEP %s does not have valid coordinates.", cep))
}

// ExternalService creates a KindExternalService error for a dependency.
func ExternalService(service, code, message string) *Error {
	return NewError(KindExternalService, code, message).WithService(service)
}

// WithService sets the dependency name.
func (e *Error) WithService(service string) *Error {
	e.Service = service
	return e
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// Sentinel errors, one per kind plus the unavailable sub-case.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCep         = errors.New("invalid cep")
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// IsRetryable reports whether err is a transport-level failure worth another
// attempt. Breaker rejections and application errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == KindExternalService && fe.Retryable
	}
	return false
}

// ServiceError maps an error returned by a resilient call into the freight
// taxonomy. Classified errors pass through unchanged.
func ServiceError(service string, err error) error {
	if err == nil {
		return nil
	}

	var exhausted *resilience.ExhaustedError
	switch {
	case errors.As(err, &exhausted):
		return ExternalService(service, CodeServiceUnavailable,
			fmt.Sprintf("Service unavailable after %d attempts", exhausted.Attempts)).
			WithCause(err)
	case errors.Is(err, resilience.ErrCircuitOpen):
		return ExternalService(service, CodeCircuitOpen,
			"Service temporarily unavailable").
			WithCause(err)
	}

	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return ExternalService(service, CodeTransport, "External service call failed").WithCause(err)
}

// UserMessage returns the message to show an end user for err.
// Unclassified errors never leak their text.
func UserMessage(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	return unexpectedMessage
}

package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingCredential is returned by Complete when no API key was supplied.
	ErrMissingCredential = errors.New("llm: no API key configured")

	// ErrEmptyResponse is returned when the model answers with no choices or
	// an empty message.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// APIError represents an error returned by an LLM provider API.
type APIError struct {
	// Provider is the name of the LLM provider (e.g., "deepseek").
	Provider string
	// StatusCode is the HTTP status code returned by the API.
	StatusCode int
	// Message is the error message from the API.
	Message string
	// Type is the error type classification from the API.
	Type string
	// Code is the provider-specific error code (if available).
	Code string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: API error (status %d, type %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsTransient returns true if the error is a transient error that may succeed
// when the user repeats the action. This includes rate limiting (429), server
// errors (5xx), and network errors (StatusCode 0 indicates no HTTP response
// was received).
func (e *APIError) IsTransient() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// errorType classifies err for the llm_requests_failed_total metric.
func errorType(err error) string {
	var apiErr *APIError
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == 0 {
			return "transport"
		}
		return fmt.Sprintf("http_%d", apiErr.StatusCode)
	default:
		return "unknown"
	}
}

package client

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of refresh failures.
type ErrorClass string

const (
	// ErrorClassCredential represents a missing API key.
	ErrorClassCredential ErrorClass = "credential"

	// ErrorClassTransport represents requests that never produced a response.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassAuthResponse represents a token exchange response without an access token.
	ErrorClassAuthResponse ErrorClass = "auth_response"

	// ErrorClassMalformedJSON represents response bodies that do not parse as JSON.
	ErrorClassMalformedJSON ErrorClass = "malformed_json"

	// ErrorClassStatus represents resource pages answered with an unexpected HTTP status.
	ErrorClassStatus ErrorClass = "status"
)

// Common errors returned by the client and its callers.
var (
	// ErrMissingAPIKey is returned when no API key can be resolved.
	ErrMissingAPIKey = errors.New("no API key: set IBMCLOUD_API_KEY or pass it as the first argument")

	// ErrMissingAccessToken is returned when the token response lacks access_token.
	ErrMissingAccessToken = errors.New("token response has no access_token")

	// ErrMalformedJSON is returned when a body is not a valid JSON document.
	ErrMalformedJSON = errors.New("malformed JSON")
)

// APIError represents a failed call against IAM or a resource endpoint.
type APIError struct {
	Class      ErrorClass
	URL        string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s error", e.Class)
	if e.URL != "" {
		msg += " for " + e.URL
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ClassOf reports the class of err, looking through wrapped errors.
// Errors that carry no class are reported as "".
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return apiErr.Class
	case errors.Is(err, ErrMissingAPIKey):
		return ErrorClassCredential
	case errors.Is(err, ErrMissingAccessToken):
		return ErrorClassAuthResponse
	case errors.Is(err, ErrMalformedJSON):
		return ErrorClassMalformedJSON
	default:
		return ""
	}
}

package m2m

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNotLoggedIn is returned when an endpoint that requires a session is
	// called without one.
	ErrNotLoggedIn = errors.New("no active session")
)

// ErrorClass represents a classification of catalog API errors.
type ErrorClass string

const (
	// ErrorClassAuth represents authentication failures (401, bad credentials).
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassClient represents non-auth 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassProvider represents an application-level error code carried
	// in an otherwise successful response envelope.
	ErrorClassProvider ErrorClass = "provider"
)

// APIError is a structured catalog API error. It carries the HTTP status and
// the provider error code/message so callers can decide per endpoint whether
// the failure is fatal.
type APIError struct {
	Endpoint   string
	StatusCode int
	Class      ErrorClass
	Code       string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("m2m %s error on %s (status %d): %s - %s",
			e.Class, e.Endpoint, e.StatusCode, e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("m2m %s error on %s: %v", e.Class, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("m2m %s error on %s (status %d): %s",
		e.Class, e.Endpoint, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ClassOf extracts the error class from an error chain. Errors that are not
// an *APIError are treated as network failures.
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ErrorClassNetwork
}

// shouldRetry reports whether an error class is worth another attempt.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// auth, client, and provider errors will not improve by retrying
		return false
	}
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 401:
		return ErrorClassAuth
	case status == 429:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// classifyCode maps a provider error code from the response envelope to an
// error class. A non-null errorCode in a 200 response is treated identically
// to the transport error of the same kind.
func classifyCode(code string) ErrorClass {
	upper := strings.ToUpper(code)
	switch {
	case strings.Contains(upper, "RATE_LIMIT"):
		return ErrorClassRateLimit
	case strings.HasPrefix(upper, "AUTH"), upper == "UNAUTHORIZED", upper == "TOKEN_INVALID":
		return ErrorClassAuth
	case strings.HasPrefix(upper, "SERVER"), strings.Contains(upper, "UNAVAILABLE"):
		return ErrorClassServer
	default:
		return ErrorClassProvider
	}
}

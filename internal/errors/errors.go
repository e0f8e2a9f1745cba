// Package errors provides domain-specific error types and sentinel errors
// for improved error handling across the application.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure kinds a reply strategy can hit.
// Use errors.Is() to check these errors in your code.
var (
	// ErrExternalFetch indicates an outbound HTTP call failed, returned a
	// non-2xx status or a body that could not be decoded.
	ErrExternalFetch = errors.New("external fetch failed")

	// ErrStoreConnection indicates no database connection could be acquired.
	ErrStoreConnection = errors.New("store connection failed")

	// ErrQuery indicates a database query failed.
	ErrQuery = errors.New("query failed")

	// ErrDecode indicates malformed postback data.
	ErrDecode = errors.New("decode failed")

	// ErrAuthorization indicates an OAuth exchange or token status check failed.
	ErrAuthorization = errors.New("authorization failed")

	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates user provided invalid input.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError represents input validation failures.
// It matches ErrInvalidInput under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Is reports ErrInvalidInput as the kind of every validation error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// FetchError describes a failed call to an external API.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns both the cause and ErrExternalFetch.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExternalFetch}
	}
	return []error{ErrExternalFetch, e.Err}
}

// NewFetchError creates a new fetch error.
func NewFetchError(url string, statusCode int, err error) *FetchError {
	return &FetchError{
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}

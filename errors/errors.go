// Package errors provides error types and handling for upload operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents an upload operation error with context about the operation
// that failed. It wraps the underlying error with additional context for
// better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "upload", "mkblk", "query")
	Op string

	// URL is the endpoint URL involved in the failure (if applicable)
	URL string

	// Key is the object key being uploaded (if applicable)
	Key string

	// Err is the underlying error from the transport or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.URL != "" && e.Key != "" {
		return fmt.Sprintf("uplink.%s %s key %s: %v", e.Op, e.URL, e.Key, e.Err)
	}
	if e.URL != "" {
		return fmt.Sprintf("uplink.%s %s: %v", e.Op, e.URL, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("uplink.%s key %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("uplink.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithURL adds endpoint URL context to an existing error.
func (e *Error) WithURL(url string) *Error {
	e.URL = url
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewURLError creates a new Error with endpoint URL context.
func NewURLError(op, url string, err error) *Error {
	return &Error{
		Op:  op,
		URL: url,
		Err: err,
	}
}

// TransportError indicates that a request never produced a usable response:
// the connection failed, the request timed out, or the server answered with a
// 5xx status. Transport errors are the only class of failure that triggers
// endpoint failover.
type TransportError struct {
	// URL is the endpoint that failed.
	URL string

	// StatusCode is the HTTP status when the failure was a 5xx response,
	// zero for connection-level failures.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("uplink: transport error from %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("uplink: transport error from %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError indicates that the server answered with a non-retryable
// status code (4xx). The request reached the service and was rejected, so
// retrying against another endpoint cannot help.
type StatusError struct {
	// URL is the endpoint that produced the response.
	URL string

	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Message is the error message extracted from the response body,
	// if the service provided one.
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("uplink: status %d from %s: %s", e.StatusCode, e.URL, e.Message)
	}
	return fmt.Sprintf("uplink: status %d from %s", e.StatusCode, e.URL)
}

// Sentinel errors for common upload failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrEmptyFile indicates that an empty source was submitted where the
	// resumable protocol cannot represent it
	ErrEmptyFile = errors.New("uplink: empty file")

	// ErrBadMimeType indicates that a declared MIME type is syntactically invalid
	ErrBadMimeType = errors.New("uplink: invalid MIME type")

	// ErrUserCanceled indicates that a request hook aborted the operation
	ErrUserCanceled = errors.New("uplink: canceled by hook")

	// ErrNoEndpointAvailable indicates that every candidate endpoint for an
	// operation has been tried or frozen
	ErrNoEndpointAvailable = errors.New("uplink: no endpoint available")

	// ErrBuilderConsumed indicates that a policy builder was used after Build
	ErrBuilderConsumed = errors.New("uplink: policy builder already consumed")

	// ErrInvalidToken indicates that an upload token string is malformed
	ErrInvalidToken = errors.New("uplink: invalid upload token")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("uplink: invalid input")

	// ErrInvalidResponse indicates that a response body could not be decoded
	ErrInvalidResponse = errors.New("uplink: invalid response body")

	// ErrRecordMismatch indicates that a resumable record does not match the
	// source file it was recorded for
	ErrRecordMismatch = errors.New("uplink: resumable record mismatch")
)

// IsTransport checks if an error is a connection failure, timeout, or 5xx
// response. Such errors are retried against the next endpoint candidate.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsStatus checks if an error carries a non-retryable HTTP status response,
// and reports the status code when it does.
func IsStatus(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	return 0, false
}

// IsUserCanceled checks if an error indicates that a hook aborted the request.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsUserCanceled(err error) bool {
	return errors.Is(err, ErrUserCanceled)
}

// IsEmptyFile checks if an error indicates an empty upload source.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsEmptyFile(err error) bool {
	return errors.Is(err, ErrEmptyFile)
}

// IsBadMimeType checks if an error indicates an invalid MIME type.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsBadMimeType(err error) bool {
	return errors.Is(err, ErrBadMimeType)
}

// IsNoEndpointAvailable checks if an error indicates endpoint exhaustion.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsNoEndpointAvailable(err error) bool {
	return errors.Is(err, ErrNoEndpointAvailable)
}

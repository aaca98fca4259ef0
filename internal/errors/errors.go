// Package errors provides error types and handling for the discovery probes.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorType categorizes errors so probe results stay queryable.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// Network represents network-related errors (DNS, connection).
	Network
	// Timeout represents timeout errors.
	Timeout
	// RateLimit represents rate limiting (429) errors.
	RateLimit
	// Auth represents authentication/authorization errors (401, 403).
	Auth
	// NotFound represents 404 errors.
	NotFound
	// ServerError represents 5xx errors.
	ServerError
	// ClientError represents 4xx errors (except 401, 403, 404, 429).
	ClientError
	// Parse represents response decoding errors.
	Parse
	// GraphQL represents application-level errors returned in a GraphQL payload.
	GraphQL
	// Cancelled represents context cancellation.
	Cancelled
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	case RateLimit:
		return "rate_limit"
	case Auth:
		return "auth"
	case NotFound:
		return "not_found"
	case ServerError:
		return "server_error"
	case ClientError:
		return "client_error"
	case Parse:
		return "parse"
	case GraphQL:
		return "graphql"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ProbeError represents a categorized failure of one remote call.
type ProbeError struct {
	Type       ErrorType
	URL        string
	Operation  string
	Message    string
	Cause      error
	StatusCode int
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error during %s on %s: %s (caused by: %v)",
			e.Type.String(), e.Operation, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error during %s on %s: %s",
		e.Type.String(), e.Operation, e.URL, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target.
func (e *ProbeError) Is(target error) bool {
	t, ok := target.(*ProbeError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewProbeError creates a new ProbeError.
func NewProbeError(errType ErrorType, url, operation, message string, cause error) *ProbeError {
	return &ProbeError{
		Type:      errType,
		URL:       url,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(url, operation string, cause error) *ProbeError {
	return NewProbeError(Network, url, operation, "network failure", cause)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(url, operation string, cause error) *ProbeError {
	return NewProbeError(Timeout, url, operation, "request timeout exceeded", cause)
}

// NewParseError creates a parse error.
func NewParseError(url, operation string, cause error) *ProbeError {
	return NewProbeError(Parse, url, operation, "decoding response failed", cause)
}

// NewGraphQLError creates an error for a GraphQL response carrying an errors array.
func NewGraphQLError(url, operation, message string) *ProbeError {
	return NewProbeError(GraphQL, url, operation, message, nil)
}

// NewCancelledError creates a cancelled error.
func NewCancelledError(url, operation string) *ProbeError {
	return NewProbeError(Cancelled, url, operation, "operation cancelled", nil)
}

// NewStatusError creates an error for a non-2xx HTTP answer. The status code is
// always part of the message so that plain-text scanning finds it.
func NewStatusError(errType ErrorType, url string, statusCode int, detail string) *ProbeError {
	msg := fmt.Sprintf("request failed with status code %d", statusCode)
	if detail != "" {
		msg += ": " + detail
	}
	err := NewProbeError(errType, url, "request", msg, nil)
	err.StatusCode = statusCode
	return err
}

// Categorize determines the error type from a generic error.
func Categorize(err error, url string) *ProbeError {
	if err == nil {
		return nil
	}

	var probeErr *ProbeError
	if errors.As(err, &probeErr) {
		return probeErr
	}

	if errors.Is(err, context.Canceled) {
		return NewCancelledError(url, "request")
	}

	if isTimeout(err) {
		return NewTimeoutError(url, "request", err)
	}

	if isNetworkError(err) {
		return NewNetworkError(url, "request", err)
	}

	return NewProbeError(Unknown, url, "request", err.Error(), err)
}

// CategorizeHTTPStatus creates an error from an HTTP status code, or returns nil
// for 1xx-3xx codes.
func CategorizeHTTPStatus(statusCode int, url, detail string) *ProbeError {
	switch {
	case statusCode == 401 || statusCode == 403:
		return NewStatusError(Auth, url, statusCode, detail)
	case statusCode == 404:
		return NewStatusError(NotFound, url, statusCode, detail)
	case statusCode == 429:
		return NewStatusError(RateLimit, url, statusCode, detail)
	case statusCode >= 500:
		return NewStatusError(ServerError, url, statusCode, detail)
	case statusCode >= 400:
		return NewStatusError(ClientError, url, statusCode, detail)
	default:
		return nil
	}
}

// isTimeout checks if an error is a timeout.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// isNetworkError checks if an error is network-related.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "dial tcp")
}

// IsRateLimitError reports whether err signals that the remote side throttled us.
// Uncategorized errors are matched on their text, which covers transports that
// only surface the status line.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var probeErr *ProbeError
	if errors.As(err, &probeErr) && probeErr.Type == RateLimit {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "too many requests")
}

// IsAuthError checks if an error is authentication-related.
func IsAuthError(err error) bool {
	var probeErr *ProbeError
	if errors.As(err, &probeErr) {
		return probeErr.Type == Auth
	}
	return false
}

// IsUnreachable reports whether err means the service could not be contacted at
// all, as opposed to answering with an error.
func IsUnreachable(err error) bool {
	switch GetErrorType(err) {
	case Network, Timeout, Cancelled:
		return true
	default:
		return false
	}
}

// GetStatusCode extracts the status code from an error.
func GetStatusCode(err error) int {
	var probeErr *ProbeError
	if errors.As(err, &probeErr) {
		return probeErr.StatusCode
	}
	return 0
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var probeErr *ProbeError
	if errors.As(err, &probeErr) {
		return probeErr.Type
	}
	return Unknown
}

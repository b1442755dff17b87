// Package errors provides error types and handling for the link admission
// service. Per-link denials are never errors; errors here mean the whole
// call or request failed.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Kind categorizes errors for handling decisions.
type Kind int

const (
	// Unknown is an uncategorized error.
	Unknown Kind = iota
	// Configuration means the request itself is malformed (unparseable
	// reference URLs, invalid regex patterns). The call fails as a whole.
	Configuration
	// Internal is an unexpected failure during evaluation.
	Internal
	// Transport means a malformed or truncated payload at the service
	// boundary. Retry policy belongs to the caller.
	Transport
	// Network represents network-related errors (DNS, connection).
	Network
	// Timeout represents timeout errors.
	Timeout
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Internal:
		return "internal"
	case Transport:
		return "transport"
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// IsRetryable returns whether errors of this kind should be retried.
func (k Kind) IsRetryable() bool {
	switch k {
	case Network, Timeout:
		return true
	default:
		return false
	}
}

// Error is a categorized service error.
type Error struct {
	Kind      Kind
	Op        string
	URL       string
	Message   string
	Cause     error
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.Op != "" {
		fmt.Fprintf(&b, " during %s", e.Op)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, " on %s", e.URL)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " (caused by: %v)", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates a new Error.
func New(kind Kind, op, url, message string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Op:        op,
		URL:       url,
		Message:   message,
		Cause:     cause,
		Retryable: kind.IsRetryable(),
	}
}

// NewConfiguration creates a configuration error.
func NewConfiguration(op, message string, cause error) *Error {
	return New(Configuration, op, "", message, cause)
}

// NewInternal creates an internal error.
func NewInternal(op string, cause error) *Error {
	return New(Internal, op, "", "unexpected failure", cause)
}

// NewTransport creates a transport error.
func NewTransport(op, message string, cause error) *Error {
	return New(Transport, op, "", message, cause)
}

// NewNetwork creates a network error.
func NewNetwork(url, op string, cause error) *Error {
	return New(Network, op, url, "network failure", cause)
}

// NewTimeout creates a timeout error.
func NewTimeout(url, op string, cause error) *Error {
	return New(Timeout, op, url, "request timed out", cause)
}

// Categorize determines the error kind from a generic error.
func Categorize(err error, url string) *Error {
	if err == nil {
		return nil
	}

	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}

	if errors.Is(err, context.Canceled) {
		e := New(Unknown, "request", url, "operation cancelled", err)
		e.Retryable = false
		return e
	}

	if isTimeout(err) {
		return NewTimeout(url, "request", err)
	}

	if isNetworkError(err) {
		return NewNetwork(url, "request", err)
	}

	return New(Unknown, "request", url, err.Error(), err)
}

// GetKind extracts the kind from an error.
func GetKind(err error) Kind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return Unknown
}

// IsConfiguration checks if an error is a configuration error.
func IsConfiguration(err error) bool {
	return GetKind(err) == Configuration
}

// IsTransport checks if an error is a transport error.
func IsTransport(err error) bool {
	return GetKind(err) == Transport
}

// IsRetryable checks if an error should be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Retryable
	}

	var tempErr interface{ Temporary() bool }
	if errors.As(err, &tempErr) && tempErr.Temporary() {
		return true
	}

	return isTimeout(err) || isNetworkError(err)
}

// isTimeout checks if an error is a timeout.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
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
		errors.Is(err, syscall.ETIMEDOUT) ||
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

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// ErrorType represents the category of connection error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a general network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a dial or write timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the receiver refused the connection
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a hostname resolution failure
	ErrTypeDNS
	// ErrTypeClosed indicates the connection was closed locally
	ErrTypeClosed
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeClosed:
		return "Connection Closed"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error represents a classified connection error.
type Error struct {
	Type      ErrorType // Category of error
	Addr      string    // Receiver address (for context)
	Err       error     // Underlying error
	Retryable bool      // Whether the reconnect loop should retry
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Addr, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Addr)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrClosed is returned by Write after the connection has been closed.
var ErrClosed = errors.New("connection closed")

// Classify analyzes an error and wraps it with a connection error type.
func Classify(err error, addr string) *Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrClosed) || errors.Is(err, net.ErrClosed) {
		return &Error{Type: ErrTypeClosed, Addr: addr, Err: err, Retryable: false}
	}

	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Type: ErrTypeTimeout, Addr: addr, Err: err, Retryable: true}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{Type: ErrTypeDNS, Addr: addr, Err: err, Retryable: dnsErr.Temporary()}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return &Error{Type: ErrTypeConnectionRefused, Addr: addr, Err: err, Retryable: true}
	}

	return &Error{Type: ErrTypeNetwork, Addr: addr, Err: err, Retryable: true}
}

// IsRetryable reports whether an error is worth retrying. Unclassified
// errors are treated as retryable; only a deliberate local close is
// not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Retryable
	}
	if errors.Is(err, ErrClosed) || errors.Is(err, net.ErrClosed) {
		return false
	}
	return true
}

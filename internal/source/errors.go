package source

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"
)

// Gateway failures fall into three categories. All three are retryable
// by the caller with backoff; none indicates a configuration problem
// with filters. Zero-record outcomes are not errors at all - they are a
// data-driven verdict computed downstream.

// ConnectivityError means the source could not be reached or refused
// the credentials (network, DNS, auth). Fatal at preflight.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("source unreachable: %v", e.Err)
}
func (e *ConnectivityError) Unwrap() error   { return e.Err }
func (e *ConnectivityError) Retryable() bool { return true }

// PermissionError means the principal authenticated but lacks grants on
// a specific scope. The affected scope is skipped and recorded as a
// warning; the run continues.
type PermissionError struct {
	Scope string
	Err   error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("insufficient privileges on %s: %v", e.Scope, e.Err)
}
func (e *PermissionError) Unwrap() error   { return e.Err }
func (e *PermissionError) Retryable() bool { return true }

// TimeoutError means a source query exceeded its deadline. Retried with
// exponential backoff up to a bounded attempt count, then escalated to
// a structural per-activity failure.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("source timeout during %s: %v", e.Op, e.Err)
}
func (e *TimeoutError) Unwrap() error   { return e.Err }
func (e *TimeoutError) Retryable() bool { return true }

// RetryableError is implemented by all gateway error categories.
type RetryableError interface {
	error
	Retryable() bool
}

// Classify maps a raw driver or transport error onto the gateway
// taxonomy. op names the gateway call, scope the entity being listed.
func Classify(err error, op, scope string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &TimeoutError{Op: op, Err: err}
		}
		return &ConnectivityError{Err: err}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		// Class 28: invalid authorization specification.
		case pqErr.Code.Class() == "28":
			return &ConnectivityError{Err: err}
		// 42501: insufficient_privilege.
		case pqErr.Code == "42501":
			return &PermissionError{Scope: scope, Err: err}
		// Class 57: operator intervention (shutdown, cannot connect now).
		// Class 08: connection exception.
		case pqErr.Code.Class() == "57", pqErr.Code.Class() == "08":
			return &ConnectivityError{Err: err}
		}
	}

	return fmt.Errorf("%s failed: %w", op, err)
}

// IsConnectivity reports whether err is (or wraps) a ConnectivityError.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

// IsPermission reports whether err is (or wraps) a PermissionError.
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsRetryable reports whether the error belongs to a retryable gateway
// category.
func IsRetryable(err error) bool {
	var re RetryableError
	return errors.As(err, &re) && re.Retryable()
}

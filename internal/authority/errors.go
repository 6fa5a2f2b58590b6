package authority

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
)

// Kind classifies a failed backend operation. Every failure maps to exactly
// one kind; classification is deterministic.
type Kind int

const (
	KindUnknown Kind = iota
	KindRateLimited
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindServerError
	KindTimeout
	KindNetworkUnreachable
	KindServiceUnavailable
)

// String returns the stable name of the kind, used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindServerError:
		return "server_error"
	case KindTimeout:
		return "timeout"
	case KindNetworkUnreachable:
		return "network_unreachable"
	case KindServiceUnavailable:
		return "service_unavailable"
	default:
		return "unknown"
	}
}

// Retryable reports whether the kind is worth another attempt within the
// client's retry budget. Only rate limiting and pure transport transience
// qualify; caller and input errors propagate immediately.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindTimeout, KindNetworkUnreachable:
		return true
	default:
		return false
	}
}

// Error is the typed error returned by all backend operations.
type Error struct {
	Kind   Kind
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("backend %s: %s", e.Op, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is comparisons against another *Error by kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// KindOf extracts the classification kind from an error chain.
// Non-backend errors report KindUnknown.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnknown
}

// classifyStatus maps an HTTP response status to an error kind.
// The mapping is total: any status not listed falls through to a bucket.
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusBadRequest:
		return KindBadRequest
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusServiceUnavailable:
		return KindServiceUnavailable
	case status >= 500:
		return KindServerError
	case status >= 400:
		return KindBadRequest
	default:
		return KindUnknown
	}
}

// classifyTransport maps a transport-level error to an error kind.
func classifyTransport(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetworkUnreachable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindNetworkUnreachable
	}
	return KindUnknown
}

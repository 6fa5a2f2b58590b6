package authority

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusBadRequest, KindBadRequest},
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindForbidden},
		{http.StatusNotFound, KindNotFound},
		{http.StatusServiceUnavailable, KindServiceUnavailable},
		{http.StatusInternalServerError, KindServerError},
		{http.StatusBadGateway, KindServerError},
		{http.StatusConflict, KindBadRequest},
		{http.StatusTeapot, KindBadRequest},
		{http.StatusOK, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, classifyStatus(tt.status))
		})
	}
}

type fakeNetError struct {
	timeout bool
}

func (e *fakeNetError) Error() string   { return "fake net error" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return true }

func TestClassifyTransport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
		{"net timeout", &fakeNetError{timeout: true}, KindTimeout},
		{"net non-timeout", &fakeNetError{timeout: false}, KindNetworkUnreachable},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, KindNetworkUnreachable},
		{"plain error", errors.New("something else"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyTransport(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	retryable := []Kind{KindRateLimited, KindTimeout, KindNetworkUnreachable}
	terminal := []Kind{
		KindUnknown, KindBadRequest, KindUnauthorized, KindForbidden,
		KindNotFound, KindServerError, KindServiceUnavailable,
	}

	for _, k := range retryable {
		assert.True(t, k.Retryable(), "%s must be retryable", k)
	}
	for _, k := range terminal {
		assert.False(t, k.Retryable(), "%s must not be retryable", k)
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{
		Kind:   KindRateLimited,
		Op:     "inbox_list",
		Detail: "quota exceeded",
		Err:    errors.New("429 from upstream"),
	}

	msg := err.Error()
	assert.Contains(t, msg, "inbox_list")
	assert.Contains(t, msg, "rate_limited")
	assert.Contains(t, msg, "quota exceeded")
	assert.Contains(t, msg, "429 from upstream")
}

func TestErrorIsComparesByKind(t *testing.T) {
	rateLimited := &Error{Kind: KindRateLimited, Op: "a"}
	alsoRateLimited := &Error{Kind: KindRateLimited, Op: "b"}
	timeout := &Error{Kind: KindTimeout}

	assert.True(t, errors.Is(rateLimited, alsoRateLimited))
	assert.False(t, errors.Is(rateLimited, timeout))
}

func TestErrorUnwrap(t *testing.T) {
	inner := context.DeadlineExceeded
	err := &Error{Kind: KindTimeout, Op: "probe", Err: inner}

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("dispatch failed: %w", &Error{Kind: KindForbidden, Op: "send"})

	assert.Equal(t, KindForbidden, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindStringIsStable(t *testing.T) {
	names := map[Kind]string{
		KindUnknown:            "unknown",
		KindRateLimited:        "rate_limited",
		KindBadRequest:         "bad_request",
		KindUnauthorized:       "unauthorized",
		KindForbidden:          "forbidden",
		KindNotFound:           "not_found",
		KindServerError:        "server_error",
		KindTimeout:            "timeout",
		KindNetworkUnreachable: "network_unreachable",
		KindServiceUnavailable: "service_unavailable",
	}

	for kind, want := range names {
		assert.Equal(t, want, kind.String())
	}
}

package planner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"trip-planner/internal/domain"
)

type ErrorCode string

const (
	ErrorInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrorCredentials     ErrorCode = "CREDENTIALS_ERROR"
	ErrorRateLimited     ErrorCode = "RATE_LIMITED"
	ErrorUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"
	ErrorUpstream        ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal        ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("planner: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("planner: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

// classifyLLMError sorts a failed generation into the credential, quota,
// timeout or generic upstream bucket. The upstream error is kept as Err.
func classifyLLMError(err error) *Error {
	if errors.Is(err, domain.ErrCredentials) {
		return newError(ErrorCredentials, "llm_credentials_unavailable", err)
	}
	if status, ok := upstreamStatusCode(err); ok {
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return newError(ErrorCredentials, "llm_unauthorized", err)
		case http.StatusTooManyRequests:
			return newError(ErrorRateLimited, "llm_quota_exceeded", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrorUpstreamTimeout, "llm_timeout", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(ErrorUpstreamTimeout, "llm_timeout", err)
	}
	return newError(ErrorUpstream, "llm_error", err)
}

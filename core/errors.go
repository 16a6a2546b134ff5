package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind names a failure in the caller-visible taxonomy.
type ErrorKind string

const (
	KindAdapterUnavailable   ErrorKind = "AdapterUnavailable"
	KindAdapterTimeout       ErrorKind = "AdapterTimeout"
	KindAdapterRateLimited   ErrorKind = "AdapterRateLimited"
	KindInsufficientContent  ErrorKind = "InsufficientContent"
	KindInvalidState         ErrorKind = "InvalidState"
	KindRetryBudgetExhausted ErrorKind = "RetryBudgetExhausted"
	KindCancelled            ErrorKind = "Cancelled"
	KindNotFound             ErrorKind = "NotFound"
	KindInvalidRequest       ErrorKind = "InvalidRequest"
	KindInternal             ErrorKind = "Internal"
)

// Error is the structured error type used across the engine. Status carries
// the HTTP status the surface maps the error to.
type Error struct {
	Kind    ErrorKind      `json:"kind"`
	Status  int            `json:"-"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error with the same kind, so errors.Is(err, ErrInvalidState)
// works for every InvalidState error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// WithDetail attaches a detail entry and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrAdapterUnavailable   = &Error{Kind: KindAdapterUnavailable}
	ErrAdapterTimeout       = &Error{Kind: KindAdapterTimeout}
	ErrAdapterRateLimited   = &Error{Kind: KindAdapterRateLimited}
	ErrInsufficientContent  = &Error{Kind: KindInsufficientContent}
	ErrInvalidState         = &Error{Kind: KindInvalidState}
	ErrRetryBudgetExhausted = &Error{Kind: KindRetryBudgetExhausted}
	ErrCancelled            = &Error{Kind: KindCancelled}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrInvalidRequest       = &Error{Kind: KindInvalidRequest}
)

func newError(kind ErrorKind, status int, format string, args ...any) *Error {
	return &Error{Kind: kind, Status: status, Message: fmt.Sprintf(format, args...)}
}

// NewAdapterUnavailable reports a backend that could not serve the call.
func NewAdapterUnavailable(adapter string, format string, args ...any) *Error {
	return newError(KindAdapterUnavailable, http.StatusBadGateway, format, args...).WithDetail("adapter", adapter)
}

// NewAdapterTimeout reports a backend call that exceeded its deadline.
func NewAdapterTimeout(adapter string, format string, args ...any) *Error {
	return newError(KindAdapterTimeout, http.StatusGatewayTimeout, format, args...).WithDetail("adapter", adapter)
}

// NewAdapterRateLimited reports a backend call rejected by a rate limit.
func NewAdapterRateLimited(adapter string, format string, args ...any) *Error {
	return newError(KindAdapterRateLimited, http.StatusTooManyRequests, format, args...).WithDetail("adapter", adapter)
}

// NewInsufficientContent reports that nothing usable was left to synthesize.
func NewInsufficientContent(format string, args ...any) *Error {
	return newError(KindInsufficientContent, http.StatusOK, format, args...)
}

// NewInvalidState reports a transition the session's status does not allow.
func NewInvalidState(format string, args ...any) *Error {
	return newError(KindInvalidState, http.StatusConflict, format, args...)
}

// NewRetryBudgetExhausted reports that validation retries ran out.
func NewRetryBudgetExhausted(max int) *Error {
	return newError(KindRetryBudgetExhausted, http.StatusOK, "validation retry budget of %d exhausted", max).WithDetail("max_retries", max)
}

// NewCancelled reports a run stopped by an explicit cancel.
func NewCancelled(format string, args ...any) *Error {
	return newError(KindCancelled, http.StatusOK, format, args...)
}

// NewNotFound reports an unknown session id.
func NewNotFound(format string, args ...any) *Error {
	return newError(KindNotFound, http.StatusNotFound, format, args...)
}

// NewInvalidRequest reports malformed caller input.
func NewInvalidRequest(format string, args ...any) *Error {
	return newError(KindInvalidRequest, http.StatusBadRequest, format, args...)
}

// NewInternal wraps an unexpected failure.
func NewInternal(format string, args ...any) *Error {
	return newError(KindInternal, http.StatusInternalServerError, format, args...)
}

// KindOf extracts the taxonomy kind of err. Context errors are classified as
// timeouts and cancellations; anything unknown is Internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindAdapterTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf returns the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

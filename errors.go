package httpqueue

import "fmt"

// RequestError is the common interface implemented by every error kind the
// pipeline can deliver to a caller's error listener (spec.md §7). Response
// returns the NetworkResponse associated with the error, if one is
// available, so callers can inspect status/headers/body.
type RequestError interface {
	error
	Response() *NetworkResponse
	retriable() bool
}

type baseError struct {
	msg  string
	resp *NetworkResponse
	err  error
}

func (e *baseError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *baseError) Unwrap() error           { return e.err }
func (e *baseError) Response() *NetworkResponse { return e.resp }

// TimeoutError indicates the HTTP round-trip exceeded the per-attempt
// timeout. Always retriable via the request's retry policy.
type TimeoutError struct{ baseError }

func (e *TimeoutError) retriable() bool { return true }

func NewTimeoutError(cause error) *TimeoutError {
	return &TimeoutError{baseError{msg: "timeout", err: cause}}
}

// NoConnectionError indicates a DNS/TCP-level failure with no route to the
// server. Retriable only if the request opted in via
// ShouldRetryConnectionErrors.
type NoConnectionError struct{ baseError }

func (e *NoConnectionError) retriable() bool { return true }

func NewNoConnectionError(cause error) *NoConnectionError {
	return &NoConnectionError{baseError{msg: "no connection", err: cause}}
}

// AuthFailureError wraps an HTTP 401/403, or a failure raised from a
// Request's HeaderProvider while attaching credentials. Always retriable;
// the caller is expected to refresh credentials between attempts.
type AuthFailureError struct {
	baseError
	// ResolutionHint carries a caller-supplied value (for example, an
	// intent to re-authenticate) describing how to recover.
	ResolutionHint any
}

func (e *AuthFailureError) retriable() bool { return true }

func NewAuthFailureError(resp *NetworkResponse, hint any) *AuthFailureError {
	return &AuthFailureError{baseError: baseError{msg: "auth failure", resp: resp}, ResolutionHint: hint}
}

// ClientError wraps an HTTP 4xx response other than 401/403. Never
// retriable.
type ClientError struct {
	baseError
	StatusCode int
}

func (e *ClientError) retriable() bool { return false }

func NewClientError(resp *NetworkResponse) *ClientError {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	return &ClientError{baseError: baseError{msg: fmt.Sprintf("client error (status %d)", status), resp: resp}, StatusCode: status}
}

// ServerError wraps an HTTP 5xx response, or a 304 that arrives with no
// cached entry attached to the request to merge it into. Retriable
// only if the request opted in via CachePolicy.ShouldRetryServerErrors.
type ServerError struct {
	baseError
	StatusCode int
}

func (e *ServerError) retriable() bool { return true }

func NewServerError(resp *NetworkResponse) *ServerError {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	return &ServerError{baseError: baseError{msg: fmt.Sprintf("server error (status %d)", status), resp: resp}, StatusCode: status}
}

// ParseError indicates the response body could not be parsed by the
// request's ResponseParser. Never retried.
type ParseError struct{ baseError }

func (e *ParseError) retriable() bool { return false }

func NewParseError(resp *NetworkResponse, cause error) *ParseError {
	return &ParseError{baseError{msg: "parse error", resp: resp, err: cause}}
}

// NetworkError is a catch-all transport error not otherwise classified.
// Never retried automatically.
type NetworkError struct{ baseError }

func (e *NetworkError) retriable() bool { return false }

func NewNetworkError(cause error) *NetworkError {
	return &NetworkError{baseError{msg: "network error", err: cause}}
}

package http

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned for unexpected HTTP status codes.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return "http: unexpected status " + e.Status
	}
	return fmt.Sprintf("http: unexpected status %d", e.StatusCode)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return e.StatusCode >= 500
}

// Is maps status codes onto the package sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrServerError:
		return e.StatusCode >= 500
	}
	return false
}

// ConnectError is a transport-level failure: dialing, TLS, or the connection
// dropping while a body is streamed.
type ConnectError struct {
	Op  string
	URL string
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("http: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient failure: a temporary status
// code or a connection failure.
func IsRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var ce *ConnectError
	return errors.As(err, &ce)
}

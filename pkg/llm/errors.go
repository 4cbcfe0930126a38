package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrBackendUnavailable       = errors.New("backend unavailable")
	ErrBackendTimeout           = errors.New("backend timeout")
	ErrBackendMalformedResponse = errors.New("backend returned an invalid response")
)

// BackendError ties a failure class to the subsystem that produced it.
type BackendError struct {
	Backend string
	Class   error
	Cause   error
}

func NewBackendError(backend string, class error, cause error) *BackendError {
	return &BackendError{Backend: backend, Class: class, Cause: cause}
}

func (e *BackendError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %v", e.Backend, e.Class)
	}
	return fmt.Sprintf("%s: %v: %v", e.Backend, e.Class, e.Cause)
}

func (e *BackendError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Class}
	}
	return []error{e.Class, e.Cause}
}

// TransportError classifies an error returned by an HTTP round trip.
func TransportError(backend string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewBackendError(backend, ErrBackendTimeout, err)
	}
	return NewBackendError(backend, ErrBackendUnavailable, err)
}

// Class returns the user-facing failure class of err: "unavailable",
// "timeout" or "invalid-response". Unclassified errors report "unavailable".
func Class(err error) string {
	switch {
	case errors.Is(err, ErrBackendTimeout):
		return "timeout"
	case errors.Is(err, ErrBackendMalformedResponse):
		return "invalid-response"
	default:
		return "unavailable"
	}
}

// Subsystem returns the backend label carried by err, if any.
func Subsystem(err error) (string, bool) {
	var be *BackendError
	if errors.As(err, &be) && be.Backend != "" {
		return be.Backend, true
	}
	return "", false
}

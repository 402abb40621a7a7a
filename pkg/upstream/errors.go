package upstream

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by Client.Fetch matches exactly one of
// them with errors.Is, except usage.ErrLimitReached, which means the call was
// refused before reaching the network.
var (
	// ErrConfiguration means the selected auth mode lacks its credential.
	// No network attempt is made.
	ErrConfiguration = errors.New("upstream configuration failure")

	// ErrTransport covers network errors, timeouts and an open breaker.
	ErrTransport = errors.New("upstream transport failure")

	// ErrHTTP is a non-2xx response.
	ErrHTTP = errors.New("upstream http failure")

	// ErrApplication is a 2xx response carrying a non-empty errors field or
	// a body that is not JSON.
	ErrApplication = errors.New("upstream application failure")
)

// ErrorKind names a failure class for logs and metrics.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindTransport     ErrorKind = "transport"
	KindHTTP          ErrorKind = "http"
	KindApplication   ErrorKind = "application"
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindTransport:
		return ErrTransport
	case KindHTTP:
		return ErrHTTP
	case KindApplication:
		return ErrApplication
	default:
		return nil
	}
}

// UpstreamError carries the failure details of one upstream call.
type UpstreamError struct {
	Kind       ErrorKind
	StatusCode int
	URL        string
	Message    string
	// Timeout is set when a transport failure was caused by the call deadline.
	Timeout bool
	Err     error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("upstream %s failure", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the kind's sentinel.
func (e *UpstreamError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or "" if err is not an upstream failure.
func KindOf(err error) ErrorKind {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return ""
}

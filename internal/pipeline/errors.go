package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a failed gateway call
type Kind int

const (
	// KindTransport covers network and timeout failures. Retryable.
	KindTransport Kind = iota + 1
	// KindAuthentication is an HTTP 401: missing, invalid or expired token.
	KindAuthentication
	// KindAuthorization is an HTTP 403: valid session, insufficient permission.
	KindAuthorization
	// KindStatus is any other non-2xx response.
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Error is returned by Pipeline.Do for every failed call
type Error struct {
	Kind       Kind
	Method     string
	URL        string
	StatusCode int
	Body       string

	// IsPermissionError tags 403 responses so retry and logging layers can
	// special-case them without inspecting status codes.
	IsPermissionError bool

	Err error
}

func (e *Error) Error() string {
	if e.Kind == KindTransport {
		return fmt.Sprintf("%s %s: failed to send request: %v", e.Method, e.URL, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("%s %s failed (status %d): %s", e.Method, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s failed (status %d)", e.Method, e.URL, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError returns the pipeline error in err's chain, if any
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsPermissionError reports whether err carries the 403 permission tag
func IsPermissionError(err error) bool {
	pe, ok := AsError(err)
	return ok && pe.IsPermissionError
}

// IsAuthenticationError reports whether err is a 401 from the gateway
func IsAuthenticationError(err error) bool {
	pe, ok := AsError(err)
	return ok && pe.Kind == KindAuthentication
}

// IsTransportError reports whether err is a network or timeout failure
func IsTransportError(err error) bool {
	pe, ok := AsError(err)
	return ok && pe.Kind == KindTransport
}

package download

import (
	"errors"
	"fmt"
)

// Fetch failure modes. Callers classify outcomes with errors.Is and
// errors.As; the client never retries on its own.
var (
	// ErrAuthenticationRejected reports that the data service refused the
	// credential (HTTP 401 or 403).
	ErrAuthenticationRejected = errors.New("authentication rejected by data service")

	// ErrNotFound reports that no product exists for the requested flight
	// (HTTP 404).
	ErrNotFound = errors.New("flight not found")

	// ErrEmptyPayload reports a success response with a zero-byte body.
	// Nothing is written in that case.
	ErrEmptyPayload = errors.New("empty payload")

	// ErrInvalidFlightID reports a flight identifier that is empty or not
	// usable as a file name.
	ErrInvalidFlightID = errors.New("invalid flight id")
)

// StatusError reports a response status the client has no mapping for.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string // leading bytes of the response body, for diagnostics
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("unexpected status %s", e.Status)
}

// TransportError reports a request that failed before a response arrived or
// while the payload was being read.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

package tokensource

import (
	"errors"
	"fmt"
)

// Acquisition failure modes. Callers classify outcomes with errors.Is and
// errors.As; none of these are retried automatically.
var (
	// ErrEmptyToken reports manual input that was empty or whitespace-only.
	ErrEmptyToken = errors.New("empty token input")

	// ErrAuthorizationDenied reports that the user rejected the
	// authorization request at the provider.
	ErrAuthorizationDenied = errors.New("authorization denied by user")

	// ErrDeviceCodeExpired reports that the authorization session ended
	// before the user approved it. A new acquisition must be started from
	// scratch.
	ErrDeviceCodeExpired = errors.New("device authorization expired")

	// ErrCancelled reports that the caller's context ended the acquisition.
	// Errors carrying it also wrap the context's error, so
	// errors.Is(err, context.Canceled) keeps working.
	ErrCancelled = errors.New("authentication cancelled")
)

// ProtocolError reports a device flow exchange that failed outside the
// expected grant outcomes: the provider answered with an error code this
// package has no mapping for, sent a malformed response, or the request
// never completed on the wire.
type ProtocolError struct {
	// Code is the OAuth error code from the provider, empty when the
	// failure happened before a response was decoded.
	Code string

	// Description carries the provider's error_description or a short
	// local diagnosis of what went wrong.
	Description string

	// Err is the underlying transport or decoding error, nil when the
	// provider answered cleanly.
	Err error
}

func (e *ProtocolError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("device flow protocol error: %s (%s)", e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("device flow protocol error: %s", e.Code)
	case e.Description != "" && e.Err != nil:
		return fmt.Sprintf("device flow protocol error: %s: %v", e.Description, e.Err)
	case e.Description != "":
		return fmt.Sprintf("device flow protocol error: %s", e.Description)
	case e.Err != nil:
		return fmt.Sprintf("device flow request failed: %v", e.Err)
	default:
		return "device flow protocol error"
	}
}

func (e *ProtocolError) Unwrap() error { return e.Err }

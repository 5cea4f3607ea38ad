package tokensource

import (
	"encoding"
	"encoding/json"
	"fmt"
	"log/slog"
)

const redactedPlaceholder = "[REDACTED]"

// RedactedToken is a credential string whose formatted representations all
// collapse to a fixed placeholder. Wrap tokens in it before handing them to
// loggers, printers, or marshalers so the raw value cannot leak through an
// output path. Reveal returns the underlying value for the one place that
// legitimately needs it.
type RedactedToken string

// Compile-time checks covering the common output paths.
var (
	_ fmt.Stringer           = RedactedToken("")
	_ fmt.GoStringer         = RedactedToken("")
	_ encoding.TextMarshaler = RedactedToken("")
	_ json.Marshaler         = RedactedToken("")
	_ slog.LogValuer         = RedactedToken("")
)

// String implements fmt.Stringer, covering %s and %v.
func (RedactedToken) String() string { return redactedPlaceholder }

// GoString implements fmt.GoStringer, covering %#v.
func (RedactedToken) GoString() string { return redactedPlaceholder }

// MarshalText implements encoding.TextMarshaler.
func (RedactedToken) MarshalText() ([]byte, error) { return []byte(redactedPlaceholder), nil }

// MarshalJSON implements json.Marshaler.
func (RedactedToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(redactedPlaceholder)
}

// LogValue implements slog.LogValuer.
func (RedactedToken) LogValue() slog.Value { return slog.StringValue(redactedPlaceholder) }

// Reveal returns the raw token value.
func (t RedactedToken) Reveal() string { return string(t) }

package config

import (
	"encoding/json"
	"log/slog"
	"strings"
)

const redacted = "[redacted]"

// Secret holds a credential. It prints, logs, and JSON-encodes as
// "[redacted]"; use Reveal to obtain the value.
type Secret string

// Reveal returns the plain text value.
func (s Secret) Reveal() string {
	return string(s)
}

// IsZero reports whether the secret is blank.
func (s Secret) IsZero() bool {
	return strings.TrimSpace(string(s)) == ""
}

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// GoString keeps %#v from leaking the value.
func (s Secret) GoString() string {
	return s.String()
}

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

// MarshalJSON implements json.Marshaler.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

package metrics

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEncoding marks a device value that does not match its field grammar.
	ErrMalformedEncoding = errors.New("malformed encoding")
	// ErrNotNumeric marks a gauge target value that cannot be read as a number.
	ErrNotNumeric = errors.New("value is not numeric")
)

// TranslationError describes one failed field translation.
// Params: field name, raw input, and human-readable reason.
// Returns: error matching ErrMalformedEncoding via errors.Is.
type TranslationError struct {
	Field  string
	Raw    string
	Reason string
}

// Error formats translation failure.
// Params: none.
// Returns: error text.
func (e *TranslationError) Error() string {
	return fmt.Sprintf("translate %s %q: %s: %s", e.Field, e.Raw, ErrMalformedEncoding, e.Reason)
}

// Unwrap exposes ErrMalformedEncoding for errors.Is.
// Params: none.
// Returns: sentinel error.
func (e *TranslationError) Unwrap() error {
	return ErrMalformedEncoding
}

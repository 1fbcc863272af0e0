package strict

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEncoding is returned when a byte sequence is not an
	// exact, fully-consumed canonical encoding of the target type.
	// Decoding never silently defaults on such input.
	ErrMalformedEncoding = errors.New("malformed canonical encoding")

	// ErrUnsupportedVersion is returned when a versioned structure
	// carries a version tag the decoder does not understand. Unknown
	// versions are rejected rather than misparsed.
	ErrUnsupportedVersion = errors.New("unsupported encoding version")
)

// errMalformed wraps a detailed parse failure with ErrMalformedEncoding so
// callers can match on the sentinel with errors.Is.
func errMalformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedEncoding,
		fmt.Sprintf(format, args...))
}

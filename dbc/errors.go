package dbc

import "errors"

var (
	// ErrCommitmentMismatch is returned when recomputing a commitment
	// does not reproduce the claimed tweaked carrier. This signals
	// corruption or an attempted forgery and must never be ignored.
	ErrCommitmentMismatch = errors.New("commitment does not match carrier")

	// ErrInvalidTweak is returned when the derived tweak scalar is zero
	// or overflows the curve order. With a proper hash function this has
	// negligible probability and indicates malformed input.
	ErrInvalidTweak = errors.New("derived tweak is not a valid scalar")

	// ErrNotTaprootScript is returned when a pkScript that is expected
	// to be a taproot commitment carrier has a different form.
	ErrNotTaprootScript = errors.New("script is not a v1 taproot output")
)

// Package bech provides the human-shareable string form used for seals,
// commitments and contract identifiers: a bech32 wrapping of the canonical
// binary encoding, distinguished by a per-type human readable part. The
// string form is an exact inverse of the binary form.
package bech

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Encode wraps the canonical binary encoding of a value in bech32 with the
// given human readable part.
func Encode(hrp string, data []byte) (string, error) {
	converted, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", err
	}

	return bech32.Encode(hrp, converted)
}

// Decode recovers the canonical binary encoding from a bech32 string,
// checking that it carries the expected human readable part.
func Decode(expectedHRP, encoded string) ([]byte, error) {
	hrp, data, err := bech32.DecodeNoLimit(encoded)
	if err != nil {
		return nil, err
	}
	if hrp != expectedHRP {
		return nil, fmt.Errorf("unexpected human-readable part %q, "+
			"want %q", hrp, expectedHRP)
	}

	return bech32.ConvertBits(data, 5, 8, false)
}

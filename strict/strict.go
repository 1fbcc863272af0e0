// Package strict implements the canonical binary encoding used for all
// hashing, commitments and wire exchange within the library. The encoding is
// deterministic and bijective: every well-formed value has exactly one byte
// representation, and every byte sequence decodes to at most one value.
//
// The rules are deliberately minimal: fixed-width integers are little-endian,
// variable-length collections are prefixed with an explicit uint16 length,
// struct fields are written in declaration order, and unordered collections
// (maps) are written in ascending encoded-key byte order. There is no
// self-describing framing; the type of the decoder fully determines the
// parse.
package strict

import (
	"bytes"
	"io"
)

const (
	// MaxCollectionSize is the maximum number of elements in any
	// length-prefixed collection, dictated by the uint16 length prefix.
	MaxCollectionSize = 65535
)

// Encodable is the interface implemented by every structure that
// participates in hashing, commitments or wire exchange. EncodeTo must never
// fail for a well-formed in-memory value other than by writer error.
type Encodable interface {
	// EncodeTo writes the canonical encoding of the value to w.
	EncodeTo(w *bytes.Buffer) error

	// DecodeFrom reads the canonical encoding of the value from r,
	// consuming exactly the encoded bytes.
	DecodeFrom(r io.Reader) error
}

// Encode returns the canonical serialization of v.
func Encode(v Encodable) ([]byte, error) {
	var b bytes.Buffer
	if err := v.EncodeTo(&b); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Decode parses data as the canonical encoding of v. The buffer must be
// consumed exactly: any trailing bytes make the parse ambiguous and yield
// ErrMalformedEncoding.
func Decode(data []byte, v Encodable) error {
	r := bytes.NewReader(data)
	if err := v.DecodeFrom(r); err != nil {
		return err
	}

	if r.Len() != 0 {
		return errMalformed("%d trailing bytes after decode", r.Len())
	}

	return nil
}

// WriteVersion writes the explicit version tag that prefixes every
// versioned structure.
func WriteVersion(w *bytes.Buffer, version uint8) error {
	return WriteElement(w, version)
}

// ReadVersion reads a version tag and rejects anything above maxKnown with
// ErrUnsupportedVersion, so that decoders never silently misparse a future
// format revision.
func ReadVersion(r io.Reader, maxKnown uint8) (uint8, error) {
	var version uint8
	if err := ReadElement(r, &version); err != nil {
		return 0, err
	}

	if version > maxKnown {
		return 0, ErrUnsupportedVersion
	}

	return version, nil
}

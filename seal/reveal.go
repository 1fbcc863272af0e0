package seal

import (
	"bytes"
	"io"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/zoedberg/lnpbp/strict"
)

// Seal is a single-use seal in one of two disclosure states: revealed,
// carrying the full definition, or concealed, carrying only the
// confidential identifier. Both states commit identically: anything hashed
// over a seal hashes its confidential form (CommitTo), so concealing or
// revealing a seal never changes a derived identifier. Only the wire
// encoding differs between the two states.
type Seal struct {
	confidential Confidential

	// definition is present only in the revealed state.
	definition fn.Option[Definition]
}

// Revealed constructs a seal in the revealed state.
func Revealed(def Definition) Seal {
	return Seal{
		confidential: def.Confidential(),
		definition:   fn.Some(def),
	}
}

// Concealed constructs a seal in the concealed state.
func Concealed(conf Confidential) Seal {
	return Seal{
		confidential: conf,
		definition:   fn.None[Definition](),
	}
}

// IsRevealed reports whether the full definition is known.
func (s Seal) IsRevealed() bool {
	return s.definition.IsSome()
}

// Definition returns the revealed definition, or ErrSealConcealed when the
// seal is only known in its confidential form.
func (s Seal) Definition() (Definition, error) {
	if s.definition.IsNone() {
		return Definition{}, ErrSealConcealed
	}

	return s.definition.UnwrapOr(Definition{}), nil
}

// Confidential returns the seal's confidential identifier, available in
// both states.
func (s Seal) Confidential() Confidential {
	return s.confidential
}

// Conceal returns a copy of the seal with the definition dropped.
func (s Seal) Conceal() Seal {
	return Concealed(s.confidential)
}

// CommitTo writes the commitment form of the seal: always the confidential
// identifier, regardless of the disclosure state.
func (s *Seal) CommitTo(w *bytes.Buffer) error {
	return s.confidential.EncodeTo(w)
}

// EncodeTo serializes the seal using the canonical encoding. A revealed
// flag precedes either the full definition or the confidential identifier.
func (s *Seal) EncodeTo(w *bytes.Buffer) error {
	if def, err := s.Definition(); err == nil {
		if err := strict.WriteElement(w, true); err != nil {
			return err
		}
		return def.EncodeTo(w)
	}

	if err := strict.WriteElement(w, false); err != nil {
		return err
	}

	return s.confidential.EncodeTo(w)
}

// DecodeFrom deserializes the seal using the canonical encoding.
func (s *Seal) DecodeFrom(r io.Reader) error {
	var revealed bool
	if err := strict.ReadElement(r, &revealed); err != nil {
		return err
	}

	if revealed {
		var def Definition
		if err := def.DecodeFrom(r); err != nil {
			return err
		}
		*s = Revealed(def)

		return nil
	}

	var conf Confidential
	if err := conf.DecodeFrom(r); err != nil {
		return err
	}
	*s = Concealed(conf)

	return nil
}

// A compile time check to ensure Seal implements the strict.Encodable
// interface.
var _ strict.Encodable = (*Seal)(nil)

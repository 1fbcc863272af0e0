// Package seal implements single-use seals over bitcoin transaction
// outputs. A seal binds an off-chain claim to a specific unspent output;
// because chain consensus allows that output to be spent at most once,
// spending it is the only way to close the seal, and it can happen exactly
// once. That property is what gives the protocol double-spend prevention
// without a consensus mechanism of its own.
package seal

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/zoedberg/lnpbp/strict"
)

// confidentialTag domain-separates the hash that turns a revealed seal
// definition into its unlinkable confidential form.
var confidentialTag = []byte("LNPBP:utxob")

// Definition identifies a specific transaction output together with a
// secret blinding factor. The blinding factor is mixed into the seal's
// confidential identifier so unrelated observers cannot link the seal to
// the outpoint.
type Definition struct {
	// OutPoint is the transaction output the seal is bound to.
	OutPoint wire.OutPoint

	// Blinding is the secret blinding factor for the confidential form.
	Blinding uint64
}

// New is a pure constructor for a seal over the given outpoint.
func New(op wire.OutPoint, blinding uint64) *Definition {
	return &Definition{
		OutPoint: op,
		Blinding: blinding,
	}
}

// NewRandom creates a seal over the given outpoint with a blinding factor
// drawn from a cryptographically secure source.
func NewRandom(op wire.OutPoint) (*Definition, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, err
	}

	return New(op, binary.LittleEndian.Uint64(b[:])), nil
}

// EncodeTo serializes the seal definition using the canonical encoding.
func (d *Definition) EncodeTo(w *bytes.Buffer) error {
	return strict.WriteElements(w, d.OutPoint, d.Blinding)
}

// DecodeFrom deserializes the seal definition using the canonical encoding.
func (d *Definition) DecodeFrom(r io.Reader) error {
	return strict.ReadElements(r, &d.OutPoint, &d.Blinding)
}

// A compile time check to ensure Definition implements the strict.Encodable
// interface.
var _ strict.Encodable = (*Definition)(nil)

// Confidential is the public identifier of a seal: a tagged hash over the
// canonical encoding of the full definition. Without the blinding factor it
// cannot be linked back to the underlying outpoint.
type Confidential [32]byte

// Confidential derives the seal's public identifier.
func (d *Definition) Confidential() Confidential {
	encoded, err := strict.Encode(d)
	if err != nil {
		// The definition contains only fixed-width fields, so the
		// canonical encoding cannot fail.
		panic(err)
	}

	return Confidential(*chainhash.TaggedHash(confidentialTag, encoded))
}

// String returns the hexadecimal form of the confidential seal.
func (c Confidential) String() string {
	return hex.EncodeToString(c[:])
}

// EncodeTo serializes the confidential seal using the canonical encoding.
func (c *Confidential) EncodeTo(w *bytes.Buffer) error {
	return strict.WriteElement(w, [32]byte(*c))
}

// DecodeFrom deserializes the confidential seal using the canonical
// encoding.
func (c *Confidential) DecodeFrom(r io.Reader) error {
	return strict.ReadElement(r, (*[32]byte)(c))
}

// A compile time check to ensure Confidential implements the
// strict.Encodable interface.
var _ strict.Encodable = (*Confidential)(nil)

// Package dbc implements deterministic bitcoin commitments: embedding an
// opaque commitment to arbitrary data inside an ordinary public key (or the
// script derived from it) through a pay-to-contract tweak. The tweaked
// carrier is indistinguishable from an untweaked key to anyone without the
// committed payload, yet the holder of the payload and the original key can
// prove the commitment.
package dbc

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/zoedberg/lnpbp/strict"
)

// CommitmentTag is the protocol tag used to domain-separate commitment
// hashes from every other use of the hash function, preventing cross
// protocol collisions.
var CommitmentTag = []byte("LNPBP1")

// Proof carries the data needed to verify a pay-to-contract commitment:
// the original, untweaked carrier key. Revealing the proof does not reveal
// the committed payload.
type Proof struct {
	// OriginalKey is the carrier key before the commitment tweak was
	// applied.
	OriginalKey *btcec.PublicKey
}

// EncodeTo serializes the proof using the canonical encoding.
func (p *Proof) EncodeTo(w *bytes.Buffer) error {
	return strict.WriteElement(w, p.OriginalKey)
}

// DecodeFrom deserializes the proof using the canonical encoding.
func (p *Proof) DecodeFrom(r io.Reader) error {
	return strict.ReadElement(r, &p.OriginalKey)
}

// A compile time check to ensure Proof implements the strict.Encodable
// interface.
var _ strict.Encodable = (*Proof)(nil)

// commitmentTweak derives the mod-N tweak scalar binding the payload to the
// original key:
//
//	t = tagged_hash(CommitmentTag, originalKey || payload)
//
// Including the original key in the hash prevents an attacker from choosing
// a key that cancels a known tweak.
func commitmentTweak(originalKey *btcec.PublicKey,
	payload []byte) (*btcec.ModNScalar, error) {

	hash := chainhash.TaggedHash(
		CommitmentTag, originalKey.SerializeCompressed(), payload,
	)

	tweak := new(btcec.ModNScalar)
	if overflow := tweak.SetBytes((*[32]byte)(hash)); overflow != 0 {
		return nil, ErrInvalidTweak
	}
	if tweak.IsZero() {
		return nil, ErrInvalidTweak
	}

	return tweak, nil
}

// tweakedKey applies the tweak scalar to the base key via EC point
// addition:
//
//	T = P + t*G
func tweakedKey(base *btcec.PublicKey,
	tweak *btcec.ModNScalar) *btcec.PublicKey {

	var (
		baseJacobian   btcec.JacobianPoint
		tweakJacobian  btcec.JacobianPoint
		resultJacobian btcec.JacobianPoint
	)
	btcec.ScalarBaseMultNonConst(tweak, &tweakJacobian)

	base.AsJacobian(&baseJacobian)
	btcec.AddNonConst(&baseJacobian, &tweakJacobian, &resultJacobian)

	resultJacobian.ToAffine()
	return btcec.NewPublicKey(&resultJacobian.X, &resultJacobian.Y)
}

// CommitToPubKey embeds a commitment to payload inside the passed carrier
// key, returning the tweaked key together with the proof needed to later
// verify the commitment. The payload is expected to already be in canonical
// form (the caller hashes structures through the strict encoding).
func CommitToPubKey(carrier *btcec.PublicKey,
	payload []byte) (*btcec.PublicKey, *Proof, error) {

	tweak, err := commitmentTweak(carrier, payload)
	if err != nil {
		return nil, nil, err
	}

	return tweakedKey(carrier, tweak), &Proof{OriginalKey: carrier}, nil
}

// VerifyPubKeyCommitment recomputes the commitment from the proof's
// original key and the claimed payload and checks that it reproduces the
// tweaked carrier exactly. The check is deterministic and side-effect free.
func VerifyPubKeyCommitment(tweaked *btcec.PublicKey, proof *Proof,
	payload []byte) error {

	tweak, err := commitmentTweak(proof.OriginalKey, payload)
	if err != nil {
		return err
	}

	if !tweakedKey(proof.OriginalKey, tweak).IsEqual(tweaked) {
		return ErrCommitmentMismatch
	}

	return nil
}

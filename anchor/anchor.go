package anchor

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/zoedberg/lnpbp/bech"
	"github.com/zoedberg/lnpbp/contract"
	"github.com/zoedberg/lnpbp/dbc"
	"github.com/zoedberg/lnpbp/strict"
)

const (
	// anchorVersion is the current encoding version of the anchor
	// structure.
	anchorVersion = 0

	// HRP is the bech32 human readable part of the textual anchor form.
	HRP = "anchor"
)

var (
	// ErrWrongWitnessTx is returned when an anchor is verified against a
	// transaction other than its witness transaction.
	ErrWrongWitnessTx = errors.New("transaction is not the anchor witness")

	// ErrNoCommitmentOutput is returned when no output of the witness
	// transaction carries the anchor's root commitment.
	ErrNoCommitmentOutput = errors.New(
		"witness transaction carries no matching commitment output")
)

// Anchor binds one contract's commitment to a confirmed witness
// transaction: the multi-commitment root, this contract's inclusion path to
// that root, and the pay-to-contract proof tying the root to the witness
// transaction's output key. Anchors are immutable once the witness
// transaction confirms.
type Anchor struct {
	// Txid is the witness transaction carrying the commitment.
	Txid chainhash.Hash

	// Root is the multi-commitment root embedded in the witness
	// transaction.
	Root Commitment

	// Proof is this contract's inclusion path to Root.
	Proof MerkleProof

	// KeyProof ties Root to the witness transaction's tweaked output
	// key.
	KeyProof dbc.Proof
}

// Build lays the passed commitments out into a single multi-commitment,
// embeds its root into the anchor output of the witness transaction
// template via a pay-to-contract tweak of anchorKey, and returns one anchor
// per contract together with the finalized transaction. The anchor output's
// pkScript is replaced; signing and broadcasting remain the caller's
// responsibility, as does transaction construction in general.
func Build(entries []Entry, template *wire.MsgTx, anchorKey *btcec.PublicKey,
	anchorOutput uint32) (map[contract.ContractID]*Anchor, *wire.MsgTx,
	error) {

	if int(anchorOutput) >= len(template.TxOut) {
		return nil, nil, fmt.Errorf("template has no output %d",
			anchorOutput)
	}

	multiCommit, err := NewMultiCommitment(entries)
	if err != nil {
		return nil, nil, err
	}
	root := multiCommit.Root()

	pkScript, keyProof, err := dbc.CommitToTaprootScript(
		anchorKey, root[:],
	)
	if err != nil {
		return nil, nil, err
	}

	witnessTx := template.Copy()
	witnessTx.TxOut[anchorOutput].PkScript = pkScript
	txid := witnessTx.TxHash()

	anchors := make(map[contract.ContractID]*Anchor, len(entries))
	for _, entry := range entries {
		proof, err := multiCommit.Proof(entry.ContractID)
		if err != nil {
			return nil, nil, err
		}

		anchors[entry.ContractID] = &Anchor{
			Txid:     txid,
			Root:     root,
			Proof:    *proof,
			KeyProof: *keyProof,
		}
	}

	return anchors, witnessTx, nil
}

// Verify checks that the given contract's commitment is included in the
// anchor's root and that the root is committed into the passed confirmed
// witness transaction. Any mismatch surfaces as an explicit error; there is
// no optimistic acceptance path.
func (a *Anchor) Verify(id contract.ContractID, commitment Commitment,
	witnessTx *btcutil.Tx) error {

	if *witnessTx.Hash() != a.Txid {
		return fmt.Errorf("%w: have %v, want %v", ErrWrongWitnessTx,
			witnessTx.Hash(), a.Txid)
	}

	if err := a.Proof.Verify(id, commitment, a.Root); err != nil {
		return err
	}

	// The root must be committed into one of the witness outputs through
	// the key tweak. Which output carries it is not part of the anchor:
	// scan for a taproot output matching the proof.
	for _, txOut := range witnessTx.MsgTx().TxOut {
		err := dbc.VerifyTaprootScriptCommitment(
			txOut.PkScript, &a.KeyProof, a.Root[:],
		)
		if err == nil {
			return nil
		}
	}

	return ErrNoCommitmentOutput
}

// EncodeTo serializes the anchor using the canonical encoding.
func (a *Anchor) EncodeTo(w *bytes.Buffer) error {
	if err := strict.WriteVersion(w, anchorVersion); err != nil {
		return err
	}

	return strict.WriteElements(
		w, a.Txid, [32]byte(a.Root), &a.Proof, &a.KeyProof,
	)
}

// DecodeFrom deserializes the anchor using the canonical encoding.
func (a *Anchor) DecodeFrom(r io.Reader) error {
	if _, err := strict.ReadVersion(r, anchorVersion); err != nil {
		return err
	}

	return strict.ReadElements(
		r, &a.Txid, (*[32]byte)(&a.Root), &a.Proof, &a.KeyProof,
	)
}

// A compile time check to ensure Anchor implements the strict.Encodable
// interface.
var _ strict.Encodable = (*Anchor)(nil)

// String returns the bech32 form of the anchor.
func (a *Anchor) String() string {
	encoded, err := strict.Encode(a)
	if err != nil {
		return "<invalid anchor>"
	}

	s, err := bech.Encode(HRP, encoded)
	if err != nil {
		return "<invalid anchor>"
	}

	return s
}

// Decode parses the bech32 form of an anchor.
func Decode(s string) (*Anchor, error) {
	data, err := bech.Decode(HRP, s)
	if err != nil {
		return nil, err
	}

	var a Anchor
	if err := strict.Decode(data, &a); err != nil {
		return nil, err
	}

	return &a, nil
}

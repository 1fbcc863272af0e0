package dbc

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
)

// CommitToTaprootScript commits to payload inside the carrier key and
// returns the v1 witness (taproot) output script carrying the tweaked key,
// along with the commitment proof. The resulting script is indistinguishable
// from any other P2TR output.
func CommitToTaprootScript(carrier *btcec.PublicKey,
	payload []byte) ([]byte, *Proof, error) {

	tweaked, proof, err := CommitToPubKey(carrier, payload)
	if err != nil {
		return nil, nil, err
	}

	pkScript, err := payToTaprootScript(tweaked)
	if err != nil {
		return nil, nil, err
	}

	return pkScript, proof, nil
}

// VerifyTaprootScriptCommitment checks that the passed taproot pkScript
// carries a key committing to payload under the given proof. Key parity is
// lost in the x-only on-chain serialization, so comparison happens over the
// 32-byte x coordinate.
func VerifyTaprootScriptCommitment(pkScript []byte, proof *Proof,
	payload []byte) error {

	witnessProgram, err := ExtractTaprootKey(pkScript)
	if err != nil {
		return err
	}

	tweak, err := commitmentTweak(proof.OriginalKey, payload)
	if err != nil {
		return err
	}
	expected := tweakedKey(proof.OriginalKey, tweak)

	if !bytes.Equal(schnorr.SerializePubKey(expected), witnessProgram) {
		return ErrCommitmentMismatch
	}

	return nil
}

// ExtractTaprootKey returns the 32-byte x-only witness program of a v1
// taproot output script, or ErrNotTaprootScript if the script has any other
// form.
func ExtractTaprootKey(pkScript []byte) ([]byte, error) {
	// OP_1 <32-byte key>.
	if len(pkScript) != 34 || pkScript[0] != txscript.OP_1 ||
		pkScript[1] != txscript.OP_DATA_32 {

		return nil, ErrNotTaprootScript
	}

	return pkScript[2:], nil
}

// payToTaprootScript creates a pkScript that pays to the given taproot key.
func payToTaprootScript(taprootKey *btcec.PublicKey) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_1).
		AddData(schnorr.SerializePubKey(taprootKey)).
		Script()
}

package dbc

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zoedberg/lnpbp/strict"
)

func randKey(t *rapid.T) *btcec.PublicKey {
	seed := rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "seed")
	_, pubKey := btcec.PrivKeyFromBytes(seed)
	return pubKey
}

// TestCommitmentBinding asserts that a commitment verifies against the
// exact payload that produced it and fails against any other payload.
func TestCommitmentBinding(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		carrier := randKey(rt)
		payload := rapid.SliceOfN(rapid.Byte(), 1, 128).Draw(
			rt, "payload",
		)

		tweaked, proof, err := CommitToPubKey(carrier, payload)
		require.NoError(rt, err)

		require.NoError(
			rt, VerifyPubKeyCommitment(tweaked, proof, payload),
		)

		// Any mutation of the payload must break the commitment.
		mutated := append([]byte{}, payload...)
		idx := rapid.IntRange(0, len(mutated)-1).Draw(rt, "idx")
		mutated[idx] ^= 0xff

		err = VerifyPubKeyCommitment(tweaked, proof, mutated)
		require.ErrorIs(rt, err, ErrCommitmentMismatch)
	})
}

// TestCommitmentHiding asserts the tweaked key differs from the carrier and
// that the same payload under two different carriers yields unrelated
// tweaked keys.
func TestCommitmentHiding(t *testing.T) {
	t.Parallel()

	payload := []byte("contract state commitment")

	priv1, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	priv2, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	tweaked1, _, err := CommitToPubKey(priv1.PubKey(), payload)
	require.NoError(t, err)
	tweaked2, _, err := CommitToPubKey(priv2.PubKey(), payload)
	require.NoError(t, err)

	require.False(t, tweaked1.IsEqual(priv1.PubKey()))
	require.False(t, tweaked2.IsEqual(priv2.PubKey()))
	require.False(t, tweaked1.IsEqual(tweaked2))
}

// TestTaprootScriptCommitment asserts the script carrier round trip: the
// derived P2TR script verifies against the payload and proof, and rejects a
// forged payload or mangled script.
func TestTaprootScriptCommitment(t *testing.T) {
	t.Parallel()

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	payload := []byte("anchored multi-commitment root")

	pkScript, proof, err := CommitToTaprootScript(priv.PubKey(), payload)
	require.NoError(t, err)
	require.Len(t, pkScript, 34)

	require.NoError(
		t, VerifyTaprootScriptCommitment(pkScript, proof, payload),
	)

	err = VerifyTaprootScriptCommitment(
		pkScript, proof, []byte("different payload"),
	)
	require.ErrorIs(t, err, ErrCommitmentMismatch)

	_, err = ExtractTaprootKey(pkScript[:33])
	require.ErrorIs(t, err, ErrNotTaprootScript)
}

// TestProofEncoding asserts the proof's canonical encoding round trips.
func TestProofEncoding(t *testing.T) {
	t.Parallel()

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	proof := &Proof{OriginalKey: priv.PubKey()}
	data, err := strict.Encode(proof)
	require.NoError(t, err)

	var decoded Proof
	require.NoError(t, strict.Decode(data, &decoded))
	require.True(t, proof.OriginalKey.IsEqual(decoded.OriginalKey))
}

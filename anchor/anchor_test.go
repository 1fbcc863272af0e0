package anchor

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zoedberg/lnpbp/strict"
)

func testEntry(idByte, commitByte byte) Entry {
	var entry Entry
	entry.ContractID[0] = idByte
	entry.Commitment[0] = commitByte

	return entry
}

func testTemplate() *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{9}},
	})
	tx.AddTxOut(&wire.TxOut{Value: 10_000, PkScript: []byte{0x51}})

	return tx
}

// TestInclusionSoundness asserts that every anchored commitment's path
// verifies against the root, and that no path verifies a different
// contract's commitment.
func TestInclusionSoundness(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 16).Draw(rt, "n")

		entries := make([]Entry, n)
		for i := range entries {
			entries[i] = testEntry(byte(i+1), byte(100+i))
		}

		multiCommit, err := NewMultiCommitment(entries)
		require.NoError(rt, err)
		root := multiCommit.Root()

		for _, entry := range entries {
			proof, err := multiCommit.Proof(entry.ContractID)
			require.NoError(rt, err)

			require.NoError(rt, proof.Verify(
				entry.ContractID, entry.Commitment, root,
			))

			// The same path must not verify any other entry.
			for _, other := range entries {
				if other.ContractID == entry.ContractID {
					continue
				}

				err := proof.Verify(
					other.ContractID, other.Commitment,
					root,
				)
				require.ErrorIs(rt, err, ErrProofInvalid)
			}

			// Nor a forged commitment for the same contract.
			forged := entry.Commitment
			forged[0] ^= 0xff
			err = proof.Verify(entry.ContractID, forged, root)
			require.ErrorIs(rt, err, ErrProofInvalid)
		}
	})
}

// TestMultiCommitmentDeterminism asserts entry order does not affect the
// root, and duplicate contract ids are rejected.
func TestMultiCommitmentDeterminism(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		testEntry(3, 30), testEntry(1, 10), testEntry(2, 20),
	}
	reversed := []Entry{
		testEntry(2, 20), testEntry(1, 10), testEntry(3, 30),
	}

	m1, err := NewMultiCommitment(entries)
	require.NoError(t, err)
	m2, err := NewMultiCommitment(reversed)
	require.NoError(t, err)
	require.Equal(t, m1.Root(), m2.Root())

	_, err = NewMultiCommitment([]Entry{
		testEntry(1, 10), testEntry(1, 20),
	})
	require.ErrorIs(t, err, ErrDuplicateContract)

	_, err = m1.Proof(testEntry(9, 0).ContractID)
	require.ErrorIs(t, err, ErrUnknownContract)
}

// TestBuildAndVerify asserts the full anchor flow: building embeds the root
// into the witness template, and each contract's anchor verifies against
// the finalized transaction but not against a different one.
func TestBuildAndVerify(t *testing.T) {
	t.Parallel()

	anchorKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	entries := []Entry{
		testEntry(1, 10), testEntry(2, 20), testEntry(3, 30),
	}

	anchors, witnessTx, err := Build(
		entries, testTemplate(), anchorKey.PubKey(), 0,
	)
	require.NoError(t, err)
	require.Len(t, anchors, 3)

	witness := btcutil.NewTx(witnessTx)
	for _, entry := range entries {
		a := anchors[entry.ContractID]
		require.NotNil(t, a)
		require.Equal(t, witnessTx.TxHash(), a.Txid)

		require.NoError(
			t, a.Verify(entry.ContractID, entry.Commitment,
				witness),
		)

		// A different transaction cannot back the anchor.
		otherTx := btcutil.NewTx(testTemplate())
		err := a.Verify(entry.ContractID, entry.Commitment, otherTx)
		require.ErrorIs(t, err, ErrWrongWitnessTx)
	}

	// Mangling the committed output must break verification.
	mangled := witnessTx.Copy()
	mangled.TxOut[0].PkScript[10] ^= 0xff
	a := anchors[entries[0].ContractID]
	err = a.Verify(
		entries[0].ContractID, entries[0].Commitment,
		btcutil.NewTx(mangled),
	)
	require.Error(t, err)

	// Out of range anchor output index is rejected at build time.
	_, _, err = Build(entries, testTemplate(), anchorKey.PubKey(), 7)
	require.Error(t, err)
}

// TestAnchorEncoding asserts the binary and bech32 forms round trip.
func TestAnchorEncoding(t *testing.T) {
	t.Parallel()

	anchorKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	entries := []Entry{testEntry(1, 10), testEntry(2, 20)}
	anchors, _, err := Build(
		entries, testTemplate(), anchorKey.PubKey(), 0,
	)
	require.NoError(t, err)

	a := anchors[entries[0].ContractID]
	data, err := strict.Encode(a)
	require.NoError(t, err)

	var decoded Anchor
	require.NoError(t, strict.Decode(data, &decoded))
	require.Equal(t, a.Txid, decoded.Txid)
	require.Equal(t, a.Root, decoded.Root)
	require.Equal(t, a.Proof.Pos, decoded.Proof.Pos)
	require.Equal(t, a.Proof.Path, decoded.Proof.Path)
	require.True(
		t, a.KeyProof.OriginalKey.IsEqual(decoded.KeyProof.OriginalKey),
	)

	fromBech, err := Decode(a.String())
	require.NoError(t, err)
	require.Equal(t, a.Root, fromBech.Root)
}

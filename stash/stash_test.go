package stash

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/zoedberg/lnpbp/anchor"
	"github.com/zoedberg/lnpbp/chain"
	"github.com/zoedberg/lnpbp/contract"
	"github.com/zoedberg/lnpbp/seal"
	"github.com/zoedberg/lnpbp/strict"
	"github.com/zoedberg/lnpbp/validation"
)

type mockResolver struct {
	txs    map[chainhash.Hash]*btcutil.Tx
	spends map[wire.OutPoint]chainhash.Hash
}

func newMockResolver() *mockResolver {
	return &mockResolver{
		txs:    make(map[chainhash.Hash]*btcutil.Tx),
		spends: make(map[wire.OutPoint]chainhash.Hash),
	}
}

func (m *mockResolver) addWitness(tx *btcutil.Tx) {
	m.txs[*tx.Hash()] = tx
	for _, txIn := range tx.MsgTx().TxIn {
		m.spends[txIn.PreviousOutPoint] = *tx.Hash()
	}
}

func (m *mockResolver) FetchTx(_ context.Context,
	txid chainhash.Hash) (*btcutil.Tx, error) {

	tx, ok := m.txs[txid]
	if !ok {
		return nil, chain.ErrTxNotFound
	}

	return tx, nil
}

func (m *mockResolver) OutputSpender(_ context.Context,
	op wire.OutPoint) (fn.Option[chainhash.Hash], error) {

	spender, ok := m.spends[op]
	if !ok {
		return fn.None[chainhash.Hash](), nil
	}

	return fn.Some(spender), nil
}

func outPoint(b byte, index uint32) wire.OutPoint {
	var h chainhash.Hash
	h[0] = b

	return wire.OutPoint{Hash: h, Index: index}
}

// anchorTransition spends the seal of the transition's single input and
// commits the transition through an anchor output.
func anchorTransition(t *testing.T, graph *contract.Graph,
	transition *contract.Transition, sealed wire.OutPoint,
	resolver *mockResolver) anchor.Anchor {

	t.Helper()

	transitionID := transition.NodeID()

	template := wire.NewMsgTx(2)
	template.AddTxIn(&wire.TxIn{PreviousOutPoint: sealed})
	template.AddTxOut(&wire.TxOut{Value: 500, PkScript: []byte{0x51}})
	template.AddTxOut(&wire.TxOut{Value: 0})

	anchorKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	anchors, witnessTx, err := anchor.Build(
		[]anchor.Entry{{
			ContractID: graph.ContractID(),
			Commitment: anchor.Commitment(transitionID),
		}},
		template, anchorKey.PubKey(), 1,
	)
	require.NoError(t, err)

	resolver.addWitness(btcutil.NewTx(witnessTx))

	return *anchors[graph.ContractID()]
}

// newConsignment builds a two-hop history genesis -> t1 -> t2 with an
// extension on t2, with every witness registered in the resolver. The
// terminal assignment's seal is concealed; its definition is returned so
// tests can play the receiving side.
func newConsignment(t *testing.T,
	resolver *mockResolver) (*Consignment, seal.Definition) {

	t.Helper()

	op1 := outPoint(1, 0)
	op2 := outPoint(2, 0)

	genesis := contract.Genesis{
		ChainHash: chainhash.Hash{0xaa},
		Metadata:  contract.Metadata{0: []byte("TEST")},
		Outs: []contract.Assignment{{
			Seal:  seal.Revealed(*seal.New(op1, 1)),
			State: contract.TypedState{Amount: 1000},
		}},
		ProcID: 1,
	}
	graph := contract.NewGraph(&genesis)

	t1 := contract.Transition{
		Inputs: []contract.PrevOut{{Node: genesis.NodeID(), Index: 0}},
		Outs: []contract.Assignment{{
			Seal:  seal.Revealed(*seal.New(op2, 2)),
			State: contract.TypedState{Amount: 1000},
		}},
		ProcID: 1,
	}
	_, err := graph.Append(&t1)
	require.NoError(t, err)
	anchor1 := anchorTransition(t, graph, &t1, op1, resolver)

	receiverSeal := seal.New(outPoint(3, 0), 3)
	t2 := contract.Transition{
		Inputs: []contract.PrevOut{{Node: t1.NodeID(), Index: 0}},
		Outs: []contract.Assignment{{
			// The terminal seal travels concealed; only its owner
			// can (and must) reveal it after receipt.
			Seal:  seal.Concealed(receiverSeal.Confidential()),
			State: contract.TypedState{Amount: 1000},
		}},
		ProcID: 1,
	}
	_, err = graph.Append(&t2)
	require.NoError(t, err)
	anchor2 := anchorTransition(t, graph, &t2, op2, resolver)

	extension := contract.Extension{
		Extends:  t2.NodeID(),
		Metadata: contract.Metadata{5: []byte("public data")},
		ProcID:   2,
	}

	return &Consignment{
		Genesis: genesis,
		Endpoints: []Endpoint{{
			NodeID: t2.NodeID(),
			Seal:   receiverSeal.Confidential(),
		}},
		// Deliberately out of order: materialization must not depend
		// on the sender's serialization order.
		Transitions: []AnchoredTransition{
			{Anchor: anchor2, Transition: t2},
			{Anchor: anchor1, Transition: t1},
		},
		Extensions: []contract.Extension{extension},
	}, *receiverSeal
}

// TestConsignmentEncoding asserts the binary and bech32 round trips
// reproduce the consignment bit for bit.
func TestConsignmentEncoding(t *testing.T) {
	t.Parallel()

	c, _ := newConsignment(t, newMockResolver())

	encoded, err := strict.Encode(c)
	require.NoError(t, err)

	var decoded Consignment
	require.NoError(t, strict.Decode(encoded, &decoded))

	reEncoded, err := strict.Encode(&decoded)
	require.NoError(t, err)
	require.Equal(t, encoded, reEncoded)
	require.Equal(t, c.ContractID(), decoded.ContractID())
	require.Equal(t, c.Endpoints, decoded.Endpoints)

	fromBech, err := DecodeConsignment(c.String())
	require.NoError(t, err)
	require.Equal(t, c.NodeIDs(), fromBech.NodeIDs())
}

// TestConsignmentGraph asserts materialization handles out-of-order nodes
// and rejects disconnected ones.
func TestConsignmentGraph(t *testing.T) {
	t.Parallel()

	c, _ := newConsignment(t, newMockResolver())

	graph, err := c.Graph()
	require.NoError(t, err)

	// Genesis, two transitions, one extension.
	require.Equal(t, 4, graph.NumNodes())
	require.Len(t, c.NodeIDs(), 4)
	require.Len(t, c.TxIDs(), 2)
	require.Len(t, c.Anchors(), 2)

	// Dropping the first hop orphans the second: the consignment can no
	// longer be materialized.
	c.Transitions = c.Transitions[:1]
	_, err = c.Graph()
	require.ErrorIs(t, err, ErrDisconnectedNode)
}

// TestConsignmentValidate asserts an intact consignment validates to Valid
// against the chain view its witnesses confirmed in.
func TestConsignmentValidate(t *testing.T) {
	t.Parallel()

	resolver := newMockResolver()
	c, _ := newConsignment(t, resolver)

	v, err := validation.New(validation.Config{
		Resolver:     resolver,
		RetryBackoff: time.Millisecond,
	})
	require.NoError(t, err)

	status, err := c.Validate(context.Background(), v)
	require.NoError(t, err)
	require.Equal(t, validation.Valid, status.Validity())
}

// TestConsignmentRevealSeals asserts the receiving side of a transfer: the
// consignment arrives with the terminal seal concealed, validates as-is
// without disclosing the receiver's outpoint, and the receiver's reveal
// swaps in the full definition without changing any node id.
func TestConsignmentRevealSeals(t *testing.T) {
	t.Parallel()

	resolver := newMockResolver()
	c, receiverDef := newConsignment(t, resolver)

	nodeIDs := c.NodeIDs()
	terminal := &c.Transitions[0].Transition.Outs[0]
	require.False(t, terminal.Seal.IsRevealed())

	// The concealed history already validates: output seals need no
	// disclosure, only consumed ones.
	v, err := validation.New(validation.Config{
		Resolver:     resolver,
		RetryBackoff: time.Millisecond,
	})
	require.NoError(t, err)

	status, err := c.Validate(context.Background(), v)
	require.NoError(t, err)
	require.Equal(t, validation.Valid, status.Validity())

	// A definition the consignment does not reference reveals nothing.
	stranger := *seal.New(outPoint(9, 9), 77)
	require.Zero(t, c.RevealSeals([]seal.Definition{stranger}))

	// The receiver's own definition reveals exactly its seal, leaving
	// every node id untouched.
	require.Equal(t, 1, c.RevealSeals([]seal.Definition{receiverDef}))
	require.Equal(t, nodeIDs, c.NodeIDs())

	got, err := terminal.Seal.Definition()
	require.NoError(t, err)
	require.Equal(t, receiverDef, got)

	// Revealing is idempotent.
	require.Zero(t, c.RevealSeals([]seal.Definition{receiverDef}))
}

// TestStore asserts the put, fetch, iterate and remove cycle against a
// bolt-backed store.
func TestStore(t *testing.T) {
	t.Parallel()

	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer func() {
		require.NoError(t, store.Close())
	}()

	c, _ := newConsignment(t, newMockResolver())
	id := c.ContractID()

	_, err = store.Fetch(id)
	require.ErrorIs(t, err, ErrConsignmentNotFound)

	require.NoError(t, store.Put(c))

	fetched, err := store.Fetch(id)
	require.NoError(t, err)
	require.Equal(t, c.NodeIDs(), fetched.NodeIDs())

	var seen []contract.ContractID
	err = store.ForEach(func(id contract.ContractID,
		stored *Consignment) error {

		seen = append(seen, id)
		require.Equal(t, id, stored.ContractID())
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []contract.ContractID{id}, seen)

	require.NoError(t, store.Remove(id))
	_, err = store.Fetch(id)
	require.ErrorIs(t, err, ErrConsignmentNotFound)
}

package contract

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/tlv"
	"github.com/stretchr/testify/require"

	"github.com/zoedberg/lnpbp/seal"
	"github.com/zoedberg/lnpbp/strict"
)

func testDefinition(b byte, blinding uint64) seal.Definition {
	var h chainhash.Hash
	h[0] = b

	return *seal.New(wire.OutPoint{Hash: h, Index: 0}, blinding)
}

func testSeal(b byte, blinding uint64) seal.Seal {
	return seal.Revealed(testDefinition(b, blinding))
}

func testGenesis() *Genesis {
	return &Genesis{
		ChainHash: chainhash.Hash{0xaa},
		Metadata: Metadata{
			0: []byte("TEST"),
			1: []byte("Test Asset"),
		},
		Outs: []Assignment{
			{
				Seal:  testSeal(1, 100),
				State: TypedState{Amount: 1000},
			},
		},
		ProcID: 1,
	}
}

func transitionSpending(parent NodeID, index uint16,
	outSeal seal.Seal, amount uint64) *Transition {

	return &Transition{
		Inputs: []PrevOut{{Node: parent, Index: index}},
		Outs: []Assignment{
			{
				Seal:  outSeal,
				State: TypedState{Amount: amount},
			},
		},
		ProcID: 1,
	}
}

// TestNodeIDDeterminism asserts content addressing: equal nodes share an
// id, any field change produces a different id, and the contract id equals
// the genesis node id.
func TestNodeIDDeterminism(t *testing.T) {
	t.Parallel()

	g1 := testGenesis()
	g2 := testGenesis()
	require.Equal(t, g1.NodeID(), g2.NodeID())
	require.Equal(t, ContractID(g1.NodeID()), g1.ContractID())

	g2.Outs[0].State.Amount++
	require.NotEqual(t, g1.NodeID(), g2.NodeID())

	// A transition with the same fields as a hypothetical extension must
	// not collide: node type is bound into the id.
	tr := &Transition{ProcID: 1, Inputs: []PrevOut{{Node: g1.NodeID()}}}
	ext := &Extension{ProcID: 1, Extends: g1.NodeID()}
	require.NotEqual(t, tr.NodeID(), ext.NodeID())
}

// TestNodeEncodingRoundTrip asserts every node kind round trips through the
// canonical encoding, preserving its id.
func TestNodeEncodingRoundTrip(t *testing.T) {
	t.Parallel()

	genesis := testGenesis()
	genesisID := genesis.NodeID()

	data, err := strict.Encode(genesis)
	require.NoError(t, err)

	var decodedGenesis Genesis
	require.NoError(t, strict.Decode(data, &decodedGenesis))
	require.Equal(t, genesisID, decodedGenesis.NodeID())
	require.True(t, genesis.Metadata.Equal(decodedGenesis.Metadata))

	transition := transitionSpending(genesisID, 0, testSeal(2, 7), 1000)
	transition.Metadata = Metadata{9: {0x01, 0x02}}

	data, err = strict.Encode(transition)
	require.NoError(t, err)

	var decodedTransition Transition
	require.NoError(t, strict.Decode(data, &decodedTransition))
	require.Equal(t, transition.NodeID(), decodedTransition.NodeID())

	extension := &Extension{
		Extends:  genesisID,
		Metadata: Metadata{3: []byte("public state")},
		ProcID:   2,
	}

	data, err = strict.Encode(extension)
	require.NoError(t, err)

	var decodedExtension Extension
	require.NoError(t, strict.Decode(data, &decodedExtension))
	require.Equal(t, extension.NodeID(), decodedExtension.NodeID())
}

// TestNodeIDDisclosureInvariance asserts a node id never depends on the
// disclosure state of its assignment seals: concealing an output seal
// changes the wire encoding but not the id, so anchors and parent
// references survive selective disclosure.
func TestNodeIDDisclosureInvariance(t *testing.T) {
	t.Parallel()

	revealed := testGenesis()
	concealed := testGenesis()
	concealed.Outs[0].Seal = concealed.Outs[0].Seal.Conceal()

	require.Equal(t, revealed.NodeID(), concealed.NodeID())

	wireRevealed, err := strict.Encode(revealed)
	require.NoError(t, err)
	wireConcealed, err := strict.Encode(concealed)
	require.NoError(t, err)
	require.NotEqual(t, wireRevealed, wireConcealed)

	// The concealed form still round trips and keeps the id.
	var decoded Genesis
	require.NoError(t, strict.Decode(wireConcealed, &decoded))
	require.Equal(t, revealed.NodeID(), decoded.NodeID())
	require.False(t, decoded.Outs[0].Seal.IsRevealed())

	// A different seal still produces a different id: the confidential
	// form is committed, not erased.
	other := testGenesis()
	other.Outs[0].Seal = testSeal(9, 9)
	require.NotEqual(t, revealed.NodeID(), other.NodeID())
}

// TestMetadataCanonicalOrder asserts the tlv metadata blob is independent
// of map construction order.
func TestMetadataCanonicalOrder(t *testing.T) {
	t.Parallel()

	m1 := Metadata{}
	m2 := Metadata{}
	fields := []tlv.Type{7, 1, 5, 3}
	for _, f := range fields {
		m1[f] = []byte{byte(f)}
	}
	for i := len(fields) - 1; i >= 0; i-- {
		m2[fields[i]] = []byte{byte(fields[i])}
	}

	b1, err := m1.Bytes()
	require.NoError(t, err)
	b2, err := m2.Bytes()
	require.NoError(t, err)
	require.Equal(t, b1, b2)

	parsed, err := ParseMetadata(b1)
	require.NoError(t, err)
	require.True(t, m1.Equal(parsed))
}

// TestGraphAppend asserts ancestor checks and the structural double-spend
// rejection at append time.
func TestGraphAppend(t *testing.T) {
	t.Parallel()

	genesis := testGenesis()
	graph := NewGraph(genesis)
	genesisID := genesis.NodeID()

	// Appending a node referencing a missing ancestor fails.
	var bogus NodeID
	bogus[0] = 0xff
	_, err := graph.Append(
		transitionSpending(bogus, 0, testSeal(2, 1), 1000),
	)
	require.ErrorIs(t, err, ErrUnknownAncestor)

	// Out of range output index fails the same way.
	_, err = graph.Append(
		transitionSpending(genesisID, 5, testSeal(2, 1), 1000),
	)
	require.ErrorIs(t, err, ErrUnknownAncestor)

	// A well-formed transition appends.
	t1 := transitionSpending(genesisID, 0, testSeal(2, 1), 1000)
	t1ID, err := graph.Append(t1)
	require.NoError(t, err)

	// Re-appending the same node is a no-op.
	again, err := graph.Append(t1)
	require.NoError(t, err)
	require.Equal(t, t1ID, again)

	// A sibling claiming the same ancestor output is rejected before any
	// validation run occurs.
	t2 := transitionSpending(genesisID, 0, testSeal(3, 2), 500)
	_, err = graph.Append(t2)
	require.ErrorIs(t, err, ErrSealAlreadyReferenced)

	// So is a single transition listing the same ancestor output twice
	// among its own inputs: that would consume the seal's state twice
	// through one node.
	freshGraph := NewGraph(testGenesis())
	doubled := &Transition{
		Inputs: []PrevOut{
			{Node: genesisID, Index: 0},
			{Node: genesisID, Index: 0},
		},
		Outs: []Assignment{
			{Seal: testSeal(4, 3), State: TypedState{Amount: 2000}},
		},
		ProcID: 1,
	}
	_, err = freshGraph.Append(doubled)
	require.ErrorIs(t, err, ErrSealAlreadyReferenced)

	// The rejection happens before any input is claimed, so a
	// well-formed spend of the same output still appends afterwards.
	_, err = freshGraph.Append(
		transitionSpending(genesisID, 0, testSeal(4, 3), 1000),
	)
	require.NoError(t, err)

	// An extension of a known node appends; of an unknown node fails.
	_, err = graph.Append(&Extension{Extends: t1ID})
	require.NoError(t, err)
	_, err = graph.Append(&Extension{Extends: bogus})
	require.ErrorIs(t, err, ErrUnknownAncestor)

	ancestors, err := graph.Ancestors(t1ID)
	require.NoError(t, err)
	require.Equal(t, []NodeID{genesisID}, ancestors)

	ancestors, err = graph.Ancestors(genesisID)
	require.NoError(t, err)
	require.Empty(t, ancestors)
}

// TestTopoOrder asserts the traversal order is ancestors-first and
// deterministic across graphs built in different append orders.
func TestTopoOrder(t *testing.T) {
	t.Parallel()

	genesis := &Genesis{
		ChainHash: chainhash.Hash{0xaa},
		Outs: []Assignment{
			{Seal: testSeal(1, 1), State: TypedState{Amount: 600}},
			{Seal: testSeal(2, 2), State: TypedState{Amount: 400}},
		},
		ProcID: 1,
	}
	genesisID := genesis.NodeID()

	tA := transitionSpending(genesisID, 0, testSeal(3, 3), 600)
	tB := transitionSpending(genesisID, 1, testSeal(4, 4), 400)
	tC := transitionSpending(tA.NodeID(), 0, testSeal(5, 5), 600)

	build := func(order []Node) *Graph {
		g := NewGraph(genesis)
		for _, n := range order {
			_, err := g.Append(n)
			require.NoError(t, err)
		}
		return g
	}

	g1 := build([]Node{tA, tB, tC})
	g2 := build([]Node{tB, tA, tC})

	order1 := g1.TopoOrder()
	order2 := g2.TopoOrder()
	require.Equal(t, order1, order2)
	require.Len(t, order1, 4)
	require.Equal(t, genesisID, order1[0])

	pos := make(map[NodeID]int)
	for i, id := range order1 {
		pos[id] = i
	}
	require.Less(t, pos[tA.NodeID()], pos[tC.NodeID()])
}

// Package stash persists and exchanges contract history: consignments
// bundle the subgraph a counterparty needs to validate an incoming
// transfer, and the store keeps accepted consignments in a local database.
package stash

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/zoedberg/lnpbp/anchor"
	"github.com/zoedberg/lnpbp/bech"
	"github.com/zoedberg/lnpbp/contract"
	"github.com/zoedberg/lnpbp/seal"
	"github.com/zoedberg/lnpbp/strict"
)

const (
	// consignmentVersion is the current encoding version of the
	// consignment structure.
	consignmentVersion = 0

	// ConsignmentHRP is the bech32 human readable part of the textual
	// consignment form.
	ConsignmentHRP = "consignment"
)

var (
	// ErrDisconnectedNode is returned when a consignment contains a node
	// whose ancestors are not part of the consignment: the receiver could
	// never validate it back to the genesis.
	ErrDisconnectedNode = errors.New(
		"consignment node not connected to genesis")
)

// Endpoint names a terminal assignment of a transfer: the node allocating
// it and the confidential form of the seal it is assigned to. The receiver
// matches endpoints against seals it generated, without the sender ever
// learning the underlying outpoints of anyone else's endpoints.
type Endpoint struct {
	// NodeID is the node carrying the terminal assignment.
	NodeID contract.NodeID

	// Seal is the confidential seal the state is assigned to.
	Seal seal.Confidential
}

// EncodeTo serializes the endpoint using the canonical encoding.
func (e *Endpoint) EncodeTo(w *bytes.Buffer) error {
	return strict.WriteElements(w, [32]byte(e.NodeID), &e.Seal)
}

// DecodeFrom deserializes the endpoint using the canonical encoding.
func (e *Endpoint) DecodeFrom(r io.Reader) error {
	return strict.ReadElements(r, (*[32]byte)(&e.NodeID), &e.Seal)
}

// AnchoredTransition pairs a transition with the anchor binding it to its
// witness transaction. Transitions never travel without their anchors: a
// transition alone is unverifiable.
type AnchoredTransition struct {
	// Anchor commits the transition to its witness transaction.
	Anchor anchor.Anchor

	// Transition is the state transition itself.
	Transition contract.Transition
}

// EncodeTo serializes the pair using the canonical encoding.
func (a *AnchoredTransition) EncodeTo(w *bytes.Buffer) error {
	return strict.WriteElements(w, &a.Anchor, &a.Transition)
}

// DecodeFrom deserializes the pair using the canonical encoding.
func (a *AnchoredTransition) DecodeFrom(r io.Reader) error {
	return strict.ReadElements(r, &a.Anchor, &a.Transition)
}

// Consignment is the self-contained transfer package sent to a receiving
// party: the contract genesis, every transition on the paths from the
// genesis to the transfer's endpoints together with its anchor, and any
// extensions attached along the way. A consignment carries everything
// needed to validate the transfer against the chain and nothing about
// unrelated branches of the contract.
type Consignment struct {
	// Genesis instantiates the contract the consignment belongs to.
	Genesis contract.Genesis

	// Endpoints are the terminal assignments of the transfer.
	Endpoints []Endpoint

	// Transitions are the anchored transitions of the transferred
	// history, in no particular order.
	Transitions []AnchoredTransition

	// Extensions are the extensions of the transferred history, in no
	// particular order.
	Extensions []contract.Extension
}

// A compile time check to ensure Consignment implements the
// strict.Encodable interface.
var _ strict.Encodable = (*Consignment)(nil)

// ContractID returns the identifier of the contract the consignment
// transfers state of.
func (c *Consignment) ContractID() contract.ContractID {
	return c.Genesis.ContractID()
}

// EncodeTo serializes the consignment using the canonical encoding.
func (c *Consignment) EncodeTo(w *bytes.Buffer) error {
	if err := strict.WriteVersion(w, consignmentVersion); err != nil {
		return err
	}
	if err := c.Genesis.EncodeTo(w); err != nil {
		return err
	}

	err := strict.WriteSlice(w, c.Endpoints,
		func(w *bytes.Buffer, e Endpoint) error {
			return e.EncodeTo(w)
		},
	)
	if err != nil {
		return err
	}

	err = strict.WriteSlice(w, c.Transitions,
		func(w *bytes.Buffer, a AnchoredTransition) error {
			return a.EncodeTo(w)
		},
	)
	if err != nil {
		return err
	}

	return strict.WriteSlice(w, c.Extensions,
		func(w *bytes.Buffer, e contract.Extension) error {
			return e.EncodeTo(w)
		},
	)
}

// DecodeFrom deserializes the consignment using the canonical encoding.
func (c *Consignment) DecodeFrom(r io.Reader) error {
	if _, err := strict.ReadVersion(r, consignmentVersion); err != nil {
		return err
	}
	if err := c.Genesis.DecodeFrom(r); err != nil {
		return err
	}

	endpoints, err := strict.ReadSlice(r,
		func(r io.Reader) (Endpoint, error) {
			var e Endpoint
			err := e.DecodeFrom(r)
			return e, err
		},
	)
	if err != nil {
		return err
	}
	c.Endpoints = endpoints

	transitions, err := strict.ReadSlice(r,
		func(r io.Reader) (AnchoredTransition, error) {
			var a AnchoredTransition
			err := a.DecodeFrom(r)
			return a, err
		},
	)
	if err != nil {
		return err
	}
	c.Transitions = transitions

	extensions, err := strict.ReadSlice(r,
		func(r io.Reader) (contract.Extension, error) {
			var e contract.Extension
			err := e.DecodeFrom(r)
			return e, err
		},
	)
	if err != nil {
		return err
	}
	c.Extensions = extensions

	return nil
}

// Graph materializes the consignment into a contract graph rooted at its
// genesis. Transitions and extensions may appear in any order inside the
// consignment; nodes are attached in passes until a fixpoint. A node whose
// ancestors never appear fails the whole consignment with
// ErrDisconnectedNode, and a structural double-spend inside the
// consignment surfaces as the graph's append error.
func (c *Consignment) Graph() (*contract.Graph, error) {
	graph := contract.NewGraph(&c.Genesis)

	pending := make([]contract.Node, 0,
		len(c.Transitions)+len(c.Extensions))
	for i := range c.Transitions {
		pending = append(pending, &c.Transitions[i].Transition)
	}
	for i := range c.Extensions {
		pending = append(pending, &c.Extensions[i])
	}

	for len(pending) > 0 {
		var deferred []contract.Node
		progress := false

		for _, node := range pending {
			_, err := graph.Append(node)
			switch {
			case err == nil:
				progress = true

			// The ancestor may simply appear later in the
			// consignment; retry on the next pass.
			case errors.Is(err, contract.ErrUnknownAncestor):
				deferred = append(deferred, node)

			default:
				return nil, err
			}
		}

		if !progress {
			return nil, fmt.Errorf("%w: %v", ErrDisconnectedNode,
				deferred[0].NodeID())
		}
		pending = deferred
	}

	log.Debugf("Materialized consignment for contract %v into a graph "+
		"of %d nodes", c.ContractID(), graph.NumNodes())

	return graph, nil
}

// RevealSeals replaces concealed assignment seals whose confidential form
// matches one of the passed definitions with the revealed form, returning
// how many seals were revealed. The receiver calls this with the seal
// definitions it generated for the transfer's endpoints. Node ids are
// unaffected: seals commit in their confidential form, so revealing is a
// purely local disclosure.
func (c *Consignment) RevealSeals(defs []seal.Definition) int {
	byConf := make(map[seal.Confidential]seal.Definition, len(defs))
	for _, def := range defs {
		byConf[def.Confidential()] = def
	}

	revealed := 0
	revealOuts := func(outs []contract.Assignment) {
		for i := range outs {
			if outs[i].Seal.IsRevealed() {
				continue
			}
			def, ok := byConf[outs[i].Seal.Confidential()]
			if !ok {
				continue
			}
			outs[i].Seal = seal.Revealed(def)
			revealed++
		}
	}

	revealOuts(c.Genesis.Outs)
	for i := range c.Transitions {
		revealOuts(c.Transitions[i].Transition.Outs)
	}
	for i := range c.Extensions {
		revealOuts(c.Extensions[i].Outs)
	}

	return revealed
}

// Anchors returns the anchors of the consignment keyed by the node id of
// the transition each one commits.
func (c *Consignment) Anchors() map[contract.NodeID]*anchor.Anchor {
	anchors := make(map[contract.NodeID]*anchor.Anchor,
		len(c.Transitions))
	for i := range c.Transitions {
		at := &c.Transitions[i]
		anchors[at.Transition.NodeID()] = &at.Anchor
	}

	return anchors
}

// NodeIDs returns the ids of every node in the consignment, sorted by byte
// order.
func (c *Consignment) NodeIDs() []contract.NodeID {
	ids := make([]contract.NodeID, 0,
		1+len(c.Transitions)+len(c.Extensions))
	ids = append(ids, c.Genesis.NodeID())
	for i := range c.Transitions {
		ids = append(ids, c.Transitions[i].Transition.NodeID())
	}
	for i := range c.Extensions {
		ids = append(ids, c.Extensions[i].NodeID())
	}

	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})

	return ids
}

// TxIDs returns the witness transaction ids referenced by the
// consignment's anchors, deduplicated and sorted by byte order. These are
// the transactions a receiver must resolve to validate the consignment.
func (c *Consignment) TxIDs() []chainhash.Hash {
	seen := make(map[chainhash.Hash]struct{}, len(c.Transitions))
	txids := make([]chainhash.Hash, 0, len(c.Transitions))
	for i := range c.Transitions {
		txid := c.Transitions[i].Anchor.Txid
		if _, ok := seen[txid]; ok {
			continue
		}
		seen[txid] = struct{}{}
		txids = append(txids, txid)
	}

	sort.Slice(txids, func(i, j int) bool {
		return bytes.Compare(txids[i][:], txids[j][:]) < 0
	})

	return txids
}

// String returns the bech32 form of the consignment.
func (c *Consignment) String() string {
	encoded, err := strict.Encode(c)
	if err != nil {
		return "<invalid consignment>"
	}

	s, err := bech.Encode(ConsignmentHRP, encoded)
	if err != nil {
		return "<invalid consignment>"
	}

	return s
}

// DecodeConsignment parses the bech32 form of a consignment.
func DecodeConsignment(s string) (*Consignment, error) {
	data, err := bech.Decode(ConsignmentHRP, s)
	if err != nil {
		return nil, err
	}

	var c Consignment
	if err := strict.Decode(data, &c); err != nil {
		return nil, err
	}

	return &c, nil
}

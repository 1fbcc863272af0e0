// Package contract models the history of a confidential contract as a
// directed acyclic graph of typed nodes: a Genesis that instantiates the
// contract, Transitions that consume prior outputs under single-use seals
// and allocate new ones, and Extensions that attach public state without
// consuming a seal. Nodes are content-addressed: a node's identifier is the
// hash of its canonical encoding, so the same history always produces the
// same identifiers regardless of who constructs it.
package contract

import (
	"bytes"
	"encoding/hex"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/zoedberg/lnpbp/bech"
	"github.com/zoedberg/lnpbp/seal"
	"github.com/zoedberg/lnpbp/strict"
)

// nodeTag domain-separates node identifier hashes from every other use of
// the hash function.
var nodeTag = []byte("LNPBP:node")

// ContractIDHRP is the bech32 human readable part for contract
// identifiers.
const ContractIDHRP = "rgb"

// NodeID is the content-addressed identifier of a contract node: a tagged
// hash over the node type and its canonical encoding.
type NodeID [32]byte

// String returns the NodeID as a hexadecimal string.
func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// EncodeTo serializes the NodeID using the canonical encoding.
func (id *NodeID) EncodeTo(w *bytes.Buffer) error {
	return strict.WriteElement(w, [32]byte(*id))
}

// DecodeFrom deserializes the NodeID using the canonical encoding.
func (id *NodeID) DecodeFrom(r io.Reader) error {
	return strict.ReadElement(r, (*[32]byte)(id))
}

// A compile time check to ensure NodeID implements the strict.Encodable
// interface.
var _ strict.Encodable = (*NodeID)(nil)

// ContractID identifies a contract. By convention it is equal in value to
// the NodeID of the contract's Genesis node.
type ContractID [32]byte

// String returns the ContractID as a hexadecimal string.
func (id ContractID) String() string {
	return hex.EncodeToString(id[:])
}

// Bech32 returns the human-shareable bech32 form of the contract id.
func (id ContractID) Bech32() (string, error) {
	return bech.Encode(ContractIDHRP, id[:])
}

// DecodeContractID parses the bech32 form of a contract id.
func DecodeContractID(s string) (ContractID, error) {
	data, err := bech.Decode(ContractIDHRP, s)
	if err != nil {
		return ContractID{}, err
	}

	var id ContractID
	if err := strict.Decode(data, (*NodeID)(&id)); err != nil {
		return ContractID{}, err
	}

	return id, nil
}

// EncodeTo serializes the ContractID using the canonical encoding.
func (id *ContractID) EncodeTo(w *bytes.Buffer) error {
	return strict.WriteElement(w, [32]byte(*id))
}

// DecodeFrom deserializes the ContractID using the canonical encoding.
func (id *ContractID) DecodeFrom(r io.Reader) error {
	return strict.ReadElement(r, (*[32]byte)(id))
}

// A compile time check to ensure ContractID implements the strict.Encodable
// interface.
var _ strict.Encodable = (*ContractID)(nil)

// NodeType distinguishes the three node kinds of a contract history.
type NodeType uint8

const (
	// TypeGenesis instantiates a contract.
	TypeGenesis NodeType = 0

	// TypeTransition consumes prior outputs and allocates new ones.
	TypeTransition NodeType = 1

	// TypeExtension attaches public state without consuming a seal.
	TypeExtension NodeType = 2
)

// String returns a human readable node type name.
func (t NodeType) String() string {
	switch t {
	case TypeGenesis:
		return "genesis"
	case TypeTransition:
		return "transition"
	case TypeExtension:
		return "extension"
	default:
		return "unknown"
	}
}

// PrevOut references an output of an ancestor node: the edge type of the
// contract graph.
type PrevOut struct {
	// Node is the ancestor node allocating the referenced output.
	Node NodeID

	// Index is the position of the output within the ancestor's
	// assignments.
	Index uint16
}

// EncodeTo serializes the reference using the canonical encoding.
func (p *PrevOut) EncodeTo(w *bytes.Buffer) error {
	return strict.WriteElements(w, &p.Node, p.Index)
}

// DecodeFrom deserializes the reference using the canonical encoding.
func (p *PrevOut) DecodeFrom(r io.Reader) error {
	return strict.ReadElements(r, &p.Node, &p.Index)
}

// A compile time check to ensure PrevOut implements the strict.Encodable
// interface.
var _ strict.Encodable = (*PrevOut)(nil)

// TypedState is the state payload carried by an assignment: a fungible
// amount in atomic units plus an opaque, application-defined data blob.
// Floating point state is deliberately unrepresentable.
type TypedState struct {
	// Amount is the fungible quantity assigned, in atomic units.
	Amount uint64

	// Data is opaque application state committed alongside the amount.
	Data []byte
}

// EncodeTo serializes the state using the canonical encoding.
func (s *TypedState) EncodeTo(w *bytes.Buffer) error {
	return strict.WriteElements(w, s.Amount, s.Data)
}

// DecodeFrom deserializes the state using the canonical encoding.
func (s *TypedState) DecodeFrom(r io.Reader) error {
	return strict.ReadElements(r, &s.Amount, &s.Data)
}

// A compile time check to ensure TypedState implements the strict.Encodable
// interface.
var _ strict.Encodable = (*TypedState)(nil)

// Assignment allocates state to a fresh single-use seal. The seal travels
// in either disclosure state: revealed for outputs the holder of the data
// owns (or must verify the closure of), concealed for everyone else's, so
// sharing a history never discloses third-party outpoints. Node identifiers
// commit to the confidential seal form, making them independent of the
// disclosure state.
type Assignment struct {
	// Seal is the single-use seal guarding the assigned state.
	Seal seal.Seal

	// State is the typed state assigned to the seal.
	State TypedState
}

// EncodeTo serializes the assignment using the canonical encoding.
func (a *Assignment) EncodeTo(w *bytes.Buffer) error {
	return strict.WriteElements(w, &a.Seal, &a.State)
}

// DecodeFrom deserializes the assignment using the canonical encoding.
func (a *Assignment) DecodeFrom(r io.Reader) error {
	return strict.ReadElements(r, &a.Seal, &a.State)
}

// commitTo writes the commitment form of the assignment: the seal in its
// confidential form regardless of the disclosure state.
func (a *Assignment) commitTo(w *bytes.Buffer) error {
	if err := a.Seal.CommitTo(w); err != nil {
		return err
	}

	return a.State.EncodeTo(w)
}

// A compile time check to ensure Assignment implements the strict.Encodable
// interface.
var _ strict.Encodable = (*Assignment)(nil)

// Node is the common interface of Genesis, Transition and Extension nodes.
type Node interface {
	strict.Encodable

	// NodeID returns the content-addressed identifier of the node.
	NodeID() NodeID

	// Type returns the node kind.
	Type() NodeType

	// Parents returns the ancestor outputs consumed as state inputs.
	// Empty for Genesis and Extension nodes.
	Parents() []PrevOut

	// Assignments returns the state outputs allocated by this node.
	Assignments() []Assignment

	// Meta returns the node's typed metadata.
	Meta() Metadata

	// ProcedureID selects the scripting procedure the node must satisfy
	// during validation.
	ProcedureID() uint32
}

// nodeID computes the content-addressed identifier of a node over its
// commitment encoding (seals concealed), binding the node type so encodings
// of different kinds can never collide.
func nodeID(nodeType NodeType, commit func(*bytes.Buffer) error) NodeID {
	var b bytes.Buffer
	if err := commit(&b); err != nil {
		// Node structures contain no encoding-fallible fields.
		panic(err)
	}

	return NodeID(*chainhash.TaggedHash(
		nodeTag, []byte{byte(nodeType)}, b.Bytes(),
	))
}

// Package anchor batches many independent contract commitments into a
// single multi-commitment carried by one witness transaction, amortizing
// the chain footprint across unrelated contracts. Each party receives an
// inclusion proof for its own commitment only and never learns the other
// entries.
package anchor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/zoedberg/lnpbp/contract"
	"github.com/zoedberg/lnpbp/strict"
)

var (
	// leafTag domain-separates leaf hashes of the multi-commitment tree.
	leafTag = []byte("LNPBP4:leaf")

	// branchTag domain-separates interior branch hashes.
	branchTag = []byte("LNPBP4:branch")

	// emptyLeaf pads the leaf layer to a power of two. Domain separation
	// guarantees it can never collide with a real entry hash.
	emptyLeaf = *chainhash.TaggedHash([]byte("LNPBP4:empty"))
)

var (
	// ErrDuplicateContract is returned when two entries carry the same
	// contract id: a contract gets exactly one slot per anchor.
	ErrDuplicateContract = errors.New("duplicate contract id in " +
		"multi-commitment")

	// ErrUnknownContract is returned when an inclusion proof is
	// requested for a contract that is not part of the multi-commitment.
	ErrUnknownContract = errors.New("contract not in multi-commitment")

	// ErrProofInvalid is returned when an inclusion path does not
	// resolve to the claimed root.
	ErrProofInvalid = errors.New("inclusion proof does not match root")
)

// Commitment is the opaque fixed-size digest a contract contributes to an
// anchor. For contract state it is the content-addressed node id of the
// anchored transition.
type Commitment [32]byte

// Entry pairs a contract with the commitment it contributes.
type Entry struct {
	// ContractID identifies the contract occupying the slot.
	ContractID contract.ContractID

	// Commitment is the digest the contract commits to chain.
	Commitment Commitment
}

// leafHash binds both the contract id and its commitment into the tree
// leaf, so a proof for one contract can never verify another's commitment.
func leafHash(e *Entry) chainhash.Hash {
	return *chainhash.TaggedHash(
		leafTag, e.ContractID[:], e.Commitment[:],
	)
}

func branchHash(left, right chainhash.Hash) chainhash.Hash {
	return *chainhash.TaggedHash(branchTag, left[:], right[:])
}

// MultiCommitment is a deterministic layout of commitment entries: sorted
// by ascending contract id, padded to a power of two, and hashed into a
// merkle tree whose root is the only value embedded on chain.
type MultiCommitment struct {
	entries []Entry
}

// NewMultiCommitment lays out the passed entries canonically. Input order
// is irrelevant; duplicate contract ids are rejected.
func NewMultiCommitment(entries []Entry) (*MultiCommitment, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("multi-commitment needs at least one " +
			"entry")
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(
			sorted[i].ContractID[:], sorted[j].ContractID[:],
		) < 0
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].ContractID == sorted[i-1].ContractID {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateContract,
				sorted[i].ContractID)
		}
	}

	return &MultiCommitment{entries: sorted}, nil
}

// width returns the padded leaf count: the next power of two.
func (m *MultiCommitment) width() int {
	n := len(m.entries)
	if n&(n-1) == 0 {
		return n
	}

	return 1 << bits.Len(uint(n))
}

// leaves returns the padded leaf layer.
func (m *MultiCommitment) leaves() []chainhash.Hash {
	width := m.width()
	leaves := make([]chainhash.Hash, width)
	for i := range leaves {
		if i < len(m.entries) {
			leaves[i] = leafHash(&m.entries[i])
		} else {
			leaves[i] = emptyLeaf
		}
	}

	return leaves
}

// Root computes the merkle root of the multi-commitment.
func (m *MultiCommitment) Root() Commitment {
	layer := m.leaves()
	for len(layer) > 1 {
		next := make([]chainhash.Hash, len(layer)/2)
		for i := range next {
			next[i] = branchHash(layer[2*i], layer[2*i+1])
		}
		layer = next
	}

	return Commitment(layer[0])
}

// Proof produces the inclusion path for the given contract.
func (m *MultiCommitment) Proof(id contract.ContractID) (*MerkleProof,
	error) {

	pos := -1
	for i := range m.entries {
		if m.entries[i].ContractID == id {
			pos = i
			break
		}
	}
	if pos == -1 {
		return nil, fmt.Errorf("%w: %v", ErrUnknownContract, id)
	}

	var path []chainhash.Hash
	layer := m.leaves()
	idx := pos
	for len(layer) > 1 {
		path = append(path, layer[idx^1])

		next := make([]chainhash.Hash, len(layer)/2)
		for i := range next {
			next[i] = branchHash(layer[2*i], layer[2*i+1])
		}
		layer = next
		idx /= 2
	}

	return &MerkleProof{Pos: uint32(pos), Path: path}, nil
}

// MerkleProof is the per-contract inclusion path of a multi-commitment.
type MerkleProof struct {
	// Pos is the leaf position of the contract's entry.
	Pos uint32

	// Path lists the sibling hashes from the leaf up to the root.
	Path []chainhash.Hash
}

// Verify recomputes the path for the given contract and commitment and
// checks that it resolves to the expected root.
func (p *MerkleProof) Verify(id contract.ContractID, commitment Commitment,
	root Commitment) error {

	current := leafHash(&Entry{ContractID: id, Commitment: commitment})
	idx := p.Pos
	for _, sibling := range p.Path {
		if idx&1 == 0 {
			current = branchHash(current, sibling)
		} else {
			current = branchHash(sibling, current)
		}
		idx /= 2
	}

	if Commitment(current) != root {
		return ErrProofInvalid
	}

	return nil
}

// EncodeTo serializes the proof using the canonical encoding.
func (p *MerkleProof) EncodeTo(w *bytes.Buffer) error {
	if err := strict.WriteElement(w, p.Pos); err != nil {
		return err
	}

	return strict.WriteSlice(w, p.Path,
		func(w *bytes.Buffer, h chainhash.Hash) error {
			return strict.WriteElement(w, h)
		},
	)
}

// DecodeFrom deserializes the proof using the canonical encoding.
func (p *MerkleProof) DecodeFrom(r io.Reader) error {
	if err := strict.ReadElement(r, &p.Pos); err != nil {
		return err
	}

	path, err := strict.ReadSlice(r,
		func(r io.Reader) (chainhash.Hash, error) {
			var h chainhash.Hash
			err := strict.ReadElement(r, &h)
			return h, err
		},
	)
	if err != nil {
		return err
	}
	p.Path = path

	return nil
}

// A compile time check to ensure MerkleProof implements the
// strict.Encodable interface.
var _ strict.Encodable = (*MerkleProof)(nil)

package contract

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/zoedberg/lnpbp/strict"
)

// nodeVersion is the current encoding version of all node structures.
const nodeVersion = 0

// writeMeta writes metadata as a var-bytes wrapped canonical tlv stream.
func writeMeta(w *bytes.Buffer, m Metadata) error {
	blob, err := m.Bytes()
	if err != nil {
		return err
	}

	return strict.WriteElement(w, blob)
}

// readMeta reads metadata written by writeMeta.
func readMeta(r io.Reader) (Metadata, error) {
	var blob []byte
	if err := strict.ReadElement(r, &blob); err != nil {
		return nil, err
	}

	return ParseMetadata(blob)
}

// writeAssignments writes a length-prefixed assignment list.
func writeAssignments(w *bytes.Buffer, assignments []Assignment) error {
	return strict.WriteSlice(w, assignments,
		func(w *bytes.Buffer, a Assignment) error {
			return a.EncodeTo(w)
		},
	)
}

// readAssignments reads a length-prefixed assignment list.
func readAssignments(r io.Reader) ([]Assignment, error) {
	return strict.ReadSlice(r, func(r io.Reader) (Assignment, error) {
		var a Assignment
		err := a.DecodeFrom(r)
		return a, err
	})
}

// commitAssignments writes the commitment form of an assignment list, with
// every seal concealed: revealing or concealing a seal never changes a node
// id.
func commitAssignments(w *bytes.Buffer, assignments []Assignment) error {
	return strict.WriteSlice(w, assignments,
		func(w *bytes.Buffer, a Assignment) error {
			return a.commitTo(w)
		},
	)
}

// Genesis instantiates a contract. It has no ancestors; the ContractID of
// the contract it creates is equal in value to its own NodeID.
type Genesis struct {
	// ChainHash binds the contract to a specific chain (the genesis
	// block hash of the network the contract lives on).
	ChainHash chainhash.Hash

	// Metadata carries the contract's typed declaration fields.
	Metadata Metadata

	// Outs are the initial state allocations.
	Outs []Assignment

	// ProcID selects the scripting procedure governing the contract.
	ProcID uint32
}

// A compile time check to ensure Genesis implements the Node interface.
var _ Node = (*Genesis)(nil)

// EncodeTo serializes the genesis using the canonical encoding.
func (g *Genesis) EncodeTo(w *bytes.Buffer) error {
	if err := strict.WriteVersion(w, nodeVersion); err != nil {
		return err
	}
	if err := strict.WriteElement(w, g.ChainHash); err != nil {
		return err
	}
	if err := writeMeta(w, g.Metadata); err != nil {
		return err
	}
	if err := writeAssignments(w, g.Outs); err != nil {
		return err
	}

	return strict.WriteElement(w, g.ProcID)
}

// DecodeFrom deserializes the genesis using the canonical encoding.
func (g *Genesis) DecodeFrom(r io.Reader) error {
	if _, err := strict.ReadVersion(r, nodeVersion); err != nil {
		return err
	}
	if err := strict.ReadElement(r, &g.ChainHash); err != nil {
		return err
	}

	meta, err := readMeta(r)
	if err != nil {
		return err
	}
	g.Metadata = meta

	outs, err := readAssignments(r)
	if err != nil {
		return err
	}
	g.Outs = outs

	return strict.ReadElement(r, &g.ProcID)
}

// commitTo writes the commitment encoding of the genesis: identical to
// EncodeTo except that assignment seals are concealed.
func (g *Genesis) commitTo(w *bytes.Buffer) error {
	if err := strict.WriteVersion(w, nodeVersion); err != nil {
		return err
	}
	if err := strict.WriteElement(w, g.ChainHash); err != nil {
		return err
	}
	if err := writeMeta(w, g.Metadata); err != nil {
		return err
	}
	if err := commitAssignments(w, g.Outs); err != nil {
		return err
	}

	return strict.WriteElement(w, g.ProcID)
}

// NodeID returns the content-addressed identifier of the genesis.
func (g *Genesis) NodeID() NodeID {
	return nodeID(TypeGenesis, g.commitTo)
}

// ContractID returns the identifier of the contract this genesis
// instantiates.
func (g *Genesis) ContractID() ContractID {
	return ContractID(g.NodeID())
}

// Type returns TypeGenesis.
func (g *Genesis) Type() NodeType { return TypeGenesis }

// Parents returns nil: a genesis has no ancestors.
func (g *Genesis) Parents() []PrevOut { return nil }

// Assignments returns the initial state allocations.
func (g *Genesis) Assignments() []Assignment { return g.Outs }

// Meta returns the genesis metadata.
func (g *Genesis) Meta() Metadata { return g.Metadata }

// ProcedureID returns the scripting procedure id.
func (g *Genesis) ProcedureID() uint32 { return g.ProcID }

// Transition consumes one or more ancestor outputs as state inputs and
// allocates new assignments. Each transition is committed to the chain
// through an anchor on its witness transaction.
type Transition struct {
	// Inputs are the ancestor outputs consumed by this transition.
	Inputs []PrevOut

	// Metadata carries the transition's typed fields.
	Metadata Metadata

	// Outs are the new state allocations.
	Outs []Assignment

	// ProcID selects the scripting procedure that must accept this
	// transition.
	ProcID uint32
}

// A compile time check to ensure Transition implements the Node interface.
var _ Node = (*Transition)(nil)

// EncodeTo serializes the transition using the canonical encoding.
func (t *Transition) EncodeTo(w *bytes.Buffer) error {
	if err := strict.WriteVersion(w, nodeVersion); err != nil {
		return err
	}

	err := strict.WriteSlice(w, t.Inputs,
		func(w *bytes.Buffer, p PrevOut) error {
			return p.EncodeTo(w)
		},
	)
	if err != nil {
		return err
	}

	if err := writeMeta(w, t.Metadata); err != nil {
		return err
	}
	if err := writeAssignments(w, t.Outs); err != nil {
		return err
	}

	return strict.WriteElement(w, t.ProcID)
}

// DecodeFrom deserializes the transition using the canonical encoding.
func (t *Transition) DecodeFrom(r io.Reader) error {
	if _, err := strict.ReadVersion(r, nodeVersion); err != nil {
		return err
	}

	inputs, err := strict.ReadSlice(r,
		func(r io.Reader) (PrevOut, error) {
			var p PrevOut
			err := p.DecodeFrom(r)
			return p, err
		},
	)
	if err != nil {
		return err
	}
	t.Inputs = inputs

	meta, err := readMeta(r)
	if err != nil {
		return err
	}
	t.Metadata = meta

	outs, err := readAssignments(r)
	if err != nil {
		return err
	}
	t.Outs = outs

	return strict.ReadElement(r, &t.ProcID)
}

// commitTo writes the commitment encoding of the transition: identical to
// EncodeTo except that assignment seals are concealed.
func (t *Transition) commitTo(w *bytes.Buffer) error {
	if err := strict.WriteVersion(w, nodeVersion); err != nil {
		return err
	}

	err := strict.WriteSlice(w, t.Inputs,
		func(w *bytes.Buffer, p PrevOut) error {
			return p.EncodeTo(w)
		},
	)
	if err != nil {
		return err
	}

	if err := writeMeta(w, t.Metadata); err != nil {
		return err
	}
	if err := commitAssignments(w, t.Outs); err != nil {
		return err
	}

	return strict.WriteElement(w, t.ProcID)
}

// NodeID returns the content-addressed identifier of the transition.
func (t *Transition) NodeID() NodeID {
	return nodeID(TypeTransition, t.commitTo)
}

// Type returns TypeTransition.
func (t *Transition) Type() NodeType { return TypeTransition }

// Parents returns the consumed ancestor outputs.
func (t *Transition) Parents() []PrevOut { return t.Inputs }

// Assignments returns the new state allocations.
func (t *Transition) Assignments() []Assignment { return t.Outs }

// Meta returns the transition metadata.
func (t *Transition) Meta() Metadata { return t.Metadata }

// ProcedureID returns the scripting procedure id.
func (t *Transition) ProcedureID() uint32 { return t.ProcID }

// Extension attaches additional public state to an existing node without
// consuming any seal. It requires no witness transaction: its validity is
// purely structural plus the scripting procedure's acceptance.
type Extension struct {
	// Extends is the node the extension attaches to.
	Extends NodeID

	// Metadata carries the extension's typed fields.
	Metadata Metadata

	// Outs are state allocations added by the extension.
	Outs []Assignment

	// ProcID selects the scripting procedure that must accept this
	// extension.
	ProcID uint32
}

// A compile time check to ensure Extension implements the Node interface.
var _ Node = (*Extension)(nil)

// EncodeTo serializes the extension using the canonical encoding.
func (e *Extension) EncodeTo(w *bytes.Buffer) error {
	if err := strict.WriteVersion(w, nodeVersion); err != nil {
		return err
	}
	if err := strict.WriteElement(w, &e.Extends); err != nil {
		return err
	}
	if err := writeMeta(w, e.Metadata); err != nil {
		return err
	}
	if err := writeAssignments(w, e.Outs); err != nil {
		return err
	}

	return strict.WriteElement(w, e.ProcID)
}

// DecodeFrom deserializes the extension using the canonical encoding.
func (e *Extension) DecodeFrom(r io.Reader) error {
	if _, err := strict.ReadVersion(r, nodeVersion); err != nil {
		return err
	}
	if err := strict.ReadElement(r, &e.Extends); err != nil {
		return err
	}

	meta, err := readMeta(r)
	if err != nil {
		return err
	}
	e.Metadata = meta

	outs, err := readAssignments(r)
	if err != nil {
		return err
	}
	e.Outs = outs

	return strict.ReadElement(r, &e.ProcID)
}

// commitTo writes the commitment encoding of the extension: identical to
// EncodeTo except that assignment seals are concealed.
func (e *Extension) commitTo(w *bytes.Buffer) error {
	if err := strict.WriteVersion(w, nodeVersion); err != nil {
		return err
	}
	if err := strict.WriteElement(w, &e.Extends); err != nil {
		return err
	}
	if err := writeMeta(w, e.Metadata); err != nil {
		return err
	}
	if err := commitAssignments(w, e.Outs); err != nil {
		return err
	}

	return strict.WriteElement(w, e.ProcID)
}

// NodeID returns the content-addressed identifier of the extension.
func (e *Extension) NodeID() NodeID {
	return nodeID(TypeExtension, e.commitTo)
}

// Type returns TypeExtension.
func (e *Extension) Type() NodeType { return TypeExtension }

// Parents returns nil: extensions consume no seals.
func (e *Extension) Parents() []PrevOut { return nil }

// Assignments returns the state allocations added by the extension.
func (e *Extension) Assignments() []Assignment { return e.Outs }

// Meta returns the extension metadata.
func (e *Extension) Meta() Metadata { return e.Metadata }

// ProcedureID returns the scripting procedure id.
func (e *Extension) ProcedureID() uint32 { return e.ProcID }

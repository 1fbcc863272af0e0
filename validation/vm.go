package validation

import (
	"context"
	"fmt"

	"github.com/zoedberg/lnpbp/contract"
)

// NodeData is the typed, canonically encoded view of a node handed to the
// scripting collaborator: the state consumed, the state produced, and the
// node's metadata. The validator forwards exactly this data and nothing
// else.
type NodeData struct {
	// NodeID identifies the node under evaluation.
	NodeID contract.NodeID

	// Type is the node kind.
	Type contract.NodeType

	// Inputs are the ancestor assignments consumed by the node, in
	// input declaration order. Empty for genesis and extension nodes.
	Inputs []contract.Assignment

	// Outputs are the assignments produced by the node.
	Outputs []contract.Assignment

	// Metadata is the node's typed metadata.
	Metadata contract.Metadata
}

// Evaluator is the capability interface of the pluggable contract-scripting
// virtual machine. Concrete procedure sets are selected by the explicit
// procedure identifier carried in the node data; the validator has no
// knowledge of VM internals.
//
// A nil return accepts the node. A *RejectError return rejects it: the
// contract is invalid. Any other error is a collaborator malfunction and
// leaves validity undetermined; the validator never conflates the two.
type Evaluator interface {
	// Evaluate runs the procedure identified by procedureID over the
	// node's typed data.
	Evaluate(ctx context.Context, procedureID uint32,
		data *NodeData) error
}

// RejectError is returned by an Evaluator to reject a node: the declared
// state change violates the contract's rules.
type RejectError struct {
	// Reason describes the violated rule.
	Reason string
}

// Error returns a human readable description of the rejection.
func (e *RejectError) Error() string {
	return fmt.Sprintf("state transition rejected: %s", e.Reason)
}

// Reject is a convenience constructor for RejectError.
func Reject(format string, args ...interface{}) *RejectError {
	return &RejectError{Reason: fmt.Sprintf(format, args...)}
}

// AcceptAll is an Evaluator that accepts every node. It serves contracts
// whose validity is purely structural, and tests.
type AcceptAll struct{}

// Evaluate accepts unconditionally.
//
// NOTE: Part of the Evaluator interface.
func (AcceptAll) Evaluate(context.Context, uint32, *NodeData) error {
	return nil
}

// A compile time check to ensure AcceptAll implements the Evaluator
// interface.
var _ Evaluator = (*AcceptAll)(nil)

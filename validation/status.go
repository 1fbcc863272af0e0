package validation

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/zoedberg/lnpbp/contract"
)

// NodeState tracks a node through the validator's state machine.
type NodeState uint8

const (
	// StatePending means the node has not been visited yet, or its
	// ancestors did not all reach StateChecked.
	StatePending NodeState = iota

	// StateResolving means chain-resolver queries for the node's closing
	// witness are in flight.
	StateResolving

	// StateChecked means seal closure, commitment and state-transition
	// rules all verified. Terminal.
	StateChecked

	// StateFailed means a check failed with a recorded reason. Terminal:
	// the contract can never become valid.
	StateFailed

	// StateUnresolved means chain data was not available for this run.
	// Terminal for the run, but a later re-validation may succeed.
	StateUnresolved
)

// String returns a human readable state name.
func (s NodeState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolving:
		return "resolving"
	case StateChecked:
		return "checked"
	case StateFailed:
		return "failed"
	case StateUnresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// Validity is the terminal verdict of a validation run.
type Validity uint8

const (
	// Invalid means at least one node failed. A contract can never
	// become valid again once any node fails.
	Invalid Validity = iota

	// Indeterminate means no node failed but at least one could not be
	// resolved; re-validation may later yield Valid.
	Indeterminate

	// Valid means every reachable node reached StateChecked.
	Valid
)

// String returns a human readable verdict name.
func (v Validity) String() string {
	switch v {
	case Invalid:
		return "invalid"
	case Indeterminate:
		return "indeterminate"
	case Valid:
		return "valid"
	default:
		return "unknown"
	}
}

// Failure records why a specific node failed validation.
type Failure struct {
	// NodeID is the node the failure is attributed to.
	NodeID contract.NodeID

	// Err is the reason.
	Err error
}

// String returns a human readable failure description.
func (f Failure) String() string {
	return fmt.Sprintf("node %v: %v", f.NodeID, f.Err)
}

// Status accumulates the outcome of one validation run. It is created
// empty, mutated only by the validator while the run executes, and
// immutable once the run completes. Node-level failures are collected
// rather than aborting the traversal, so the exact point at which a
// history breaks stays visible alongside every other node's result.
type Status struct {
	contractID contract.ContractID

	states map[contract.NodeID]NodeState

	failures []Failure
	warnings []Failure

	unresolvedTxids map[chainhash.Hash]struct{}
}

func newStatus(contractID contract.ContractID) *Status {
	return &Status{
		contractID:      contractID,
		states:          make(map[contract.NodeID]NodeState),
		unresolvedTxids: make(map[chainhash.Hash]struct{}),
	}
}

// ContractID returns the contract the run validated.
func (s *Status) ContractID() contract.ContractID {
	return s.contractID
}

// NodeState returns the state a node ended the run in.
func (s *Status) NodeState(id contract.NodeID) NodeState {
	return s.states[id]
}

// Failures returns all recorded failures.
func (s *Status) Failures() []Failure {
	return s.failures
}

// Warnings returns all recorded non-fatal warnings.
func (s *Status) Warnings() []Failure {
	return s.warnings
}

// UnresolvedTxids returns the witness transactions that could not be
// resolved during the run.
func (s *Status) UnresolvedTxids() []chainhash.Hash {
	txids := make([]chainhash.Hash, 0, len(s.unresolvedTxids))
	for txid := range s.unresolvedTxids {
		txids = append(txids, txid)
	}

	return txids
}

// Validity derives the terminal verdict: Invalid if any node failed,
// Valid only if every node reached StateChecked, Indeterminate otherwise.
// No ambiguity ever resolves toward Valid.
func (s *Status) Validity() Validity {
	if len(s.failures) > 0 {
		return Invalid
	}

	for _, state := range s.states {
		if state != StateChecked {
			return Indeterminate
		}
	}

	return Valid
}

func (s *Status) setState(id contract.NodeID, state NodeState) {
	s.states[id] = state
}

func (s *Status) fail(id contract.NodeID, err error) {
	s.states[id] = StateFailed
	s.failures = append(s.failures, Failure{NodeID: id, Err: err})
}

func (s *Status) warn(id contract.NodeID, err error) {
	s.warnings = append(s.warnings, Failure{NodeID: id, Err: err})
}

func (s *Status) unresolved(id contract.NodeID, txid *chainhash.Hash) {
	s.states[id] = StateUnresolved
	if txid != nil {
		s.unresolvedTxids[*txid] = struct{}{}
	}
}

// Package validation implements full client-side validation of a contract
// history: a deterministic state machine over the contract graph that
// resolves each node's closing witness through the chain-resolver, verifies
// commitments and anchors, checks seal closures, consults the pluggable
// scripting collaborator, and aggregates a per-node verdict.
package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/zoedberg/lnpbp/anchor"
	"github.com/zoedberg/lnpbp/chain"
	"github.com/zoedberg/lnpbp/contract"
	"github.com/zoedberg/lnpbp/seal"
)

const (
	// DefaultResolveTimeout is the default per-query budget for
	// chain-resolver calls.
	DefaultResolveTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of additional attempts
	// made after a transient resolver failure.
	DefaultMaxRetries = 2

	// DefaultRetryBackoff is the default delay between resolver
	// attempts.
	DefaultRetryBackoff = time.Second

	// DefaultMaxConcurrentRuns bounds how many independent contract
	// graphs ValidateAll checks in parallel.
	DefaultMaxConcurrentRuns = 4
)

var (
	// ErrMissingAnchor is returned when a transition has no anchor
	// binding it to a witness transaction: without one, no commitment
	// can be verified and the transition cannot be accepted.
	ErrMissingAnchor = errors.New("transition has no anchor")
)

// Config parameterizes a Validator. The zero value is not usable: a
// Resolver is required.
type Config struct {
	// Resolver supplies confirmed chain data. To share lookups across
	// runs, pass a chain.CachedResolver here.
	Resolver chain.Resolver

	// VM is the scripting collaborator consulted for every node. If
	// nil, every node is accepted (AcceptAll).
	VM Evaluator

	// Clock provides time for retry backoff. If nil, the system clock
	// is used.
	Clock clock.Clock

	// ResolveTimeout is the cancellation budget for a single resolver
	// query. Timeout is treated exactly like a transient resolver
	// failure.
	ResolveTimeout time.Duration

	// MaxRetries is how many times a transient resolver failure is
	// retried before the node is marked unresolved.
	MaxRetries int

	// RetryBackoff is the delay between resolver attempts.
	RetryBackoff time.Duration

	// MaxConcurrentRuns bounds the parallelism of ValidateAll.
	MaxConcurrentRuns int
}

// Validator drives client-side validation runs. It is stateless between
// runs and safe for concurrent use; each run owns its Status exclusively.
type Validator struct {
	cfg Config
}

// New creates a Validator, filling in defaults for unset config fields.
func New(cfg Config) (*Validator, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("validation: resolver is required")
	}
	if cfg.VM == nil {
		cfg.VM = AcceptAll{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.ResolveTimeout == 0 {
		cfg.ResolveTimeout = DefaultResolveTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.MaxConcurrentRuns == 0 {
		cfg.MaxConcurrentRuns = DefaultMaxConcurrentRuns
	}

	return &Validator{cfg: cfg}, nil
}

// Validate runs full client-side validation over the contract graph. The
// anchors map binds each transition to its witness transaction. The
// traversal order is fixed (ancestors before descendants, ties broken by
// node id), so two validators given the same graph and chain data reach
// the same per-node states.
//
// The returned Status is owned by the caller and immutable.
func (v *Validator) Validate(ctx context.Context, graph *contract.Graph,
	anchors map[contract.NodeID]*anchor.Anchor) *Status {

	status := newStatus(graph.ContractID())

	log.Debugf("Validating contract %v (%d nodes)", graph.ContractID(),
		graph.NumNodes())

	for _, id := range graph.TopoOrder() {
		status.setState(id, StatePending)
	}

	for _, id := range graph.TopoOrder() {
		// A node enters Resolving only once every dependency is
		// Checked; otherwise it stays Pending for this run and the
		// verdict can at best be Indeterminate.
		ready := true
		for _, dep := range graph.Dependencies(id) {
			if status.NodeState(dep) != StateChecked {
				ready = false
				break
			}
		}
		if !ready {
			log.Debugf("Node %v blocked on non-checked ancestor",
				id)
			continue
		}

		status.setState(id, StateResolving)
		v.checkNode(ctx, graph, anchors, id, status)
	}

	log.Infof("Contract %v validation verdict: %v", graph.ContractID(),
		status.Validity())
	log.Tracef("Validation status: %v", newLogClosure(func() string {
		return spewStatus(status)
	}))

	return status
}

// checkNode performs the per-node checks of the Resolving state and moves
// the node to Checked, Failed or Unresolved.
func (v *Validator) checkNode(ctx context.Context, graph *contract.Graph,
	anchors map[contract.NodeID]*anchor.Anchor, id contract.NodeID,
	status *Status) {

	node, err := graph.Node(id)
	if err != nil {
		status.fail(id, err)
		return
	}

	var (
		inputs    []contract.Assignment
		witnessTx *btcutil.Tx
	)

	// Transitions are the only nodes that close seals and therefore the
	// only ones needing chain data.
	if node.Type() == contract.TypeTransition {
		nodeAnchor, ok := anchors[id]
		if !ok {
			status.fail(id, ErrMissingAnchor)
			return
		}

		witnessTx, err = v.fetchTx(ctx, nodeAnchor.Txid)
		if err != nil {
			log.Debugf("Witness %v for node %v unresolved: %v",
				nodeAnchor.Txid, id, err)
			status.unresolved(id, &nodeAnchor.Txid)
			return
		}

		// The anchor must commit exactly this node for this
		// contract.
		err = nodeAnchor.Verify(
			graph.ContractID(), anchor.Commitment(id), witnessTx,
		)
		if err != nil {
			status.fail(id, err)
			return
		}

		inputs, err = v.checkClosures(ctx, graph, node, witnessTx,
			id, status)
		if err != nil {
			// checkClosures already recorded the outcome.
			return
		}
	}

	// Finally, the declared state change must be accepted by the
	// scripting collaborator. A rejection is contract invalidity; any
	// other error is collaborator malfunction, which leaves validity
	// undetermined rather than failed.
	data := &NodeData{
		NodeID:   id,
		Type:     node.Type(),
		Inputs:   inputs,
		Outputs:  node.Assignments(),
		Metadata: node.Meta(),
	}

	err = v.cfg.VM.Evaluate(ctx, node.ProcedureID(), data)
	var reject *RejectError
	switch {
	case errors.As(err, &reject):
		status.fail(id, err)
		return

	case err != nil:
		log.Warnf("VM malfunction on node %v: %v", id, err)
		status.warn(id, fmt.Errorf("vm malfunction: %w", err))
		status.unresolved(id, nil)
		return
	}

	status.setState(id, StateChecked)
}

// checkClosures verifies that the witness transaction closes every input
// seal of the transition, returning the consumed assignments. On any
// negative outcome the node state is recorded and a non-nil error returned.
func (v *Validator) checkClosures(ctx context.Context,
	graph *contract.Graph, node contract.Node, witnessTx *btcutil.Tx,
	id contract.NodeID, status *Status) ([]contract.Assignment, error) {

	var inputs []contract.Assignment
	for _, prevOut := range node.Parents() {
		ancestorNode, err := graph.Node(prevOut.Node)
		if err != nil {
			status.fail(id, err)
			return nil, err
		}

		assignment := ancestorNode.Assignments()[prevOut.Index]

		// A consumed seal must travel revealed: closure of a
		// concealed seal can never be verified, so the history is
		// invalid as presented.
		def, err := assignment.Seal.Definition()
		if err != nil {
			status.fail(id, err)
			return nil, err
		}

		closureCtx, cancel := context.WithTimeout(
			ctx, v.cfg.ResolveTimeout,
		)
		_, err = seal.VerifyClosure(
			closureCtx, v.cfg.Resolver, &def, witnessTx,
		)
		cancel()

		switch {
		case errors.Is(err, seal.ErrSealUnresolved):
			status.unresolved(id, witnessTx.Hash())
			return nil, err

		case err != nil:
			status.fail(id, err)
			return nil, err
		}

		inputs = append(inputs, assignment)
	}

	return inputs, nil
}

// fetchTx fetches a confirmed transaction with the configured per-call
// timeout, retrying transient failures with backoff. Exhausted retries and
// not-found both surface as errors that leave the node unresolved.
func (v *Validator) fetchTx(ctx context.Context,
	txid chainhash.Hash) (*btcutil.Tx, error) {

	var lastErr error
	for attempt := 0; attempt <= v.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-v.cfg.Clock.TickAfter(v.cfg.RetryBackoff):
			}
		}

		fetchCtx, cancel := context.WithTimeout(
			ctx, v.cfg.ResolveTimeout,
		)
		tx, err := v.cfg.Resolver.FetchTx(fetchCtx, txid)
		cancel()

		switch {
		case err == nil:
			return tx, nil

		// Timeout behaves exactly like a transient backend failure.
		case errors.Is(err, chain.ErrTransient),
			errors.Is(err, context.DeadlineExceeded):

			log.Debugf("Transient failure fetching %v "+
				"(attempt %d): %v", txid, attempt+1, err)
			lastErr = err

		default:
			return nil, err
		}
	}

	return nil, lastErr
}

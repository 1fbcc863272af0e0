package validation

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/zoedberg/lnpbp/anchor"
	"github.com/zoedberg/lnpbp/contract"
)

// Request bundles one contract's graph with the anchors binding its
// transitions to witness transactions.
type Request struct {
	// Graph is the fully constructed contract history.
	Graph *contract.Graph

	// Anchors maps each transition node to its anchor.
	Anchors map[contract.NodeID]*anchor.Anchor
}

// ValidateAll validates independent contract graphs concurrently. Graphs
// and their nodes are immutable once constructed and every run owns its
// Status exclusively, so runs share nothing but the resolver (and its
// cache, when one is configured). Parallelism is bounded by
// Config.MaxConcurrentRuns. The only error returned is context
// cancellation; per-contract outcomes are in the returned map.
func (v *Validator) ValidateAll(ctx context.Context,
	requests []*Request) (map[contract.ContractID]*Status, error) {

	results := make([]*Status, len(requests))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(v.cfg.MaxConcurrentRuns)

	for i, req := range requests {
		i, req := i, req

		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			results[i] = v.Validate(
				groupCtx, req.Graph, req.Anchors,
			)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	statuses := make(map[contract.ContractID]*Status, len(results))
	for _, status := range results {
		statuses[status.ContractID()] = status
	}

	return statuses, nil
}

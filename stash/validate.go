package stash

import (
	"context"

	"github.com/zoedberg/lnpbp/validation"
)

// Validate materializes the consignment into a graph and runs full
// client-side validation over it. Materialization errors (disconnected
// nodes, structural double-spends) are returned directly since no Status
// can be produced for a history that does not even form a graph.
func (c *Consignment) Validate(ctx context.Context,
	v *validation.Validator) (*validation.Status, error) {

	graph, err := c.Graph()
	if err != nil {
		return nil, err
	}

	return v.Validate(ctx, graph, c.Anchors()), nil
}

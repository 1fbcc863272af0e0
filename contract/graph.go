package contract

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownAncestor is returned when a node references an ancestor
	// that is not present in the graph.
	ErrUnknownAncestor = errors.New("referenced ancestor not in graph")

	// ErrSealAlreadyReferenced is returned when an ancestor output is
	// claimed as input by more than one node: a structural double-spend
	// detected locally, before any chain I/O.
	ErrSealAlreadyReferenced = errors.New(
		"ancestor output already referenced by another node")

	// ErrNodeNotFound is returned when a NodeID is not present in the
	// graph.
	ErrNodeNotFound = errors.New("node not found in graph")
)

// Graph is the content-addressed history of a single contract. It owns all
// nodes reachable from its ContractID and performs no chain I/O: it is a
// pure data structure, so the same contract history always produces the
// same set of identifiers regardless of who constructs it. Cross references
// between nodes are hash-derived keys into the graph's index, never direct
// in-memory references.
//
// A Graph is not safe for concurrent mutation; once fully constructed it is
// immutable and may be shared freely across concurrent validations.
type Graph struct {
	contractID ContractID

	nodes map[NodeID]Node

	// spenders records which node claimed each ancestor output,
	// enforcing the structural single-spend rule at append time.
	spenders map[PrevOut]NodeID

	// deps records the dependency edges used for topological ordering:
	// for every node, the set of nodes that must validate before it.
	deps map[NodeID][]NodeID
}

// NewGraph creates a graph rooted at the passed genesis.
func NewGraph(genesis *Genesis) *Graph {
	g := &Graph{
		contractID: genesis.ContractID(),
		nodes:      make(map[NodeID]Node),
		spenders:   make(map[PrevOut]NodeID),
		deps:       make(map[NodeID][]NodeID),
	}

	genesisID := genesis.NodeID()
	g.nodes[genesisID] = genesis
	g.deps[genesisID] = nil

	return g
}

// ContractID returns the identifier of the contract this graph describes.
func (g *Graph) ContractID() ContractID {
	return g.contractID
}

// GenesisID returns the NodeID of the contract's genesis node.
func (g *Graph) GenesisID() NodeID {
	return NodeID(g.contractID)
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) (Node, error) {
	node, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, id)
	}

	return node, nil
}

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// Append adds a node to the graph, returning its content-addressed id.
// Appending the same node twice is a no-op thanks to content addressing.
// The call fails with ErrUnknownAncestor if any referenced ancestor (or the
// referenced output index) does not exist, and with ErrSealAlreadyReferenced
// if an ancestor output is already claimed by a different node. Both checks
// are local and cheap: obviously invalid histories are rejected before any
// chain data is ever consulted.
func (g *Graph) Append(node Node) (NodeID, error) {
	id := node.NodeID()
	if _, ok := g.nodes[id]; ok {
		return id, nil
	}

	var depIDs []NodeID
	switch n := node.(type) {
	case *Genesis:
		return NodeID{}, fmt.Errorf("graph already rooted at %v",
			g.contractID)

	case *Transition:
		if len(n.Inputs) == 0 {
			return NodeID{}, fmt.Errorf("%w: transition has no "+
				"inputs", ErrUnknownAncestor)
		}

		seen := make(map[PrevOut]struct{}, len(n.Inputs))
		for _, prevOut := range n.Inputs {
			// A node listing the same ancestor output twice would
			// consume its state twice; catch it before the
			// cross-node spender check, which only sees other
			// nodes' claims.
			if _, ok := seen[prevOut]; ok {
				return NodeID{}, fmt.Errorf("%w: output %d of "+
					"%v referenced twice by the same node",
					ErrSealAlreadyReferenced, prevOut.Index,
					prevOut.Node)
			}
			seen[prevOut] = struct{}{}

			ancestor, ok := g.nodes[prevOut.Node]
			if !ok {
				return NodeID{}, fmt.Errorf("%w: %v",
					ErrUnknownAncestor, prevOut.Node)
			}
			if int(prevOut.Index) >= len(ancestor.Assignments()) {
				return NodeID{}, fmt.Errorf("%w: %v has no "+
					"output %d", ErrUnknownAncestor,
					prevOut.Node, prevOut.Index)
			}

			if spender, ok := g.spenders[prevOut]; ok {
				return NodeID{}, fmt.Errorf("%w: output %d "+
					"of %v already spent by %v",
					ErrSealAlreadyReferenced,
					prevOut.Index, prevOut.Node, spender)
			}

			depIDs = append(depIDs, prevOut.Node)
		}

		// All inputs check out: claim them atomically.
		for _, prevOut := range n.Inputs {
			g.spenders[prevOut] = id
		}

	case *Extension:
		if _, ok := g.nodes[n.Extends]; !ok {
			return NodeID{}, fmt.Errorf("%w: %v",
				ErrUnknownAncestor, n.Extends)
		}
		depIDs = append(depIDs, n.Extends)

	default:
		return NodeID{}, fmt.Errorf("unknown node type %T", node)
	}

	g.nodes[id] = node
	g.deps[id] = depIDs

	return id, nil
}

// Dependencies returns the ids of the nodes that must validate before the
// given node: consumed ancestors for transitions, the extended node for
// extensions, nothing for the genesis.
func (g *Graph) Dependencies(id NodeID) []NodeID {
	return g.deps[id]
}

// Ancestors returns the ids of the ancestor nodes whose outputs the given
// node consumes. The result is empty for Genesis and Extension nodes.
func (g *Graph) Ancestors(id NodeID) ([]NodeID, error) {
	node, err := g.Node(id)
	if err != nil {
		return nil, err
	}

	seen := make(map[NodeID]struct{})
	var ancestors []NodeID
	for _, prevOut := range node.Parents() {
		if _, ok := seen[prevOut.Node]; ok {
			continue
		}
		seen[prevOut.Node] = struct{}{}
		ancestors = append(ancestors, prevOut.Node)
	}

	return ancestors, nil
}

// TopoOrder returns every node id in a deterministic topological order:
// dependencies always precede dependents, and ties are broken by ascending
// NodeID byte order so two holders of the same history traverse it
// identically.
func (g *Graph) TopoOrder() []NodeID {
	indegree := make(map[NodeID]int, len(g.nodes))
	children := make(map[NodeID][]NodeID, len(g.nodes))

	for id, deps := range g.deps {
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
		}
		seen := make(map[NodeID]struct{})
		for _, dep := range deps {
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			indegree[id]++
			children[dep] = append(children[dep], id)
		}
	}

	ready := make([]NodeID, 0, len(g.nodes))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sortIDs(ready)

	order := make([]NodeID, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var unlocked []NodeID
		for _, child := range children[id] {
			indegree[child]--
			if indegree[child] == 0 {
				unlocked = append(unlocked, child)
			}
		}
		sortIDs(unlocked)
		ready = mergeSorted(ready, unlocked)
	}

	return order
}

func sortIDs(ids []NodeID) {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
}

// mergeSorted merges two NodeID slices that are each already sorted.
func mergeSorted(a, b []NodeID) []NodeID {
	merged := make([]NodeID, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if bytes.Compare(a[i][:], b[j][:]) < 0 {
			merged = append(merged, a[i])
			i++
		} else {
			merged = append(merged, b[j])
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)

	return merged
}

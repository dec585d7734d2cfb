package graph

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// NodeID identifies a node within one network's scope. Flattening prefixes
// inner IDs with their composition path, so IDs stay unique in the flat
// result without being globally unique in the source document.
type NodeID string

// NewNodeID returns a fresh random node ID for editor use. Deterministic IDs
// (and the identity stability that depends on them) come from the document,
// not from this helper.
func NewNodeID() NodeID {
	return NodeID(uuid.NewString())
}

// Node is one entry of a NodeNetwork. Exactly one of Op or Network must be
// set: Op names a primitive implementation in the host registry, Network
// embeds a sub-network (a composition node).
type Node struct {
	// Op is the primitive operation name, e.g. "math/add".
	Op string `json:"op,omitempty" yaml:"op,omitempty"`
	// Network is the embedded sub-network of a composition node.
	Network *NodeNetwork `json:"network,omitempty" yaml:"network,omitempty"`
	// Inputs is the ordered input list.
	Inputs []Input `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// IsComposition reports whether the node embeds a sub-network.
func (n *Node) IsComposition() bool {
	return n.Network != nil
}

// Validate checks node-local integrity.
func (n *Node) Validate() error {
	if n.Op == "" && n.Network == nil {
		return ErrNoImplementation
	}
	if n.Op != "" && n.Network != nil {
		return ErrAmbiguousImplementation
	}
	return nil
}

// NodeNetwork is the user-facing dataflow graph: a mapping from node IDs to
// nodes plus the network's interface boundary (declared parameter count and
// declared outputs).
type NodeNetwork struct {
	// Parameters is the number of declared input parameters. Inner networks
	// receive these from their composition node's inputs.
	Parameters int `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	// Nodes maps IDs to nodes.
	Nodes map[NodeID]*Node `json:"nodes" yaml:"nodes"`
	// Outputs is the ordered list of declared outputs, each referencing a
	// node. References to a composition node resolve to the first entry.
	Outputs []NodeID `json:"outputs" yaml:"outputs"`
}

// New returns an empty network with no parameters.
func New() *NodeNetwork {
	return &NodeNetwork{Nodes: make(map[NodeID]*Node)}
}

// AddNode registers a node under the given ID.
func (nw *NodeNetwork) AddNode(id NodeID, n *Node) error {
	if n == nil {
		return ErrNilNode
	}
	if id == "" {
		return ErrEmptyNodeID
	}
	if err := n.Validate(); err != nil {
		return fmt.Errorf("node %q: %w", id, err)
	}
	if nw.Nodes == nil {
		nw.Nodes = make(map[NodeID]*Node)
	}
	if _, exists := nw.Nodes[id]; exists {
		return fmt.Errorf("node %q: %w", id, ErrDuplicateNode)
	}
	nw.Nodes[id] = n
	return nil
}

// Validate checks structural integrity: every node is well formed, every
// reference resolves to an existing node or declared parameter, every
// declared output resolves, and no network embeds itself. Reference cycles
// are detected later, during compilation, where a node path is available for
// the error.
func (nw *NodeNetwork) Validate() error {
	return nw.validate([]*NodeNetwork{nw})
}

// validate carries the stack of enclosing networks so a composition that
// embeds an ancestor fails instead of recursing forever.
func (nw *NodeNetwork) validate(enclosing []*NodeNetwork) error {
	if len(nw.Outputs) == 0 {
		return ErrNoOutputs
	}
	for _, out := range nw.Outputs {
		if _, ok := nw.Nodes[out]; !ok {
			return fmt.Errorf("output %q: %w", out, ErrDanglingOutput)
		}
	}
	for id, n := range nw.Nodes {
		if n == nil {
			return fmt.Errorf("node %q: %w", id, ErrNilNode)
		}
		if err := n.Validate(); err != nil {
			return fmt.Errorf("node %q: %w", id, err)
		}
		for i, in := range n.Inputs {
			switch in.Kind {
			case InputNode:
				if _, ok := nw.Nodes[in.Node]; !ok {
					return fmt.Errorf("node %q input %d references %q: %w", id, i, in.Node, ErrDanglingReference)
				}
			case InputParameter:
				if in.Parameter < 0 || in.Parameter >= nw.Parameters {
					return fmt.Errorf("node %q input %d parameter %d: %w", id, i, in.Parameter, ErrParameterOutOfRange)
				}
			}
		}
		// Embedded networks validate recursively so editor mistakes surface
		// before flattening.
		if n.IsComposition() {
			if slices.Contains(enclosing, n.Network) {
				return fmt.Errorf("node %q: %w", id, ErrCompositionCycle)
			}
			if err := n.Network.validate(append(enclosing, n.Network)); err != nil {
				return fmt.Errorf("node %q: %w", id, err)
			}
		}
	}
	return nil
}

// SortedNodeIDs returns node IDs in lexicographic order for deterministic
// iteration. Declaration order is not recoverable from a map, so every pass
// that needs a stable order uses this.
func (nw *NodeNetwork) SortedNodeIDs() []NodeID {
	ids := make([]NodeID, 0, len(nw.Nodes))
	for id := range nw.Nodes {
		ids = append(ids, id)
	}
	// Plain byte order: IDs are opaque strings, not display text.
	slices.Sort(ids)
	return ids
}

// Package flatten eliminates composition nodes by inlining their embedded
// networks into the parent namespace, producing a single-level, behaviorally
// equivalent NodeNetwork.
//
// The pass runs an explicit worklist to a fixpoint instead of recursing, so
// arbitrarily deep nesting cannot overflow the stack. Composition cycles
// (a network embedding itself, directly or transitively) are detected with a
// per-entry path stack rather than a plain visited set: legitimate
// non-recursive reuse of the same sub-network in several places stays legal.
//
// Inner node IDs are disambiguated deterministically by prefixing the
// composition path ("outer/inner"), never randomly, so an unchanged
// sub-graph keeps identical IDs - and therefore identical stable identities -
// across recompiles.
//
// Unreachable inner nodes are NOT special-cased here; the compiler's
// dead-code pass drops them. That keeps this pass total and simple.
package flatten

import (
	"fmt"
	"strings"

	"github.com/protograph/protograph/internal/graph"
)

// Error codes for structural failures during flattening.
const (
	// ErrCodeCompositionCycle indicates a network embeds itself.
	ErrCodeCompositionCycle = "COMPOSITION_CYCLE"
	// ErrCodeMissingInput indicates a composition node supplies fewer inputs
	// than its embedded network declares.
	ErrCodeMissingInput = "MISSING_COMPOSITION_INPUT"
	// ErrCodeNoInnerOutput indicates an embedded network declares no output
	// to redirect the composition node's consumers to.
	ErrCodeNoInnerOutput = "NO_INNER_OUTPUT"
)

// StructureError reports a structural failure detected during flattening.
type StructureError struct {
	Code string
	// Path is the composition path down to the offending node. For cycles it
	// is the cyclic chain itself.
	Path    []string
	Message string
}

// Error implements the error interface.
func (e *StructureError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %s (path %s)", e.Code, e.Message, strings.Join(e.Path, " -> "))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// pending is one composition node awaiting inlining, together with the chain
// of embedded networks that produced it.
type pending struct {
	id   graph.NodeID
	node *graph.Node
	// path holds the networks currently being inlined above this entry,
	// outermost first, starting with the root. Pointer identity detects
	// recursion.
	path []*graph.NodeNetwork
	// pathIDs holds the composition node IDs of the ancestors, aligned with
	// path[1:] (the root network has no composition node).
	pathIDs []string
}

// fullPath is the composition path down to and including the entry itself.
func (p pending) fullPath() []string {
	return append(append([]string(nil), p.pathIDs...), string(p.id))
}

// Flatten inlines every composition node of nw and returns a new,
// single-level network. nw itself is never mutated.
func Flatten(nw *graph.NodeNetwork) (*graph.NodeNetwork, error) {
	flat := graph.New()
	flat.Parameters = nw.Parameters
	flat.Outputs = append([]graph.NodeID(nil), nw.Outputs...)

	// aliases maps each inlined composition node ID to the flat ID of its
	// embedded network's declared output. Chains arise when that output is
	// itself a composition node; they are resolved at the end.
	aliases := make(map[graph.NodeID]graph.NodeID)

	var worklist []pending
	for _, id := range nw.SortedNodeIDs() {
		n := nw.Nodes[id]
		if n.IsComposition() {
			worklist = append(worklist, pending{id: id, node: n, path: []*graph.NodeNetwork{nw}})
			continue
		}
		flat.Nodes[id] = copyNode(n)
	}

	for len(worklist) > 0 {
		item := worklist[0]
		worklist = worklist[1:]

		inner := item.node.Network
		for i, seen := range item.path {
			if seen == inner {
				// path[i] was entered by composition node pathIDs[i-1]; for
				// i == 0 the cycle spans the whole chain from the root.
				var cycle []string
				if i == 0 {
					cycle = item.fullPath()
				} else {
					cycle = append(append([]string(nil), item.pathIDs[i-1:]...), string(item.id))
				}
				return nil, &StructureError{
					Code:    ErrCodeCompositionCycle,
					Path:    cycle,
					Message: "network embeds itself",
				}
			}
		}

		if len(inner.Outputs) == 0 {
			return nil, &StructureError{
				Code:    ErrCodeNoInnerOutput,
				Path:    item.fullPath(),
				Message: fmt.Sprintf("composition node %q embeds a network with no declared output", item.id),
			}
		}

		prefix := item.id + "/"
		for _, innerID := range inner.SortedNodeIDs() {
			innerNode := inner.Nodes[innerID]
			flatID := prefix + innerID

			rewritten := copyNode(innerNode)
			for i, in := range rewritten.Inputs {
				switch in.Kind {
				case graph.InputNode:
					rewritten.Inputs[i].Node = prefix + in.Node
				case graph.InputParameter:
					if in.Parameter >= len(item.node.Inputs) {
						return nil, &StructureError{
							Code:    ErrCodeMissingInput,
							Path:    item.fullPath(),
							Message: fmt.Sprintf("composition node %q supplies %d inputs but %q references parameter %d", item.id, len(item.node.Inputs), innerID, in.Parameter),
						}
					}
					// Substitute the expression the composition node supplies
					// for this parameter. It is already in flat namespace.
					rewritten.Inputs[i] = item.node.Inputs[in.Parameter]
				}
			}

			if rewritten.IsComposition() {
				worklist = append(worklist, pending{
					id:      flatID,
					node:    rewritten,
					path:    append(append([]*graph.NodeNetwork(nil), item.path...), inner),
					pathIDs: append(append([]string(nil), item.pathIDs...), string(item.id)),
				})
				continue
			}
			flat.Nodes[flatID] = rewritten
		}

		// Anything that referenced the composition node now resolves to the
		// embedded network's first declared output.
		aliases[item.id] = prefix + inner.Outputs[0]
	}

	resolveAliases(flat, aliases)
	return flat, nil
}

// resolveAliases rewrites node references and declared outputs through alias
// chains until they land on a real flat node.
func resolveAliases(flat *graph.NodeNetwork, aliases map[graph.NodeID]graph.NodeID) {
	resolve := func(id graph.NodeID) graph.NodeID {
		for {
			next, ok := aliases[id]
			if !ok {
				return id
			}
			id = next
		}
	}

	for _, n := range flat.Nodes {
		for i, in := range n.Inputs {
			if in.Kind == graph.InputNode {
				n.Inputs[i].Node = resolve(in.Node)
			}
		}
	}
	for i, out := range flat.Outputs {
		flat.Outputs[i] = resolve(out)
	}
}

// copyNode returns a shallow node copy with its own input slice. Embedded
// network pointers are shared; they are treated as immutable.
func copyNode(n *graph.Node) *graph.Node {
	out := &graph.Node{Op: n.Op, Network: n.Network}
	out.Inputs = append([]graph.Input(nil), n.Inputs...)
	return out
}

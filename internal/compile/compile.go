// Package compile lowers a user-facing NodeNetwork into the flat, resolved,
// topologically ordered ProtoNetwork the executor consumes.
//
// The pipeline runs fixed passes in order:
//
//  1. Structural validation of the source network.
//  2. Flattening of composition nodes (internal/flatten).
//  3. Registry resolution: every op must exist with matching arity.
//  4. Passthrough elision: nodes whose sole effect is returning their first
//     input unchanged are removed, consumers rewired to the source.
//  5. Dead-code elimination by reverse reachability from declared outputs.
//  6. Deterministic topological sort; a reference cycle is fatal.
//  7. Identity assignment: content-derived stable hashes per node.
//  8. Type check of every producer/consumer edge.
//
// Compiling the same network twice yields byte-identical results: every pass
// iterates in sorted node-ID order and all hashes are content-derived.
package compile

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/protograph/protograph/internal/flatten"
	"github.com/protograph/protograph/internal/graph"
	"github.com/protograph/protograph/internal/metrics"
	"github.com/protograph/protograph/internal/proto"
	"github.com/protograph/protograph/internal/registry"
	"github.com/protograph/protograph/internal/value"
)

// Compile runs the full pipeline. The returned network is a DAG in which
// every input index is strictly smaller than its consumer's index.
func Compile(nw *graph.NodeNetwork, reg *registry.Registry) (pn *proto.Network, err error) {
	defer func() { metrics.ObserveCompile(err == nil) }()

	if verr := nw.Validate(); verr != nil {
		code := ErrCodeInvalidNetwork
		if errors.Is(verr, graph.ErrCompositionCycle) {
			code = ErrCodeCompositionCycle
		}
		return nil, &StructureError{Code: code, Message: verr.Error()}
	}

	flat, ferr := flatten.Flatten(nw)
	if ferr != nil {
		var fse *flatten.StructureError
		if errors.As(ferr, &fse) {
			return nil, &StructureError{Code: fse.Code, Path: fse.Path, Message: fse.Message}
		}
		return nil, ferr
	}

	if err := resolveOps(flat, reg); err != nil {
		return nil, err
	}

	if err := elidePassthroughs(flat, reg); err != nil {
		return nil, err
	}

	reachable := markReachable(flat)

	order, err := topoSort(flat, reachable)
	if err != nil {
		return nil, err
	}

	pn, err = buildProto(flat, order)
	if err != nil {
		return nil, err
	}

	if err := typeCheck(pn, reg); err != nil {
		return nil, err
	}
	return pn, nil
}

// resolveOps verifies every node names a registered op with matching arity.
func resolveOps(flat *graph.NodeNetwork, reg *registry.Registry) error {
	for _, id := range flat.SortedNodeIDs() {
		n := flat.Nodes[id]
		spec, ok := reg.Lookup(n.Op)
		if !ok {
			return &StructureError{
				Code:    ErrCodeUnknownOp,
				Path:    splitPath(id),
				Message: fmt.Sprintf("no implementation registered for %q", n.Op),
			}
		}
		if len(n.Inputs) != len(spec.Inputs) {
			return &TypeCheckError{
				Path:       splitPath(id),
				InputIndex: len(n.Inputs),
				Want:       fmt.Sprintf("%d inputs", len(spec.Inputs)),
				Got:        fmt.Sprintf("%d inputs", len(n.Inputs)),
				Message:    fmt.Sprintf("op %q arity mismatch", n.Op),
			}
		}
	}
	return nil
}

// elidePassthroughs removes nodes whose op is marked Passthrough and rewires
// their consumers to the passthrough's first input. A passthrough that a
// declared output points at is kept when its input is not a node reference:
// an output must name a producing node.
func elidePassthroughs(flat *graph.NodeNetwork, reg *registry.Registry) error {
	alias := make(map[graph.NodeID]graph.Input)
	for id, n := range flat.Nodes {
		if spec, ok := reg.Lookup(n.Op); ok && spec.Passthrough {
			alias[id] = n.Inputs[0]
		}
	}
	if len(alias) == 0 {
		return nil
	}

	// A chain of passthroughs referencing each other in a loop is a
	// reference cycle; it must fail here rather than leave dangling
	// references for the later passes.
	for start := range alias {
		id := start
		for steps := 0; ; steps++ {
			in, ok := alias[id]
			if !ok || in.Kind != graph.InputNode {
				break
			}
			if steps > len(alias) {
				return &StructureError{
					Code:    ErrCodeReferenceCycle,
					Path:    splitPath(start),
					Message: "passthrough nodes reference each other cyclically",
				}
			}
			id = in.Node
		}
	}

	// Declared outputs must terminate on a real node; walk each chain and
	// un-elide the terminal passthrough when it bottoms out on a constant or
	// parameter input.
	for _, out := range flat.Outputs {
		id := out
		for {
			in, ok := alias[id]
			if !ok {
				break
			}
			if in.Kind != graph.InputNode {
				delete(alias, id)
				break
			}
			id = in.Node
		}
	}

	resolve := func(in graph.Input) graph.Input {
		// Chains are bounded by the alias count; a longer walk would mean a
		// passthrough cycle, which the toposort pass reports.
		for steps := 0; in.Kind == graph.InputNode && steps <= len(alias); steps++ {
			next, ok := alias[in.Node]
			if !ok {
				return in
			}
			in = next
		}
		return in
	}

	for id, n := range flat.Nodes {
		if _, elided := alias[id]; elided {
			continue
		}
		for i, in := range n.Inputs {
			n.Inputs[i] = resolve(in)
		}
	}
	for i, out := range flat.Outputs {
		resolved := resolve(graph.FromNode(out))
		if resolved.Kind == graph.InputNode {
			flat.Outputs[i] = resolved.Node
		}
	}
	for id := range alias {
		delete(flat.Nodes, id)
	}
	return nil
}

// markReachable computes reverse reachability from the declared outputs.
func markReachable(flat *graph.NodeNetwork) map[graph.NodeID]bool {
	reachable := make(map[graph.NodeID]bool)
	queue := append([]graph.NodeID(nil), flat.Outputs...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if reachable[id] {
			continue
		}
		reachable[id] = true
		n, ok := flat.Nodes[id]
		if !ok {
			continue
		}
		for _, in := range n.Inputs {
			if in.Kind == graph.InputNode {
				queue = append(queue, in.Node)
			}
		}
	}
	return reachable
}

// topoSort orders the reachable nodes so every referenced node precedes its
// consumers. Ties break by node ID, which derives from the document and the
// composition path, so recompiles order identically. A cycle is fatal.
func topoSort(flat *graph.NodeNetwork, reachable map[graph.NodeID]bool) ([]graph.NodeID, error) {
	indegree := make(map[graph.NodeID]int)
	consumers := make(map[graph.NodeID][]graph.NodeID)
	for _, id := range flat.SortedNodeIDs() {
		if !reachable[id] {
			continue
		}
		n := flat.Nodes[id]
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
		}
		for _, in := range n.Inputs {
			if in.Kind == graph.InputNode && reachable[in.Node] {
				indegree[id]++
				consumers[in.Node] = append(consumers[in.Node], id)
			}
		}
	}

	var ready []graph.NodeID
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	slices.Sort(ready)

	order := make([]graph.NodeID, 0, len(indegree))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		released := false
		for _, consumer := range consumers[id] {
			indegree[consumer]--
			if indegree[consumer] == 0 {
				ready = append(ready, consumer)
				released = true
			}
		}
		if released {
			slices.Sort(ready)
		}
	}

	if len(order) != len(indegree) {
		return nil, &StructureError{
			Code:    ErrCodeReferenceCycle,
			Path:    findCycle(flat, indegree),
			Message: "reference graph is cyclic",
		}
	}
	return order, nil
}

// findCycle locates one cycle among the nodes Kahn's algorithm could not
// order, for the error message. indegree holds only reachable nodes; those
// with remaining indegree participate in or depend on a cycle.
func findCycle(flat *graph.NodeNetwork, indegree map[graph.NodeID]int) []string {
	var stuck []graph.NodeID
	for id, deg := range indegree {
		if deg > 0 {
			stuck = append(stuck, id)
		}
	}
	slices.Sort(stuck)
	if len(stuck) == 0 {
		return nil
	}

	// Walk node references until an ID repeats; within the stuck set every
	// node has at least one stuck predecessor, so the walk must loop.
	seen := make(map[graph.NodeID]int)
	path := []graph.NodeID{}
	id := stuck[0]
	for {
		if at, ok := seen[id]; ok {
			cycle := make([]string, 0, len(path)-at+1)
			for _, p := range path[at:] {
				cycle = append(cycle, string(p))
			}
			return append(cycle, string(id))
		}
		seen[id] = len(path)
		path = append(path, id)

		next := id
		for _, in := range flat.Nodes[id].Inputs {
			if in.Kind == graph.InputNode && indegree[in.Node] > 0 {
				next = in.Node
				break
			}
		}
		if next == id {
			return []string{string(id)}
		}
		id = next
	}
}

// buildProto converts the ordered flat nodes into ProtoNodes with resolved
// positional inputs and assigned identities.
func buildProto(flat *graph.NodeNetwork, order []graph.NodeID) (*proto.Network, error) {
	indexOf := make(map[graph.NodeID]int, len(order))
	for i, id := range order {
		indexOf[id] = i
	}

	pn := &proto.Network{Nodes: make([]proto.Node, len(order))}
	for i, id := range order {
		n := flat.Nodes[id]
		inputs := make([]proto.Input, len(n.Inputs))
		for j, in := range n.Inputs {
			switch in.Kind {
			case graph.InputConstant:
				inputs[j] = proto.Constant(in.Value)
			case graph.InputNode:
				inputs[j] = proto.Index(indexOf[in.Node])
			case graph.InputParameter:
				return nil, &StructureError{
					Code:    ErrCodeUnboundParameter,
					Path:    splitPath(id),
					Message: fmt.Sprintf("input %d references parameter %d, but the top-level network receives no parameters", j, in.Parameter),
				}
			}
		}

		fingerprint, err := proto.ComputeFingerprint(n.Op, inputs)
		if err != nil {
			return nil, fmt.Errorf("fingerprint for %q: %w", id, err)
		}
		identity, err := proto.ComputeIdentity(n.Op, inputs, func(index int) string {
			return pn.Nodes[index].Identity
		})
		if err != nil {
			return nil, fmt.Errorf("identity for %q: %w", id, err)
		}

		pn.Nodes[i] = proto.Node{
			Op:          n.Op,
			ID:          string(id),
			Inputs:      inputs,
			Identity:    identity,
			Fingerprint: fingerprint,
		}
	}

	pn.Outputs = make([]int, len(flat.Outputs))
	for i, out := range flat.Outputs {
		idx, ok := indexOf[out]
		if !ok {
			return nil, &StructureError{
				Code:    ErrCodeDeadOutput,
				Path:    splitPath(out),
				Message: "declared output has no producing node",
			}
		}
		pn.Outputs[i] = idx
	}
	return pn, nil
}

// typeCheck verifies every consumer's expected input type against its
// producer's declared output type (or a constant's kind).
func typeCheck(pn *proto.Network, reg *registry.Registry) error {
	for i := range pn.Nodes {
		n := &pn.Nodes[i]
		spec, _ := reg.Lookup(n.Op)
		for j, in := range n.Inputs {
			want := spec.Inputs[j]
			var got value.Type
			switch in.Kind {
			case proto.InputConstant:
				got = value.KindOf(in.Value)
			case proto.InputIndex:
				producer, _ := reg.Lookup(pn.Nodes[in.Index].Op)
				got = producer.Output
			}
			if !got.AssignableTo(want) {
				return &TypeCheckError{
					Path:       n.Path(),
					InputIndex: j,
					Want:       want.String(),
					Got:        got.String(),
				}
			}
		}
	}
	return nil
}

func splitPath(id graph.NodeID) []string {
	return strings.Split(string(id), "/")
}

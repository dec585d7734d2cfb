// Package proto defines the compiled, flat, topologically ordered form of a
// node network: the ProtoNetwork the dynamic executor consumes.
//
// A ProtoNetwork is an ordered sequence of ProtoNodes in which every input
// reference points at a strictly earlier index. Each node carries two
// content-derived hashes:
//
//   - Identity: hash of (op, constant inputs, referenced inputs' identities).
//     Deliberately independent of position, so an unchanged sub-graph keeps
//     its identity even when unrelated parts of the network change. This is
//     the cache and diff key.
//   - Fingerprint: hash of (op, constant inputs) only. The executor uses it
//     to recognize that a node is "the same operation with the same own
//     configuration" even when an upstream edit changed its deep identity,
//     and to keep the already-built evaluable object in that case.
package proto

import (
	"fmt"
	"strings"

	"github.com/protograph/protograph/internal/value"
)

// InputKind tags the two resolved input variants.
type InputKind string

const (
	// InputConstant is an inline constant value.
	InputConstant InputKind = "constant"
	// InputIndex is a positional reference to an earlier node.
	InputIndex InputKind = "index"
)

// Input is one resolved input of a ProtoNode.
type Input struct {
	Kind  InputKind
	Value value.Value // set for InputConstant
	Index int         // set for InputIndex; always < the consumer's index
}

// Constant builds a resolved constant input.
func Constant(v value.Value) Input {
	return Input{Kind: InputConstant, Value: v}
}

// Index builds a resolved positional reference.
func Index(i int) Input {
	return Input{Kind: InputIndex, Index: i}
}

// Node is one node of the compiled network.
type Node struct {
	// Op is the primitive implementation identifier.
	Op string
	// ID is the flat node ID; its "/" segments are the composition path down
	// from the document root, used for error reporting.
	ID string
	// Inputs is the ordered resolved input list.
	Inputs []Input
	// Identity is the deep content hash. See the package comment.
	Identity string
	// Fingerprint is the shallow content hash. See the package comment.
	Fingerprint string
}

// Path returns the composition path of the node for error messages.
func (n *Node) Path() []string {
	return strings.Split(n.ID, "/")
}

// Network is the compiled executable graph.
type Network struct {
	// Nodes is topologically sorted: every InputIndex precedes its consumer.
	Nodes []Node
	// Outputs holds the designated output indices, in declared order.
	Outputs []int
}

// ComputeFingerprint hashes the node's own configuration: its op and its
// constant inputs at their positions. Referenced inputs do not contribute.
func ComputeFingerprint(op string, inputs []Input) (string, error) {
	constants := value.List{}
	for i, in := range inputs {
		if in.Kind == InputConstant {
			constants = append(constants, value.List{value.Int(i), in.Value})
		}
	}
	payload := value.Map{"op": value.String(op), "constants": constants}
	return value.HashValue(value.DomainFingerprint, payload)
}

// ComputeIdentity hashes the node's op, constant inputs and the stable
// identities of its referenced inputs. identityOf resolves an input index to
// the already-assigned identity of that node; topological order guarantees
// it exists.
func ComputeIdentity(op string, inputs []Input, identityOf func(index int) string) (string, error) {
	resolved := value.List{}
	for _, in := range inputs {
		switch in.Kind {
		case InputConstant:
			resolved = append(resolved, value.Map{"const": in.Value})
		case InputIndex:
			resolved = append(resolved, value.Map{"ref": value.String(identityOf(in.Index))})
		}
	}
	payload := value.Map{"op": value.String(op), "inputs": resolved}
	return value.HashValue(value.DomainIdentity, payload)
}

// Dump renders a deterministic, hash-free listing of the network for golden
// tests and the CLI's text output. Constants render in canonical form.
func (n *Network) Dump() string {
	var b strings.Builder
	for i := range n.Nodes {
		node := &n.Nodes[i]
		fmt.Fprintf(&b, "%d: %s", i, node.Op)
		for _, in := range node.Inputs {
			switch in.Kind {
			case InputConstant:
				canonical, err := value.MarshalCanonical(in.Value)
				if err != nil {
					fmt.Fprintf(&b, " const=<unencodable>")
					continue
				}
				fmt.Fprintf(&b, " const=%s", canonical)
			case InputIndex:
				fmt.Fprintf(&b, " #%d", in.Index)
			}
		}
		fmt.Fprintf(&b, " (%s)\n", node.ID)
	}
	b.WriteString("outputs:")
	for _, out := range n.Outputs {
		fmt.Fprintf(&b, " #%d", out)
	}
	b.WriteString("\n")
	return b.String()
}

// Package graph defines the user-facing, possibly nested node network: the
// representation the editor constructs and mutates, and the input to the
// flatten/compile pipeline.
//
// A NodeNetwork maps node IDs to nodes. A node is either a primitive (named
// operation resolved against the host registry) or a composition node whose
// implementation is an embedded NodeNetwork. Node inputs are constants,
// references to sibling nodes, or references to the network's declared input
// parameters. The reference graph must be acyclic; that is enforced by the
// compiler, not here.
//
// The structures serialize to JSON and YAML so the editor layer can persist
// and diff documents for save/undo. The persistence format itself lives
// outside this core.
package graph

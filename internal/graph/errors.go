// Package graph defines domain-specific errors for network validation.
package graph

import "errors"

var (
	// ErrNilNode indicates a nil node was added to a network.
	ErrNilNode = errors.New("node cannot be nil")
	// ErrEmptyNodeID indicates a node was registered under an empty ID.
	ErrEmptyNodeID = errors.New("node ID cannot be empty")
	// ErrDuplicateNode indicates two nodes share an ID.
	ErrDuplicateNode = errors.New("duplicate node ID")
	// ErrNoImplementation indicates a node declares neither an op nor an
	// embedded network.
	ErrNoImplementation = errors.New("node has no implementation")
	// ErrAmbiguousImplementation indicates a node declares both an op and an
	// embedded network.
	ErrAmbiguousImplementation = errors.New("node declares both op and network")
	// ErrCompositionCycle indicates a network embeds itself, directly or
	// through intermediate compositions.
	ErrCompositionCycle = errors.New("network embeds itself")
	// ErrDanglingReference indicates an input references a node that does
	// not exist in the network.
	ErrDanglingReference = errors.New("input references unknown node")
	// ErrParameterOutOfRange indicates an input references a declared
	// parameter index the network does not have.
	ErrParameterOutOfRange = errors.New("parameter reference out of range")
	// ErrNoOutputs indicates a network declares no outputs.
	ErrNoOutputs = errors.New("network declares no outputs")
	// ErrDanglingOutput indicates a declared output references a node that
	// does not exist.
	ErrDanglingOutput = errors.New("declared output references unknown node")
)

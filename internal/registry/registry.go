// Package registry holds the process-wide set of primitive node
// implementations. The host application registers every implementation once
// at startup through a Builder, then freezes it into an immutable Registry
// that is passed by reference into the compiler and the executor. Nothing
// mutates a Registry after Build.
package registry

import (
	"context"
	"fmt"
	"slices"

	"github.com/protograph/protograph/internal/evalctx"
	"github.com/protograph/protograph/internal/value"
)

// EvalFunc is the implementation body of a primitive operation. It receives
// the already-evaluated inputs in declared order and the ambient evaluation
// context. Implementations must only read the context fields their OpSpec
// declares; the cache key covers exactly that subset.
type EvalFunc func(ctx context.Context, inputs []value.Value, ec evalctx.Context) (value.Value, error)

// OpSpec describes one primitive operation.
type OpSpec struct {
	// Name is the implementation identifier, e.g. "math/add".
	Name string
	// Inputs declares the expected input types in order.
	Inputs []value.Type
	// Output declares the produced type.
	Output value.Type
	// ContextMask declares which context fields Eval reads.
	ContextMask evalctx.Mask
	// Passthrough marks an op whose sole effect is returning its first input
	// unchanged. The compiler elides such nodes and rewires their consumers
	// to the source directly.
	Passthrough bool
	// Eval is the implementation body.
	Eval EvalFunc
}

// Builder accumulates op registrations before the registry is frozen.
type Builder struct {
	ops map[string]*OpSpec
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{ops: make(map[string]*OpSpec)}
}

// Register adds an op. Registering the same name twice or a spec without an
// Eval body is a host programming error and fails loudly.
func (b *Builder) Register(spec OpSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("registry: op name cannot be empty")
	}
	if spec.Eval == nil {
		return fmt.Errorf("registry: op %q has no Eval", spec.Name)
	}
	if spec.Passthrough && len(spec.Inputs) == 0 {
		return fmt.Errorf("registry: passthrough op %q must declare at least one input", spec.Name)
	}
	if _, exists := b.ops[spec.Name]; exists {
		return fmt.Errorf("registry: op %q registered twice", spec.Name)
	}
	s := spec
	b.ops[spec.Name] = &s
	return nil
}

// MustRegister is Register that panics on error. Use in startup wiring where
// a failure is a bug, not a runtime condition.
func (b *Builder) MustRegister(spec OpSpec) {
	if err := b.Register(spec); err != nil {
		panic(err)
	}
}

// Build freezes the builder into an immutable Registry. The builder must not
// be used afterwards.
func (b *Builder) Build() *Registry {
	ops := b.ops
	b.ops = nil
	return &Registry{ops: ops}
}

// Registry is the immutable op set. Safe for concurrent use.
type Registry struct {
	ops map[string]*OpSpec
}

// Lookup returns the spec for an op name.
func (r *Registry) Lookup(name string) (*OpSpec, bool) {
	spec, ok := r.ops[name]
	return spec, ok
}

// Names returns all registered op names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

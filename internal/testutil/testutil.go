// Package testutil provides shared test fixtures: a registry of small ops
// whose invocation counts are observable, for asserting cache and
// incremental-update behavior without touching process-wide metrics.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/protograph/protograph/internal/evalctx"
	"github.com/protograph/protograph/internal/registry"
	"github.com/protograph/protograph/internal/value"
)

// ErrAlwaysFails is returned by the "test/fail" op.
var ErrAlwaysFails = errors.New("op configured to fail")

// Counter records per-op invocation counts across concurrent evaluations.
type Counter struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// Count returns how many times the named op's body ran.
func (c *Counter) Count(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[op]
}

// Total returns the invocation count across all ops.
func (c *Counter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

func (c *Counter) inc(op string) {
	c.mu.Lock()
	c.counts[op]++
	c.mu.Unlock()
}

// NewCountingRegistry builds a registry whose op bodies report into c:
// value/constant, value/passthrough, math/add_one, math/add, context/time and
// the always-failing test/fail.
func NewCountingRegistry(c *Counter) *registry.Registry {
	b := registry.NewBuilder()
	b.MustRegister(registry.OpSpec{
		Name:   "value/constant",
		Inputs: []value.Type{value.TypeAny},
		Output: value.TypeAny,
		Eval: func(_ context.Context, inputs []value.Value, _ evalctx.Context) (value.Value, error) {
			c.inc("value/constant")
			return inputs[0], nil
		},
	})
	b.MustRegister(registry.OpSpec{
		Name:        "value/passthrough",
		Inputs:      []value.Type{value.TypeAny},
		Output:      value.TypeAny,
		Passthrough: true,
		Eval: func(_ context.Context, inputs []value.Value, _ evalctx.Context) (value.Value, error) {
			c.inc("value/passthrough")
			return inputs[0], nil
		},
	})
	b.MustRegister(registry.OpSpec{
		Name:   "math/add_one",
		Inputs: []value.Type{value.TypeInt},
		Output: value.TypeInt,
		Eval: func(_ context.Context, inputs []value.Value, _ evalctx.Context) (value.Value, error) {
			c.inc("math/add_one")
			return inputs[0].(value.Int) + 1, nil
		},
	})
	b.MustRegister(registry.OpSpec{
		Name:   "math/add",
		Inputs: []value.Type{value.TypeInt, value.TypeInt},
		Output: value.TypeInt,
		Eval: func(_ context.Context, inputs []value.Value, _ evalctx.Context) (value.Value, error) {
			c.inc("math/add")
			return inputs[0].(value.Int) + inputs[1].(value.Int), nil
		},
	})
	b.MustRegister(registry.OpSpec{
		Name:        "context/time",
		Output:      value.TypeFloat,
		ContextMask: evalctx.ReadsTime,
		Eval: func(_ context.Context, _ []value.Value, ec evalctx.Context) (value.Value, error) {
			c.inc("context/time")
			return value.Float(ec.Time), nil
		},
	})
	b.MustRegister(registry.OpSpec{
		Name:   "test/fail",
		Inputs: []value.Type{value.TypeAny},
		Output: value.TypeAny,
		Eval: func(_ context.Context, _ []value.Value, _ evalctx.Context) (value.Value, error) {
			c.inc("test/fail")
			return nil, ErrAlwaysFails
		},
	})
	return b.Build()
}

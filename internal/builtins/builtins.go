// Package builtins provides the stock primitive operations. Hosts with their
// own op set register them alongside or instead of these; the engine itself
// is indifferent to which ops exist.
package builtins

import (
	"context"
	"fmt"
	"strings"

	"github.com/protograph/protograph/internal/evalctx"
	"github.com/protograph/protograph/internal/registry"
	"github.com/protograph/protograph/internal/value"
)

// Register adds the stock ops to b.
func Register(b *registry.Builder) {
	b.MustRegister(registry.OpSpec{
		Name:   "value/constant",
		Inputs: []value.Type{value.TypeAny},
		Output: value.TypeAny,
		Eval: func(_ context.Context, inputs []value.Value, _ evalctx.Context) (value.Value, error) {
			return inputs[0], nil
		},
	})
	b.MustRegister(registry.OpSpec{
		Name:        "value/passthrough",
		Inputs:      []value.Type{value.TypeAny},
		Output:      value.TypeAny,
		Passthrough: true,
		Eval: func(_ context.Context, inputs []value.Value, _ evalctx.Context) (value.Value, error) {
			return inputs[0], nil
		},
	})
	b.MustRegister(registry.OpSpec{
		Name:   "math/add_one",
		Inputs: []value.Type{value.TypeInt},
		Output: value.TypeInt,
		Eval: func(_ context.Context, inputs []value.Value, _ evalctx.Context) (value.Value, error) {
			n, err := wantInt(inputs[0])
			if err != nil {
				return nil, err
			}
			return value.Int(n + 1), nil
		},
	})
	b.MustRegister(registry.OpSpec{
		Name:   "math/add",
		Inputs: []value.Type{value.TypeInt, value.TypeInt},
		Output: value.TypeInt,
		Eval: func(_ context.Context, inputs []value.Value, _ evalctx.Context) (value.Value, error) {
			a, err := wantInt(inputs[0])
			if err != nil {
				return nil, err
			}
			b, err := wantInt(inputs[1])
			if err != nil {
				return nil, err
			}
			return value.Int(a + b), nil
		},
	})
	b.MustRegister(registry.OpSpec{
		Name:   "math/multiply",
		Inputs: []value.Type{value.TypeInt, value.TypeInt},
		Output: value.TypeInt,
		Eval: func(_ context.Context, inputs []value.Value, _ evalctx.Context) (value.Value, error) {
			a, err := wantInt(inputs[0])
			if err != nil {
				return nil, err
			}
			b, err := wantInt(inputs[1])
			if err != nil {
				return nil, err
			}
			return value.Int(a * b), nil
		},
	})
	b.MustRegister(registry.OpSpec{
		Name:   "string/concat",
		Inputs: []value.Type{value.TypeString, value.TypeString},
		Output: value.TypeString,
		Eval: func(_ context.Context, inputs []value.Value, _ evalctx.Context) (value.Value, error) {
			a, aok := inputs[0].(value.String)
			b, bok := inputs[1].(value.String)
			if !aok || !bok {
				return nil, fmt.Errorf("string/concat: non-string input")
			}
			return a + b, nil
		},
	})
	b.MustRegister(registry.OpSpec{
		Name:   "string/upper",
		Inputs: []value.Type{value.TypeString},
		Output: value.TypeString,
		Eval: func(_ context.Context, inputs []value.Value, _ evalctx.Context) (value.Value, error) {
			s, ok := inputs[0].(value.String)
			if !ok {
				return nil, fmt.Errorf("string/upper: non-string input")
			}
			return value.String(strings.ToUpper(string(s))), nil
		},
	})
	b.MustRegister(registry.OpSpec{
		Name:        "context/time",
		Inputs:      nil,
		Output:      value.TypeFloat,
		ContextMask: evalctx.ReadsTime,
		Eval: func(_ context.Context, _ []value.Value, ec evalctx.Context) (value.Value, error) {
			return value.Float(ec.Time), nil
		},
	})
	b.MustRegister(registry.OpSpec{
		Name:        "context/scale",
		Inputs:      nil,
		Output:      value.TypeFloat,
		ContextMask: evalctx.ReadsScale,
		Eval: func(_ context.Context, _ []value.Value, ec evalctx.Context) (value.Value, error) {
			return value.Float(ec.Scale), nil
		},
	})
}

// NewRegistry builds a registry containing only the stock ops.
func NewRegistry() *registry.Registry {
	b := registry.NewBuilder()
	Register(b)
	return b.Build()
}

func wantInt(v value.Value) (int64, error) {
	n, ok := v.(value.Int)
	if !ok {
		return 0, fmt.Errorf("expected int, got %s", value.KindOf(v))
	}
	return int64(n), nil
}

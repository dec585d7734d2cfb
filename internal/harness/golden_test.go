package harness

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protograph/protograph/internal/builtins"
	"github.com/protograph/protograph/internal/graph"
	"github.com/protograph/protograph/internal/value"
)

func TestGoldenChain(t *testing.T) {
	reg := builtins.NewRegistry()

	nw := graph.New()
	require.NoError(t, nw.AddNode("const", &graph.Node{Op: "value/constant", Inputs: []graph.Input{graph.Constant(value.Int(5))}}))
	require.NoError(t, nw.AddNode("inc1", &graph.Node{Op: "math/add_one", Inputs: []graph.Input{graph.FromNode("const")}}))
	require.NoError(t, nw.AddNode("inc2", &graph.Node{Op: "math/add_one", Inputs: []graph.Input{graph.FromNode("inc1")}}))
	nw.Outputs = []graph.NodeID{"inc2"}

	AssertGolden(t, "chain", CompileDump(t, nw, reg))
}

func TestGoldenComposition(t *testing.T) {
	reg := builtins.NewRegistry()

	inner := graph.New()
	inner.Parameters = 1
	require.NoError(t, inner.AddNode("first", &graph.Node{Op: "math/add_one", Inputs: []graph.Input{graph.FromParameter(0)}}))
	require.NoError(t, inner.AddNode("second", &graph.Node{Op: "math/add_one", Inputs: []graph.Input{graph.FromNode("first")}}))
	inner.Outputs = []graph.NodeID{"second"}

	outer := graph.New()
	require.NoError(t, outer.AddNode("const", &graph.Node{Op: "value/constant", Inputs: []graph.Input{graph.Constant(value.Int(5))}}))
	require.NoError(t, outer.AddNode("wrapped", &graph.Node{Network: inner, Inputs: []graph.Input{graph.FromNode("const")}}))
	outer.Outputs = []graph.NodeID{"wrapped"}

	AssertGolden(t, "composition", CompileDump(t, outer, reg))
}

func TestGoldenElisionAndDeadCode(t *testing.T) {
	reg := builtins.NewRegistry()

	nw := graph.New()
	require.NoError(t, nw.AddNode("c", &graph.Node{Op: "value/constant", Inputs: []graph.Input{graph.Constant(value.Int(1))}}))
	require.NoError(t, nw.AddNode("p", &graph.Node{Op: "value/passthrough", Inputs: []graph.Input{graph.FromNode("c")}}))
	require.NoError(t, nw.AddNode("inc", &graph.Node{Op: "math/add_one", Inputs: []graph.Input{graph.FromNode("p")}}))
	require.NoError(t, nw.AddNode("dead", &graph.Node{Op: "math/add_one", Inputs: []graph.Input{graph.FromNode("c")}}))
	nw.Outputs = []graph.NodeID{"inc"}

	AssertGolden(t, "elision_dce", CompileDump(t, nw, reg))
}

package flatten

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protograph/protograph/internal/graph"
	"github.com/protograph/protograph/internal/value"
)

// addOnePair builds a two-node sub-network: parameter 0 -> add_one -> add_one.
func addOnePair(t *testing.T) *graph.NodeNetwork {
	t.Helper()
	inner := graph.New()
	inner.Parameters = 1
	require.NoError(t, inner.AddNode("first", &graph.Node{Op: "math/add_one", Inputs: []graph.Input{graph.FromParameter(0)}}))
	require.NoError(t, inner.AddNode("second", &graph.Node{Op: "math/add_one", Inputs: []graph.Input{graph.FromNode("first")}}))
	inner.Outputs = []graph.NodeID{"second"}
	return inner
}

func TestFlattenInlinesComposition(t *testing.T) {
	inner := addOnePair(t)

	outer := graph.New()
	require.NoError(t, outer.AddNode("const", &graph.Node{Op: "value/constant", Inputs: []graph.Input{graph.Constant(value.Int(5))}}))
	require.NoError(t, outer.AddNode("wrapped", &graph.Node{Network: inner, Inputs: []graph.Input{graph.FromNode("const")}}))
	outer.Outputs = []graph.NodeID{"wrapped"}

	flat, err := Flatten(outer)
	require.NoError(t, err)

	// Flattened count = outer nodes - 1 composition + inner node count.
	assert.Len(t, flat.Nodes, len(outer.Nodes)-1+len(inner.Nodes))

	// Parameter reference became the composition node's supplied input.
	first := flat.Nodes["wrapped/first"]
	require.NotNil(t, first)
	assert.Equal(t, graph.FromNode("const"), first.Inputs[0])

	// Inner reference was prefixed into the flat namespace.
	second := flat.Nodes["wrapped/second"]
	require.NotNil(t, second)
	assert.Equal(t, graph.FromNode("wrapped/first"), second.Inputs[0])

	// The declared output was redirected to the inner declared output.
	assert.Equal(t, []graph.NodeID{"wrapped/second"}, flat.Outputs)

	require.NoError(t, flat.Validate())
}

func TestFlattenNestedCompositions(t *testing.T) {
	inner := addOnePair(t)

	mid := graph.New()
	mid.Parameters = 1
	require.NoError(t, mid.AddNode("pair", &graph.Node{Network: inner, Inputs: []graph.Input{graph.FromParameter(0)}}))
	mid.Outputs = []graph.NodeID{"pair"}

	outer := graph.New()
	require.NoError(t, outer.AddNode("const", &graph.Node{Op: "value/constant", Inputs: []graph.Input{graph.Constant(value.Int(1))}}))
	require.NoError(t, outer.AddNode("wrap", &graph.Node{Network: mid, Inputs: []graph.Input{graph.FromNode("const")}}))
	outer.Outputs = []graph.NodeID{"wrap"}

	flat, err := Flatten(outer)
	require.NoError(t, err)

	assert.Contains(t, flat.Nodes, graph.NodeID("wrap/pair/first"))
	assert.Contains(t, flat.Nodes, graph.NodeID("wrap/pair/second"))
	assert.Equal(t, []graph.NodeID{"wrap/pair/second"}, flat.Outputs)
	assert.NotContains(t, flat.Nodes, graph.NodeID("wrap"), "composition nodes must not survive")
	require.NoError(t, flat.Validate())
}

func TestFlattenAllowsNonRecursiveReuse(t *testing.T) {
	shared := addOnePair(t)

	outer := graph.New()
	require.NoError(t, outer.AddNode("const", &graph.Node{Op: "value/constant", Inputs: []graph.Input{graph.Constant(value.Int(0))}}))
	require.NoError(t, outer.AddNode("a", &graph.Node{Network: shared, Inputs: []graph.Input{graph.FromNode("const")}}))
	require.NoError(t, outer.AddNode("b", &graph.Node{Network: shared, Inputs: []graph.Input{graph.FromNode("a")}}))
	outer.Outputs = []graph.NodeID{"b"}

	flat, err := Flatten(outer)
	require.NoError(t, err, "reusing the same sub-network twice is legal")

	assert.Contains(t, flat.Nodes, graph.NodeID("a/first"))
	assert.Contains(t, flat.Nodes, graph.NodeID("b/first"))
	// b's composition input referenced a, which resolved to a's inner output.
	assert.Equal(t, graph.FromNode("a/second"), flat.Nodes["b/first"].Inputs[0])
}

func TestFlattenDetectsCompositionCycle(t *testing.T) {
	recursive := graph.New()
	recursive.Parameters = 1
	self := &graph.Node{Inputs: []graph.Input{graph.FromParameter(0)}}
	recursive.Nodes = map[graph.NodeID]*graph.Node{"self": self}
	recursive.Outputs = []graph.NodeID{"self"}
	self.Network = recursive // the network embeds itself

	outer := graph.New()
	require.NoError(t, outer.AddNode("const", &graph.Node{Op: "value/constant", Inputs: []graph.Input{graph.Constant(value.Int(0))}}))
	require.NoError(t, outer.AddNode("loop", &graph.Node{Network: recursive, Inputs: []graph.Input{graph.FromNode("const")}}))
	outer.Outputs = []graph.NodeID{"loop"}

	_, err := Flatten(outer)
	require.Error(t, err)

	var se *StructureError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeCompositionCycle, se.Code)
	assert.NotEmpty(t, se.Path, "cycle errors identify the cyclic path")
}

func TestFlattenReportsMissingCompositionInput(t *testing.T) {
	inner := addOnePair(t)

	outer := graph.New()
	require.NoError(t, outer.AddNode("wrapped", &graph.Node{Network: inner})) // no inputs supplied
	outer.Outputs = []graph.NodeID{"wrapped"}

	_, err := Flatten(outer)
	var se *StructureError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeMissingInput, se.Code)
}

func TestFlattenLeavesUnreachableInnerNodes(t *testing.T) {
	inner := addOnePair(t)
	require.NoError(t, inner.AddNode("orphan", &graph.Node{Op: "math/add_one", Inputs: []graph.Input{graph.FromParameter(0)}}))

	outer := graph.New()
	require.NoError(t, outer.AddNode("const", &graph.Node{Op: "value/constant", Inputs: []graph.Input{graph.Constant(value.Int(0))}}))
	require.NoError(t, outer.AddNode("w", &graph.Node{Network: inner, Inputs: []graph.Input{graph.FromNode("const")}}))
	outer.Outputs = []graph.NodeID{"w"}

	flat, err := Flatten(outer)
	require.NoError(t, err)
	assert.Contains(t, flat.Nodes, graph.NodeID("w/orphan"),
		"dead code is the compiler's job, not the flattener's")
}

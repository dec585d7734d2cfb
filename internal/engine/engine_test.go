package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protograph/protograph/internal/compile"
	"github.com/protograph/protograph/internal/evalctx"
	"github.com/protograph/protograph/internal/graph"
	"github.com/protograph/protograph/internal/proto"
	"github.com/protograph/protograph/internal/registry"
	"github.com/protograph/protograph/internal/testutil"
	"github.com/protograph/protograph/internal/value"
)

// chainNetwork builds constant(v) -> add_one -> add_one with the second
// add_one as the declared output.
func chainNetwork(t *testing.T, v int64) *graph.NodeNetwork {
	t.Helper()
	nw := graph.New()
	require.NoError(t, nw.AddNode("const", &graph.Node{Op: "value/constant", Inputs: []graph.Input{graph.Constant(value.Int(v))}}))
	require.NoError(t, nw.AddNode("inc1", &graph.Node{Op: "math/add_one", Inputs: []graph.Input{graph.FromNode("const")}}))
	require.NoError(t, nw.AddNode("inc2", &graph.Node{Op: "math/add_one", Inputs: []graph.Input{graph.FromNode("inc1")}}))
	nw.Outputs = []graph.NodeID{"inc2"}
	return nw
}

func mustCompile(t *testing.T, nw *graph.NodeNetwork, reg *registry.Registry) *proto.Network {
	t.Helper()
	pn, err := compile.Compile(nw, reg)
	require.NoError(t, err)
	return pn
}

func TestEvalChainAndIncrementalConstantEdit(t *testing.T) {
	counter := testutil.NewCounter()
	reg := testutil.NewCountingRegistry(counter)
	ex := New(reg, Options{})
	ctx := context.Background()

	require.NoError(t, ex.Update(ctx, mustCompile(t, chainNetwork(t, 5), reg)))

	results, err := ex.Eval(ctx, evalctx.Context{}, PolicyFailFast)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, value.Int(7), results[0].Value)

	before := ex.Stats()
	assert.Equal(t, uint64(3), before.NodesBuilt)
	assert.Equal(t, uint64(0), before.NodesReused)

	// Edit the constant. Only the constant node's own configuration changed,
	// so only it is reconstructed; both add_one objects carry over even
	// though their deep identities shifted with the upstream edit.
	require.NoError(t, ex.Update(ctx, mustCompile(t, chainNetwork(t, 10), reg)))

	after := ex.Stats()
	assert.Equal(t, uint64(1), after.NodesBuilt-before.NodesBuilt, "only the edited constant rebuilds")
	assert.Equal(t, uint64(2), after.NodesReused-before.NodesReused, "both add_one objects are reused")

	results, err = ex.Eval(ctx, evalctx.Context{}, PolicyFailFast)
	require.NoError(t, err)
	assert.Equal(t, value.Int(12), results[0].Value)
}

func TestEvalCompositionMatchesEquivalentFlatChain(t *testing.T) {
	reg := testutil.NewCountingRegistry(testutil.NewCounter())
	ctx := context.Background()

	// constant(5) feeding a sub-network that applies add_one twice: the
	// same computation chainNetwork expresses without nesting.
	inner := graph.New()
	inner.Parameters = 1
	require.NoError(t, inner.AddNode("inc1", &graph.Node{Op: "math/add_one", Inputs: []graph.Input{graph.FromParameter(0)}}))
	require.NoError(t, inner.AddNode("inc2", &graph.Node{Op: "math/add_one", Inputs: []graph.Input{graph.FromNode("inc1")}}))
	inner.Outputs = []graph.NodeID{"inc2"}

	nested := graph.New()
	require.NoError(t, nested.AddNode("const", &graph.Node{Op: "value/constant", Inputs: []graph.Input{graph.Constant(value.Int(5))}}))
	require.NoError(t, nested.AddNode("wrap", &graph.Node{Network: inner, Inputs: []graph.Input{graph.FromNode("const")}}))
	nested.Outputs = []graph.NodeID{"wrap"}

	nestedEx := New(reg, Options{})
	require.NoError(t, nestedEx.Update(ctx, mustCompile(t, nested, reg)))
	nestedResults, err := nestedEx.Eval(ctx, evalctx.Context{}, PolicyFailFast)
	require.NoError(t, err)
	require.Len(t, nestedResults, 1)
	assert.Equal(t, value.Int(7), nestedResults[0].Value)

	flatEx := New(reg, Options{})
	require.NoError(t, flatEx.Update(ctx, mustCompile(t, chainNetwork(t, 5), reg)))
	flatResults, err := flatEx.Eval(ctx, evalctx.Context{}, PolicyFailFast)
	require.NoError(t, err)
	assert.Equal(t, flatResults[0].Value, nestedResults[0].Value, "nesting must not change the computed value")
}

func TestEvalSecondPassServedEntirelyFromCache(t *testing.T) {
	counter := testutil.NewCounter()
	reg := testutil.NewCountingRegistry(counter)
	ex := New(reg, Options{})
	ctx := context.Background()

	require.NoError(t, ex.Update(ctx, mustCompile(t, chainNetwork(t, 5), reg)))

	first, err := ex.Eval(ctx, evalctx.Context{}, PolicyFailFast)
	require.NoError(t, err)
	invoked := counter.Total()
	assert.Equal(t, 3, invoked)

	second, err := ex.Eval(ctx, evalctx.Context{}, PolicyFailFast)
	require.NoError(t, err)
	assert.Equal(t, first[0].Value, second[0].Value)
	assert.Equal(t, invoked, counter.Total(), "no implementation runs on a full cache hit")
	assert.NotZero(t, ex.Stats().CacheHits)
}

func TestEvalRecomputesOnlyTheEditedBranch(t *testing.T) {
	build := func(b int64) *graph.NodeNetwork {
		nw := graph.New()
		require.NoError(t, nw.AddNode("ca", &graph.Node{Op: "value/constant", Inputs: []graph.Input{graph.Constant(value.Int(1))}}))
		require.NoError(t, nw.AddNode("cb", &graph.Node{Op: "value/constant", Inputs: []graph.Input{graph.Constant(value.Int(b))}}))
		require.NoError(t, nw.AddNode("ia", &graph.Node{Op: "math/add_one", Inputs: []graph.Input{graph.FromNode("ca")}}))
		require.NoError(t, nw.AddNode("ib", &graph.Node{Op: "math/add_one", Inputs: []graph.Input{graph.FromNode("cb")}}))
		require.NoError(t, nw.AddNode("sum", &graph.Node{Op: "math/add", Inputs: []graph.Input{graph.FromNode("ia"), graph.FromNode("ib")}}))
		nw.Outputs = []graph.NodeID{"sum"}
		return nw
	}

	counter := testutil.NewCounter()
	reg := testutil.NewCountingRegistry(counter)
	ex := New(reg, Options{})
	ctx := context.Background()

	require.NoError(t, ex.Update(ctx, mustCompile(t, build(2), reg)))
	results, err := ex.Eval(ctx, evalctx.Context{}, PolicyFailFast)
	require.NoError(t, err)
	assert.Equal(t, value.Int(5), results[0].Value)
	invoked := counter.Total()
	assert.Equal(t, 5, invoked)

	// Edit branch b only. Branch a's cache entries stay valid; exactly the
	// edited constant, its add_one and the sum recompute.
	require.NoError(t, ex.Update(ctx, mustCompile(t, build(4), reg)))
	results, err = ex.Eval(ctx, evalctx.Context{}, PolicyFailFast)
	require.NoError(t, err)
	assert.Equal(t, value.Int(7), results[0].Value)
	assert.Equal(t, invoked+3, counter.Total())
}

func TestEvalBranchFailurePolicies(t *testing.T) {
	nw := graph.New()
	require.NoError(t, nw.AddNode("c", &graph.Node{Op: "value/constant", Inputs: []graph.Input{graph.Constant(value.Int(1))}}))
	require.NoError(t, nw.AddNode("ok", &graph.Node{Op: "math/add_one", Inputs: []graph.Input{graph.FromNode("c")}}))
	require.NoError(t, nw.AddNode("bad", &graph.Node{Op: "test/fail", Inputs: []graph.Input{graph.FromNode("c")}}))
	nw.Outputs = []graph.NodeID{"ok", "bad"}

	counter := testutil.NewCounter()
	reg := testutil.NewCountingRegistry(counter)
	ctx := context.Background()

	t.Run("fail fast", func(t *testing.T) {
		ex := New(reg, Options{})
		require.NoError(t, ex.Update(ctx, mustCompile(t, nw, reg)))

		results, err := ex.Eval(ctx, evalctx.Context{}, PolicyFailFast)
		require.Error(t, err)
		assert.Nil(t, results, "no output is produced on fail-fast")

		var ee *EvalError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, "test/fail", ee.Op)
		assert.Equal(t, []string{"bad"}, ee.Path)
		assert.ErrorIs(t, err, testutil.ErrAlwaysFails)
	})

	t.Run("collect partial", func(t *testing.T) {
		ex := New(reg, Options{})
		require.NoError(t, ex.Update(ctx, mustCompile(t, nw, reg)))

		results, err := ex.Eval(ctx, evalctx.Context{}, PolicyCollectPartial)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Nil(t, results[0].Err)
		assert.Equal(t, value.Int(2), results[0].Value)

		require.Error(t, results[1].Err)
		assert.Equal(t, []string{"bad"}, results[1].Err.Path)
		assert.ErrorIs(t, results[1].Err, testutil.ErrAlwaysFails)
	})
}

func TestEvalSharesInFlightComputation(t *testing.T) {
	var invocations atomic.Int64
	b := registry.NewBuilder()
	b.MustRegister(registry.OpSpec{
		Name:   "test/slow",
		Output: value.TypeInt,
		Eval: func(_ context.Context, _ []value.Value, _ evalctx.Context) (value.Value, error) {
			invocations.Add(1)
			time.Sleep(50 * time.Millisecond)
			return value.Int(42), nil
		},
	})
	reg := b.Build()

	pn := &proto.Network{
		Nodes: []proto.Node{{
			Op: "test/slow", ID: "slow", Identity: "id-slow", Fingerprint: "fp-slow",
		}},
		// The same node is declared as output twice, so one Eval requests it
		// from two concurrent branches.
		Outputs: []int{0, 0},
	}

	ex := New(reg, Options{})
	ctx := context.Background()
	require.NoError(t, ex.Update(ctx, pn))

	results, err := ex.Eval(ctx, evalctx.Context{}, PolicyFailFast)
	require.NoError(t, err)
	assert.Equal(t, value.Int(42), results[0].Value)
	assert.Equal(t, value.Int(42), results[1].Value)
	assert.Equal(t, int64(1), invocations.Load(), "concurrent requesters share one in-flight computation")
}

func TestEvalErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int64
	b := registry.NewBuilder()
	b.MustRegister(registry.OpSpec{
		Name:   "test/flaky",
		Output: value.TypeInt,
		Eval: func(_ context.Context, _ []value.Value, _ evalctx.Context) (value.Value, error) {
			if calls.Add(1) == 1 {
				return nil, assert.AnError
			}
			return value.Int(1), nil
		},
	})
	reg := b.Build()

	pn := &proto.Network{
		Nodes:   []proto.Node{{Op: "test/flaky", ID: "flaky", Identity: "id-flaky", Fingerprint: "fp-flaky"}},
		Outputs: []int{0},
	}

	ex := New(reg, Options{})
	ctx := context.Background()
	require.NoError(t, ex.Update(ctx, pn))

	_, err := ex.Eval(ctx, evalctx.Context{}, PolicyFailFast)
	require.Error(t, err)

	results, err := ex.Eval(ctx, evalctx.Context{}, PolicyFailFast)
	require.NoError(t, err, "a transient failure is retried, not replayed from cache")
	assert.Equal(t, value.Int(1), results[0].Value)
	assert.Equal(t, int64(2), calls.Load())
}

func TestCacheSweepsIdleEntries(t *testing.T) {
	counter := testutil.NewCounter()
	reg := testutil.NewCountingRegistry(counter)
	ex := New(reg, Options{MaxIdleGenerations: 2})
	ctx := context.Background()

	nw := graph.New()
	require.NoError(t, nw.AddNode("now", &graph.Node{Op: "context/time"}))
	nw.Outputs = []graph.NodeID{"now"}
	require.NoError(t, ex.Update(ctx, mustCompile(t, nw, reg)))

	eval := func(at float64) {
		results, err := ex.Eval(ctx, evalctx.Context{Time: at}, PolicyFailFast)
		require.NoError(t, err)
		assert.Equal(t, value.Float(at), results[0].Value)
	}

	eval(1)
	assert.Equal(t, 1, counter.Count("context/time"))

	// A pass under a different context ages the t=1 entry past the limit.
	eval(2)
	eval(1)
	assert.Equal(t, 3, counter.Count("context/time"), "the idle entry was swept and recomputed")
}

func TestEvalBeforeUpdateFails(t *testing.T) {
	counter := testutil.NewCounter()
	ex := New(testutil.NewCountingRegistry(counter), Options{})
	_, err := ex.Eval(context.Background(), evalctx.Context{}, PolicyFailFast)
	assert.ErrorIs(t, err, ErrNoNetwork)
}

func TestUpdateRejectsUnknownOp(t *testing.T) {
	counter := testutil.NewCounter()
	ex := New(testutil.NewCountingRegistry(counter), Options{})
	pn := &proto.Network{
		Nodes:   []proto.Node{{Op: "no/such", ID: "x", Identity: "i", Fingerprint: "f"}},
		Outputs: []int{0},
	}
	assert.Error(t, ex.Update(context.Background(), pn))
}

func TestUpdateDropsRemovedNodesAndTheirCaches(t *testing.T) {
	counter := testutil.NewCounter()
	reg := testutil.NewCountingRegistry(counter)
	ex := New(reg, Options{})
	ctx := context.Background()

	require.NoError(t, ex.Update(ctx, mustCompile(t, chainNetwork(t, 5), reg)))
	_, err := ex.Eval(ctx, evalctx.Context{}, PolicyFailFast)
	require.NoError(t, err)
	assert.Len(t, ex.nodes, 3)

	// Shrink to just the constant.
	nw := graph.New()
	require.NoError(t, nw.AddNode("const", &graph.Node{Op: "value/constant", Inputs: []graph.Input{graph.Constant(value.Int(5))}}))
	nw.Outputs = []graph.NodeID{"const"}
	require.NoError(t, ex.Update(ctx, mustCompile(t, nw, reg)))
	assert.Len(t, ex.nodes, 1)

	results, err := ex.Eval(ctx, evalctx.Context{}, PolicyFailFast)
	require.NoError(t, err)
	assert.Equal(t, value.Int(5), results[0].Value)
}

func TestEvalRepeatedPassesStayCached(t *testing.T) {
	counter := testutil.NewCounter()
	reg := testutil.NewCountingRegistry(counter)
	ex := New(reg, Options{})
	ctx := context.Background()
	require.NoError(t, ex.Update(ctx, mustCompile(t, chainNetwork(t, 5), reg)))

	for i := 0; i < 4; i++ {
		results, err := ex.Eval(ctx, evalctx.Context{}, PolicyFailFast)
		require.NoError(t, err)
		assert.Equal(t, value.Int(7), results[0].Value)
	}
	assert.Equal(t, 3, counter.Total(), "repeat passes never re-invoke")
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/protograph/protograph/internal/ctxlog"
	"github.com/protograph/protograph/internal/evalctx"
	"github.com/protograph/protograph/internal/metrics"
	"github.com/protograph/protograph/internal/proto"
	"github.com/protograph/protograph/internal/value"
)

// Result is one evaluated output. Under PolicyCollectPartial a failing
// output carries its error here while siblings still produce values.
type Result struct {
	// Index is the output's node index in the compiled network.
	Index int
	Value value.Value
	Err   *EvalError
}

// Eval evaluates the declared outputs against the given context. Independent
// branches evaluate concurrently. Under PolicyFailFast the first node
// failure aborts the whole evaluation and is returned as the error; under
// PolicyCollectPartial every output is attempted and failures land in the
// corresponding Result.
func (e *Executor) Eval(ctx context.Context, ec evalctx.Context, policy Policy) ([]Result, error) {
	if e.nodes == nil {
		return nil, ErrNoNetwork
	}
	defer func() {
		e.generation.Add(1)
		e.sweep()
	}()

	results := make([]Result, len(e.outputs))
	switch policy {
	case PolicyFailFast:
		g, gctx := errgroup.WithContext(ctx)
		for i, idx := range e.outputs {
			i, idx := i, idx
			g.Go(func() error {
				v, err := e.evalNode(gctx, e.nodes[idx], ec)
				if err != nil {
					return err
				}
				results[i] = Result{Index: idx, Value: v}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	case PolicyCollectPartial:
		var wg sync.WaitGroup
		for i, idx := range e.outputs {
			i, idx := i, idx
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := e.evalNode(ctx, e.nodes[idx], ec)
				if err != nil {
					results[i] = Result{Index: idx, Err: asEvalError(err, e.nodes[idx])}
					return
				}
				results[i] = Result{Index: idx, Value: v}
			}()
		}
		wg.Wait()
	default:
		return nil, fmt.Errorf("engine: unknown policy %d", policy)
	}

	ctxlog.FromContext(ctx).Debug("evaluation complete",
		"outputs", len(results), "generation", e.generation.Load())
	return results, nil
}

// evalNode produces the node's value: evaluate inputs, derive the cache key
// from their values plus the declared context subset, then serve from cache
// or claim the single in-flight computation for that key.
func (e *Executor) evalNode(ctx context.Context, n *evalNode, ec evalctx.Context) (value.Value, error) {
	inputs, err := e.evalInputs(ctx, n, ec)
	if err != nil {
		return nil, err
	}

	inputsHash, err := value.HashValues(value.DomainInputs, inputs)
	if err != nil {
		return nil, &EvalError{Path: splitID(n.id), Op: n.op, Err: err}
	}
	ctxHash, err := ec.Hash(n.spec.ContextMask)
	if err != nil {
		return nil, &EvalError{Path: splitID(n.id), Op: n.op, Err: err}
	}
	key := inputsHash + "\x00" + ctxHash

	gen := e.generation.Load()
	if v, ok := n.lookup(key, gen); ok {
		e.stats.cacheHits.Add(1)
		metrics.IncCacheHit()
		return v, nil
	}

	// The flight body runs detached from the caller's cancellation: a
	// superseded evaluation still finishes and publishes under its content
	// key, which a stale caller simply never looks up again.
	flightCtx := context.WithoutCancel(ctx)
	ch := n.flight.DoChan(key, func() (any, error) {
		// A racing requester may have published between the fast path and
		// the claim.
		if v, ok := n.lookup(key, gen); ok {
			e.stats.cacheHits.Add(1)
			metrics.IncCacheHit()
			return v, nil
		}
		e.stats.cacheMisses.Add(1)
		metrics.IncCacheMiss()
		e.stats.invocations.Add(1)
		metrics.IncNodeEval()

		out, err := n.spec.Eval(flightCtx, inputs, ec)
		if err != nil {
			// Errors are never published: a later evaluation retries.
			return nil, &EvalError{Path: splitID(n.id), Op: n.op, Err: err}
		}
		n.publish(key, out, gen)
		return out, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(value.Value), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// evalInputs resolves the node's input values. Constants are inline; node
// references recurse, fanning out concurrently when there are two or more.
func (e *Executor) evalInputs(ctx context.Context, n *evalNode, ec evalctx.Context) ([]value.Value, error) {
	vals := make([]value.Value, len(n.inputs))
	var refs []int
	for i, in := range n.inputs {
		if in.Kind == proto.InputConstant {
			vals[i] = in.Value
		} else {
			refs = append(refs, i)
		}
	}

	switch len(refs) {
	case 0:
	case 1:
		v, err := e.evalNode(ctx, n.preds[refs[0]], ec)
		if err != nil {
			return nil, err
		}
		vals[refs[0]] = v
	default:
		g, gctx := errgroup.WithContext(ctx)
		for _, i := range refs {
			i := i
			g.Go(func() error {
				v, err := e.evalNode(gctx, n.preds[i], ec)
				if err != nil {
					return err
				}
				vals[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return vals, nil
}

// asEvalError normalizes err for a Result slot, attributing non-node errors
// (context cancellation, hashing failures) to the output node.
func asEvalError(err error, n *evalNode) *EvalError {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee
	}
	return &EvalError{Path: splitID(n.id), Op: n.op, Err: err}
}

func splitID(id string) []string {
	return strings.Split(id, "/")
}

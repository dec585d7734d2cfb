package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/protograph/protograph/internal/ctxlog"
	"github.com/protograph/protograph/internal/metrics"
	"github.com/protograph/protograph/internal/proto"
	"github.com/protograph/protograph/internal/registry"
	"github.com/protograph/protograph/internal/value"
)

// DefaultMaxIdleGenerations is how many evaluation passes a cache entry may
// go untouched before the sweep drops it.
const DefaultMaxIdleGenerations = 4

// Options configures an Executor.
type Options struct {
	// MaxIdleGenerations overrides DefaultMaxIdleGenerations when positive.
	MaxIdleGenerations int
}

// Executor is the runtime mirror of a compiled network. It persists across
// many edits within a session; each edit feeds it a fresh network through
// Update, which rebuilds only what changed.
type Executor struct {
	reg     *registry.Registry
	maxIdle uint64

	nodes      []*evalNode
	outputs    []int
	generation atomic.Uint64

	stats statCounters
}

// evalNode is one built evaluable object: the op binding, the wiring to its
// predecessor objects, and the result cache slot.
type evalNode struct {
	op          string
	id          string
	identity    string
	fingerprint string
	spec        *registry.OpSpec

	// inputs and preds are aligned; preds[i] is nil for constant inputs.
	inputs []proto.Input
	preds  []*evalNode

	mu     sync.Mutex
	cache  map[string]cacheEntry
	flight singleflight.Group
}

type cacheEntry struct {
	val      value.Value
	lastUsed uint64
}

// New returns an empty executor bound to the host's immutable registry. Feed
// it a network with Update before the first Eval.
func New(reg *registry.Registry, opts Options) *Executor {
	maxIdle := uint64(DefaultMaxIdleGenerations)
	if opts.MaxIdleGenerations > 0 {
		maxIdle = uint64(opts.MaxIdleGenerations)
	}
	return &Executor{reg: reg, maxIdle: maxIdle}
}

// Update diffs the held network against pn by stable identity and rebuilds
// only the changed nodes. Nodes the new network no longer contains are
// dropped along with their cached results.
func (e *Executor) Update(ctx context.Context, pn *proto.Network) error {
	// Claim pools over the previous generation of objects. A node may appear
	// several times under one identity (equal sub-graphs), so identities pool
	// into slices; flat IDs are unique per network.
	byIdentity := make(map[string][]*evalNode, len(e.nodes))
	byID := make(map[string]*evalNode, len(e.nodes))
	for _, n := range e.nodes {
		byIdentity[n.identity] = append(byIdentity[n.identity], n)
		byID[n.id] = n
	}

	var built, reused int
	nodes := make([]*evalNode, len(pn.Nodes))
	for i := range pn.Nodes {
		pnode := &pn.Nodes[i]

		n := claim(byIdentity, byID, pnode)
		if n == nil {
			spec, ok := e.reg.Lookup(pnode.Op)
			if !ok {
				return fmt.Errorf("engine: network names unregistered op %q at %q", pnode.Op, pnode.ID)
			}
			n = &evalNode{
				op:          pnode.Op,
				spec:        spec,
				fingerprint: pnode.Fingerprint,
				cache:       make(map[string]cacheEntry),
			}
			built++
		} else {
			reused++
		}

		// Wiring and placement are positional properties of the new network;
		// refresh them even on reused objects. The cache map survives: its
		// keys are evaluated input values, not identities.
		n.id = pnode.ID
		n.identity = pnode.Identity
		n.inputs = pnode.Inputs
		n.preds = make([]*evalNode, len(pnode.Inputs))
		for j, in := range pnode.Inputs {
			if in.Kind == proto.InputIndex {
				n.preds[j] = nodes[in.Index]
			}
		}
		nodes[i] = n
	}

	e.nodes = nodes
	e.outputs = append([]int(nil), pn.Outputs...)
	e.stats.nodesBuilt.Add(uint64(built))
	e.stats.nodesReused.Add(uint64(reused))
	metrics.IncNodesBuilt(built)
	metrics.IncNodesReused(reused)
	ctxlog.FromContext(ctx).Debug("executor updated",
		"nodes", len(nodes), "built", built, "reused", reused)
	return nil
}

// claim pops a reusable object for pnode from the previous generation.
// Identity match wins: the whole sub-graph under the node is unchanged, so
// object and cache carry over untouched. Failing that, the object that held
// this flat ID is kept when its fingerprint still matches: same op, same own
// constants, only an upstream value changed.
func claim(byIdentity map[string][]*evalNode, byID map[string]*evalNode, pnode *proto.Node) *evalNode {
	if pool := byIdentity[pnode.Identity]; len(pool) > 0 {
		n := pool[len(pool)-1]
		byIdentity[pnode.Identity] = pool[:len(pool)-1]
		if byID[n.id] == n {
			delete(byID, n.id)
		}
		return n
	}
	n, ok := byID[pnode.ID]
	if !ok || n.fingerprint != pnode.Fingerprint {
		return nil
	}
	delete(byID, pnode.ID)
	pool := byIdentity[n.identity]
	for i, cand := range pool {
		if cand == n {
			byIdentity[n.identity] = append(pool[:i], pool[i+1:]...)
			break
		}
	}
	return n
}

// sweep drops cache entries untouched for maxIdle evaluation passes. Called
// between evaluations, so only the per-node lock is needed.
func (e *Executor) sweep() {
	gen := e.generation.Load()
	for _, n := range e.nodes {
		n.mu.Lock()
		for key, entry := range n.cache {
			if gen-entry.lastUsed >= e.maxIdle {
				delete(n.cache, key)
			}
		}
		n.mu.Unlock()
	}
}

// lookup returns the cached value for key, touching its generation stamp.
func (n *evalNode) lookup(key string, gen uint64) (value.Value, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	entry, ok := n.cache[key]
	if !ok {
		return nil, false
	}
	entry.lastUsed = gen
	n.cache[key] = entry
	return entry.val, true
}

// publish stores a successful result under key.
func (n *evalNode) publish(key string, v value.Value, gen uint64) {
	n.mu.Lock()
	n.cache[key] = cacheEntry{val: v, lastUsed: gen}
	n.mu.Unlock()
}

// statCounters accumulates evaluation counters; evaluation fans out across
// goroutines, so they are atomics.
type statCounters struct {
	nodesBuilt  atomic.Uint64
	nodesReused atomic.Uint64
	invocations atomic.Uint64
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64
}

// Stats is a point-in-time snapshot of the executor's counters.
type Stats struct {
	// NodesBuilt counts evaluable objects constructed across all updates.
	NodesBuilt uint64
	// NodesReused counts objects carried over across updates.
	NodesReused uint64
	// Invocations counts primitive implementation calls.
	Invocations uint64
	// CacheHits counts results served from the cache.
	CacheHits uint64
	// CacheMisses counts evaluations that missed the cache.
	CacheMisses uint64
}

// Stats snapshots the executor's counters.
func (e *Executor) Stats() Stats {
	return Stats{
		NodesBuilt:  e.stats.nodesBuilt.Load(),
		NodesReused: e.stats.nodesReused.Load(),
		Invocations: e.stats.invocations.Load(),
		CacheHits:   e.stats.cacheHits.Load(),
		CacheMisses: e.stats.cacheMisses.Load(),
	}
}

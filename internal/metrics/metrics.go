// Package metrics exposes process-wide counters for the compile and
// execution pipeline. Collectors register against the default prometheus
// registerer; hosts that scrape metrics expose them however they like, hosts
// that do not pay only an atomic increment.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	compilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "protograph_compiles_total",
		Help: "Network compilations by outcome.",
	}, []string{"outcome"})

	nodeEvalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "protograph_node_evaluations_total",
		Help: "Primitive node implementation invocations.",
	})

	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "protograph_cache_hits_total",
		Help: "Node results served from the cache.",
	})

	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "protograph_cache_misses_total",
		Help: "Node evaluations that missed the cache.",
	})

	nodesBuiltTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "protograph_executor_nodes_built_total",
		Help: "Evaluable objects constructed by executor updates.",
	})

	nodesReusedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "protograph_executor_nodes_reused_total",
		Help: "Evaluable objects carried over across executor updates.",
	})
)

// ObserveCompile records one compilation attempt.
func ObserveCompile(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	compilesTotal.WithLabelValues(outcome).Inc()
}

// IncNodeEval records one primitive implementation invocation.
func IncNodeEval() { nodeEvalsTotal.Inc() }

// IncCacheHit records a cache hit.
func IncCacheHit() { cacheHitsTotal.Inc() }

// IncCacheMiss records a cache miss.
func IncCacheMiss() { cacheMissesTotal.Inc() }

// IncNodesBuilt records evaluable objects constructed during an update.
func IncNodesBuilt(n int) { nodesBuiltTotal.Add(float64(n)) }

// IncNodesReused records evaluable objects reused during an update.
func IncNodesReused(n int) { nodesReusedTotal.Add(float64(n)) }

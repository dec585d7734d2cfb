// Package harness provides golden-file helpers for compiled network
// listings. Golden files are the source of truth for the compiler's
// deterministic output; a change in node order, elision or constant encoding
// shows up as a readable diff.
package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/protograph/protograph/internal/compile"
	"github.com/protograph/protograph/internal/graph"
	"github.com/protograph/protograph/internal/registry"
)

// AssertGolden compares data against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, data []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

// CompileDump compiles nw against reg and renders the deterministic,
// hash-free listing that golden files capture.
func CompileDump(t *testing.T, nw *graph.NodeNetwork, reg *registry.Registry) []byte {
	t.Helper()
	pn, err := compile.Compile(nw, reg)
	require.NoError(t, err)
	return []byte(pn.Dump())
}

package evalctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protograph/protograph/internal/value"
)

func TestSubsetCoversOnlyDeclaredFields(t *testing.T) {
	c := Context{Time: 1.5, Viewport: Footprint{Width: 800, Height: 600}, Scale: 2}

	assert.Empty(t, c.Subset(ReadsNothing))
	assert.Equal(t, value.Map{"time": value.Float(1.5)}, c.Subset(ReadsTime))

	full := c.Subset(ReadsTime | ReadsViewport | ReadsScale)
	assert.Len(t, full, 3)
}

func TestHashIsStableUnderIrrelevantChanges(t *testing.T) {
	a := Context{Time: 1, Scale: 2}
	b := Context{Time: 99, Scale: 2}

	ha, err := a.Hash(ReadsScale)
	require.NoError(t, err)
	hb, err := b.Hash(ReadsScale)
	require.NoError(t, err)
	assert.Equal(t, ha, hb, "undeclared fields never perturb the cache key")

	hc, err := b.Hash(ReadsScale | ReadsTime)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}

func TestReadsNothingHashesIdentically(t *testing.T) {
	ha, err := Context{Time: 1}.Hash(ReadsNothing)
	require.NoError(t, err)
	hb, err := Context{Time: 2, Scale: 9}.Hash(ReadsNothing)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

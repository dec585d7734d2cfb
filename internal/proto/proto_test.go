package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protograph/protograph/internal/value"
)

func TestFingerprintIgnoresReferences(t *testing.T) {
	identityOf := func(i int) string { return map[int]string{0: "aaa", 1: "bbb"}[i] }

	a, err := ComputeFingerprint("math/add", []Input{Index(0), Constant(value.Int(1))})
	require.NoError(t, err)
	b, err := ComputeFingerprint("math/add", []Input{Index(1), Constant(value.Int(1))})
	require.NoError(t, err)
	assert.Equal(t, a, b, "the fingerprint covers only the node's own configuration")

	ia, err := ComputeIdentity("math/add", []Input{Index(0), Constant(value.Int(1))}, identityOf)
	require.NoError(t, err)
	ib, err := ComputeIdentity("math/add", []Input{Index(1), Constant(value.Int(1))}, identityOf)
	require.NoError(t, err)
	assert.NotEqual(t, ia, ib, "the identity covers referenced inputs' identities")
}

func TestFingerprintCoversConstantPosition(t *testing.T) {
	a, err := ComputeFingerprint("op", []Input{Constant(value.Int(1)), Index(0)})
	require.NoError(t, err)
	b, err := ComputeFingerprint("op", []Input{Index(0), Constant(value.Int(1))})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestIdentityCoversOp(t *testing.T) {
	inputs := []Input{Constant(value.Int(1))}
	a, err := ComputeIdentity("math/add_one", inputs, nil)
	require.NoError(t, err)
	b, err := ComputeIdentity("math/negate", inputs, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNodePath(t *testing.T) {
	n := Node{ID: "wrap/pair/first"}
	assert.Equal(t, []string{"wrap", "pair", "first"}, n.Path())
}

package flatten_test

import (
	"testing"

	"github.com/mna/calx/lang/flatten"
	"github.com/mna/calx/lang/reader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func heads(t *testing.T, nodes []reader.Node) []string {
	t.Helper()
	var out []string
	for _, n := range nodes {
		require.False(t, n.IsLeaf)
		require.NotEmpty(t, n.Children)
		out = append(out, n.Children[0].Leaf)
	}
	return out
}

func TestOneAlreadyFlat(t *testing.T) {
	nodes, err := reader.Read(`(i.add 1 2)`)
	require.NoError(t, err)
	out, err := flatten.One(nodes[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"i.add"}, heads(t, out))
}

func TestOneNested(t *testing.T) {
	nodes, err := reader.Read(`(echo (i.add (const 1) (const 2)))`)
	require.NoError(t, err)
	out, err := flatten.One(nodes[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"const", "const", "i.add", "echo"}, heads(t, out))
}

func TestOneStructuralHeadUntouched(t *testing.T) {
	nodes, err := reader.Read(`(if (-> i64) (do (const 1)) (do (const 2)))`)
	require.NoError(t, err)
	out, err := flatten.One(nodes[0])
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "if", out[0].Children[0].Leaf)
}

func TestOneLeafAtTopIsError(t *testing.T) {
	_, err := flatten.One(reader.Node{IsLeaf: true, Leaf: "x"})
	require.Error(t, err)
}

func TestAllConcatenates(t *testing.T) {
	nodes, err := reader.Read(`(const 1)(echo (i.add (const 2) (const 3)))`)
	require.NoError(t, err)
	out, err := flatten.All(nodes)
	require.NoError(t, err)
	assert.Equal(t, []string{"const", "const", "const", "i.add", "echo"}, heads(t, out))
}

func TestOneIdempotentOnFlat(t *testing.T) {
	nodes, err := reader.Read(`(const 1)(const 2)(i.add)`)
	require.NoError(t, err)
	once, err := flatten.All(nodes)
	require.NoError(t, err)
	twice, err := flatten.All(once)
	require.NoError(t, err)
	assert.Equal(t, heads(t, once), heads(t, twice))
}

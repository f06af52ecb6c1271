package taxonomy

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draw(t *testing.T, tree *Tree, l, n int) []int {
	out := make([]int, n)
	for i := range out {
		id, err := tree.Next(l)
		require.NoError(t, err)
		out[i] = id
	}
	return out
}

func TestNextRoundRobin(t *testing.T) {
	// root 0 without samples, leaves 1 and 2 holding two samples each
	tree, err := Build([]string{"root", "a", "b"}, []int{1, 1, 2, 2},
		[]Pair{{Child: 0, Parent: NoParent}, {Child: 1, Parent: 0}, {Child: 2, Parent: 0}})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, 1, 3, 0, 2, 1, 3}, draw(t, tree, 0, 8))
}

func TestNextInternalSamples(t *testing.T) {
	// 0 -> {1, 2}, 2 -> {3}; root and leaf 1 hold samples internally
	tree, err := Build([]string{"r", "a", "b", "c"}, []int{0, 1, 3, 3},
		[]Pair{{Child: 1, Parent: 0}, {Child: 2, Parent: 0}, {Child: 3, Parent: 2}})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 0, 1, 3, 0}, draw(t, tree, 0, 6))
	assert.False(t, tree.Node(2).Empty())
	assert.True(t, tree.Node(2).InternallyEmpty())
}

func TestNextSkipsEmptyChildren(t *testing.T) {
	tree, err := Build([]string{"r", "empty", "full"}, []int{2, 2},
		[]Pair{{Child: 1, Parent: 0}, {Child: 2, Parent: 0}})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 0, 1}, draw(t, tree, 0, 4))

	_, err = tree.Next(1)
	assert.Equal(t, ErrEmptyNode, errors.Cause(err))
}

func TestExclude(t *testing.T) {
	// 0 -> {1, 2}, 2 -> {3}; root and leaf 1 hold samples internally
	tree, err := Build([]string{"r", "a", "b", "c"}, []int{0, 1, 3, 3},
		[]Pair{{Child: 1, Parent: 0}, {Child: 2, Parent: 0}, {Child: 3, Parent: 2}})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 3}, tree.CompleteDepth(2))

	require.NoError(t, tree.Exclude([]bool{true, false, false, true}))
	assert.True(t, tree.Node(0).Excluded())
	assert.True(t, tree.Node(0).InternallyEmpty())
	assert.False(t, tree.Node(0).Empty())
	assert.True(t, tree.Node(2).Empty())
	assert.Equal(t, []int{1, 3}, tree.CompleteDepth(2))
	assert.Equal(t, []int{1, 1, 1, 1}, draw(t, tree, 0, 4))

	_, err = tree.Next(3)
	assert.Equal(t, ErrEmptyNode, errors.Cause(err))

	assert.Error(t, tree.Exclude([]bool{true}))

	require.NoError(t, tree.Exclude(nil))
	assert.False(t, tree.Node(0).Excluded())
	assert.False(t, tree.Node(2).Empty())
	assert.Equal(t, []int{0, 1, 3}, tree.CompleteDepth(2))
}

func TestDepths(t *testing.T) {
	tree, err := Build([]string{"r", "a", "b", "c"}, []int{0, 1, 3, 3},
		[]Pair{{Child: 1, Parent: 0}, {Child: 2, Parent: 0}, {Child: 3, Parent: 2}})
	require.NoError(t, err)

	require.Equal(t, 3, tree.NumDepths())
	assert.Equal(t, []int{0}, tree.Depth(0))
	assert.Equal(t, []int{1, 2}, tree.Depth(1))
	assert.Equal(t, []int{3}, tree.Depth(2))

	assert.Equal(t, []int{0}, tree.CompleteDepth(0))
	assert.Equal(t, []int{0, 1, 2}, tree.CompleteDepth(1))
	assert.Equal(t, []int{0, 1, 3}, tree.CompleteDepth(2))
	assert.Equal(t, []int{0, 1, 2, 3}, tree.NodesByDepth())

	t.Run("label at depth", func(t *testing.T) {
		assert.Equal(t, 0, tree.Label(3, 0))
		assert.Equal(t, 2, tree.Label(3, 1))
		assert.Equal(t, 3, tree.Label(3, 2))
		assert.Equal(t, 1, tree.Label(1, 5))
	})

	t.Run("ancestry", func(t *testing.T) {
		assert.True(t, tree.IsAncestor(0, 3))
		assert.True(t, tree.IsAncestor(3, 3))
		assert.False(t, tree.IsAncestor(1, 3))
		assert.Equal(t, "c <- b <- r", tree.PathString(3))
	})
}

func TestFlat(t *testing.T) {
	tree, err := Build([]string{"", ""}, []int{0, 1, 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, tree.NumDepths())
	assert.Equal(t, []int{0, 1}, tree.CompleteDepth(0))
	assert.Equal(t, "1", tree.Node(1).Name)

	flat, err := Build([]string{"a", "b"}, []int{0, 1}, Flat(2))
	require.NoError(t, err)
	assert.Equal(t, 1, flat.NumDepths())
}

func TestBuildErrors(t *testing.T) {
	names := []string{"a", "b", "c"}
	tests := []struct {
		name    string
		labels  []int
		parents []Pair
		want    error
	}{
		{"cycle", nil, []Pair{{Child: 1, Parent: 0}, {Child: 0, Parent: 1}}, ErrCycle},
		{"self parent", nil, []Pair{{Child: 0, Parent: 0}}, ErrCycle},
		{"dangling parent", nil, []Pair{{Child: 0, Parent: 5}}, ErrDanglingParent},
		{"unknown child", nil, []Pair{{Child: 3, Parent: 0}}, ErrDanglingParent},
		{"duplicate child", nil, []Pair{{Child: 1, Parent: 0}, {Child: 1, Parent: 0}}, ErrDuplicateChild},
		{"second parent", nil, []Pair{{Child: 2, Parent: 0}, {Child: 2, Parent: 1}}, ErrDuplicateChild},
		{"label out of range", []int{0, 3}, nil, ErrLabelOutOfRange},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(names, tc.labels, tc.parents)
			require.Error(t, err)
			assert.Equal(t, tc.want, errors.Cause(err))
		})
	}
}

func TestCursors(t *testing.T) {
	tree, err := Build([]string{"root", "a", "b"}, []int{1, 1, 2, 2},
		[]Pair{{Child: 1, Parent: 0}, {Child: 2, Parent: 0}})
	require.NoError(t, err)

	draw(t, tree, 0, 3)
	saved := tree.Cursors()
	next := draw(t, tree, 0, 3)

	require.NoError(t, tree.SetCursors(saved))
	assert.Equal(t, next, draw(t, tree, 0, 3))

	tree.Reset()
	assert.Equal(t, []int{0, 2}, draw(t, tree, 0, 2))

	assert.Error(t, tree.SetCursors(nil))
}

func TestParentsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parents.csv")
	pairs := []Pair{{Child: 0, Parent: NoParent}, {Child: 1, Parent: 0}}
	require.NoError(t, WriteParentsCSV(path, pairs))

	loaded, err := LoadParentsCSV(path)
	require.NoError(t, err)
	assert.Equal(t, pairs, loaded)

	_, err = LoadParentsCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

package sampler

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsawler/go-datasource/taxonomy"
)

// animal -> {cat, dog}, plant. Samples: 3 cats, 1 dog, 2 plants.
var (
	zooLabels = []int32{1, 1, 1, 2, 3, 3}
	zooNames  = []string{"animal", "cat", "dog", "plant"}
	zooTree   = []taxonomy.Pair{
		{Child: 0, Parent: taxonomy.NoParent},
		{Child: 1, Parent: 0},
		{Child: 2, Parent: 0},
		{Child: 3, Parent: taxonomy.NoParent},
	}
)

func zooOptions() Options {
	opts := roundRobinOptions()
	opts.ClassNames = zooNames
	opts.Parents = zooTree
	return opts
}

func newZoo(t *testing.T, opts Options) *Hierarchy {
	t.Helper()
	h, err := NewHierarchy(newTestStore(t, len(zooLabels)), newTestLabels(t, zooLabels...), opts)
	require.NoError(t, err)
	return h
}

func TestHierarchyDepths(t *testing.T) {
	h := newZoo(t, zooOptions())

	assert.Equal(t, 1, h.MaxDepth())
	assert.Equal(t, 4, h.NClasses())
	assert.Equal(t, zooNames, h.ClassNames())
	assert.Equal(t, []int{0, 0, 0, 0, 3, 3}, h.DepthLabels())

	require.NoError(t, h.SelectSample(0))
	assert.Equal(t, 0, h.CurrentClass())
	assert.Equal(t, []float32{0}, h.CurrentLabel())

	h.IncrCurrentDepth()
	assert.Equal(t, 1, h.CurrentDepth())
	assert.Equal(t, []int{1, 1, 1, 2, 3, 3}, h.DepthLabels())
	assert.Equal(t, 1, h.CurrentClass())

	h.IncrCurrentDepth()
	assert.Equal(t, 1, h.CurrentDepth(), "stays at the maximum depth")

	err := h.SetCurrentDepth(2)
	assert.Equal(t, ErrDepthOutOfRange, errors.Cause(err))
	assert.Equal(t, 1, h.CurrentDepth())

	l, err := h.LabelAt(3, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, l)
}

func TestHierarchyAncestry(t *testing.T) {
	h := newZoo(t, zooOptions())

	ok, err := h.IsParentOf(0, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.IsParentOf(1, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.IsParentOf(3, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.IsParentOf(0, 9)
	assert.Error(t, err)

	assert.Equal(t, "cat <- animal", h.Path(1))
	assert.Equal(t, "plant", h.Path(3))
}

func TestHierarchyDepthBalanced(t *testing.T) {
	opts := zooOptions()
	opts.DepthBalanced = true
	h := newZoo(t, opts)

	var nodes, samples []int
	seen := make([]int, len(zooLabels))
	for !h.EpochDone() {
		picked, err := h.NextTrain()
		require.NoError(t, err)
		require.True(t, picked)
		nodes = append(nodes, h.CurrentClass())
		samples = append(samples, h.Current())
		seen[h.Current()]++
		require.Less(t, len(nodes), 100)
	}

	// animal and plant alternate, animal alternating cat and dog
	assert.Equal(t, []int{0, 3, 0, 3, 0, 3, 0, 3, 0}, nodes)
	assert.Equal(t, []int{1, 3, 2, 3, 1, 3, 2, 3, 1}, labelsOf(samples))
	for i, n := range seen {
		assert.GreaterOrEqual(t, n, 1, "sample %d", i)
	}

	t.Run("deeper level", func(t *testing.T) {
		h := newZoo(t, opts)
		require.NoError(t, h.SetCurrentDepth(1))

		var got []int
		for i := 0; i < 6; i++ {
			_, err := h.NextTrain()
			require.NoError(t, err)
			got = append(got, h.CurrentClass())
		}
		assert.Equal(t, []int{1, 2, 3, 1, 2, 3}, got)
	})
}

func labelsOf(samples []int) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		out[i] = int(zooLabels[s])
	}
	return out
}

func TestHierarchyDepthBalancedExclusion(t *testing.T) {
	opts := zooOptions()
	opts.DepthBalanced = true
	opts.Limit = &ClassLimit{N: 2}
	h := newZoo(t, opts)

	// only animal and cat are included, so dog and plant samples are never served
	for i := 0; i < 12; i++ {
		picked, err := h.NextTrain()
		require.NoError(t, err)
		require.True(t, picked)
		require.True(t, h.Included(h.Current()), "sample %d", h.Current())
		assert.Equal(t, int32(1), zooLabels[h.Current()])
	}

	t.Run("limited after construction", func(t *testing.T) {
		opts := zooOptions()
		opts.DepthBalanced = true
		h := newZoo(t, opts)
		require.NoError(t, h.LimitClasses(1, 2, false))

		for i := 0; i < 4; i++ {
			_, err := h.NextTrain()
			require.NoError(t, err)
			assert.Equal(t, 3, h.Current(), "only the dog sample is served")
		}
	})

	t.Run("no included sample", func(t *testing.T) {
		opts := zooOptions()
		opts.DepthBalanced = true
		h := newZoo(t, opts)
		require.NoError(t, h.LimitClasses(1, 0, false))

		_, err := h.NextTrain()
		assert.Equal(t, ErrNoSamples, errors.Cause(err))
	})
}

func TestHierarchyClassBalanced(t *testing.T) {
	h := newZoo(t, zooOptions())

	// classes balance over taxonomy ids, the empty animal node is skipped
	var got []int
	for i := 0; i < 6; i++ {
		_, err := h.NextTrain()
		require.NoError(t, err)
		got = append(got, int(zooLabels[h.Current()]))
	}
	assert.Equal(t, []int{1, 2, 3, 1, 2, 3}, got)
}

func TestHierarchyConstruction(t *testing.T) {
	t.Run("flat without parents", func(t *testing.T) {
		opts := zooOptions()
		opts.Parents = nil
		h := newZoo(t, opts)
		assert.Equal(t, 0, h.MaxDepth())
		assert.Equal(t, []int{1, 1, 1, 2, 3, 3}, h.DepthLabels())
	})

	t.Run("cycle", func(t *testing.T) {
		opts := zooOptions()
		opts.Parents = []taxonomy.Pair{{Child: 0, Parent: 1}, {Child: 1, Parent: 0}}
		_, err := NewHierarchy(newTestStore(t, len(zooLabels)), newTestLabels(t, zooLabels...), opts)
		assert.Equal(t, taxonomy.ErrCycle, errors.Cause(err))
	})

	t.Run("depth out of range", func(t *testing.T) {
		opts := zooOptions()
		opts.Depth = 3
		_, err := NewHierarchy(newTestStore(t, len(zooLabels)), newTestLabels(t, zooLabels...), opts)
		assert.Equal(t, ErrDepthOutOfRange, errors.Cause(err))
	})

	t.Run("test only", func(t *testing.T) {
		opts := zooOptions()
		opts.TestOnly = true
		opts.DepthBalanced = true
		h := newZoo(t, opts)
		_, err := h.NextTrain()
		assert.Equal(t, ErrTestOnly, errors.Cause(err))
	})
}

func TestHierarchyReport(t *testing.T) {
	h := newZoo(t, zooOptions())
	r := h.Report()
	assert.Equal(t, []int{0, 0, 0, 0, 3, 3}, r.Labels)
	assert.Equal(t, 4, r.NClasses)
	assert.Equal(t, zooNames, r.ClassNames)
}

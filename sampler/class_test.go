package sampler

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// labels 0 x6, 1 x3, 2 x1
var unevenLabels = []int32{0, 0, 0, 0, 0, 0, 1, 1, 1, 2}

func roundRobinOptions() Options {
	opts := testOptions()
	opts.Weigh.Enabled = false
	opts.RandomClassOrder = false
	return opts
}

func TestClassRoundRobin(t *testing.T) {
	c, err := NewClass(newTestStore(t, len(unevenLabels)), newTestLabels(t, unevenLabels...), roundRobinOptions())
	require.NoError(t, err)

	var classes []int
	for i := 0; i < 9; i++ {
		picked, err := c.NextTrain()
		require.NoError(t, err)
		require.True(t, picked)
		classes = append(classes, c.CurrentClass())
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0, 1, 2}, classes)
}

func TestClassRandomOrderIsFair(t *testing.T) {
	opts := testOptions()
	opts.Weigh.Enabled = false
	c, err := NewClass(newTestStore(t, len(unevenLabels)), newTestLabels(t, unevenLabels...), opts)
	require.NoError(t, err)

	counts := make([]int, 3)
	for i := 0; i < 300; i++ {
		_, err := c.NextTrain()
		require.NoError(t, err)
		counts[c.CurrentClass()]++
	}
	assert.Equal(t, []int{100, 100, 100}, counts)
}

func TestClassSeeAllOnce(t *testing.T) {
	// 4, 2 and 1 samples: rounds serve class 0 first, so the fourth round
	// ends the epoch as soon as class 0 is served
	labels := []int32{0, 0, 0, 0, 1, 1, 2}
	c, err := NewClass(newTestStore(t, len(labels)), newTestLabels(t, labels...), roundRobinOptions())
	require.NoError(t, err)

	seen := make([]int, len(labels))
	calls := 0
	for !c.EpochDone() {
		_, err := c.NextTrain()
		require.NoError(t, err)
		seen[c.Current()]++
		calls++
		require.Less(t, calls, 100)
	}
	assert.Equal(t, 10, calls)
	for i := 0; i < 4; i++ {
		assert.Equal(t, 1, seen[i], "class 0 sample %d", i)
	}
	for i := 4; i < 7; i++ {
		assert.GreaterOrEqual(t, seen[i], 1)
	}

	c.InitEpoch()
	assert.False(t, c.EpochDone())
	assert.Equal(t, []int{4, 2, 1}, c.Remaining())
}

func TestClassFixedCountEpoch(t *testing.T) {
	opts := roundRobinOptions()
	opts.EpochMode = FixedCount
	c, err := NewClass(newTestStore(t, len(unevenLabels)), newTestLabels(t, unevenLabels...), opts)
	require.NoError(t, err)

	// lowest common size: 1 sample times 3 classes
	assert.Equal(t, 3, c.EpochSize())
	for i := 0; i < 3; i++ {
		assert.False(t, c.EpochDone())
		_, err := c.NextTrain()
		require.NoError(t, err)
	}
	assert.True(t, c.EpochDone())
}

func TestClassUnbalanced(t *testing.T) {
	opts := roundRobinOptions()
	opts.Balanced = false
	c, err := NewClass(newTestStore(t, len(unevenLabels)), newTestLabels(t, unevenLabels...), opts)
	require.NoError(t, err)

	counts := make([]int, 3)
	for i := 0; i < len(unevenLabels); i++ {
		_, err := c.NextTrain()
		require.NoError(t, err)
		counts[c.CurrentClass()]++
	}
	assert.Equal(t, []int{6, 3, 1}, counts)
}

func TestClassProbabilities(t *testing.T) {
	opts := roundRobinOptions()
	opts.ClassProbabilities = []float64{0, 0, 2}
	c, err := NewClass(newTestStore(t, len(unevenLabels)), newTestLabels(t, unevenLabels...), opts)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		_, err := c.NextTrain()
		require.NoError(t, err)
		assert.Equal(t, 2, c.CurrentClass())
	}

	t.Run("invalid vectors", func(t *testing.T) {
		assert.Equal(t, ErrClassProbabilities, errors.Cause(c.SetClassProbabilities([]float64{1, 1})))
		assert.Equal(t, ErrClassProbabilities, errors.Cause(c.SetClassProbabilities([]float64{1, -1, 1})))
		assert.Equal(t, ErrClassProbabilities, errors.Cause(c.SetClassProbabilities([]float64{0, 0, 0})))
	})

	t.Run("only empty classes drawable", func(t *testing.T) {
		opts := roundRobinOptions()
		opts.ClassNames = []string{"a", "b", "c", "d"}
		opts.ClassProbabilities = []float64{0, 0, 0, 1}
		c, err := NewClass(newTestStore(t, len(unevenLabels)), newTestLabels(t, unevenLabels...), opts)
		require.NoError(t, err)
		_, err = c.NextTrain()
		assert.Equal(t, ErrClassProbabilities, errors.Cause(err))
	})
}

func TestLimitClasses(t *testing.T) {
	labels := []int32{0, 0, 1, 1, 2, 2, 3, 3, 4, 4}
	opts := roundRobinOptions()
	opts.Limit = &ClassLimit{N: 2, Offset: 1}
	c, err := NewClass(newTestStore(t, len(labels)), newTestLabels(t, labels...), opts)
	require.NoError(t, err)

	assert.Equal(t, 2, c.NClasses())
	assert.Equal(t, 5, c.TotalClasses())
	assert.Equal(t, []string{"1", "2"}, c.ClassNames())
	assert.Equal(t, 4, c.CountIncluded())
	assert.Equal(t, 0, c.Class(2), "original class 1 comes first")
	assert.Equal(t, 1, c.Class(4))
	assert.Equal(t, 2, c.Class(0), "excluded classes follow")
	assert.Equal(t, 0, c.ClassID("1"))
	assert.Equal(t, -1, c.ClassID("0"))

	c.SeekBegin()
	var seen []int
	for {
		seen = append(seen, c.Current())
		if !c.Next() {
			break
		}
	}
	assert.Equal(t, []int{2, 3, 4, 5}, seen)

	for i := 0; i < 20; i++ {
		picked, err := c.NextTrain()
		require.NoError(t, err)
		require.True(t, picked)
		assert.True(t, c.Included(c.Current()))
	}

	t.Run("ignored limits", func(t *testing.T) {
		c, err := NewClass(newTestStore(t, len(labels)), newTestLabels(t, labels...), roundRobinOptions())
		require.NoError(t, err)
		require.NoError(t, c.LimitClasses(5, 0, false))
		assert.Equal(t, 5, c.NClasses())
		require.NoError(t, c.LimitClasses(2, 5, false))
		assert.Equal(t, 5, c.NClasses())
		assert.Equal(t, ErrInvalidOption, errors.Cause(c.LimitClasses(0, 0, false)))
	})

	t.Run("random selection", func(t *testing.T) {
		c, err := NewClass(newTestStore(t, len(labels)), newTestLabels(t, labels...), roundRobinOptions())
		require.NoError(t, err)
		require.NoError(t, c.LimitClasses(3, 0, true))
		assert.Equal(t, 3, c.NClasses())
		assert.Equal(t, 6, c.CountIncluded())
	})

	t.Run("unbalanced training skips excluded samples", func(t *testing.T) {
		opts := roundRobinOptions()
		opts.Balanced = false
		opts.Limit = &ClassLimit{N: 2, Offset: 1}
		c, err := NewClass(newTestStore(t, len(labels)), newTestLabels(t, labels...), opts)
		require.NoError(t, err)
		for i := 0; i < 30; i++ {
			picked, err := c.NextTrain()
			require.NoError(t, err)
			assert.Equal(t, c.Included(c.Current()), picked)
		}
	})
}

func TestClassNames(t *testing.T) {
	opts := testOptions()
	opts.ClassNames = []string{"cat", "dog", "", "bird"}
	c, err := NewClass(newTestStore(t, len(unevenLabels)), newTestLabels(t, unevenLabels...), opts)
	require.NoError(t, err)

	assert.Equal(t, 4, c.NClasses(), "named classes without samples count")
	assert.Equal(t, []string{"cat", "dog", "2", "bird"}, c.ClassNames())
	name, err := c.ClassName(3)
	require.NoError(t, err)
	assert.Equal(t, "bird", name)
	_, err = c.ClassName(4)
	assert.Equal(t, ErrIndexOutOfRange, errors.Cause(err))
	assert.Equal(t, []int{6, 3, 1, 0}, c.ClassCounts())
}

func TestClassPerClassNormalization(t *testing.T) {
	c, err := NewClass(newTestStore(t, len(unevenLabels)), newTestLabels(t, unevenLabels...), testOptions())
	require.NoError(t, err)

	// class 2 has a single sample with a low energy, it still gets the
	// highest probability of its own class
	energies := []float64{1, 2, 3, 4, 5, 6, 10, 20, 30, 0.5}
	for i, e := range energies {
		require.NoError(t, c.SelectSample(i))
		require.NoError(t, c.ReportResult(Result{Energy: e}))
	}
	c.NormalizeAll()
	assert.Equal(t, 1.0, c.Proba(9))
	assert.Equal(t, 1.0, c.Proba(5))
	assert.Equal(t, 1.0, c.Proba(8))
	assert.Equal(t, 0.0, c.Proba(0))
}

func TestClassStarvedClassIsForced(t *testing.T) {
	labels := []int32{0, 0, 0, 1, 1, 2}
	opts := testOptions()
	opts.ShufflePasses = false
	opts.RandomClassOrder = false
	c, err := NewClass(newTestStore(t, len(labels)), newTestLabels(t, labels...), opts)
	require.NoError(t, err)

	// no sample of class 0 can be picked, and after the wrap only the
	// hardest one can
	part := c.partitions[0]
	for i, e := range []float64{1, 1, 2} {
		c.energies[part[i]] = e
		c.correct[part[i]] = false
		c.probas[part[i]] = 0
	}

	start := c.Remaining()[0]
	for i := 0; i < len(part); i++ {
		picked, err := c.NextTrain()
		require.NoError(t, err)
		assert.False(t, picked)
		assert.Equal(t, part[i], c.Current())
		assert.Equal(t, start-i-1, c.Remaining()[0])
	}
	assert.Equal(t, 0.0, c.Proba(part[0]))
	assert.Equal(t, 1.0, c.Proba(part[2]))

	// the class has been passed over more times than it has samples
	picked, err := c.NextTrain()
	require.NoError(t, err)
	assert.True(t, picked)
	assert.Equal(t, part[0], c.Current())
	assert.Equal(t, 0.0, c.Proba(part[0]))
	assert.Equal(t, start-len(part)-1, c.Remaining()[0])

	picked, err = c.NextTrain()
	require.NoError(t, err)
	assert.True(t, picked)
	assert.Equal(t, 1, c.CurrentClass())
}

func TestClassReport(t *testing.T) {
	c, err := NewClass(newTestStore(t, len(unevenLabels)), newTestLabels(t, unevenLabels...), roundRobinOptions())
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err := c.NextTrain()
		require.NoError(t, err)
	}

	r := c.Report()
	assert.Equal(t, 3, r.NClasses)
	assert.Equal(t, []int{2, 2, 2}, r.ClassPickCounts())
	assert.Len(t, r.Labels, len(unevenLabels))
	assert.InDelta(t, 0.5, r.PickedFraction(), 1e-9)
}

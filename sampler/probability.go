package sampler

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
)

// Energy percentiles bounding the probability ramp. Using pivots rather
// than the extrema keeps single outliers from flattening every other
// sample's probability.
const (
	lowPivot  = 0.25
	highPivot = 1.0
)

// normalize recomputes picking probabilities of the given samples, or of
// every sample when indices is nil, from their last energies. Misclassified
// samples with energies at or below the low pivot get probability 0, those
// at the high pivot 1, linearly in between.
func (b *Base) normalize(indices []int) {
	if !b.weigh.Enabled || b.testOnly {
		return
	}
	if indices == nil {
		indices = b.allIndices()
	}

	var (
		incorrect            []float64
		ncorrect, nincorrect int
		maxEnergy            float64
	)
	for _, i := range indices {
		e := b.energies[i]
		if e < 0 { // not observed yet
			continue
		}
		if b.correct[i] {
			ncorrect++
			if b.ignoreCorrect {
				continue
			}
		} else {
			nincorrect++
			incorrect = append(incorrect, e)
		}
		maxEnergy = math.Max(maxEnergy, e)
	}

	if nincorrect == 0 {
		for _, i := range indices {
			b.probas[i] = 1
		}
		b.logger.Debug("Normalizing probabilities",
			zap.Int("samples", len(indices)), zap.Int("ncorrect", ncorrect), zap.Int("nincorrect", 0))
		return
	}

	sort.Float64s(incorrect)
	e1 := incorrect[int(float64(len(incorrect))*lowPivot)]
	e2 := incorrect[minInt(len(incorrect)-1, int(float64(len(incorrect))*highPivot))]
	den := e2 - e1

	minProba, maxProba := math.Inf(1), 0.0
	for _, i := range indices {
		e := b.energies[i]
		switch {
		case e >= 0 && b.ignoreCorrect && b.correct[i]:
			b.probas[i] = 0
		case e < 0 || maxEnergy == 0 || den == 0:
			b.probas[i] = 1
		default:
			p := math.Max(0, math.Min((e-e1)/den, 1))
			if !b.weigh.HardestFocus {
				p = 1 - p
			}
			p = math.Max(p, b.weigh.MinProba)
			b.probas[i] = p
			minProba = math.Min(minProba, p)
			maxProba = math.Max(maxProba, p)
		}
	}

	if ce := b.logger.Check(zap.DebugLevel, "Normalizing probabilities"); ce != nil {
		mean, _ := stats.Mean(incorrect)
		median, _ := stats.Median(incorrect)
		ce.Write(zap.Int("samples", len(indices)),
			zap.Int("ncorrect", ncorrect), zap.Int("nincorrect", nincorrect),
			zap.Float64("max_energy", maxEnergy),
			zap.Float64("mean_incorrect_energy", mean),
			zap.Float64("median_incorrect_energy", median),
			zap.Float64("pivot_low", e1), zap.Float64("pivot_high", e2),
			zap.Float64("min_proba", minProba), zap.Float64("max_proba", maxProba))
	}
}

func (b *Base) allIndices() []int {
	all := make([]int, b.n)
	for i := range all {
		all[i] = i
	}
	return all
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

package diagnostics

import (
	"github.com/montanaflynn/stats"
	"github.com/tsawler/go-datasource/sampler"
	"go.uber.org/zap"
)

// Summary condenses a sampler report
type Summary struct {
	Samples   int
	Observed  int
	Incorrect int

	MeanEnergy   float64
	MedianEnergy float64
	MaxEnergy    float64
	P90Energy    float64

	MeanProba float64
	MinProba  float64

	PickedFraction float64
	MeanPickCount  float64
	MaxPickCount   int
}

// Summarize computes statistics over the observed samples of a report.
// Energy statistics are zero when nothing was observed.
func Summarize(r *sampler.Report) Summary {
	s := Summary{
		Samples:        len(r.PickCounts),
		PickedFraction: r.PickedFraction(),
	}

	var energies stats.Float64Data
	for i, e := range r.Energies {
		if !r.Observed[i] {
			continue
		}
		s.Observed++
		if !r.Correct[i] {
			s.Incorrect++
		}
		energies = append(energies, e)
	}
	if len(energies) > 0 {
		s.MeanEnergy, _ = energies.Mean()
		s.MedianEnergy, _ = energies.Median()
		s.MaxEnergy, _ = energies.Max()
		s.P90Energy, _ = energies.Percentile(90)
	}

	if len(r.Probas) > 0 {
		probas := stats.Float64Data(r.Probas)
		s.MeanProba, _ = probas.Mean()
		s.MinProba, _ = probas.Min()
	}

	if len(r.PickCounts) > 0 {
		counts := stats.LoadRawData(r.PickCounts)
		s.MeanPickCount, _ = counts.Mean()
		maxCount, _ := counts.Max()
		s.MaxPickCount = int(maxCount)
	}
	return s
}

// Fields returns the summary as log fields
func (s Summary) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("samples", s.Samples),
		zap.Int("observed", s.Observed),
		zap.Int("incorrect", s.Incorrect),
		zap.Float64("mean_energy", s.MeanEnergy),
		zap.Float64("median_energy", s.MedianEnergy),
		zap.Float64("p90_energy", s.P90Energy),
		zap.Float64("max_energy", s.MaxEnergy),
		zap.Float64("mean_proba", s.MeanProba),
		zap.Float64("min_proba", s.MinProba),
		zap.Float64("picked_fraction", s.PickedFraction),
		zap.Float64("mean_pick_count", s.MeanPickCount),
		zap.Int("max_pick_count", s.MaxPickCount),
	}
}

package sampler

import (
	"fmt"
	"math/rand/v2"

	"github.com/tsawler/go-datasource/taxonomy"
	"go.uber.org/zap"
)

// EpochMode defines when an adaptive epoch ends
type EpochMode int

const (
	// FixedCount ends an epoch after EpochSize samples
	FixedCount EpochMode = iota
	// SeeAllOnce ends an epoch once every sample (every class, when
	// balanced) has been considered at least once
	SeeAllOnce
)

func (m EpochMode) String() string {
	switch m {
	case FixedCount:
		return "fixed number of samples"
	case SeeAllOnce:
		return "see all samples at least once"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// Weighing configures difficulty-based picking probabilities
type Weighing struct {
	Enabled bool
	// HardestFocus favours the highest-energy misclassified samples,
	// otherwise the easiest misclassified ones are favoured
	HardestFocus bool
	// PerClassNorm normalizes probabilities within each class when balanced
	PerClassNorm bool
	// MinProba floors the computed probability of observed samples
	MinProba float64
}

// ClassLimit restricts training to N classes starting at Offset. With
// Random, a random selection of N classes is kept instead.
type ClassLimit struct {
	N      int
	Offset int
	Random bool
}

// Options configures a sampler. Start from DefaultOptions; the zero value
// disables shuffling, weighing and balancing.
type Options struct {
	Name   string
	Logger *zap.Logger

	// Seed seeds the sampler's generator when Source is nil
	Seed uint64
	// Source, when set, is shared with the sampler instead of seeding a
	// new generator
	Source *rand.PCG

	ShufflePasses bool
	Weigh         Weighing
	IgnoreCorrect bool
	KeepOutputs   bool
	TestOnly      bool

	EpochMode EpochMode
	// EpochSize is the number of samples of a FixedCount epoch. Zero picks
	// a default: the sample count, or the lowest common class size times
	// the number of classes for class samplers.
	EpochSize int
	// EpochShow is the progress logging period in samples, 0 disables it
	EpochShow int

	DataBias  float32
	DataCoeff float32

	// Class samplers
	ClassNames         []string
	Balanced           bool
	RandomClassOrder   bool
	ClassProbabilities []float64
	Limit              *ClassLimit

	// Hierarchy samplers
	Parents       []taxonomy.Pair
	DepthBalanced bool
	Depth         int
}

// DefaultOptions returns the options a sampler uses unless told otherwise
func DefaultOptions() Options {
	return Options{
		Name:          "Unknown Dataset",
		ShufflePasses: true,
		Weigh: Weighing{
			Enabled:      true,
			HardestFocus: true,
			PerClassNorm: true,
		},
		EpochMode:        SeeAllOnce,
		EpochShow:        50,
		DataCoeff:        1,
		Balanced:         true,
		RandomClassOrder: true,
	}
}

func (o *Options) logger() *zap.Logger {
	l := o.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return l.Named(o.Name)
}

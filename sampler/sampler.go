// Package sampler decides which sample a learner sees next. Samplers offer
// two iterators over a store: a deterministic test pass visiting every
// sample once in order, and an adaptive training stream that favours
// misclassified samples and, for class samplers, balances classes or
// taxonomy nodes.
package sampler

import "github.com/tsawler/go-datasource/dataset"

// Sampler is implemented by Base, Labeled, Class and Hierarchy
type Sampler interface {
	Name() string
	Size() int

	// Next advances the test cursor. It returns false, after rewinding to
	// the first sample, once a full pass is complete.
	Next() bool
	// NextTrain advances the adaptive cursor and reports whether the new
	// current sample is picked for training. Every call must be followed by
	// ReportResult, picked or not.
	NextTrain() (bool, error)
	SeekBegin()
	SeekBeginTrain()

	InitEpoch()
	EpochDone() bool
	EpochCount() int
	EpochPickCount() int

	Current() int
	SelectSample(idx int) error
	CurrentSample() (dataset.Sample, error)
	ReportResult(r Result) error
	NormalizeAll()

	SetCountPickings(count bool)
	SaveState()
	RestoreState() error
	Snapshot() *State
	Restore(st *State) error

	Report() *Report
	Pretty()
	PrettyProgress()
}

// ClassSampler is a sampler whose samples carry a class id
type ClassSampler interface {
	Sampler
	NClasses() int
	CurrentClass() int
	ClassNames() []string
}

// Result is the learner's feedback for the current sample
type Result struct {
	Energy  float64
	Correct bool

	// Kept only when outputs are kept
	Raw        []float32
	Prediction []float32
	Target     []float32
}

// Answer holds the outputs kept for one sample
type Answer struct {
	Index      int
	Raw        []float32
	Prediction []float32
	Target     []float32
}

var (
	_ Sampler      = (*Base)(nil)
	_ Sampler      = (*Labeled)(nil)
	_ ClassSampler = (*Class)(nil)
	_ ClassSampler = (*Hierarchy)(nil)
)

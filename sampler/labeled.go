package sampler

import (
	"github.com/pkg/errors"
	"github.com/tsawler/go-datasource/dataset"
	"go.uber.org/zap"
)

// Labeled adds per-sample labels and optional jitter and scale tables to
// Base. Iteration is Base's.
type Labeled struct {
	*Base

	labels  dataset.LabelData
	jitters *dataset.Jitters
	scales  *dataset.Scales

	labelBias  float32
	labelCoeff float32
}

// NewLabeled creates a labeled sampler. labels must have one row per sample.
func NewLabeled(store dataset.Store, labels dataset.LabelData, opts Options) (*Labeled, error) {
	l, err := newLabeled(store, labels, &opts, newRNG(&opts))
	if err != nil {
		return nil, err
	}
	l.InitEpoch()
	l.Pretty()
	return l, nil
}

func newLabeled(store dataset.Store, labels dataset.LabelData, opts *Options, g *rng) (*Labeled, error) {
	b, err := newBase(store, opts, g)
	if err != nil {
		return nil, err
	}
	if labels == nil {
		return nil, errors.New("labels cannot be nil")
	}
	if labels.Len() != b.n {
		return nil, errors.Wrapf(ErrSizeMismatch, "%d labels for %d samples", labels.Len(), b.n)
	}

	return &Labeled{
		Base:       b,
		labels:     labels,
		labelCoeff: 1,
	}, nil
}

// SetJitters attaches a jitter table
func (l *Labeled) SetJitters(j *dataset.Jitters) error {
	if j != nil && j.Len() != l.n {
		return errors.Wrapf(ErrSizeMismatch, "%d jitters for %d samples", j.Len(), l.n)
	}
	l.jitters = j
	return nil
}

// SetScales attaches a scale table
func (l *Labeled) SetScales(s *dataset.Scales) error {
	if s != nil && s.Len() != l.n {
		return errors.Wrapf(ErrSizeMismatch, "%d scales for %d samples", s.Len(), l.n)
	}
	l.scales = s
	return nil
}

// HasScales reports whether a scale table is attached
func (l *Labeled) HasScales() bool {
	return l.scales != nil
}

// SetLabelBias sets the bias added to scaled labels
func (l *Labeled) SetLabelBias(bias float32) {
	l.labelBias = bias
	l.logger.Info("Setting labels bias", zap.Float32("bias", bias))
}

// SetLabelCoeff sets the coefficient labels are multiplied with
func (l *Labeled) SetLabelCoeff(coeff float32) {
	l.labelCoeff = coeff
	l.logger.Info("Setting labels coefficient", zap.Float32("coeff", coeff))
}

// Labels returns the label table
func (l *Labeled) Labels() dataset.LabelData {
	return l.labels
}

// CurrentLabel returns the label of the current sample, biased and scaled
func (l *Labeled) CurrentLabel() []float32 {
	return l.label(l.it)
}

func (l *Labeled) label(idx int) []float32 {
	row := l.labels.Row(idx)
	out := make([]float32, len(row))
	for i, v := range row {
		out[i] = l.affine(v)
	}
	return out
}

// affine maps a raw label value to coeff * v + bias
func (l *Labeled) affine(v float32) float32 {
	return l.labelCoeff*v + l.labelBias
}

// CurrentJitter returns the jitter of the current sample
func (l *Labeled) CurrentJitter() (dataset.Tensor, error) {
	if l.jitters == nil {
		return dataset.Tensor{}, errors.New("jitter information was not loaded")
	}
	return l.jitters.Get(l.it)
}

// CurrentScale returns the scale id of the current sample
func (l *Labeled) CurrentScale() (int, error) {
	if l.scales == nil {
		return 0, errors.New("scales information not present")
	}
	return l.scales.Get(l.it), nil
}

// Included reports whether sample idx takes part in iteration. Every sample
// of a labeled sampler does.
func (l *Labeled) Included(idx int) bool {
	return true
}

// CountIncluded returns the number of included samples
func (l *Labeled) CountIncluded() int {
	return l.n
}

// SaveCorrect writes the correctly classified samples and their labels to
// path. It returns the number of samples written.
func (l *Labeled) SaveCorrect(path string) (int, error) {
	return l.saveSubset(path, "correct", func(i int) bool { return l.correct[i] })
}

// SaveIncorrect writes the misclassified samples and their labels to path.
// It returns the number of samples written.
func (l *Labeled) SaveIncorrect(path string) (int, error) {
	return l.saveSubset(path, "incorrect", func(i int) bool { return !l.correct[i] })
}

func (l *Labeled) saveSubset(path, kind string, keep func(i int) bool) (int, error) {
	var indices []int
	for i := 0; i < l.n; i++ {
		if l.observed[i] && keep(i) {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		l.logger.Warn("no samples to save", zap.String("subset", kind))
		return 0, nil
	}

	if err := dataset.WriteSubset(path, l.name+"_"+kind, l.store, l.labels, indices); err != nil {
		return 0, errors.Wrapf(err, "failed to save %s samples", kind)
	}
	l.logger.Info("Saved samples", zap.String("subset", kind),
		zap.Int("count", len(indices)), zap.String("path", path))
	return len(indices), nil
}

// ScaleTally counts samples per scale id
func (l *Labeled) ScaleTally() []int {
	if l.scales == nil {
		return nil
	}
	return l.scales.Tally(nil)
}

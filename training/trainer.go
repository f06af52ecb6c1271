package training

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/tsawler/go-datasource/checkpoints"
	"github.com/tsawler/go-datasource/dataset"
	"github.com/tsawler/go-datasource/sampler"
	"go.uber.org/zap"
)

// Example is one sample handed to a learner
type Example struct {
	Index  int
	Sample dataset.Sample
	Target []float32 // biased and scaled label
	Class  int       // live class id
}

// Learner is trained on the samples a sampler serves. Step always returns
// the learner's energy for the example; train reports whether the example
// was picked and the learner should update.
type Learner interface {
	Step(ex Example, train bool) (sampler.Result, error)
}

// Persistent learners can be checkpointed
type Persistent interface {
	Weights() []checkpoints.WeightTensor
	LoadWeights(w []checkpoints.WeightTensor) error
}

// Source is the sampler a trainer draws from
type Source interface {
	sampler.ClassSampler
	CurrentLabel() []float32
	EpochSize() int
	CountPickings() bool
}

// depthSource is implemented by taxonomy samplers
type depthSource interface {
	SetCurrentDepth(depth int) error
	CurrentDepth() int
	MaxDepth() int
}

// TrainingConfig holds configuration for training
type TrainingConfig struct {
	Epochs int
	// RefreshEvery re-evaluates every training sample every N epochs so
	// that stale energies do not drive picking (0 = never)
	RefreshEvery  int
	EarlyStopping bool // Stop when test accuracy stops improving
	Patience      int  // Epochs without improvement before stopping

	Scheduler DepthScheduler // nil keeps the sampler's depth
	Progress  io.Writer      // nil disables the progress bar
	Logger    *zap.Logger
}

// EpochMetrics holds metrics for a single epoch
type EpochMetrics struct {
	Epoch            int
	Depth            int
	Considered       int
	Picked           int
	MeanEnergy       float64
	TrainAccuracy    float64 // over picked samples
	TestAccuracy     float64
	BalancedAccuracy float64
	EpochDuration    time.Duration
}

// Trainer drives a learner with the samples a sampler picks and feeds the
// learner's energies back to it
type Trainer struct {
	learner Learner
	train   Source
	test    Source
	config  TrainingConfig
	logger  *zap.Logger
	metrics []EpochMetrics
	step    int
	epoch   int
}

// NewTrainer creates a new Trainer. test may be nil.
func NewTrainer(learner Learner, train, test Source, config TrainingConfig) (*Trainer, error) {
	if learner == nil {
		return nil, fmt.Errorf("learner cannot be nil")
	}
	if train == nil {
		return nil, fmt.Errorf("training sampler cannot be nil")
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{
		learner: learner,
		train:   train,
		test:    test,
		config:  config,
		logger:  logger.Named("trainer"),
		metrics: make([]EpochMetrics, 0),
	}, nil
}

// Train runs the complete training loop. onEpoch, when set, is called after
// every epoch; returning an error stops training.
func (t *Trainer) Train(ctx context.Context, onEpoch func(EpochMetrics) error) error {
	t.logger.Info("starting training",
		zap.Int("epochs", t.config.Epochs),
		zap.String("sampler", t.train.Name()),
		zap.Int("samples", t.train.Size()))

	bestAcc := -1.0
	patienceCounter := 0

	for t.epoch < t.config.Epochs {
		if err := t.applyDepth(); err != nil {
			return err
		}

		m, err := t.TrainEpoch(ctx)
		if err != nil {
			return fmt.Errorf("training epoch %d failed: %v", t.epoch, err)
		}

		if t.config.RefreshEvery > 0 && (t.epoch+1)%t.config.RefreshEvery == 0 {
			if _, err := t.EvaluateTraining(ctx); err != nil {
				return fmt.Errorf("refreshing energies failed: %v", err)
			}
		}

		if t.test != nil {
			cm, err := t.Evaluate(ctx, t.test)
			if err != nil {
				return fmt.Errorf("evaluation failed: %v", err)
			}
			m.TestAccuracy = cm.GetAccuracy()
			m.BalancedAccuracy = cm.GetMetric(BalancedAccuracy)
		}
		t.metrics = append(t.metrics, m)

		t.logger.Info("epoch done",
			zap.Int("epoch", m.Epoch),
			zap.Int("depth", m.Depth),
			zap.Int("picked", m.Picked),
			zap.Int("considered", m.Considered),
			zap.Float64("mean_energy", m.MeanEnergy),
			zap.Float64("train_accuracy", m.TrainAccuracy),
			zap.Float64("test_accuracy", m.TestAccuracy),
			zap.Duration("duration", m.EpochDuration))

		if p, ok := t.config.Scheduler.(*PlateauDepthScheduler); ok {
			if ds, ok := t.train.(depthSource); ok {
				p.Step(t.plateauMetric(m), ds.MaxDepth())
			}
		}

		t.epoch++

		if onEpoch != nil {
			if err := onEpoch(m); err != nil {
				return err
			}
		}

		if t.config.EarlyStopping && t.test != nil {
			if m.TestAccuracy > bestAcc {
				bestAcc = m.TestAccuracy
				patienceCounter = 0
			} else {
				patienceCounter++
				if patienceCounter >= t.config.Patience {
					t.logger.Info("early stopping", zap.Int("epoch", m.Epoch), zap.Float64("best_accuracy", bestAcc))
					break
				}
			}
		}
	}

	return nil
}

func (t *Trainer) plateauMetric(m EpochMetrics) float64 {
	if t.test != nil {
		return m.TestAccuracy
	}
	return m.TrainAccuracy
}

// applyDepth moves a taxonomy sampler to the depth the scheduler asks for
func (t *Trainer) applyDepth() error {
	if t.config.Scheduler == nil {
		return nil
	}
	ds, ok := t.train.(depthSource)
	if !ok {
		return nil
	}
	depth := t.config.Scheduler.Depth(t.epoch, ds.MaxDepth())
	if depth != ds.CurrentDepth() {
		if err := ds.SetCurrentDepth(depth); err != nil {
			return fmt.Errorf("failed to set depth %d: %v", depth, err)
		}
		t.logger.Info("depth changed", zap.String("scheduler", t.config.Scheduler.Name()), zap.Int("depth", depth))
	}
	if tds, ok := t.test.(depthSource); ok && tds.CurrentDepth() != depth {
		if err := tds.SetCurrentDepth(depth); err != nil {
			return fmt.Errorf("failed to set test depth %d: %v", depth, err)
		}
	}
	return nil
}

// TrainEpoch runs one epoch of the training sampler
func (t *Trainer) TrainEpoch(ctx context.Context) (EpochMetrics, error) {
	start := time.Now()
	s := t.train
	s.InitEpoch()

	var bar *ProgressBar
	if t.config.Progress != nil {
		bar = NewProgressBar(t.config.Progress, fmt.Sprintf("Epoch %d", t.epoch+1), s.EpochSize())
	}

	var energies []float64
	correct := 0
	for !s.EpochDone() {
		if err := ctx.Err(); err != nil {
			return EpochMetrics{}, err
		}

		picked, err := s.NextTrain()
		if err != nil {
			return EpochMetrics{}, err
		}
		r, err := t.stepCurrent(s, picked)
		if err != nil {
			return EpochMetrics{}, err
		}
		if err := s.ReportResult(r); err != nil {
			return EpochMetrics{}, err
		}

		if picked {
			t.step++
			energies = append(energies, r.Energy)
			if r.Correct {
				correct++
			}
			if bar != nil {
				bar.Update(s.EpochCount(), map[string]float64{"energy": r.Energy})
			}
		}
		s.PrettyProgress()
	}
	s.NormalizeAll()
	if bar != nil {
		bar.Finish()
	}

	m := EpochMetrics{
		Epoch:         t.epoch + 1,
		Considered:    s.EpochCount(),
		Picked:        s.EpochPickCount(),
		EpochDuration: time.Since(start),
	}
	if ds, ok := s.(depthSource); ok {
		m.Depth = ds.CurrentDepth()
	}
	if len(energies) > 0 {
		m.MeanEnergy, _ = stats.Mean(energies)
		m.TrainAccuracy = float64(correct) / float64(len(energies))
	}
	return m, nil
}

// stepCurrent hands the sampler's current sample to the learner
func (t *Trainer) stepCurrent(s Source, train bool) (sampler.Result, error) {
	sample, err := s.CurrentSample()
	if err != nil {
		return sampler.Result{}, err
	}
	return t.learner.Step(Example{
		Index:  s.Current(),
		Sample: sample,
		Target: s.CurrentLabel(),
		Class:  s.CurrentClass(),
	}, train)
}

// Evaluate runs one test pass of s without training and returns the
// confusion matrix of the learner's predictions. Energies are reported to
// s, so its picking probabilities follow.
func (t *Trainer) Evaluate(ctx context.Context, s Source) (*ConfusionMatrix, error) {
	cm := NewConfusionMatrix(s.NClasses())
	s.SeekBegin()
	if s.Size() == 0 {
		return cm, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := t.stepCurrent(s, false)
		if err != nil {
			return nil, err
		}
		if err := s.ReportResult(r); err != nil {
			return nil, err
		}
		if len(r.Prediction) > 0 {
			cm.Update(s.CurrentClass(), Argmax(r.Prediction))
		}
		s.PrettyProgress()
		if !s.Next() {
			break
		}
	}
	s.NormalizeAll()
	return cm, nil
}

// EvaluateTraining evaluates every training sample, refreshing their
// energies, and leaves the training cursors where they were
func (t *Trainer) EvaluateTraining(ctx context.Context) (*ConfusionMatrix, error) {
	t.train.SaveState()
	cm, err := t.Evaluate(ctx, t.train)
	if rerr := t.train.RestoreState(); rerr != nil && err == nil {
		err = rerr
	}
	return cm, err
}

// Probe returns the index of the sample the training sampler would pick
// next, leaving the sampler untouched. maxTries bounds the number of
// rejected draws.
func (t *Trainer) Probe(maxTries int) (int, error) {
	s := t.train
	s.SaveState()
	count := s.CountPickings()
	s.SetCountPickings(false)
	defer s.SetCountPickings(count)

	idx := -1
	var err error
	for i := 0; i < maxTries; i++ {
		var picked bool
		picked, err = s.NextTrain()
		if err != nil || picked {
			if picked {
				idx = s.Current()
			}
			break
		}
	}
	if rerr := s.RestoreState(); rerr != nil && err == nil {
		err = rerr
	}
	if err == nil && idx < 0 {
		err = fmt.Errorf("no sample picked in %d draws", maxTries)
	}
	return idx, err
}

// Metrics returns the metrics of every epoch run so far
func (t *Trainer) Metrics() []EpochMetrics {
	return t.metrics
}

// Epoch returns the number of epochs completed
func (t *Trainer) Epoch() int {
	return t.epoch
}

// Step returns the number of samples trained on
func (t *Trainer) Step() int {
	return t.step
}

// Checkpoint captures the sampler, learner and trainer state
func (t *Trainer) Checkpoint(description string) *checkpoints.Checkpoint {
	ck := &checkpoints.Checkpoint{
		Sampler: t.train.Snapshot(),
		TrainingState: checkpoints.TrainingState{
			Epoch: t.epoch,
			Step:  t.step,
		},
		Metadata: checkpoints.CheckpointMetadata{
			Description: description,
			Tags:        []string{fmt.Sprintf("epoch_%d", t.epoch)},
		},
	}
	if p, ok := t.learner.(Persistent); ok {
		ck.Weights = p.Weights()
	}
	if ds, ok := t.train.(depthSource); ok {
		ck.TrainingState.Depth = ds.CurrentDepth()
	}
	for _, m := range t.metrics {
		ck.TrainingState.TotalPicked += m.Picked
		if m.TestAccuracy > ck.TrainingState.BestAccuracy {
			ck.TrainingState.BestAccuracy = m.TestAccuracy
		}
	}
	return ck
}

// Resume restores the state captured by Checkpoint. The next Train call
// continues with the following epoch.
func (t *Trainer) Resume(ck *checkpoints.Checkpoint) error {
	if ck == nil || ck.Sampler == nil {
		return fmt.Errorf("checkpoint has no sampler state")
	}
	if err := t.train.Restore(ck.Sampler); err != nil {
		return fmt.Errorf("failed to restore sampler: %v", err)
	}
	if len(ck.Weights) > 0 {
		p, ok := t.learner.(Persistent)
		if !ok {
			return fmt.Errorf("learner cannot load weights")
		}
		if err := p.LoadWeights(ck.Weights); err != nil {
			return fmt.Errorf("failed to load weights: %v", err)
		}
	}
	t.epoch = ck.TrainingState.Epoch
	t.step = ck.TrainingState.Step
	return nil
}

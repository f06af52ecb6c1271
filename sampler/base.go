package sampler

import (
	"time"

	"github.com/pkg/errors"
	"github.com/tsawler/go-datasource/dataset"
	"go.uber.org/zap"
)

// Base iterates over an unlabelled store. The test cursor visits samples in
// order; the training cursor walks a permutation, reshuffled after every
// pass, and accepts each sample with its picking probability.
type Base struct {
	name   string
	store  dataset.Store
	n      int
	logger *zap.Logger
	rng    *rng

	it      int // current sample
	itTest  int
	itTrain int
	indices []int

	shufflePasses bool
	testOnly      bool

	weigh         Weighing
	ignoreCorrect bool
	probas        []float64
	energies      []float64 // -1 until observed
	correct       []bool
	observed      []bool
	pickCount     []int
	countPickings bool

	keepOutputs bool
	answers     []*Answer

	epochMode        EpochMode
	epochSize        int
	epochCnt         int // samples considered this epoch
	epochPickCnt     int // samples picked this epoch
	notPicked        int // consecutive rejections
	epochShow        int
	epochShowPrinted int
	epochStart       time.Time
	testStart        time.Time

	dataBias  float32
	dataCoeff float32

	// skip reports samples that can never be picked, nil when every
	// sample is eligible
	skip func(idx int) bool

	saved *cursors
}

// NewBase creates a sampler over store
func NewBase(store dataset.Store, opts Options) (*Base, error) {
	b, err := newBase(store, &opts, newRNG(&opts))
	if err != nil {
		return nil, err
	}
	b.InitEpoch()
	b.Pretty()
	return b, nil
}

func newBase(store dataset.Store, opts *Options, g *rng) (*Base, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}

	n := store.Len()
	b := &Base{
		name:             opts.Name,
		store:            store,
		n:                n,
		logger:           opts.logger(),
		rng:              g,
		indices:          make([]int, n),
		probas:           make([]float64, n),
		energies:         make([]float64, n),
		correct:          make([]bool, n),
		observed:         make([]bool, n),
		pickCount:        make([]int, n),
		countPickings:    true,
		answers:          make([]*Answer, n),
		epochShowPrinted: -1,
		dataCoeff:        1,
	}
	for i := 0; i < n; i++ {
		b.indices[i] = i
		b.probas[i] = 1
		b.energies[i] = -1
	}

	b.SetShufflePasses(opts.ShufflePasses)
	b.SetIgnoreCorrect(opts.IgnoreCorrect)
	b.SetWeighSamples(opts.Weigh)
	b.SetKeepOutputs(opts.KeepOutputs)
	if err := b.SetEpochMode(opts.EpochMode); err != nil {
		return nil, err
	}
	b.epochSize = n
	if opts.EpochSize > 0 {
		b.SetEpochSize(opts.EpochSize)
	}
	b.epochShow = opts.EpochShow
	if opts.DataBias != 0 {
		b.SetDataBias(opts.DataBias)
	}
	if opts.DataCoeff != 0 && opts.DataCoeff != 1 {
		b.SetDataCoeff(opts.DataCoeff)
	}
	if opts.TestOnly {
		b.SetTestOnly()
	}

	b.rng.shuffle(b.indices)
	b.SeekBegin()
	b.SeekBeginTrain()
	return b, nil
}

// Name returns the sampler name
func (b *Base) Name() string {
	return b.name
}

// Size returns the number of samples
func (b *Base) Size() int {
	return b.n
}

// Store returns the underlying sample store
func (b *Base) Store() dataset.Store {
	return b.store
}

// Logger returns the sampler's logger
func (b *Base) Logger() *zap.Logger {
	return b.logger
}

// SetTestOnly forbids adaptive iteration on this sampler
func (b *Base) SetTestOnly() {
	b.testOnly = true
}

// IsTest reports whether the sampler is a test set
func (b *Base) IsTest() bool {
	return b.testOnly
}

// SetShufflePasses toggles reshuffling of the training permutation after
// each pass
func (b *Base) SetShufflePasses(shuffle bool) {
	b.shufflePasses = shuffle
	b.logger.Info("Shuffling of samples (training only) after each pass",
		zap.Bool("activated", shuffle))
}

// SetWeighSamples configures picking probabilities
func (b *Base) SetWeighSamples(w Weighing) {
	if w.MinProba > 1 {
		w.MinProba = 1
	}
	if w.MinProba < 0 {
		w.MinProba = 0
	}
	b.weigh = w
	b.logger.Info("Weighing of samples (training only) based on classification",
		zap.Bool("activated", w.Enabled))
	if !w.Enabled {
		return
	}

	focus := "easiest"
	if w.HardestFocus {
		focus = "hardest"
	}
	norm := "globally"
	if w.PerClassNorm {
		norm = "per class"
	}
	b.logger.Info("Learning is focused on misclassified samples",
		zap.String("focus", focus), zap.String("normalization", norm),
		zap.Float64("min_proba", w.MinProba))
	if !b.ignoreCorrect && !w.HardestFocus {
		b.logger.Warn("correct samples are not ignored and focus is on easiest samples, this may not be optimal")
	}
}

// Weighing returns the weighing configuration
func (b *Base) Weighing() Weighing {
	return b.weigh
}

// SetIgnoreCorrect makes correctly classified samples unpickable
func (b *Base) SetIgnoreCorrect(ignore bool) {
	b.ignoreCorrect = ignore
	if ignore {
		b.logger.Info("Ignoring correctly classified samples for training")
	}
}

// SetKeepOutputs toggles keeping model outputs for each sample
func (b *Base) SetKeepOutputs(keep bool) {
	b.keepOutputs = keep
	if keep {
		b.logger.Info("Keeping model outputs for each sample")
	}
}

// SetEpochSize sets the number of samples of a fixed-count epoch
func (b *Base) SetEpochSize(n int) {
	b.epochSize = n
	b.logger.Info("Setting epoch size", zap.Int("size", n))
}

// EpochSize returns the configured epoch size
func (b *Base) EpochSize() int {
	return b.epochSize
}

// SetEpochMode sets how epoch ends are detected
func (b *Base) SetEpochMode(m EpochMode) error {
	if m != FixedCount && m != SeeAllOnce {
		return errors.Wrapf(ErrInvalidOption, "unknown epoch mode %d", int(m))
	}
	b.epochMode = m
	b.logger.Info("Setting epoch mode", zap.Stringer("mode", m))
	return nil
}

// EpochMode returns the epoch mode
func (b *Base) EpochMode() EpochMode {
	return b.epochMode
}

// SetEpochShow sets the progress logging period, 0 disables it
func (b *Base) SetEpochShow(modulo int) {
	b.epochShow = modulo
	b.logger.Info("Print training count every", zap.Int("samples", modulo))
}

// SetDataBias sets the bias added to sample data before scaling
func (b *Base) SetDataBias(bias float32) {
	b.dataBias = bias
	b.logger.Info("Setting data bias", zap.Float32("bias", bias))
}

// SetDataCoeff sets the coefficient sample data is multiplied with
func (b *Base) SetDataCoeff(coeff float32) {
	b.dataCoeff = coeff
	b.logger.Info("Setting data coefficient", zap.Float32("coeff", coeff))
}

// SetCountPickings suspends or resumes pick counting
func (b *Base) SetCountPickings(count bool) {
	b.countPickings = count
}

// CountPickings reports whether picks are counted
func (b *Base) CountPickings() bool {
	return b.countPickings
}

// Current returns the index of the current sample
func (b *Base) Current() int {
	return b.it
}

// SelectSample makes idx the current sample
func (b *Base) SelectSample(idx int) error {
	if idx < 0 || idx >= b.n {
		return errors.Wrapf(ErrIndexOutOfRange, "cannot select index %d in %s of %d samples", idx, b.name, b.n)
	}
	b.it = idx
	return nil
}

// CurrentSample returns the current sample with data bias and coefficient
// applied
func (b *Base) CurrentSample() (dataset.Sample, error) {
	return b.sample(b.it)
}

func (b *Base) sample(idx int) (dataset.Sample, error) {
	s, err := b.store.Get(idx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get sample %d", idx)
	}
	if b.dataBias == 0 && b.dataCoeff == 1 {
		return s, nil
	}

	out := s.Clone()
	for _, t := range out {
		for i, v := range t.Data {
			t.Data[i] = (v + b.dataBias) * b.dataCoeff
		}
	}
	return out, nil
}

// Next advances the test cursor and returns false once the pass wraps
func (b *Base) Next() bool {
	b.itTest++
	if b.itTest >= b.n {
		b.SeekBegin()
		return false
	}
	b.it = b.itTest
	return true
}

// NextTrain advances the training cursor and decides whether the new
// current sample is picked
func (b *Base) NextTrain() (bool, error) {
	if b.testOnly {
		return false, errors.Wrapf(ErrTestOnly, "%s: NextTrain", b.name)
	}
	if b.n == 0 {
		return false, errors.Wrapf(ErrNoSamples, "%s is empty", b.name)
	}

	b.notPicked++
	b.itTrain++
	if b.itTrain >= len(b.indices) {
		if b.shufflePasses {
			b.rng.shuffle(b.indices)
		}
		b.itTrain = 0
		if b.weigh.Enabled {
			b.normalize(nil)
		}
	}
	b.it = b.indices[b.itTrain]

	pick := b.pickCurrent()
	b.epochCnt++
	if !pick {
		return false, nil
	}
	b.recordPick()
	return true, nil
}

// pickCurrent draws the accept decision for the current sample
func (b *Base) pickCurrent() bool {
	if b.skip != nil && b.skip(b.it) {
		return false
	}
	if !b.weigh.Enabled {
		return true
	}
	return b.rng.float64() <= b.probas[b.it]
}

func (b *Base) recordPick() {
	if b.countPickings {
		b.pickCount[b.it]++
	}
	b.epochPickCnt++
	b.notPicked = 0
}

// SeekBegin rewinds the test cursor to the first sample
func (b *Base) SeekBegin() {
	b.itTest = 0
	b.it = 0
	b.testStart = time.Now()
}

// SeekBeginTrain rewinds the training cursor. The next NextTrain serves
// the first sample of the permutation.
func (b *Base) SeekBeginTrain() {
	b.itTrain = -1
	if b.n > 0 {
		b.it = b.indices[0]
	}
}

// InitEpoch resets epoch counters and renormalizes probabilities
func (b *Base) InitEpoch() {
	b.resetEpochCounters()
	if b.weigh.Enabled {
		b.normalize(nil)
	}
}

func (b *Base) resetEpochCounters() {
	b.epochCnt = 0
	b.epochPickCnt = 0
	b.epochStart = time.Now()
	b.epochShowPrinted = -1
}

// EpochDone reports whether the current epoch is complete. Both modes
// compare the number of considered samples with the epoch size.
func (b *Base) EpochDone() bool {
	return b.epochCnt >= b.epochSize
}

// EpochCount returns the number of samples considered this epoch
func (b *Base) EpochCount() int {
	return b.epochCnt
}

// EpochPickCount returns the number of samples picked this epoch
func (b *Base) EpochPickCount() int {
	return b.epochPickCnt
}

// NormalizeAll recomputes every picking probability
func (b *Base) NormalizeAll() {
	if b.weigh.Enabled {
		b.normalize(nil)
	}
}

// ReportResult records the learner's feedback for the current sample
func (b *Base) ReportResult(r Result) error {
	if b.n == 0 {
		return errors.Wrapf(ErrNoSamples, "%s is empty", b.name)
	}

	b.energies[b.it] = r.Energy
	b.correct[b.it] = r.Correct
	b.observed[b.it] = true

	if b.keepOutputs {
		b.answers[b.it] = &Answer{
			Index:      b.it,
			Raw:        cloneFloats(r.Raw),
			Prediction: cloneFloats(r.Prediction),
			Target:     cloneFloats(r.Target),
		}
	}
	return nil
}

// Answers returns the kept outputs, ordered by sample index
func (b *Base) Answers() []Answer {
	var out []Answer
	for _, a := range b.answers {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out
}

// Proba returns the picking probability of sample idx
func (b *Base) Proba(idx int) float64 {
	return b.probas[idx]
}

// PickCount returns how many times sample idx was picked
func (b *Base) PickCount(idx int) int {
	return b.pickCount[idx]
}

func cloneFloats(f []float32) []float32 {
	if f == nil {
		return nil
	}
	out := make([]float32, len(f))
	copy(out, f)
	return out
}

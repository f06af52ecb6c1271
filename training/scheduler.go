package training

// DepthScheduler decides at which taxonomy depth a hierarchy sampler trains,
// moving from coarse to fine classes as training progresses
type DepthScheduler interface {
	// Depth returns the depth for the given epoch, never above maxDepth
	Depth(epoch int, maxDepth int) int

	// Name returns the scheduler name for logging
	Name() string
}

// ConstantDepthScheduler keeps a fixed depth
type ConstantDepthScheduler struct {
	Level int
}

func (s *ConstantDepthScheduler) Depth(epoch int, maxDepth int) int {
	return clampDepth(s.Level, maxDepth)
}

func (s *ConstantDepthScheduler) Name() string {
	return "ConstantDepth"
}

// StepDepthScheduler goes one level deeper every StepSize epochs
type StepDepthScheduler struct {
	StepSize int // Epochs spent at each depth
}

// NewStepDepthScheduler creates a step depth scheduler
func NewStepDepthScheduler(stepSize int) *StepDepthScheduler {
	if stepSize <= 0 {
		stepSize = 5 // Default: five epochs per level
	}
	return &StepDepthScheduler{StepSize: stepSize}
}

func (s *StepDepthScheduler) Depth(epoch int, maxDepth int) int {
	return clampDepth(epoch/s.StepSize, maxDepth)
}

func (s *StepDepthScheduler) Name() string {
	return "StepDepth"
}

// PlateauDepthScheduler goes one level deeper once the evaluation metric has
// stopped improving. The metric is maximized.
type PlateauDepthScheduler struct {
	Patience  int     // Epochs with no improvement before going deeper
	Threshold float64 // Minimum improvement

	bestMetric  float64
	badEpochs   int
	depth       int
	initialized bool
}

// NewPlateauDepthScheduler creates a plateau-based depth scheduler
func NewPlateauDepthScheduler(patience int, threshold float64) *PlateauDepthScheduler {
	if patience <= 0 {
		patience = 3
	}
	if threshold < 0 {
		threshold = 1e-3
	}
	return &PlateauDepthScheduler{
		Patience:  patience,
		Threshold: threshold,
	}
}

// Step feeds the metric of the epoch just finished and returns the depth to
// train at next
func (s *PlateauDepthScheduler) Step(metric float64, maxDepth int) int {
	if !s.initialized {
		s.bestMetric = metric
		s.initialized = true
		return s.depth
	}

	if metric > s.bestMetric+s.Threshold {
		s.bestMetric = metric
		s.badEpochs = 0
		return s.depth
	}

	s.badEpochs++
	if s.badEpochs >= s.Patience && s.depth < maxDepth {
		s.depth++
		s.badEpochs = 0
		// metrics at a finer depth are not comparable
		s.initialized = false
	}
	return s.depth
}

func (s *PlateauDepthScheduler) Depth(epoch int, maxDepth int) int {
	// the depth only changes in Step
	return clampDepth(s.depth, maxDepth)
}

func (s *PlateauDepthScheduler) Name() string {
	return "PlateauDepth"
}

func clampDepth(d, maxDepth int) int {
	if d > maxDepth {
		return maxDepth
	}
	if d < 0 {
		return 0
	}
	return d
}

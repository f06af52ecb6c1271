package sampler

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/tsawler/go-datasource/dataset"
	"go.uber.org/zap"
)

// starvationLimit bounds consecutive rejections within a class before a
// sample is forced through
const starvationLimit = 1000

// Class samples a classification store. When balanced, classes are served
// in turn, one picked sample each, so that rare classes are seen as often as
// common ones. Classes can be excluded, in which case the live label space
// is renumbered so that included classes come first.
type Class struct {
	*Labeled

	classLabels *dataset.Int32Labels // source of truth, never rewritten
	nclasses    int
	names       []string // by original id

	// derived view, recomputed whenever the exclusion set changes
	derived   []int    // live label of each sample
	liveNames []string // names by live label
	counts    []int    // samples per live label
	excluded  []bool   // by live label
	exclusion bool
	included  int
	keepIDs   bool // live labels equal original ids

	balanced     bool
	randomOrder  bool
	classProbas  []float64
	partitions   [][]int // sample indices by live label
	partitionIt  []int
	remaining    []int // per class samples left to see this epoch
	order        []int
	classIt      int // class currently served
	orderIt      int
	savedClasses *classCursors
}

// NewClass creates a class sampler
func NewClass(store dataset.Store, labels *dataset.Int32Labels, opts Options) (*Class, error) {
	g := newRNG(&opts)
	c, err := newClass(store, labels, &opts, g, false)
	if err != nil {
		return nil, err
	}
	if err := c.configure(&opts); err != nil {
		return nil, err
	}
	c.InitEpoch()
	c.Pretty()
	return c, nil
}

func newClass(store dataset.Store, labels *dataset.Int32Labels, opts *Options, g *rng, keepIDs bool) (*Class, error) {
	if labels == nil {
		return nil, errors.New("labels cannot be nil")
	}
	l, err := newLabeled(store, labels, opts, g)
	if err != nil {
		return nil, err
	}

	nclasses := labels.MaxClass() + 1
	if len(opts.ClassNames) > nclasses {
		nclasses = len(opts.ClassNames)
	}
	names := make([]string, nclasses)
	for i := range names {
		if i < len(opts.ClassNames) && opts.ClassNames[i] != "" {
			names[i] = opts.ClassNames[i]
		} else {
			names[i] = strconv.Itoa(i)
		}
	}

	c := &Class{
		Labeled:     l,
		classLabels: labels,
		nclasses:    nclasses,
		names:       names,
		included:    nclasses,
		keepIDs:     keepIDs,
		randomOrder: opts.RandomClassOrder,
	}
	c.excludedHook()
	c.relabel(make([]bool, nclasses))
	c.SetBalanced(opts.Balanced)
	return c, nil
}

// configure applies the class options that may fail
func (c *Class) configure(opts *Options) error {
	if opts.Limit != nil {
		if err := c.LimitClasses(opts.Limit.N, opts.Limit.Offset, opts.Limit.Random); err != nil {
			return err
		}
	}
	if len(opts.ClassProbabilities) > 0 {
		if err := c.SetClassProbabilities(opts.ClassProbabilities); err != nil {
			return err
		}
	}
	if opts.EpochSize <= 0 && c.n > 0 {
		size, err := c.LowestCommonSize()
		if err != nil {
			return err
		}
		c.SetEpochSize(size)
	}
	c.SeekBegin()
	c.SeekBeginTrain()
	return nil
}

func (c *Class) excludedHook() {
	c.skip = func(idx int) bool {
		return !c.Included(idx)
	}
}

// relabel recomputes the live label view from the original labels given
// which original classes are excluded
func (c *Class) relabel(excludedOrig []bool) {
	mapping := make([]int, c.nclasses)
	c.liveNames = c.liveNames[:0]
	if c.keepIDs {
		for id := range mapping {
			mapping[id] = id
		}
		c.liveNames = append(c.liveNames, c.names...)
		c.excluded = append([]bool(nil), excludedOrig...)
	} else {
		next := 0
		for id := 0; id < c.nclasses; id++ {
			if !excludedOrig[id] {
				mapping[id] = next
				c.liveNames = append(c.liveNames, c.names[id])
				next++
			}
		}
		for id := 0; id < c.nclasses; id++ {
			if excludedOrig[id] {
				mapping[id] = next
				c.liveNames = append(c.liveNames, c.names[id])
				next++
			}
		}
		c.excluded = make([]bool, c.nclasses)
		for live := c.included; live < c.nclasses; live++ {
			c.excluded[live] = true
		}
	}

	c.derived = make([]int, c.n)
	c.counts = make([]int, c.nclasses)
	for i := 0; i < c.n; i++ {
		live := mapping[c.classLabels.Class(i)]
		c.derived[i] = live
		c.counts[live]++
	}
}

// SetBalanced toggles class balancing and rebuilds the class partitions
func (c *Class) SetBalanced(balanced bool) {
	c.balanced = balanced
	if !balanced {
		c.logger.Info("Setting training as unbalanced (not taking class distributions into account)")
		return
	}
	c.logger.Info("Setting training as balanced (taking class distributions into account)")

	c.partitions = make([][]int, c.nclasses)
	c.partitionIt = make([]int, c.nclasses)
	c.remaining = make([]int, c.nclasses)
	c.order = make([]int, c.nclasses)
	for k := range c.order {
		c.order[k] = k
	}
	c.resetClassOrder()
	for i := 0; i < c.n; i++ {
		live := c.derived[i]
		c.partitions[live] = append(c.partitions[live], i)
	}
	for k, p := range c.partitions {
		c.rng.shuffle(p)
		c.remaining[k] = len(p)
	}
	c.orderIt = 0
	if len(c.order) > 0 {
		c.classIt = c.order[0]
	}
}

// Balanced reports whether class balancing is active
func (c *Class) Balanced() bool {
	return c.balanced
}

// SetRandomClassOrder toggles shuffling of the class order after every
// round
func (c *Class) SetRandomClassOrder(random bool) {
	c.randomOrder = random
	c.logger.Info("Setting class order", zap.Bool("random", random))
}

func (c *Class) resetClassOrder() {
	if c.randomOrder {
		c.rng.shuffle(c.order)
	}
}

// SetClassProbabilities replaces round-robin class scheduling by draws from
// the given distribution over live labels. The vector is normalized.
func (c *Class) SetClassProbabilities(p []float64) error {
	if len(p) != c.nclasses {
		return errors.Wrapf(ErrClassProbabilities,
			"expected as many class probabilities as classes but got %d probabilities for %d classes", len(p), c.nclasses)
	}

	total := 0.0
	for k, v := range p {
		if v < 0 {
			return errors.Wrapf(ErrClassProbabilities, "negative probability %g for class %d", v, k)
		}
		total += v
	}
	if total <= 0 {
		return errors.Wrap(ErrClassProbabilities, "probabilities sum to zero")
	}

	c.classProbas = make([]float64, len(p))
	for k, v := range p {
		c.classProbas[k] = v / total
	}
	c.logger.Info("Classes are picked with probabilities", zap.Float64s("probabilities", c.classProbas))
	if c.balanced {
		c.nextBalancedClass()
	}
	return nil
}

// LimitClasses excludes every class outside [offset, offset+n), or a random
// selection of n classes when random is set. Live labels are renumbered so
// that the included classes come first.
func (c *Class) LimitClasses(n, offset int, random bool) error {
	if n <= 0 || offset < 0 {
		return errors.Wrapf(ErrInvalidOption, "cannot limit classes to %d starting at offset %d", n, offset)
	}
	if (offset == 0 && n >= c.nclasses) || offset >= c.nclasses {
		c.logger.Warn("ignoring attempt to limit classes",
			zap.Int("n", n), zap.Int("offset", offset), zap.Int("nclasses", c.nclasses))
		return nil
	}

	excludedOrig := make([]bool, c.nclasses)
	for i := range excludedOrig {
		excludedOrig[i] = i < offset || i >= offset+n
	}
	if random {
		c.rng.shuffleBools(excludedOrig)
	}

	c.exclusion = true
	c.included = minInt(c.nclasses, n+offset) - offset
	c.logger.Info("Excluded all but included classes",
		zap.Int("included", c.included), zap.Int("offset", offset), zap.Int("n", n))
	c.relabel(excludedOrig)
	if c.balanced {
		c.SetBalanced(true)
	}
	c.SeekBegin()
	c.SeekBeginTrain()
	return nil
}

// NClasses returns the number of live classes
func (c *Class) NClasses() int {
	if c.exclusion {
		return c.included
	}
	return c.nclasses
}

// TotalClasses returns the number of classes including excluded ones
func (c *Class) TotalClasses() int {
	return c.nclasses
}

// ClassNames returns class names by live label
func (c *Class) ClassNames() []string {
	return c.liveNames[:c.NClasses()]
}

// ClassName returns the name of live label id
func (c *Class) ClassName(id int) (string, error) {
	if id < 0 || id >= len(c.liveNames) {
		return "", errors.Wrapf(ErrIndexOutOfRange, "requesting label string at index %d but there are %d classes", id, len(c.liveNames))
	}
	return c.liveNames[id], nil
}

// ClassID returns the live label named name, or -1
func (c *Class) ClassID(name string) int {
	for id := 0; id < c.NClasses(); id++ {
		if c.liveNames[id] == name {
			return id
		}
	}
	return -1
}

// ClassCounts returns the number of samples of each live label
func (c *Class) ClassCounts() []int {
	out := make([]int, len(c.counts))
	copy(out, c.counts)
	return out
}

// Class returns the live label of sample idx
func (c *Class) Class(idx int) int {
	return c.derived[idx]
}

// CurrentClass returns the live label of the current sample
func (c *Class) CurrentClass() int {
	return c.derived[c.it]
}

// CurrentLabel returns the live label of the current sample, biased and
// scaled
func (c *Class) CurrentLabel() []float32 {
	return []float32{c.affine(float32(c.derived[c.it]))}
}

// Included reports whether sample idx belongs to an included class
func (c *Class) Included(idx int) bool {
	return !c.exclusion || !c.excluded[c.derived[idx]]
}

// CountIncluded returns the number of samples of included classes
func (c *Class) CountIncluded() int {
	if !c.exclusion {
		return c.n
	}
	n := 0
	for i := 0; i < c.n; i++ {
		if c.Included(i) {
			n++
		}
	}
	return n
}

// LowestCommonSize returns the smallest non-empty class size times the
// number of classes
func (c *Class) LowestCommonSize() (int, error) {
	min := -1
	for _, k := range c.counts {
		if k > 0 && (min < 0 || k < min) {
			min = k
		}
	}
	if min < 0 {
		return 0, errors.Wrapf(ErrNoSamples, "%s: empty dataset", c.name)
	}
	return min * c.nclasses, nil
}

// SeekBegin rewinds the test cursor to the first included sample
func (c *Class) SeekBegin() {
	c.Base.SeekBegin()
	if !c.exclusion {
		return
	}
	for c.itTest < c.n-1 && !c.Included(c.it) {
		c.itTest++
		c.it = c.itTest
	}
}

// SeekBeginTrain rewinds the training cursor. The current sample becomes
// the first included sample of the permutation.
func (c *Class) SeekBeginTrain() {
	c.Base.SeekBeginTrain()
	if !c.exclusion {
		return
	}
	for _, idx := range c.indices {
		if c.Included(idx) {
			c.it = idx
			return
		}
	}
}

// Next advances the test cursor over included samples only
func (c *Class) Next() bool {
	ok := c.Base.Next()
	for ok && !c.Included(c.it) {
		ok = c.Base.Next()
	}
	if !ok {
		c.SeekBegin()
	}
	return ok
}

// NextTrain serves the next sample. When balanced, samples are drawn from
// the current class partition and, once one is picked, the next class is
// scheduled.
func (c *Class) NextTrain() (bool, error) {
	if c.testOnly {
		return false, errors.Wrapf(ErrTestOnly, "%s: NextTrain", c.name)
	}
	if !c.balanced {
		return c.Base.NextTrain()
	}
	if err := c.checkSchedulable(); err != nil {
		return false, err
	}

	c.notPicked++
	for len(c.partitions[c.classIt]) == 0 || (c.exclusion && c.excluded[c.classIt]) {
		c.nextBalancedClass()
	}

	cls := c.classIt
	part := c.partitions[cls]
	c.it = part[c.partitionIt[cls]]
	c.partitionIt[cls]++

	pick := c.pickCurrent()
	c.remaining[cls]--
	if c.partitionIt[cls] >= len(part) {
		c.partitionIt[cls] = 0
		if c.shufflePasses {
			c.rng.shuffle(part)
		}
		if c.weigh.Enabled {
			c.normalizeClass(cls)
		}
	}

	if c.notPicked > minInt(starvationLimit, len(part)) {
		// give up on probabilities and show this sample
		pick = true
	}
	if !pick {
		return false, nil
	}

	c.recordPick()
	c.epochCnt++
	c.nextBalancedClass()
	return true, nil
}

// checkSchedulable makes sure the class scheduler can terminate
func (c *Class) checkSchedulable() error {
	ok := false
	for k, p := range c.partitions {
		if len(p) == 0 || (c.exclusion && c.excluded[k]) {
			continue
		}
		if len(c.classProbas) > 0 && c.classProbas[k] <= 0 {
			continue
		}
		ok = true
		break
	}
	if ok {
		return nil
	}
	if len(c.classProbas) > 0 {
		return errors.Wrapf(ErrClassProbabilities, "%s: no included non-empty class has a positive probability", c.name)
	}
	return errors.Wrapf(ErrNoSamples, "%s: no included class holds samples", c.name)
}

// nextBalancedClass schedules the class served by the next NextTrain
func (c *Class) nextBalancedClass() {
	for {
		if len(c.classProbas) > 0 {
			r := c.rng.float64()
			total := 0.0
			c.classIt = len(c.classProbas) - 1
			for k, p := range c.classProbas {
				total += p
				if r < total {
					c.classIt = k
					break
				}
			}
		} else {
			c.orderIt++
			if c.orderIt >= len(c.order) {
				c.orderIt = 0
				c.resetClassOrder()
			}
			c.classIt = c.order[c.orderIt]
		}
		if !c.exclusion || !c.excluded[c.classIt] {
			return
		}
	}
}

// InitEpoch resets epoch counters and every class's remaining counter
func (c *Class) InitEpoch() {
	c.resetEpochCounters()
	if c.balanced {
		maxSize := 0
		for k, p := range c.partitions {
			c.remaining[k] = len(p)
			if len(p) > maxSize {
				maxSize = len(p)
			}
		}
		if c.epochMode == SeeAllOnce {
			// only used for progress estimates
			c.epochSize = maxSize * len(c.partitions)
		}
	}
	c.NormalizeAll()
}

// EpochDone reports whether the epoch is complete. Balanced see-all-once
// epochs end when every included class that can be drawn has been
// traversed once.
func (c *Class) EpochDone() bool {
	if c.epochMode == SeeAllOnce && c.balanced {
		for k, r := range c.remaining {
			if c.exclusion && c.excluded[k] {
				continue
			}
			if len(c.classProbas) > 0 && c.classProbas[k] <= 0 {
				continue
			}
			if r > 0 {
				return false
			}
		}
		return true
	}
	return c.epochCnt >= c.epochSize
}

// Remaining returns the per class counters of samples left this epoch
func (c *Class) Remaining() []int {
	out := make([]int, len(c.remaining))
	copy(out, c.remaining)
	return out
}

// NormalizeAll recomputes picking probabilities, per class when balanced
// with per-class normalization
func (c *Class) NormalizeAll() {
	if !c.weigh.Enabled {
		return
	}
	if c.weigh.PerClassNorm && c.balanced {
		for k := range c.partitions {
			c.normalizeClass(k)
		}
		return
	}
	c.normalize(nil)
}

func (c *Class) normalizeClass(k int) {
	if c.weigh.PerClassNorm && c.balanced {
		if len(c.partitions[k]) > 0 {
			c.normalize(c.partitions[k])
		}
		return
	}
	c.normalize(nil)
}

// ScaleTallies counts samples per scale id for each included live label
func (c *Class) ScaleTallies() map[int][]int {
	if c.scales == nil {
		return nil
	}
	out := make(map[int][]int)
	for k := 0; k < c.NClasses(); k++ {
		cls := k
		out[k] = c.scales.Tally(func(i int) bool { return c.derived[i] == cls })
	}
	return out
}

package sampler

import (
	"github.com/pkg/errors"
	"github.com/tsawler/go-datasource/taxonomy"
)

// cursors is the iteration state kept by SaveState
type cursors struct {
	it, itTest, itTrain int
	indices             []int
	countPickings       bool
	epochCnt            int
	epochPickCnt        int
	notPicked           int
	rng                 []byte
}

type classCursors struct {
	partitions  [][]int
	partitionIt []int
	remaining   []int
	order       []int
	classIt     int
	orderIt     int
}

type depthCursors struct {
	depthIt []int
	nodes   []taxonomy.Cursor
}

// SaveState remembers the iteration state so that RestoreState can resume
// exactly where SaveState was called. Probabilities and energies are not
// part of it.
func (b *Base) SaveState() {
	b.saved = &cursors{
		it:            b.it,
		itTest:        b.itTest,
		itTrain:       b.itTrain,
		indices:       append([]int(nil), b.indices...),
		countPickings: b.countPickings,
		epochCnt:      b.epochCnt,
		epochPickCnt:  b.epochPickCnt,
		notPicked:     b.notPicked,
		rng:           b.rng.marshal(),
	}
}

// RestoreState returns to the state remembered by SaveState
func (b *Base) RestoreState() error {
	s := b.saved
	if s == nil {
		return errors.Wrapf(ErrStateNotSaved, "%s", b.name)
	}
	b.it = s.it
	b.itTest = s.itTest
	b.itTrain = s.itTrain
	copy(b.indices, s.indices)
	b.countPickings = s.countPickings
	b.epochCnt = s.epochCnt
	b.epochPickCnt = s.epochPickCnt
	b.notPicked = s.notPicked
	return b.rng.unmarshal(s.rng)
}

// SaveState remembers the iteration state, class schedule included
func (c *Class) SaveState() {
	c.Base.SaveState()
	if !c.balanced {
		c.savedClasses = &classCursors{}
		return
	}
	c.savedClasses = &classCursors{
		partitions:  cloneMatrix(c.partitions),
		partitionIt: append([]int(nil), c.partitionIt...),
		remaining:   append([]int(nil), c.remaining...),
		order:       append([]int(nil), c.order...),
		classIt:     c.classIt,
		orderIt:     c.orderIt,
	}
}

// RestoreState returns to the state remembered by SaveState
func (c *Class) RestoreState() error {
	if c.savedClasses == nil {
		return errors.Wrapf(ErrStateNotSaved, "%s", c.name)
	}
	if err := c.Base.RestoreState(); err != nil {
		return err
	}
	s := c.savedClasses
	if !c.balanced || s.partitions == nil {
		return nil
	}
	for k := range c.partitions {
		copy(c.partitions[k], s.partitions[k])
	}
	copy(c.partitionIt, s.partitionIt)
	copy(c.remaining, s.remaining)
	copy(c.order, s.order)
	c.classIt = s.classIt
	c.orderIt = s.orderIt
	return nil
}

// SaveState remembers the iteration state, taxonomy cursors included
func (h *Hierarchy) SaveState() {
	h.Class.SaveState()
	h.savedDepth = &depthCursors{
		depthIt: append([]int(nil), h.depthIt...),
		nodes:   h.tree.Cursors(),
	}
}

// RestoreState returns to the state remembered by SaveState
func (h *Hierarchy) RestoreState() error {
	if h.savedDepth == nil {
		return errors.Wrapf(ErrStateNotSaved, "%s", h.name)
	}
	if err := h.Class.RestoreState(); err != nil {
		return err
	}
	copy(h.depthIt, h.savedDepth.depthIt)
	return h.tree.SetCursors(h.savedDepth.nodes)
}

// State is a serializable snapshot of a sampler: its iteration state plus
// everything learnt about the samples so far.
type State struct {
	Name          string    `json:"name"`
	Size          int       `json:"size"`
	It            int       `json:"it"`
	ItTest        int       `json:"it_test"`
	ItTrain       int       `json:"it_train"`
	Indices       []int     `json:"indices"`
	Probas        []float64 `json:"probas"`
	Energies      []float64 `json:"energies"`
	Correct       []bool    `json:"correct"`
	Observed      []bool    `json:"observed"`
	PickCount     []int     `json:"pick_count"`
	CountPickings bool      `json:"count_pickings"`
	EpochSize     int       `json:"epoch_size"`
	EpochCnt      int       `json:"epoch_cnt"`
	EpochPickCnt  int       `json:"epoch_pick_cnt"`
	NotPicked     int       `json:"not_picked"`
	RNG           []byte    `json:"rng,omitempty"`

	Class     *ClassState     `json:"class,omitempty"`
	Hierarchy *HierarchyState `json:"hierarchy,omitempty"`
}

// ClassState is the balanced class schedule of a snapshot
type ClassState struct {
	Partitions  [][]int `json:"partitions"`
	PartitionIt []int   `json:"partition_it"`
	Remaining   []int   `json:"remaining"`
	Order       []int   `json:"order"`
	ClassIt     int     `json:"class_it"`
	OrderIt     int     `json:"order_it"`
}

// HierarchyState holds the taxonomy cursors of a snapshot
type HierarchyState struct {
	Depth   int               `json:"depth"`
	DepthIt []int             `json:"depth_it"`
	Nodes   []taxonomy.Cursor `json:"nodes"`
}

// Snapshot captures the sampler state
func (b *Base) Snapshot() *State {
	return &State{
		Name:          b.name,
		Size:          b.n,
		It:            b.it,
		ItTest:        b.itTest,
		ItTrain:       b.itTrain,
		Indices:       append([]int(nil), b.indices...),
		Probas:        append([]float64(nil), b.probas...),
		Energies:      append([]float64(nil), b.energies...),
		Correct:       append([]bool(nil), b.correct...),
		Observed:      append([]bool(nil), b.observed...),
		PickCount:     append([]int(nil), b.pickCount...),
		CountPickings: b.countPickings,
		EpochSize:     b.epochSize,
		EpochCnt:      b.epochCnt,
		EpochPickCnt:  b.epochPickCnt,
		NotPicked:     b.notPicked,
		RNG:           b.rng.marshal(),
	}
}

// Restore loads a snapshot taken from a sampler over the same store
func (b *Base) Restore(st *State) error {
	if st == nil {
		return errors.Wrap(ErrStateMismatch, "nil snapshot")
	}
	n := b.n
	if st.Size != n || len(st.Indices) != n || len(st.Probas) != n || len(st.Energies) != n ||
		len(st.Correct) != n || len(st.Observed) != n || len(st.PickCount) != n {
		return errors.Wrapf(ErrStateMismatch, "snapshot of %d samples restored into %s of %d samples", st.Size, b.name, n)
	}
	if err := b.rng.unmarshal(st.RNG); err != nil {
		return err
	}

	b.it = st.It
	b.itTest = st.ItTest
	b.itTrain = st.ItTrain
	copy(b.indices, st.Indices)
	copy(b.probas, st.Probas)
	copy(b.energies, st.Energies)
	copy(b.correct, st.Correct)
	copy(b.observed, st.Observed)
	copy(b.pickCount, st.PickCount)
	b.countPickings = st.CountPickings
	b.epochSize = st.EpochSize
	b.epochCnt = st.EpochCnt
	b.epochPickCnt = st.EpochPickCnt
	b.notPicked = st.NotPicked
	return nil
}

// Snapshot captures the sampler state, class schedule included
func (c *Class) Snapshot() *State {
	st := c.Base.Snapshot()
	if c.balanced {
		st.Class = &ClassState{
			Partitions:  cloneMatrix(c.partitions),
			PartitionIt: append([]int(nil), c.partitionIt...),
			Remaining:   append([]int(nil), c.remaining...),
			Order:       append([]int(nil), c.order...),
			ClassIt:     c.classIt,
			OrderIt:     c.orderIt,
		}
	}
	return st
}

// Restore loads a snapshot taken from a class sampler with the same classes
func (c *Class) Restore(st *State) error {
	if st != nil && c.balanced {
		if err := c.checkClassState(st.Class); err != nil {
			return err
		}
	}
	if err := c.Base.Restore(st); err != nil {
		return err
	}
	if !c.balanced {
		return nil
	}

	cs := st.Class
	for k := range c.partitions {
		copy(c.partitions[k], cs.Partitions[k])
	}
	copy(c.partitionIt, cs.PartitionIt)
	copy(c.remaining, cs.Remaining)
	copy(c.order, cs.Order)
	c.classIt = cs.ClassIt
	c.orderIt = cs.OrderIt
	return nil
}

func (c *Class) checkClassState(cs *ClassState) error {
	if cs == nil {
		return errors.Wrapf(ErrStateMismatch, "%s is balanced but the snapshot has no class schedule", c.name)
	}
	k := len(c.partitions)
	if len(cs.Partitions) != k || len(cs.PartitionIt) != k || len(cs.Remaining) != k || len(cs.Order) != k {
		return errors.Wrapf(ErrStateMismatch, "snapshot of %d classes restored into %s of %d classes", len(cs.Partitions), c.name, k)
	}
	for i := range c.partitions {
		if len(cs.Partitions[i]) != len(c.partitions[i]) {
			return errors.Wrapf(ErrStateMismatch, "class %d holds %d samples, snapshot has %d", i, len(c.partitions[i]), len(cs.Partitions[i]))
		}
	}
	return nil
}

// Snapshot captures the sampler state, taxonomy cursors included
func (h *Hierarchy) Snapshot() *State {
	st := h.Class.Snapshot()
	st.Hierarchy = &HierarchyState{
		Depth:   h.depth,
		DepthIt: append([]int(nil), h.depthIt...),
		Nodes:   h.tree.Cursors(),
	}
	return st
}

// Restore loads a snapshot taken from a hierarchy sampler over the same
// taxonomy
func (h *Hierarchy) Restore(st *State) error {
	if st != nil {
		hs := st.Hierarchy
		if hs == nil || len(hs.DepthIt) != len(h.depthIt) || len(hs.Nodes) != h.tree.Len() {
			return errors.Wrapf(ErrStateMismatch, "snapshot does not match the taxonomy of %s", h.name)
		}
		for d, it := range hs.DepthIt {
			if it < 0 || (it > 0 && it >= len(h.tree.CompleteDepth(d))) {
				return errors.Wrapf(ErrStateMismatch, "%s: depth %d cursor %d is out of range", h.name, d, it)
			}
		}
	}
	if err := h.Class.Restore(st); err != nil {
		return err
	}
	if err := h.SetCurrentDepth(st.Hierarchy.Depth); err != nil {
		return errors.Wrap(ErrStateMismatch, err.Error())
	}
	copy(h.depthIt, st.Hierarchy.DepthIt)
	return h.tree.SetCursors(st.Hierarchy.Nodes)
}

func cloneMatrix(m [][]int) [][]int {
	out := make([][]int, len(m))
	for i, row := range m {
		out[i] = append([]int(nil), row...)
	}
	return out
}

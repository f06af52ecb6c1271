package dataset

import (
	"fmt"
)

// Jitters holds an optional table of jitter vectors per sample. A sample may
// have no jitter entry, in which case a zero tensor of the widest jitter
// shape is returned.
type Jitters struct {
	entries []*Tensor
	maxDims []int
}

// NewJitters creates a jitter table. entries[i] may be nil.
func NewJitters(entries []*Tensor) *Jitters {
	j := &Jitters{entries: entries}
	for _, e := range entries {
		if e == nil {
			continue
		}
		if len(e.Shape) > len(j.maxDims) {
			grown := make([]int, len(e.Shape))
			copy(grown, j.maxDims)
			j.maxDims = grown
		}
		for d, v := range e.Shape {
			if v > j.maxDims[d] {
				j.maxDims[d] = v
			}
		}
	}
	return j
}

// Len returns the number of samples covered by the table
func (j *Jitters) Len() int {
	return len(j.entries)
}

// Get returns the jitter of sample i
func (j *Jitters) Get(i int) (Tensor, error) {
	if i < 0 || i >= len(j.entries) {
		return Tensor{}, fmt.Errorf("jitter index %d out of range [0, %d)", i, len(j.entries))
	}
	if e := j.entries[i]; e != nil {
		return e.Clone(), nil
	}
	if len(j.maxDims) == 0 {
		return Tensor{Shape: []int{1, 1}, Data: make([]float32, 1)}, nil
	}

	// an empty jitter: a single row of the widest jitter
	shape := make([]int, len(j.maxDims))
	copy(shape, j.maxDims)
	shape[0] = 1
	n := 1
	for _, d := range shape {
		n *= d
	}
	return Tensor{Shape: shape, Data: make([]float32, n)}, nil
}

// Scales holds the scale id each sample was extracted at
type Scales struct {
	ids []int
}

// NewScales creates a scale table, rejecting negative ids
func NewScales(ids []int) (*Scales, error) {
	for i, s := range ids {
		if s < 0 {
			return nil, fmt.Errorf("unexpected negative scale %d for sample %d", s, i)
		}
	}
	return &Scales{ids: ids}, nil
}

// Len returns the number of samples covered by the table
func (s *Scales) Len() int {
	return len(s.ids)
}

// Get returns the scale id of sample i
func (s *Scales) Get(i int) int {
	return s.ids[i]
}

// Tally counts samples per scale id, optionally restricted to samples
// accepted by keep.
func (s *Scales) Tally(keep func(i int) bool) []int {
	max := -1
	for _, v := range s.ids {
		if v > max {
			max = v
		}
	}
	tally := make([]int, max+1)
	for i, v := range s.ids {
		if keep != nil && !keep(i) {
			continue
		}
		tally[v]++
	}
	return tally
}

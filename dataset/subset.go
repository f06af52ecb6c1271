package dataset

import (
	"fmt"
)

// SubsetStore exposes a selection of samples from an underlying store.
type SubsetStore struct {
	original Store
	indices  []int
}

// NewSubsetStore creates a SubsetStore that wraps an existing store
// and limits the number of samples it exposes to the first limit ones.
func NewSubsetStore(original Store, limit int) (*SubsetStore, error) {
	if limit < 0 {
		return nil, fmt.Errorf("limit cannot be negative")
	}
	if limit > original.Len() {
		limit = original.Len() // Adjust limit if it's greater than the original store's length
	}

	indices := make([]int, limit)
	for i := range indices {
		indices[i] = i
	}

	return &SubsetStore{
		original: original,
		indices:  indices,
	}, nil
}

// NewIndexedSubset creates a SubsetStore exposing exactly the given indices
// of the original store, in order.
func NewIndexedSubset(original Store, indices []int) (*SubsetStore, error) {
	for _, idx := range indices {
		if idx < 0 || idx >= original.Len() {
			return nil, fmt.Errorf("index %d out of range [0, %d)", idx, original.Len())
		}
	}

	cp := make([]int, len(indices))
	copy(cp, indices)

	return &SubsetStore{
		original: original,
		indices:  cp,
	}, nil
}

// Len returns the number of samples in the subset
func (ss *SubsetStore) Len() int {
	return len(ss.indices)
}

// Get returns the idx-th sample of the subset from the original store
func (ss *SubsetStore) Get(idx int) (Sample, error) {
	if idx < 0 || idx >= len(ss.indices) {
		return nil, fmt.Errorf("index out of bounds for subset: %d (size: %d)", idx, len(ss.indices))
	}
	return ss.original.Get(ss.indices[idx])
}

// OriginalIndex maps a subset index back to the original store
func (ss *SubsetStore) OriginalIndex(idx int) int {
	return ss.indices[idx]
}

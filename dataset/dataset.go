package dataset

import (
	"fmt"
)

// Tensor is a dense float32 array with a row-major shape.
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// NewTensor creates a tensor after validating that data matches shape
func NewTensor(shape []int, data []float32) (Tensor, error) {
	if len(shape) == 0 {
		return Tensor{}, fmt.Errorf("shape cannot be empty")
	}

	expectedSize := 1
	for _, dim := range shape {
		if dim <= 0 {
			return Tensor{}, fmt.Errorf("invalid shape dimension: %d", dim)
		}
		expectedSize *= dim
	}

	if len(data) != expectedSize {
		return Tensor{}, fmt.Errorf("data size %d doesn't match shape %v (expected %d)",
			len(data), shape, expectedSize)
	}

	// Make a copy of shape to prevent external modifications
	shapeCopy := make([]int, len(shape))
	copy(shapeCopy, shape)

	return Tensor{Shape: shapeCopy, Data: data}, nil
}

// NumElems returns the number of elements held by the tensor
func (t Tensor) NumElems() int {
	return len(t.Data)
}

// Clone returns a deep copy of the tensor
func (t Tensor) Clone() Tensor {
	shape := make([]int, len(t.Shape))
	copy(shape, t.Shape)
	data := make([]float32, len(t.Data))
	copy(data, t.Data)
	return Tensor{Shape: shape, Data: data}
}

// Sample is one training or test instance. Most datasets hold a single
// tensor per sample, multi-matrix datasets hold several tensors of unrelated
// shapes.
type Sample []Tensor

// Clone returns a deep copy of every tensor in the sample
func (s Sample) Clone() Sample {
	out := make(Sample, len(s))
	for i, t := range s {
		out[i] = t.Clone()
	}
	return out
}

// Store is a fixed-size collection of samples addressable by integer index.
// The number of samples never changes during the lifetime of a store.
type Store interface {
	Len() int                    // Total number of samples
	Get(idx int) (Sample, error) // Returns a single sample
}

// MemoryStore keeps every sample in memory. Samples need not be uniformly
// shaped.
type MemoryStore struct {
	samples []Sample
	ragged  bool
}

// NewMemoryStore creates a store over the given samples
func NewMemoryStore(samples []Sample) (*MemoryStore, error) {
	ragged := false
	for i, s := range samples {
		if len(s) == 0 {
			return nil, fmt.Errorf("sample %d has no tensors", i)
		}
		if len(s) > 1 || !sameShape(s[0].Shape, samples[0][0].Shape) {
			ragged = true
		}
	}

	return &MemoryStore{
		samples: samples,
		ragged:  ragged,
	}, nil
}

// NewDenseStore slices a single [n, ...shape] block into n samples of the
// given per-sample shape.
func NewDenseStore(n int, shape []int, data []float32) (*MemoryStore, error) {
	if n < 0 {
		return nil, fmt.Errorf("number of samples cannot be negative")
	}

	sampleSize := 1
	for _, dim := range shape {
		if dim <= 0 {
			return nil, fmt.Errorf("invalid shape dimension: %d", dim)
		}
		sampleSize *= dim
	}

	if len(data) != n*sampleSize {
		return nil, fmt.Errorf("data size %d doesn't match %d samples of shape %v", len(data), n, shape)
	}

	samples := make([]Sample, n)
	for i := 0; i < n; i++ {
		t, err := NewTensor(shape, data[i*sampleSize:(i+1)*sampleSize])
		if err != nil {
			return nil, fmt.Errorf("failed to create sample %d: %v", i, err)
		}
		samples[i] = Sample{t}
	}

	return &MemoryStore{samples: samples}, nil
}

// Len returns the number of samples in the store
func (ms *MemoryStore) Len() int {
	return len(ms.samples)
}

// Get returns the sample at the given index
func (ms *MemoryStore) Get(idx int) (Sample, error) {
	if idx < 0 || idx >= len(ms.samples) {
		return nil, fmt.Errorf("index %d out of range [0, %d)", idx, len(ms.samples))
	}

	return ms.samples[idx], nil
}

// Ragged reports whether samples differ in shape or tensor count
func (ms *MemoryStore) Ragged() bool {
	return ms.ragged
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SampleShape returns the shape of the first tensor of the first sample, or
// nil for an empty store.
func SampleShape(s Store) []int {
	if s.Len() == 0 {
		return nil
	}
	first, err := s.Get(0)
	if err != nil || len(first) == 0 {
		return nil
	}
	shape := make([]int, len(first[0].Shape))
	copy(shape, first[0].Shape)
	return shape
}

package dataset

import (
	"fmt"
)

// LabelData provides per-sample labels for both classification and
// regression. Row i always refers to sample i of the companion store.
type LabelData interface {
	// Len returns the number of labelled samples
	Len() int

	// Dim returns the number of label values per sample
	Dim() int

	// Row returns the label values of sample i as float32
	Row(i int) []float32

	// DataType returns the semantic type of labels
	DataType() LabelDataType
}

// LabelDataType represents the semantic type of labels
type LabelDataType int

const (
	LabelTypeInt32   LabelDataType = iota // Classification labels
	LabelTypeFloat32                      // Regression targets
)

// String returns human-readable label type name
func (ldt LabelDataType) String() string {
	switch ldt {
	case LabelTypeInt32:
		return "Classification"
	case LabelTypeFloat32:
		return "Regression"
	default:
		return fmt.Sprintf("Unknown(%d)", ldt)
	}
}

// Int32Labels holds one class id per sample
type Int32Labels struct {
	data []int32
}

// NewInt32Labels creates classification labels, rejecting negative class ids
func NewInt32Labels(data []int32) (*Int32Labels, error) {
	for i, v := range data {
		if v < 0 {
			return nil, fmt.Errorf("label %d of sample %d is negative", v, i)
		}
	}

	return &Int32Labels{
		data: data,
	}, nil
}

// Len returns the number of labels
func (l *Int32Labels) Len() int {
	return len(l.data)
}

// Dim is always 1 for classification labels
func (l *Int32Labels) Dim() int {
	return 1
}

// Row returns the class id of sample i as a one-element vector
func (l *Int32Labels) Row(i int) []float32 {
	return []float32{float32(l.data[i])}
}

// DataType returns LabelTypeInt32 for classification
func (l *Int32Labels) DataType() LabelDataType {
	return LabelTypeInt32
}

// Class returns the class id of sample i
func (l *Int32Labels) Class(i int) int {
	return int(l.data[i])
}

// MaxClass returns the highest class id, or -1 when there are no labels
func (l *Int32Labels) MaxClass() int {
	max := -1
	for _, v := range l.data {
		if int(v) > max {
			max = int(v)
		}
	}
	return max
}

// Values returns a copy of the raw class ids
func (l *Int32Labels) Values() []int32 {
	out := make([]int32, len(l.data))
	copy(out, l.data)
	return out
}

// Float32Labels holds a fixed-width vector of continuous targets per sample
type Float32Labels struct {
	data []float32
	dim  int
}

// NewFloat32Labels creates regression labels of dim values per sample
func NewFloat32Labels(data []float32, dim int) (*Float32Labels, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid label dimension: %d", dim)
	}

	if len(data)%dim != 0 {
		return nil, fmt.Errorf("data size %d is not a multiple of label dimension %d", len(data), dim)
	}

	return &Float32Labels{
		data: data,
		dim:  dim,
	}, nil
}

// Len returns the number of labelled samples
func (l *Float32Labels) Len() int {
	return len(l.data) / l.dim
}

// Dim returns the number of targets per sample
func (l *Float32Labels) Dim() int {
	return l.dim
}

// Row returns a view on the targets of sample i
func (l *Float32Labels) Row(i int) []float32 {
	return l.data[i*l.dim : (i+1)*l.dim]
}

// DataType returns LabelTypeFloat32 for regression
func (l *Float32Labels) DataType() LabelDataType {
	return LabelTypeFloat32
}

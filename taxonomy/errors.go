package taxonomy

import "github.com/pkg/errors"

var (
	// ErrEmptyNode is returned when drawing from a node with no samples in
	// its subtree.
	ErrEmptyNode = errors.New("node holds no samples")
	// ErrCycle is returned when a parent table links a node to one of its
	// own descendants.
	ErrCycle = errors.New("parent table contains a cycle")
	// ErrDanglingParent is returned for child or parent ids that name no
	// class.
	ErrDanglingParent = errors.New("parent table references an unknown class")
	// ErrDuplicateChild is returned when a child is attached twice.
	ErrDuplicateChild = errors.New("child node added twice")
	// ErrLabelOutOfRange is returned for sample labels outside [0, nclasses).
	ErrLabelOutOfRange = errors.New("label out of range")
)

package sampler

import "github.com/pkg/errors"

var (
	// ErrTestOnly is returned when adaptive iteration is requested from a
	// sampler marked as a test set.
	ErrTestOnly = errors.New("forbidden call on a test-only sampler")
	// ErrStateNotSaved is returned by RestoreState without a prior SaveState.
	ErrStateNotSaved = errors.New("state not saved, call SaveState before RestoreState")
	// ErrIndexOutOfRange is returned for sample indices outside [0, Size).
	ErrIndexOutOfRange = errors.New("sample index out of range")
	// ErrClassProbabilities is returned for invalid class probability vectors.
	ErrClassProbabilities = errors.New("invalid class probabilities")
	// ErrDepthOutOfRange is returned when selecting a depth the taxonomy
	// does not have.
	ErrDepthOutOfRange = errors.New("depth out of range")
	// ErrNoSamples is returned when no included class holds a sample.
	ErrNoSamples = errors.New("no samples to draw from")
	// ErrStateMismatch is returned when restoring a snapshot taken from a
	// differently shaped sampler.
	ErrStateMismatch = errors.New("snapshot does not match sampler")
	// ErrSizeMismatch is returned when side tables and samples disagree in
	// length.
	ErrSizeMismatch = errors.New("size mismatch")
	// ErrInvalidOption is returned for out of range configuration values.
	ErrInvalidOption = errors.New("invalid option")
)

package checkpoints

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsawler/go-datasource/dataset"
	"github.com/tsawler/go-datasource/sampler"
)

func newTestSampler(t *testing.T) *sampler.Class {
	t.Helper()
	labels := []int32{0, 0, 0, 1, 1, 2}
	data := make([]float32, len(labels))
	store, err := dataset.NewDenseStore(len(labels), []int{1}, data)
	require.NoError(t, err)
	lbl, err := dataset.NewInt32Labels(labels)
	require.NoError(t, err)

	opts := sampler.DefaultOptions()
	opts.Seed = 5
	s, err := sampler.NewClass(store, lbl, opts)
	require.NoError(t, err)

	for i := range labels {
		require.NoError(t, s.SelectSample(i))
		require.NoError(t, s.ReportResult(sampler.Result{Energy: float64(i) / 3, Correct: i%2 == 0}))
	}
	s.InitEpoch()
	for i := 0; i < 4; i++ {
		_, err := s.NextTrain()
		require.NoError(t, err)
	}
	return s
}

func newTestCheckpoint(t *testing.T) *Checkpoint {
	return &Checkpoint{
		Sampler: newTestSampler(t).Snapshot(),
		Weights: []WeightTensor{
			{Name: "centroids", Shape: []int{3, 2}, Data: []float32{0.5, 1, -2, 0.25, 3, 4}},
		},
		TrainingState: TrainingState{
			Epoch:        3,
			Step:         120,
			Depth:        1,
			BestAccuracy: 0.875,
			TotalPicked:  97,
		},
		Metadata: CheckpointMetadata{
			Description: "test checkpoint",
			Tags:        []string{"test"},
		},
	}
}

func TestCheckpointSaveLoad(t *testing.T) {
	for _, format := range []CheckpointFormat{FormatJSON, FormatProto} {
		t.Run(format.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "checkpoint")
			saver := NewCheckpointSaver(format)
			original := newTestCheckpoint(t)

			require.NoError(t, saver.SaveCheckpoint(original, path))
			assert.Equal(t, "go-datasource", original.Metadata.Framework)

			loaded, err := saver.LoadCheckpoint(path)
			require.NoError(t, err)

			assert.Equal(t, original.TrainingState, loaded.TrainingState)
			assert.Equal(t, original.Weights, loaded.Weights)
			assert.Equal(t, original.Sampler, loaded.Sampler)
			assert.Equal(t, original.Metadata.Description, loaded.Metadata.Description)
			assert.Equal(t, original.Metadata.Tags, loaded.Metadata.Tags)
			assert.WithinDuration(t, original.Metadata.CreatedAt, loaded.Metadata.CreatedAt, time.Second)
		})
	}
}

func TestCheckpointResumesSampler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.pb")
	saver := NewCheckpointSaver(FormatProto)

	s := newTestSampler(t)
	require.NoError(t, saver.SaveCheckpoint(&Checkpoint{Sampler: s.Snapshot()}, path))

	var want []int
	for i := 0; i < 20; i++ {
		_, err := s.NextTrain()
		require.NoError(t, err)
		want = append(want, s.Current())
	}

	loaded, err := saver.LoadCheckpoint(path)
	require.NoError(t, err)
	resumed := newTestSampler(t)
	require.NoError(t, resumed.Restore(loaded.Sampler))

	var got []int
	for i := 0; i < 20; i++ {
		_, err := resumed.NextTrain()
		require.NoError(t, err)
		got = append(got, resumed.Current())
	}
	assert.Equal(t, want, got)
}

func TestCheckpointErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		for _, format := range []CheckpointFormat{FormatJSON, FormatProto} {
			_, err := NewCheckpointSaver(format).LoadCheckpoint(filepath.Join(dir, "missing"))
			assert.Error(t, err)
		}
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(dir, "corrupt")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
		_, err := NewCheckpointSaver(FormatJSON).LoadCheckpoint(path)
		assert.Error(t, err)
	})

	t.Run("unsupported format", func(t *testing.T) {
		saver := NewCheckpointSaver(CheckpointFormat(9))
		assert.Error(t, saver.SaveCheckpoint(&Checkpoint{}, filepath.Join(dir, "x")))
		_, err := saver.LoadCheckpoint(filepath.Join(dir, "x"))
		assert.Error(t, err)
		assert.Equal(t, "Unknown", CheckpointFormat(9).String())
	})

	t.Run("nil checkpoint", func(t *testing.T) {
		assert.Error(t, NewCheckpointSaver(FormatJSON).SaveCheckpoint(nil, filepath.Join(dir, "nil")))
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    CheckpointFormat
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"", FormatJSON, false},
		{"Proto", FormatProto, false},
		{"pb", FormatProto, false},
		{"onnx", FormatJSON, true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

package training

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsawler/go-datasource/checkpoints"
)

func TestCheckpointManager(t *testing.T) {
	for _, format := range []checkpoints.CheckpointFormat{checkpoints.FormatJSON, checkpoints.FormatProto} {
		t.Run(format.String(), func(t *testing.T) {
			dir := t.TempDir()
			learner := &fakeLearner{nclasses: 3, wrong: map[int]int{2: 0}, bias: 2}
			trainer, err := NewTrainer(learner,
				newClassSampler(t, samplerOptions()),
				newClassSampler(t, uniformOptions()),
				TrainingConfig{Epochs: 3})
			require.NoError(t, err)

			config := DefaultCheckpointConfig()
			config.SaveDirectory = dir
			config.SaveFrequency = 1
			config.MaxCheckpoints = 2
			config.Format = format
			manager := NewCheckpointManager(trainer, config)

			require.NoError(t, trainer.Train(context.Background(), manager.OnEpoch))

			require.Len(t, manager.SavedFiles(), 2)
			for _, path := range manager.SavedFiles() {
				assert.FileExists(t, path)
			}
			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			// two periodic checkpoints and the best one
			assert.Len(t, entries, 3)

			best := filepath.Join(dir, "best_checkpoint."+manager.getFileExtension())
			assert.FileExists(t, best)

			resumedLearner := &fakeLearner{nclasses: 3}
			resumed, err := NewTrainer(resumedLearner, newClassSampler(t, samplerOptions()), nil, TrainingConfig{Epochs: 4})
			require.NoError(t, err)
			loader := NewCheckpointManager(resumed, config)

			last := manager.SavedFiles()[1]
			require.NoError(t, loader.LoadCheckpoint(last))
			assert.Equal(t, 3, resumed.Epoch())
			assert.Equal(t, trainer.Step(), resumed.Step())
			assert.Equal(t, float32(2), resumedLearner.bias)
			assert.InDelta(t, 5.0/6.0, loader.bestAccuracy, 1e-9)

			require.NoError(t, resumed.Train(context.Background(), nil))
			assert.Equal(t, 4, resumed.Epoch())
			assert.Len(t, resumed.Metrics(), 1)
		})
	}
}

func TestCheckpointManagerDisabled(t *testing.T) {
	trainer, err := NewTrainer(&fakeLearner{nclasses: 3}, newClassSampler(t, uniformOptions()), nil, TrainingConfig{Epochs: 1})
	require.NoError(t, err)

	config := CheckpointConfig{SaveDirectory: filepath.Join(t.TempDir(), "none")}
	manager := NewCheckpointManager(trainer, config)

	saved, err := manager.SavePeriodicCheckpoint(1)
	require.NoError(t, err)
	assert.False(t, saved)

	saved, err = manager.SaveBestCheckpoint(0.9)
	require.NoError(t, err)
	assert.False(t, saved)

	assert.NoDirExists(t, config.SaveDirectory)
	assert.Error(t, manager.LoadCheckpoint(filepath.Join(config.SaveDirectory, "missing.json")))
}

func TestGenerateFilename(t *testing.T) {
	trainer, err := NewTrainer(&fakeLearner{nclasses: 3}, newClassSampler(t, uniformOptions()), nil, TrainingConfig{})
	require.NoError(t, err)

	tests := []struct {
		config   CheckpointConfig
		expected string
	}{
		{CheckpointConfig{}, "checkpoint_epoch_2_step_40.json"},
		{CheckpointConfig{Format: checkpoints.FormatProto}, "checkpoint_epoch_2_step_40.pb"},
		{CheckpointConfig{FilenamePattern: "run_%03d_%d"}, "run_002_40.json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NewCheckpointManager(trainer, tt.config).generateFilename(2, 40))
	}
}

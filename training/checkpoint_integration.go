package training

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsawler/go-datasource/checkpoints"
	"go.uber.org/zap"
)

// CheckpointConfig configures checkpoint saving behavior
type CheckpointConfig struct {
	SaveDirectory   string                       // Directory to save checkpoints
	SaveFrequency   int                          // Save every N epochs (0 = disabled)
	SaveBest        bool                         // Save checkpoint when test accuracy improves
	MaxCheckpoints  int                          // Maximum number of periodic checkpoints to keep (0 = unlimited)
	Format          checkpoints.CheckpointFormat // JSON or Proto
	FilenamePattern string                       // Pattern for checkpoint filenames
}

// DefaultCheckpointConfig returns a sensible default configuration
func DefaultCheckpointConfig() CheckpointConfig {
	return CheckpointConfig{
		SaveDirectory:   "./checkpoints",
		SaveFrequency:   5, // Save every 5 epochs
		SaveBest:        true,
		MaxCheckpoints:  10,
		Format:          checkpoints.FormatJSON,
		FilenamePattern: "checkpoint_epoch_%d_step_%d",
	}
}

// CheckpointManager handles checkpoint saving and loading for a Trainer
type CheckpointManager struct {
	config       CheckpointConfig
	trainer      *Trainer
	saver        *checkpoints.CheckpointSaver
	logger       *zap.Logger
	bestAccuracy float64
	savedFiles   []string // Track saved checkpoint files for cleanup
}

// NewCheckpointManager creates a new checkpoint manager
func NewCheckpointManager(trainer *Trainer, config CheckpointConfig) *CheckpointManager {
	return &CheckpointManager{
		config:       config,
		trainer:      trainer,
		saver:        checkpoints.NewCheckpointSaver(config.Format),
		logger:       trainer.logger.Named("checkpoints"),
		bestAccuracy: -1,
		savedFiles:   make([]string, 0),
	}
}

// OnEpoch saves the periodic and best checkpoints due after an epoch. It
// fits Trainer.Train's callback.
func (cm *CheckpointManager) OnEpoch(m EpochMetrics) error {
	if _, err := cm.SavePeriodicCheckpoint(m.Epoch); err != nil {
		return err
	}
	_, err := cm.SaveBestCheckpoint(m.TestAccuracy)
	return err
}

// SaveCheckpoint saves the current trainer state and returns its path
func (cm *CheckpointManager) SaveCheckpoint(description string) (string, error) {
	checkpoint := cm.trainer.Checkpoint(description)
	path := filepath.Join(cm.config.SaveDirectory, cm.generateFilename(checkpoint.TrainingState.Epoch, checkpoint.TrainingState.Step))

	if err := cm.write(checkpoint, path); err != nil {
		return "", err
	}

	// Track saved file
	cm.savedFiles = append(cm.savedFiles, path)

	// Cleanup old checkpoints if needed
	if err := cm.cleanupOldCheckpoints(); err != nil {
		// Log warning but don't fail the save operation
		cm.logger.Warn("failed to cleanup old checkpoints", zap.Error(err))
	}

	return path, nil
}

// SaveBestCheckpoint saves a checkpoint if accuracy beats the previous best
func (cm *CheckpointManager) SaveBestCheckpoint(accuracy float64) (bool, error) {
	if !cm.config.SaveBest || accuracy <= cm.bestAccuracy {
		return false, nil
	}
	cm.bestAccuracy = accuracy

	description := fmt.Sprintf("Best checkpoint - Accuracy: %.2f%%", accuracy*100)
	path := filepath.Join(cm.config.SaveDirectory, fmt.Sprintf("best_checkpoint.%s", cm.getFileExtension()))
	if err := cm.write(cm.trainer.Checkpoint(description), path); err != nil {
		return false, fmt.Errorf("failed to save best checkpoint: %v", err)
	}
	return true, nil
}

// SavePeriodicCheckpoint saves a checkpoint if it's time based on frequency
func (cm *CheckpointManager) SavePeriodicCheckpoint(epoch int) (bool, error) {
	if cm.config.SaveFrequency <= 0 || epoch%cm.config.SaveFrequency != 0 {
		return false, nil
	}

	if _, err := cm.SaveCheckpoint(fmt.Sprintf("Periodic checkpoint - Epoch %d", epoch)); err != nil {
		return false, err
	}
	return true, nil
}

// LoadCheckpoint loads a checkpoint and restores trainer state
func (cm *CheckpointManager) LoadCheckpoint(path string) error {
	checkpoint, err := cm.saver.LoadCheckpoint(path)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %v", err)
	}

	if err := cm.trainer.Resume(checkpoint); err != nil {
		return fmt.Errorf("failed to restore trainer state: %v", err)
	}
	cm.bestAccuracy = checkpoint.TrainingState.BestAccuracy

	cm.logger.Info("checkpoint loaded",
		zap.String("path", path),
		zap.Int("epoch", checkpoint.TrainingState.Epoch),
		zap.Int("step", checkpoint.TrainingState.Step))
	return nil
}

// SavedFiles returns the periodic checkpoints still on disk, oldest first
func (cm *CheckpointManager) SavedFiles() []string {
	return cm.savedFiles
}

func (cm *CheckpointManager) write(checkpoint *checkpoints.Checkpoint, path string) error {
	if err := os.MkdirAll(cm.config.SaveDirectory, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %v", err)
	}
	if err := cm.saver.SaveCheckpoint(checkpoint, path); err != nil {
		return fmt.Errorf("failed to save checkpoint: %v", err)
	}
	cm.logger.Debug("checkpoint saved", zap.String("path", path))
	return nil
}

func (cm *CheckpointManager) generateFilename(epoch int, step int) string {
	pattern := cm.config.FilenamePattern
	if pattern == "" {
		pattern = "checkpoint_epoch_%d_step_%d"
	}
	return fmt.Sprintf("%s.%s", fmt.Sprintf(pattern, epoch, step), cm.getFileExtension())
}

func (cm *CheckpointManager) getFileExtension() string {
	switch cm.config.Format {
	case checkpoints.FormatProto:
		return "pb"
	default:
		return "json"
	}
}

func (cm *CheckpointManager) cleanupOldCheckpoints() error {
	if cm.config.MaxCheckpoints <= 0 || len(cm.savedFiles) <= cm.config.MaxCheckpoints {
		return nil
	}

	// Remove oldest checkpoints
	toRemove := len(cm.savedFiles) - cm.config.MaxCheckpoints
	for i := 0; i < toRemove; i++ {
		if err := os.Remove(cm.savedFiles[i]); err != nil {
			return fmt.Errorf("failed to remove old checkpoint %s: %v", cm.savedFiles[i], err)
		}
	}
	cm.savedFiles = cm.savedFiles[toRemove:]

	return nil
}

package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsawler/go-datasource/sampler"
	"go.uber.org/zap"
)

// ExportOptions selects what Export writes
type ExportOptions struct {
	PNG     bool // render charts next to the JSON plot data
	Answers bool // write answers.csv when outputs were kept
	Logger  *zap.Logger
}

// AnswerSource is a sampler keeping its learner's outputs
type AnswerSource interface {
	Answers() []sampler.Answer
}

// Export writes every plot of c to dir, and the answers of s when asked,
// and returns the written paths. Plots without data are skipped.
func Export(dir string, c *Collector, s AnswerSource, opts ExportOptions) ([]string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create diagnostics directory: %v", err)
	}

	var paths []string
	for _, pd := range c.GenerateAll() {
		path, err := SaveJSON(pd, dir)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)

		if !opts.PNG {
			continue
		}
		path, err = SavePNG(pd, dir)
		if err == ErrNoData {
			logger.Debug("skipping empty plot", zap.String("plot", string(pd.PlotType)))
			continue
		}
		if err != nil {
			return paths, fmt.Errorf("failed to render %s: %v", pd.PlotType, err)
		}
		paths = append(paths, path)
	}

	if opts.Answers && s != nil {
		answers := s.Answers()
		if len(answers) == 0 {
			logger.Warn("no outputs were kept, not writing answers")
		} else {
			path := filepath.Join(dir, "answers.csv")
			if err := SaveAnswersCSV(path, answers, c.report); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
	}

	logger.Info("diagnostics written", zap.String("dir", dir), zap.Int("files", len(paths)))
	return paths, nil
}

package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tsawler/go-datasource/config"
	"github.com/tsawler/go-datasource/diagnostics"
	"github.com/tsawler/go-datasource/sampler"
	"github.com/tsawler/go-datasource/taxonomy"
	"github.com/tsawler/go-datasource/training"
	"go.uber.org/zap"
)

func simulateCmd() *cobra.Command {
	var (
		configPath     string
		epochs         int
		resume         string
		diagnosticsDir string
		checkpointDir  string
		sidecar        string
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "train a nearest-centroid learner on synthetic imbalanced data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}
			if epochs > 0 {
				cfg.Training.Epochs = epochs
			}
			if diagnosticsDir != "" {
				cfg.Diagnostics.Dir = diagnosticsDir
			}
			if checkpointDir != "" {
				cfg.Training.Checkpoints.Dir = checkpointDir
			}
			if sidecar != "" {
				cfg.Diagnostics.Sidecar = sidecar
			}

			logger, err := newLogger(cfg.Logging.Level, verbose)
			if err != nil {
				return errors.Wrap(err, "invalid logging level")
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			sim, err := newSimulation(cfg, logger)
			if err != nil {
				return err
			}
			_, err = sim.run(ctx, resume)
			if err != nil {
				logger.Error("simulation failed", zap.Error(err))
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	flags.IntVarP(&epochs, "epochs", "e", 0, "number of epochs, overriding the configuration")
	flags.StringVar(&resume, "resume", "", "checkpoint to resume from")
	flags.StringVar(&diagnosticsDir, "diagnostics", "", "directory for plots and exports")
	flags.StringVar(&checkpointDir, "checkpoints", "", "directory for checkpoints")
	flags.StringVar(&sidecar, "sidecar", "", "base URL of a plotting sidecar to publish plots to")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	return cmd
}

// simulation wires the synthetic data, samplers, learner and trainer
type simulation struct {
	cfg    *config.Config
	logger *zap.Logger

	trainData *blobs
	testData  *blobs
	train     training.Source
	test      training.Source

	learner   *centroidLearner
	trainer   *training.Trainer
	manager   *training.CheckpointManager
	collector *diagnostics.Collector
}

// simResult is what a simulation produced
type simResult struct {
	Metrics []training.EpochMetrics
	Summary diagnostics.Summary
	Files   []string

	// Published is set once the plots reached the plotting sidecar
	Published bool
}

func newSimulation(cfg *config.Config, logger *zap.Logger) (*simulation, error) {
	d := cfg.Dataset
	trainData, err := newBlobs(d.ClassSizes, d.Dim, d.Spread, d.Seed, d.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create training data")
	}
	testData, err := newBlobs(testSizes(d.ClassSizes, d.TestFraction), d.Dim, d.Spread, d.Seed+1, d.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create test data")
	}

	var parents []taxonomy.Pair
	if cfg.Sampler.Hierarchy && d.ParentsCSV != "" {
		if parents, err = taxonomy.LoadParentsCSV(d.ParentsCSV); err != nil {
			return nil, err
		}
	}

	s := &simulation{
		cfg:       cfg,
		logger:    logger,
		trainData: trainData,
		testData:  testData,
	}
	if s.train, err = s.newSampler(cfg.Sampler.Name, trainData, parents, false); err != nil {
		return nil, errors.Wrap(err, "failed to create training sampler")
	}
	if s.test, err = s.newSampler("test", testData, parents, true); err != nil {
		return nil, errors.Wrap(err, "failed to create test sampler")
	}

	s.learner = newCentroidLearner(s.train.NClasses(), d.Dim)

	tc := cfg.Training
	trainerConfig := training.TrainingConfig{
		Epochs:        tc.Epochs,
		RefreshEvery:  tc.RefreshEvery,
		EarlyStopping: tc.EarlyStopping,
		Patience:      tc.Patience,
		Scheduler:     tc.Scheduler(cfg.Sampler.Depth),
		Logger:        logger,
	}
	if tc.Progress {
		trainerConfig.Progress = os.Stderr
	}
	if s.trainer, err = training.NewTrainer(s.learner, s.train, s.test, trainerConfig); err != nil {
		return nil, err
	}

	ck, enabled, err := tc.CheckpointConfig()
	if err != nil {
		return nil, err
	}
	if enabled {
		s.manager = training.NewCheckpointManager(s.trainer, ck)
	}
	s.collector = diagnostics.NewCollector(s.train.Report())
	return s, nil
}

func (s *simulation) newSampler(name string, data *blobs, parents []taxonomy.Pair, testOnly bool) (training.Source, error) {
	opts, err := s.cfg.Sampler.Options()
	if err != nil {
		return nil, err
	}
	opts.Name = name
	opts.Logger = s.logger
	opts.TestOnly = testOnly
	if testOnly {
		opts.KeepOutputs = false
	}

	if !s.cfg.Sampler.Hierarchy {
		c, err := sampler.NewClass(data.store, data.labels, opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	opts.Parents = parents
	h, err := sampler.NewHierarchy(data.store, data.labels, opts)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (s *simulation) onEpoch(m training.EpochMetrics) error {
	s.collector.RecordEpoch(m)
	if s.manager != nil {
		return s.manager.OnEpoch(m)
	}
	return nil
}

func (s *simulation) run(ctx context.Context, resume string) (*simResult, error) {
	if resume != "" {
		if s.manager == nil {
			return nil, errors.New("resuming needs a checkpoint directory")
		}
		if err := s.manager.LoadCheckpoint(resume); err != nil {
			return nil, err
		}
	}

	if err := s.trainer.Train(ctx, s.onEpoch); err != nil {
		return nil, err
	}

	report := s.train.Report()
	res := &simResult{
		Metrics: s.trainer.Metrics(),
		Summary: diagnostics.Summarize(report),
	}
	s.logger.Info("training sampler summary", res.Summary.Fields()...)
	s.logger.Info("sample cache",
		zap.String("train", s.trainData.store.Stats().String()),
		zap.String("test", s.testData.store.Stats().String()))

	if dir := s.cfg.Diagnostics.Dir; dir != "" {
		s.collector.SetReport(report)
		var answers diagnostics.AnswerSource
		if as, ok := s.train.(diagnostics.AnswerSource); ok {
			answers = as
		}
		files, err := diagnostics.Export(dir, s.collector, answers, diagnostics.ExportOptions{
			PNG:     s.cfg.Diagnostics.PNG,
			Answers: s.cfg.Diagnostics.Answers,
			Logger:  s.logger,
		})
		if err != nil {
			return nil, err
		}
		res.Files = files
	}

	if url := s.cfg.Diagnostics.Sidecar; url != "" {
		s.collector.SetReport(report)
		res.Published = s.publish(ctx, url)
	}
	return res, nil
}

// publish sends the plots to the plotting sidecar. A missing sidecar is
// logged, not fatal.
func (s *simulation) publish(ctx context.Context, url string) bool {
	cfg := diagnostics.DefaultPlottingServiceConfig()
	cfg.BaseURL = url
	cfg.RetryAttempts = s.cfg.Diagnostics.SidecarRetries
	ps := diagnostics.NewPlottingService(cfg, s.logger)

	if err := ps.CheckHealth(ctx); err != nil {
		s.logger.Warn("plotting sidecar unavailable", zap.String("url", url), zap.Error(err))
		return false
	}
	if _, err := ps.Publish(ctx, s.collector); err != nil {
		s.logger.Warn("failed to publish plots", zap.String("url", url), zap.Error(err))
		return false
	}
	return true
}

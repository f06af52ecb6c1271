// Package config maps a YAML file onto sampler options and the trainer,
// diagnostics and synthetic dataset settings of the simulator.
package config

import (
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"
	"github.com/tsawler/go-datasource/checkpoints"
	"github.com/tsawler/go-datasource/sampler"
	"github.com/tsawler/go-datasource/training"
	yaml "gopkg.in/yaml.v2"
)

// Config is the root of the configuration file
type Config struct {
	Sampler     SamplerConfig     `yaml:"sampler"`
	Training    TrainingConfig    `yaml:"training"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Dataset     DatasetConfig     `yaml:"dataset"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// WeighConfig configures difficulty-based picking probabilities
type WeighConfig struct {
	Enabled      bool    `yaml:"enabled"`
	HardestFocus bool    `yaml:"hardest_focus"`
	PerClassNorm bool    `yaml:"per_class_norm"`
	MinProba     float64 `yaml:"min_proba"`
}

// LimitConfig restricts training to a subset of the classes
type LimitConfig struct {
	N      int  `yaml:"n"`
	Offset int  `yaml:"offset"`
	Random bool `yaml:"random"`
}

// SamplerConfig holds every sampler option
type SamplerConfig struct {
	Name               string       `yaml:"name"`
	Hierarchy          bool         `yaml:"hierarchy"`
	WeighSamples       WeighConfig  `yaml:"weigh_samples"`
	ShufflePasses      bool         `yaml:"shuffle_passes"`
	Balanced           bool         `yaml:"balanced"`
	RandomClassOrder   bool         `yaml:"random_class_order"`
	ClassProbabilities []float64    `yaml:"class_probabilities,omitempty"`
	LimitClasses       *LimitConfig `yaml:"limit_classes,omitempty"`
	EpochMode          string       `yaml:"epoch_mode"`
	EpochSize          int          `yaml:"epoch_size"`
	IgnoreCorrect      bool         `yaml:"ignore_correct"`
	KeepOutputs        bool         `yaml:"keep_outputs"`
	Seed               uint64       `yaml:"seed"`
	EpochShow          int          `yaml:"epoch_show"`
	DataBias           float32      `yaml:"data_bias"`
	DataCoeff          float32      `yaml:"data_coeff"`
	ClassNames         []string     `yaml:"class_names,omitempty"`
	DepthBalanced      bool         `yaml:"depth_balanced"`
	Depth              int          `yaml:"depth"`
}

// CheckpointConfig configures checkpoint saving
type CheckpointConfig struct {
	Dir    string `yaml:"dir"`
	Every  int    `yaml:"every"`
	Keep   int    `yaml:"keep"`
	Best   bool   `yaml:"best"`
	Format string `yaml:"format"`
}

// TrainingConfig configures the trainer
type TrainingConfig struct {
	Epochs        int  `yaml:"epochs"`
	RefreshEvery  int  `yaml:"refresh_every"`
	EarlyStopping bool `yaml:"early_stopping"`
	Patience      int  `yaml:"patience"`

	// DepthSchedule is "none", "constant", "step" or "plateau"
	DepthSchedule    string  `yaml:"depth_schedule"`
	DepthStep        int     `yaml:"depth_step"`
	PlateauPatience  int     `yaml:"plateau_patience"`
	PlateauThreshold float64 `yaml:"plateau_threshold"`

	Checkpoints CheckpointConfig `yaml:"checkpoints"`
	Progress    bool             `yaml:"progress"`
}

// DiagnosticsConfig configures the exports written after training
type DiagnosticsConfig struct {
	Dir     string `yaml:"dir"`
	PNG     bool   `yaml:"png"`
	Answers bool   `yaml:"answers"`

	// Sidecar is the base URL of a plotting sidecar, empty to skip
	// publishing
	Sidecar        string `yaml:"sidecar,omitempty"`
	SidecarRetries int    `yaml:"sidecar_retries"`
}

// DatasetConfig describes the synthetic dataset of the simulator
type DatasetConfig struct {
	// ClassSizes is the number of training samples of each class
	ClassSizes []int `yaml:"class_sizes"`
	// TestFraction sizes the test set relative to the training set
	TestFraction float64 `yaml:"test_fraction"`
	Dim          int     `yaml:"dim"`
	Spread       float64 `yaml:"spread"`
	Seed         uint64  `yaml:"seed"`
	CacheSize    int     `yaml:"cache_size"`
	// ParentsCSV is an optional child,parent table of the classes
	ParentsCSV string `yaml:"parents_csv"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used for absent keys
func Default() *Config {
	opts := sampler.DefaultOptions()
	return &Config{
		Sampler: SamplerConfig{
			Name: "train",
			WeighSamples: WeighConfig{
				Enabled:      opts.Weigh.Enabled,
				HardestFocus: opts.Weigh.HardestFocus,
				PerClassNorm: opts.Weigh.PerClassNorm,
				MinProba:     opts.Weigh.MinProba,
			},
			ShufflePasses:    opts.ShufflePasses,
			Balanced:         opts.Balanced,
			RandomClassOrder: opts.RandomClassOrder,
			EpochMode:        "see_all_once",
			Seed:             1,
			EpochShow:        opts.EpochShow,
			DataCoeff:        opts.DataCoeff,
		},
		Training: TrainingConfig{
			Epochs:        10,
			RefreshEvery:  1,
			Patience:      3,
			DepthSchedule: "none",
			DepthStep:     5,
			Checkpoints: CheckpointConfig{
				Every:  5,
				Keep:   10,
				Best:   true,
				Format: "json",
			},
		},
		Dataset: DatasetConfig{
			ClassSizes:   []int{500, 100, 20},
			TestFraction: 0.2,
			Dim:          2,
			Spread:       1,
			Seed:         1,
			CacheSize:    256,
		},
		Diagnostics: DiagnosticsConfig{SidecarRetries: 3},
		Logging:     LoggingConfig{Level: "info"},
	}
}

// Load reads a configuration file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write config %s", path)
	}
	return nil
}

// Validate checks values no sampler would accept
func (c *Config) Validate() error {
	if _, err := parseEpochMode(c.Sampler.EpochMode); err != nil {
		return err
	}
	w := c.Sampler.WeighSamples
	if w.MinProba < 0 || w.MinProba > 1 {
		return errors.Errorf("sampler.weigh_samples.min_proba must be in [0, 1], got %g", w.MinProba)
	}
	for i, p := range c.Sampler.ClassProbabilities {
		if p < 0 {
			return errors.Errorf("sampler.class_probabilities[%d] is negative", i)
		}
	}
	if l := c.Sampler.LimitClasses; l != nil && (l.N < 0 || l.Offset < 0) {
		return errors.Errorf("sampler.limit_classes must not be negative")
	}
	if c.Sampler.Depth < 0 {
		return errors.Errorf("sampler.depth must not be negative")
	}

	t := c.Training
	if t.Epochs <= 0 {
		return errors.Errorf("training.epochs must be positive, got %d", t.Epochs)
	}
	if t.EarlyStopping && t.Patience <= 0 {
		return errors.Errorf("training.patience must be positive with early stopping")
	}
	switch t.DepthSchedule {
	case "", "none", "constant", "step", "plateau":
	default:
		return errors.Errorf("unknown training.depth_schedule %q", t.DepthSchedule)
	}
	if _, err := checkpoints.ParseFormat(t.Checkpoints.Format); err != nil {
		return errors.Wrap(err, "training.checkpoints.format")
	}

	if c.Diagnostics.SidecarRetries < 0 {
		return errors.New("diagnostics.sidecar_retries must not be negative")
	}

	d := c.Dataset
	if len(d.ClassSizes) == 0 {
		return errors.New("dataset.class_sizes must list at least one class")
	}
	for i, n := range d.ClassSizes {
		if n < 0 {
			return errors.Errorf("dataset.class_sizes[%d] is negative", i)
		}
	}
	if d.TestFraction < 0 {
		return errors.Errorf("dataset.test_fraction must not be negative")
	}
	if d.Dim <= 0 {
		return errors.Errorf("dataset.dim must be positive, got %d", d.Dim)
	}
	return nil
}

func parseEpochMode(s string) (sampler.EpochMode, error) {
	switch strings.ToLower(s) {
	case "fixed_count", "0":
		return sampler.FixedCount, nil
	case "see_all_once", "1", "":
		return sampler.SeeAllOnce, nil
	default:
		return 0, errors.Errorf("unknown sampler.epoch_mode %q", s)
	}
}

// Options converts the sampler section to sampler options
func (s *SamplerConfig) Options() (sampler.Options, error) {
	mode, err := parseEpochMode(s.EpochMode)
	if err != nil {
		return sampler.Options{}, err
	}

	opts := sampler.DefaultOptions()
	opts.Name = s.Name
	opts.Seed = s.Seed
	opts.ShufflePasses = s.ShufflePasses
	opts.Weigh = sampler.Weighing{
		Enabled:      s.WeighSamples.Enabled,
		HardestFocus: s.WeighSamples.HardestFocus,
		PerClassNorm: s.WeighSamples.PerClassNorm,
		MinProba:     s.WeighSamples.MinProba,
	}
	opts.IgnoreCorrect = s.IgnoreCorrect
	opts.KeepOutputs = s.KeepOutputs
	opts.EpochMode = mode
	opts.EpochSize = s.EpochSize
	opts.EpochShow = s.EpochShow
	opts.DataBias = s.DataBias
	opts.DataCoeff = s.DataCoeff
	opts.ClassNames = s.ClassNames
	opts.Balanced = s.Balanced
	opts.RandomClassOrder = s.RandomClassOrder
	opts.ClassProbabilities = s.ClassProbabilities
	if s.LimitClasses != nil {
		opts.Limit = &sampler.ClassLimit{
			N:      s.LimitClasses.N,
			Offset: s.LimitClasses.Offset,
			Random: s.LimitClasses.Random,
		}
	}
	opts.DepthBalanced = s.DepthBalanced
	opts.Depth = s.Depth
	return opts, nil
}

// Scheduler returns the depth scheduler of the training section, nil for
// "none"
func (t *TrainingConfig) Scheduler(depth int) training.DepthScheduler {
	switch t.DepthSchedule {
	case "constant":
		return &training.ConstantDepthScheduler{Level: depth}
	case "step":
		return training.NewStepDepthScheduler(t.DepthStep)
	case "plateau":
		return training.NewPlateauDepthScheduler(t.PlateauPatience, t.PlateauThreshold)
	default:
		return nil
	}
}

// CheckpointConfig converts the checkpoint section for the trainer. An
// empty directory disables checkpoints.
func (t *TrainingConfig) CheckpointConfig() (training.CheckpointConfig, bool, error) {
	c := t.Checkpoints
	if c.Dir == "" {
		return training.CheckpointConfig{}, false, nil
	}
	format, err := checkpoints.ParseFormat(c.Format)
	if err != nil {
		return training.CheckpointConfig{}, false, err
	}
	out := training.DefaultCheckpointConfig()
	out.SaveDirectory = c.Dir
	out.SaveFrequency = c.Every
	out.MaxCheckpoints = c.Keep
	out.SaveBest = c.Best
	out.Format = format
	return out, true, nil
}

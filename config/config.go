// Package config loads the run configuration from YAML and BIKECOUNT_*
// environment variables.
package config

import (
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/bikecount/dataset"
	"github.com/YuminosukeSato/bikecount/features"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
	"github.com/YuminosukeSato/bikecount/pkg/log"
	"github.com/YuminosukeSato/bikecount/preprocessing"
)

// EnvPrefix is prepended to environment overrides, e.g. BIKECOUNT_MODEL_TYPE.
const EnvPrefix = "BIKECOUNT"

// Estimator type names accepted by model.type.
const (
	ModelLinear           = "linear"
	ModelRidge            = "ridge"
	ModelGradientBoosting = "gradient_boosting"
	ModelRandomForest     = "random_forest"
)

// ModelTypes lists the accepted model.type values.
func ModelTypes() []string {
	return []string{ModelLinear, ModelRidge, ModelGradientBoosting, ModelRandomForest}
}

// Config is the complete run configuration.
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Merge    MergeConfig    `mapstructure:"merge"`
	Features FeaturesConfig `mapstructure:"features"`
	Model    ModelConfig    `mapstructure:"model"`
	Training TrainingConfig `mapstructure:"training"`
	Log      LogConfig      `mapstructure:"log"`
}

// DataConfig holds input and output paths.
type DataConfig struct {
	Train     string `mapstructure:"train"`
	Test      string `mapstructure:"test"`
	Auxiliary string `mapstructure:"auxiliary"`
	Output    string `mapstructure:"output"`
	ModelPath string `mapstructure:"model_path"`
}

// MergeConfig configures the Dataset Merger.
type MergeConfig struct {
	Reference          features.Point       `mapstructure:"reference"`
	DropColumns        []string             `mapstructure:"drop_columns"`
	Windows            []dataset.WindowSpec `mapstructure:"windows"`
	GapPolicy          string               `mapstructure:"gap_policy"`
	MaxMissingFraction float64              `mapstructure:"max_missing_fraction"`
	BankHolidays       bool                 `mapstructure:"bank_holidays"`
	SchoolHolidays     []dataset.RangeSpec  `mapstructure:"school_holidays"`
}

// FeaturesConfig selects the preprocessing columns.
type FeaturesConfig struct {
	Numeric     []string                `mapstructure:"numeric"`
	Categorical []string                `mapstructure:"categorical"`
	Cyclical    []features.CyclicalSpec `mapstructure:"cyclical"`
}

// ModelConfig selects the estimator and its hyperparameters.
type ModelConfig struct {
	Type   string                 `mapstructure:"type"`
	Params map[string]interface{} `mapstructure:"params"`
}

// TrainingConfig controls evaluation and tuning.
type TrainingConfig struct {
	TestSize float64                  `mapstructure:"test_size"`
	Seed     int                      `mapstructure:"seed"`
	CVFolds  int                      `mapstructure:"cv_folds"`
	Shuffle  bool                     `mapstructure:"shuffle"`
	NJobs    int                      `mapstructure:"n_jobs"`
	Tune     bool                     `mapstructure:"tune"`
	Grid     map[string][]interface{} `mapstructure:"grid"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the configuration the model was developed with.
func Default() Config {
	return Config{
		Data: DataConfig{Output: "submission.csv"},
		Merge: MergeConfig{
			Reference:          features.ParisCenter,
			DropColumns:        dataset.DefaultDropColumns(),
			Windows:            dataset.DefaultWindowSpecs(),
			GapPolicy:          string(dataset.GapImpute),
			MaxMissingFraction: dataset.DefaultMaxMissingFraction,
		},
		Features: FeaturesConfig{
			Numeric:     preprocessing.DefaultNumericColumns(),
			Categorical: preprocessing.DefaultCategoricalColumns(),
			Cyclical:    features.DefaultCyclicalSpecs(),
		},
		Model: ModelConfig{
			Type:   ModelGradientBoosting,
			Params: map[string]interface{}{},
		},
		Training: TrainingConfig{
			TestSize: 0.2,
			Seed:     42,
			CVFolds:  5,
			NJobs:    -1,
			Grid: map[string][]interface{}{
				"regressor__colsample_bytree": {0.3, 0.5, 0.7, nil},
				"regressor__learning_rate":    {0.01, 0.05, 0.1, nil},
				"regressor__max_depth":        {3, 5, 7, nil},
				"regressor__n_estimators":     {100, 200, 300, nil},
			},
		},
		Log: LogConfig{Level: "info"},
	}
}

// scalar keys are registered as viper defaults so environment overrides
// reach them.
func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("data.train", c.Data.Train)
	v.SetDefault("data.test", c.Data.Test)
	v.SetDefault("data.auxiliary", c.Data.Auxiliary)
	v.SetDefault("data.output", c.Data.Output)
	v.SetDefault("data.model_path", c.Data.ModelPath)
	v.SetDefault("merge.reference.lat", c.Merge.Reference.Lat)
	v.SetDefault("merge.reference.lon", c.Merge.Reference.Lon)
	v.SetDefault("merge.gap_policy", c.Merge.GapPolicy)
	v.SetDefault("merge.max_missing_fraction", c.Merge.MaxMissingFraction)
	v.SetDefault("merge.bank_holidays", c.Merge.BankHolidays)
	v.SetDefault("model.type", c.Model.Type)
	v.SetDefault("training.test_size", c.Training.TestSize)
	v.SetDefault("training.seed", c.Training.Seed)
	v.SetDefault("training.cv_folds", c.Training.CVFolds)
	v.SetDefault("training.shuffle", c.Training.Shuffle)
	v.SetDefault("training.n_jobs", c.Training.NJobs)
	v.SetDefault("training.tune", c.Training.Tune)
	v.SetDefault("log.level", c.Log.Level)
}

// Load reads path (YAML) on top of Default and applies BIKECOUNT_*
// environment overrides. An empty path uses defaults and environment only.
// Lists given in the file replace the defaults instead of merging with them.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.ZeroFields = true
	}); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.GetLoggerWithName("config").Debug("Configuration loaded",
		"path", path,
		"model.type", cfg.Model.Type,
		"training.tune", cfg.Training.Tune,
	)
	return &cfg, nil
}

// Validate checks value ranges and that every textual spec parses.
func (c *Config) Validate() error {
	if c.Data.Test != "" && c.Data.Output == "" {
		return errors.NewValidationError("data.output", "required when data.test is set", c.Data.Output)
	}
	if !slices.Contains(ModelTypes(), c.Model.Type) {
		return errors.NewValidationError("model.type", "must be one of "+strings.Join(ModelTypes(), ", "), c.Model.Type)
	}
	switch dataset.GapPolicy(c.Merge.GapPolicy) {
	case dataset.GapImpute, dataset.GapKeep:
	default:
		return errors.NewValidationError("merge.gap_policy", "must be impute or keep", c.Merge.GapPolicy)
	}
	if c.Merge.MaxMissingFraction < 0 || c.Merge.MaxMissingFraction > 1 {
		return errors.NewValidationError("merge.max_missing_fraction", "must be in [0, 1]", c.Merge.MaxMissingFraction)
	}
	if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
		return errors.NewValidationError("training.test_size", "must be in (0, 1)", c.Training.TestSize)
	}
	if c.Training.CVFolds < 2 {
		return errors.NewValidationError("training.cv_folds", "must be at least 2", c.Training.CVFolds)
	}
	if len(c.Features.Numeric)+len(c.Features.Categorical) == 0 {
		return errors.NewValidationError("features", "at least one numeric or categorical column is required", nil)
	}
	for _, s := range c.Features.Cyclical {
		if s.Period <= 0 {
			return errors.NewValidationError("features.cyclical."+s.Column, "period must be positive", s.Period)
		}
	}
	if _, err := log.ToLogLevel(c.Log.Level); err != nil {
		return errors.NewValidationError("log.level", "must be debug, info, warn or error", c.Log.Level)
	}
	if _, err := c.MergeOptions(); err != nil {
		return err
	}
	return nil
}

// MergeOptions builds the Merger options.
func (c *Config) MergeOptions() (dataset.MergeOptions, error) {
	windows, err := dataset.ParseWindows(c.Merge.Windows)
	if err != nil {
		return dataset.MergeOptions{}, err
	}
	opts := dataset.MergeOptions{
		Reference:          c.Merge.Reference,
		DropColumns:        append([]string(nil), c.Merge.DropColumns...),
		Windows:            windows,
		GapPolicy:          dataset.GapPolicy(c.Merge.GapPolicy),
		MaxMissingFraction: c.Merge.MaxMissingFraction,
	}
	if c.Merge.BankHolidays {
		opts.BankHolidays = dataset.FrenchBankHolidays{}
	}
	if len(c.Merge.SchoolHolidays) > 0 {
		cal, err := dataset.ParseRangeCalendar(c.Merge.SchoolHolidays)
		if err != nil {
			return dataset.MergeOptions{}, err
		}
		opts.SchoolHolidays = cal
	}
	return opts, nil
}

// Preprocessor builds an unfitted Preprocessor for the feature columns.
func (c *Config) Preprocessor() *preprocessing.Preprocessor {
	p := preprocessing.NewPreprocessor(c.Features.Numeric, c.Features.Categorical)
	p.Cyclical.Specs = append([]features.CyclicalSpec(nil), c.Features.Cyclical...)
	return p
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/bikecount/dataset"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ModelGradientBoosting, cfg.Model.Type)
	assert.Equal(t, 0.2, cfg.Training.TestSize)
	assert.Equal(t, 5, cfg.Training.CVFolds)
	assert.Len(t, cfg.Merge.Windows, 7)
	assert.Equal(t, dataset.DefaultDropColumns(), cfg.Merge.DropColumns)
	assert.Len(t, cfg.Training.Grid, 4)

	opts, err := cfg.MergeOptions()
	require.NoError(t, err)
	assert.Equal(t, dataset.GapImpute, opts.GapPolicy)
	assert.Nil(t, opts.BankHolidays)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
data:
  train: data/train.csv
  auxiliary: data/external_data.csv
merge:
  gap_policy: keep
  bank_holidays: true
  windows:
    - name: lockdown
      start: "2020-10-30"
      end: "2020-12-14"
      end_inclusive: true
  school_holidays:
    - start: "2020-10-17"
      end: "2020-11-01"
model:
  type: ridge
  params:
    alpha: 3.5
training:
  tune: true
  grid:
    regressor__alpha: [0.1, 1, ~]
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "data/train.csv", cfg.Data.Train)
	assert.Equal(t, "submission.csv", cfg.Data.Output)
	assert.Equal(t, ModelRidge, cfg.Model.Type)
	assert.Equal(t, 3.5, cfg.Model.Params["alpha"])
	assert.True(t, cfg.Training.Tune)
	assert.Equal(t, map[string][]interface{}{"regressor__alpha": {0.1, 1, nil}}, cfg.Training.Grid)
	require.Len(t, cfg.Merge.Windows, 1, "lists replace the defaults")
	assert.Equal(t, "lockdown", cfg.Merge.Windows[0].Name)

	opts, err := cfg.MergeOptions()
	require.NoError(t, err)
	assert.Equal(t, dataset.GapKeep, opts.GapPolicy)
	assert.NotNil(t, opts.BankHolidays)
	require.NotNil(t, opts.SchoolHolidays)
	assert.True(t, opts.SchoolHolidays.IsHoliday(dataset.DefaultCalendarWindows()[0].Start))
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("BIKECOUNT_MODEL_TYPE", "random_forest")
	t.Setenv("BIKECOUNT_TRAINING_SEED", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ModelRandomForest, cfg.Model.Type)
	assert.Equal(t, 7, cfg.Training.Seed)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{"unknown model", func(c *Config) { c.Model.Type = "svm" }, "model.type"},
		{"gap policy", func(c *Config) { c.Merge.GapPolicy = "drop" }, "merge.gap_policy"},
		{"test size", func(c *Config) { c.Training.TestSize = 1 }, "training.test_size"},
		{"folds", func(c *Config) { c.Training.CVFolds = 1 }, "training.cv_folds"},
		{"missing fraction", func(c *Config) { c.Merge.MaxMissingFraction = 2 }, "merge.max_missing_fraction"},
		{"log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"test without output", func(c *Config) {
			c.Data.Test = "data/final_test.csv"
			c.Data.Output = ""
		}, "data.output"},
		{"duplicate window", func(c *Config) {
			c.Merge.Windows = append(c.Merge.Windows, c.Merge.Windows[0])
		}, "window.name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var valErr *errors.ValidationError
			require.True(t, errors.As(err, &valErr), "got %v", err)
			assert.Equal(t, tt.param, valErr.ParamName)
		})
	}
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "model:\n  type: svm\n"))
	assert.Error(t, err)
}

func TestPreprocessorFromConfig(t *testing.T) {
	cfg := Default()
	cfg.Features.Numeric = []string{"t"}
	cfg.Features.Categorical = []string{"counter_name"}
	p := cfg.Preprocessor()
	assert.Equal(t, []string{"t"}, p.Columns.NumericColumns)
	assert.Equal(t, cfg.Features.Cyclical, p.Cyclical.Specs)
}

package driver

import (
	"context"
	"time"

	"github.com/YuminosukeSato/bikecount/config"
	"github.com/YuminosukeSato/bikecount/dataset"
	"github.com/YuminosukeSato/bikecount/dataset/csvio"
	"github.com/YuminosukeSato/bikecount/pipeline"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
	"github.com/YuminosukeSato/bikecount/pkg/log"
)

// Report is the outcome of Run.
type Report struct {
	Evaluation  *Evaluation
	Search      *GridSearchResult
	Final       *pipeline.Pipeline
	Predictions int
}

// Run executes a full batch run:
//
//  1. read and merge the training observations with the auxiliary table
//  2. hold-out evaluation of the configured model
//  3. optional grid search (training.tune)
//  4. refit on the whole training set, save it when data.model_path is set
//  5. predict data.test, when set, and write data.output
func Run(ctx context.Context, cfg *config.Config) (*Report, error) {
	logger := log.GetLoggerWithName("driver")
	start := time.Now()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Data.Train == "" || cfg.Data.Auxiliary == "" {
		return nil, errors.NewValidationError("data", "train and auxiliary paths are required", cfg.Data)
	}
	opts, err := cfg.MergeOptions()
	if err != nil {
		return nil, err
	}
	aux, err := csvio.ReadAuxiliaryFile(cfg.Data.Auxiliary)
	if err != nil {
		return nil, err
	}
	merger := dataset.NewMerger(opts)

	train, err := mergeFile(merger, cfg.Data.Train, aux)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	report.Evaluation, err = TrainAndEvaluate(ctx, cfg, train)
	if err != nil {
		return nil, err
	}

	if cfg.Training.Tune {
		report.Search, err = TuneHyperparameters(ctx, cfg, train)
		if err != nil {
			return nil, err
		}
		report.Final = report.Search.BestPipeline
	} else {
		report.Final, err = fitAll(ctx, cfg, train)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Data.ModelPath != "" {
		if err := report.Final.SaveFile(cfg.Data.ModelPath); err != nil {
			return nil, err
		}
		logger.Info("Model saved", "path", cfg.Data.ModelPath)
	}

	if cfg.Data.Test != "" {
		test, err := mergeFile(merger, cfg.Data.Test, aux)
		if err != nil {
			return nil, err
		}
		preds, err := Predict(ctx, report.Final, test)
		if err != nil {
			return nil, err
		}
		if err := csvio.WritePredictionsFile(cfg.Data.Output, preds); err != nil {
			return nil, err
		}
		report.Predictions = len(preds)
		logger.Info("Predictions written", "path", cfg.Data.Output, log.PredsKey, len(preds))
	}

	logger.Info("Run finished",
		log.RMSEKey, report.Evaluation.RMSE,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return report, nil
}

func mergeFile(m *dataset.Merger, path string, aux *dataset.AuxiliaryTable) (*dataset.MergedTable, error) {
	obs, err := csvio.ReadObservationsFile(path)
	if err != nil {
		return nil, err
	}
	return m.Merge(obs, aux)
}

// fitAll fits a fresh pipeline on every record of merged.
func fitAll(ctx context.Context, cfg *config.Config, merged *dataset.MergedTable) (*pipeline.Pipeline, error) {
	f, y, err := trainingData("driver.fitAll", merged)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "driver.fitAll")
	}
	p, err := NewPipeline(cfg)
	if err != nil {
		return nil, err
	}
	if err := p.Fit(f, y); err != nil {
		return nil, err
	}
	return p, nil
}

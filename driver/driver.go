// Package driver wires configuration, merged data, the model pipeline and
// the model selection utilities into the train, tune and predict steps of a
// run.
package driver

import (
	"context"
	"io"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikecount/config"
	"github.com/YuminosukeSato/bikecount/core/model"
	"github.com/YuminosukeSato/bikecount/dataset"
	"github.com/YuminosukeSato/bikecount/dataset/csvio"
	"github.com/YuminosukeSato/bikecount/ensemble"
	"github.com/YuminosukeSato/bikecount/frame"
	"github.com/YuminosukeSato/bikecount/linear"
	"github.com/YuminosukeSato/bikecount/metrics"
	"github.com/YuminosukeSato/bikecount/model_selection"
	"github.com/YuminosukeSato/bikecount/pipeline"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
	"github.com/YuminosukeSato/bikecount/pkg/log"
)

// NewEstimator builds an unfitted regressor of the given model type and
// applies params on top of its defaults.
func NewEstimator(name string, params map[string]interface{}) (model.Regressor, error) {
	var est model.Regressor
	switch name {
	case config.ModelLinear:
		est = linear.NewLinearRegression()
	case config.ModelRidge:
		est = linear.NewRidge()
	case config.ModelGradientBoosting:
		est = ensemble.NewGradientBoostingRegressor()
	case config.ModelRandomForest:
		est = ensemble.NewRandomForestRegressor()
	default:
		return nil, errors.NewValidationError("model.type", "unknown estimator", name)
	}
	if len(params) > 0 {
		if err := est.SetParams(params); err != nil {
			return nil, errors.Wrapf(err, "model %s", name)
		}
	}
	return est, nil
}

// NewPipeline builds the unfitted pipeline described by cfg.
func NewPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	est, err := NewEstimator(cfg.Model.Type, cfg.Model.Params)
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg.Preprocessor(), est), nil
}

// trainingData converts a merged table into the pipeline input. Every
// record must carry a target.
func trainingData(op string, merged *dataset.MergedTable) (*frame.Frame, []float64, error) {
	if merged == nil || merged.Len() == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	y, err := merged.Targets()
	if err != nil {
		return nil, nil, err
	}
	f, err := merged.Frame()
	if err != nil {
		return nil, nil, err
	}
	return f, y, nil
}

// Evaluation is the hold-out result of TrainAndEvaluate.
type Evaluation struct {
	RunID     string
	Pipeline  *pipeline.Pipeline
	RMSE      float64
	TrainRows int
	TestRows  int
}

// TrainAndEvaluate fits the configured pipeline on a random train part of
// merged and reports the RMSE on the held-out part.
func TrainAndEvaluate(ctx context.Context, cfg *config.Config, merged *dataset.MergedTable) (*Evaluation, error) {
	const op = "driver.TrainAndEvaluate"
	f, y, err := trainingData(op, merged)
	if err != nil {
		return nil, err
	}
	trainIdx, testIdx, err := model_selection.TrainTestSplit(len(y), cfg.Training.TestSize, cfg.Training.Seed)
	if err != nil {
		return nil, err
	}
	trainF, err := f.Rows(trainIdx)
	if err != nil {
		return nil, err
	}
	testF, err := f.Rows(testIdx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, op)
	}

	p, err := NewPipeline(cfg)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	logger := log.GetLoggerWithName("driver").With(log.EstimatorIDKey, runID)
	logger.Info("Training started",
		log.ModelNameKey, p.EstimatorName(),
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, len(trainIdx),
		log.RandomSeedKey, cfg.Training.Seed,
	)

	if err := p.Fit(trainF, take(y, trainIdx)); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, op)
	}
	preds, err := p.Predict(testF)
	if err != nil {
		return nil, err
	}
	yTest := take(y, testIdx)
	rmse, err := metrics.RMSE(mat.NewVecDense(len(yTest), yTest), mat.NewVecDense(len(preds), preds))
	if err != nil {
		return nil, err
	}

	logger.Info("Hold-out evaluation",
		log.ModelNameKey, p.EstimatorName(),
		log.PhaseKey, log.PhaseValidation,
		log.SamplesKey, len(testIdx),
		log.RMSEKey, rmse,
	)
	return &Evaluation{
		RunID:     runID,
		Pipeline:  p,
		RMSE:      rmse,
		TrainRows: len(trainIdx),
		TestRows:  len(testIdx),
	}, nil
}

// GridSearchResult summarises a hyperparameter search.
type GridSearchResult struct {
	BestParams   map[string]interface{}
	BestRMSE     float64
	BestPipeline *pipeline.Pipeline
	Results      []model_selection.CVResult
	Search       *model_selection.GridSearchCV
}

// TuneHyperparameters runs a k-fold grid search over cfg.Training.Grid for
// the configured pipeline. The best pipeline is refitted on all of merged.
func TuneHyperparameters(ctx context.Context, cfg *config.Config, merged *dataset.MergedTable) (*GridSearchResult, error) {
	const op = "driver.TuneHyperparameters"
	f, y, err := trainingData(op, merged)
	if err != nil {
		return nil, err
	}
	p, err := NewPipeline(cfg)
	if err != nil {
		return nil, err
	}

	cv := model_selection.NewKFold(cfg.Training.CVFolds, cfg.Training.Shuffle, cfg.Training.Seed)
	search := model_selection.NewGridSearchCV(p, model_selection.ParamGrid(cfg.Training.Grid), cv)
	search.NJobs = cfg.Training.NJobs
	if err := search.Fit(ctx, f, y); err != nil {
		return nil, err
	}

	log.GetLoggerWithName("driver").Info("Hyperparameter search finished",
		log.ModelNameKey, p.EstimatorName(),
		log.HyperParamsKey, search.BestParams,
		log.RMSEKey, search.BestRMSE,
	)
	return &GridSearchResult{
		BestParams:   search.BestParams,
		BestRMSE:     search.BestRMSE,
		BestPipeline: search.BestPipeline,
		Results:      search.Results,
		Search:       search,
	}, nil
}

// Predict runs a fitted pipeline over merged, in record order. Targets are
// not required.
func Predict(ctx context.Context, p *pipeline.Pipeline, merged *dataset.MergedTable) ([]float64, error) {
	if merged == nil || merged.Len() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "driver.Predict")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "driver.Predict")
	}
	f, err := merged.Frame()
	if err != nil {
		return nil, err
	}
	preds, err := p.Predict(f)
	if err != nil {
		return nil, err
	}
	log.GetLoggerWithName("driver").Info("Predictions computed",
		log.PhaseKey, log.PhaseInference,
		log.PredsKey, len(preds),
	)
	return preds, nil
}

// ExportPredictions writes the "Id,log_bike_count" CSV with zero-based ids.
func ExportPredictions(w io.Writer, preds []float64) error {
	return csvio.WritePredictions(w, preds)
}

func take(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}

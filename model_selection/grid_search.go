package model_selection

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/bikecount/core/parallel"
	"github.com/YuminosukeSato/bikecount/frame"
	"github.com/YuminosukeSato/bikecount/metrics"
	"github.com/YuminosukeSato/bikecount/pipeline"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
	"github.com/YuminosukeSato/bikecount/pkg/log"
)

// ParamGrid maps a pipeline parameter name to the values to try. A nil
// value means the estimator default.
type ParamGrid map[string][]interface{}

// Candidates expands the grid in a fixed order: keys sorted ascending, the
// last key varying fastest.
func (g ParamGrid) Candidates() []map[string]interface{} {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []map[string]interface{}{{}}
	for _, k := range keys {
		values := g[k]
		if len(values) == 0 {
			continue
		}
		next := make([]map[string]interface{}, 0, len(out)*len(values))
		for _, base := range out {
			for _, v := range values {
				c := make(map[string]interface{}, len(base)+1)
				for bk, bv := range base {
					c[bk] = bv
				}
				c[k] = v
				next = append(next, c)
			}
		}
		out = next
	}
	return out
}

// CVResult is the cross-validation outcome of one candidate.
type CVResult struct {
	Params   map[string]interface{}
	FoldRMSE []float64
	MeanRMSE float64
	StdRMSE  float64
	// Err is set when the candidate could not be evaluated; MeanRMSE is
	// then +Inf.
	Err error
}

// GridSearchCV evaluates every candidate of Grid with k-fold mean RMSE and
// refits the best one on the whole training set.
type GridSearchCV struct {
	Pipeline *pipeline.Pipeline
	Grid     ParamGrid
	CV       *KFold
	NJobs    int // <= 0 は全コア

	Results      []CVResult
	BestIndex    int
	BestParams   map[string]interface{}
	BestRMSE     float64
	BestPipeline *pipeline.Pipeline
}

// NewGridSearchCV returns a search over grid with cv folds.
func NewGridSearchCV(p *pipeline.Pipeline, grid ParamGrid, cv *KFold) *GridSearchCV {
	return &GridSearchCV{Pipeline: p, Grid: grid, CV: cv, BestIndex: -1}
}

// Fit runs the search. Workers each clone the pipeline, so the template
// pipeline is never fitted or modified. When ctx is cancelled no further
// candidates are started and the context error is returned.
//
// The best candidate has the lowest mean RMSE; ties go to the candidate
// that comes first in Candidates order.
func (g *GridSearchCV) Fit(ctx context.Context, f *frame.Frame, y []float64) error {
	logger := log.GetLoggerWithName("model_selection")
	if f.Len() != len(y) {
		return errors.NewDimensionError("GridSearchCV.Fit", f.Len(), len(y), 0)
	}
	folds, err := g.CV.Split(len(y))
	if err != nil {
		return err
	}
	data, err := foldData(f, y, folds)
	if err != nil {
		return err
	}

	candidates := g.Grid.Candidates()
	results := make([]CVResult, len(candidates))
	logger.Info("Grid search started",
		log.OperationKey, log.OperationGridSearch,
		"candidates", len(candidates),
		"folds", len(folds),
		log.SamplesKey, len(y),
	)

	err = parallel.ForEach(ctx, len(candidates), g.NJobs, func(i int) {
		results[i] = g.evaluate(ctx, candidates[i], data)
		logger.Debug("Candidate evaluated",
			log.IterationKey, i,
			log.HyperParamsKey, candidates[i],
			log.RMSEKey, results[i].MeanRMSE,
		)
	})
	if err != nil {
		return errors.Wrap(err, "GridSearchCV.Fit")
	}

	best := -1
	for i, r := range results {
		if r.Err != nil {
			logger.Warn("Candidate failed", r.Err, log.HyperParamsKey, r.Params)
			continue
		}
		if best < 0 || r.MeanRMSE < results[best].MeanRMSE {
			best = i
		}
	}
	g.Results = results
	if best < 0 {
		return errors.NewModelError("GridSearchCV.Fit", "every candidate failed", results[0].Err)
	}

	refit := g.Pipeline.Clone()
	if err := refit.SetParams(results[best].Params); err != nil {
		return err
	}
	if err := refit.Fit(f, y); err != nil {
		return errors.Wrap(err, "GridSearchCV.Fit: refit")
	}

	g.BestIndex = best
	g.BestParams = results[best].Params
	g.BestRMSE = results[best].MeanRMSE
	g.BestPipeline = refit
	logger.Info("Grid search finished",
		log.OperationKey, log.OperationGridSearch,
		log.HyperParamsKey, g.BestParams,
		log.RMSEKey, g.BestRMSE,
	)
	return nil
}

type foldFrames struct {
	train, test   *frame.Frame
	yTrain, yTest []float64
}

func foldData(f *frame.Frame, y []float64, folds []Fold) ([]foldFrames, error) {
	out := make([]foldFrames, len(folds))
	for k, fold := range folds {
		train, err := f.Rows(fold.TrainIndices)
		if err != nil {
			return nil, err
		}
		test, err := f.Rows(fold.TestIndices)
		if err != nil {
			return nil, err
		}
		out[k] = foldFrames{
			train:  train,
			test:   test,
			yTrain: take(y, fold.TrainIndices),
			yTest:  take(y, fold.TestIndices),
		}
	}
	return out, nil
}

func take(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}

func (g *GridSearchCV) evaluate(ctx context.Context, params map[string]interface{}, data []foldFrames) CVResult {
	res := CVResult{Params: params, MeanRMSE: math.Inf(1)}
	res.Err = errors.SafeExecute("GridSearchCV.candidate", func() error {
		scores := make([]float64, 0, len(data))
		for k, d := range data {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := g.Pipeline.Clone()
			if err := p.SetParams(params); err != nil {
				return err
			}
			if err := p.Fit(d.train, d.yTrain); err != nil {
				return errors.Wrapf(err, "fold %d", k)
			}
			pred, err := p.Predict(d.test)
			if err != nil {
				return errors.Wrapf(err, "fold %d", k)
			}
			rmse, err := metrics.RMSE(mat.NewVecDense(len(d.yTest), d.yTest), mat.NewVecDense(len(pred), pred))
			if err != nil {
				return err
			}
			scores = append(scores, rmse)
		}
		res.FoldRMSE = scores
		res.MeanRMSE, res.StdRMSE = stat.PopMeanStdDev(scores, nil)
		return nil
	})
	return res
}

// String summarises the search, one candidate per line.
func (g *GridSearchCV) String() string {
	s := ""
	for i, r := range g.Results {
		mark := " "
		if i == g.BestIndex {
			mark = "*"
		}
		if r.Err != nil {
			s += fmt.Sprintf("%s %v: error: %v\n", mark, r.Params, r.Err)
			continue
		}
		s += fmt.Sprintf("%s %v: rmse %.4f (+/- %.4f)\n", mark, r.Params, r.MeanRMSE, r.StdRMSE)
	}
	return s
}

package ensemble

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikecount/core/model"
	"github.com/YuminosukeSato/bikecount/core/parallel"
	"github.com/YuminosukeSato/bikecount/metrics"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
	"github.com/YuminosukeSato/bikecount/pkg/log"
)

// RandomForestRegressor averages regression trees grown on bootstrap samples.
//
// Each tree draws its own generator from (RandomState, tree index), so the
// fitted forest does not depend on NJobs.
type RandomForestRegressor struct {
	*model.StateManager

	NEstimators    int     // Number of trees
	MaxDepth       int     // Maximum tree depth, <= 0 for no limit
	MaxFeatures    float64 // Fraction of columns tried at every split
	MinSamplesLeaf int     // Minimum number of samples in a leaf
	Bootstrap      bool    // Sample rows with replacement per tree
	RandomState    int     // Random seed
	NJobs          int     // Trees built concurrently, <= 0 for all cores

	Trees []*Tree
}

// NewRandomForestRegressor creates a forest with default parameters.
func NewRandomForestRegressor() *RandomForestRegressor {
	return &RandomForestRegressor{
		StateManager:   model.NewStateManager(),
		NEstimators:    100,
		MaxDepth:       0,
		MaxFeatures:    1.0,
		MinSamplesLeaf: 1,
		Bootstrap:      true,
		RandomState:    42,
	}
}

// WithNEstimators sets the number of trees
func (rf *RandomForestRegressor) WithNEstimators(n int) *RandomForestRegressor {
	rf.NEstimators = n
	return rf
}

// WithMaxDepth sets the maximum depth
func (rf *RandomForestRegressor) WithMaxDepth(d int) *RandomForestRegressor {
	rf.MaxDepth = d
	return rf
}

// WithMaxFeatures sets the column fraction tried per split
func (rf *RandomForestRegressor) WithMaxFeatures(f float64) *RandomForestRegressor {
	rf.MaxFeatures = f
	return rf
}

// WithRandomState sets the random seed
func (rf *RandomForestRegressor) WithRandomState(seed int) *RandomForestRegressor {
	rf.RandomState = seed
	return rf
}

func (rf *RandomForestRegressor) validate() error {
	switch {
	case rf.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be at least 1", rf.NEstimators)
	case rf.MaxFeatures <= 0 || rf.MaxFeatures > 1:
		return errors.NewValidationError("max_features", "must be in (0, 1]", rf.MaxFeatures)
	case rf.MinSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", rf.MinSamplesLeaf)
	}
	return nil
}

// Fit grows NEstimators trees.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	if err := rf.validate(); err != nil {
		return err
	}
	rows, cols, target, err := checkTrainingData("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	data := newDataset(X)
	nFeatures := max(1, int(math.Round(rf.MaxFeatures*float64(cols))))
	trees := make([]*Tree, rf.NEstimators)

	err = parallel.ForEach(context.Background(), rf.NEstimators, rf.NJobs, func(t int) {
		rng := rand.New(rand.NewPCG(uint64(rf.RandomState), uint64(t)))

		// bootstrap の重複は重みとして持つ
		weight := make([]float64, rows)
		if rf.Bootstrap {
			for k := 0; k < rows; k++ {
				weight[rng.IntN(rows)]++
			}
		} else {
			for i := range weight {
				weight[i] = 1
			}
		}
		grad := make([]float64, rows)
		samples := make([]int, 0, rows)
		for i, w := range weight {
			if w > 0 {
				grad[i] = -target[i] * w
				samples = append(samples, i)
			}
		}

		features := func() []int { return seq(cols) }
		if nFeatures < cols {
			features = func() []int {
				f := rng.Perm(cols)[:nFeatures]
				sort.Ints(f)
				return f
			}
		}
		b := &builder{
			data:     data,
			grad:     grad,
			hess:     weight,
			params:   treeParams{maxDepth: rf.MaxDepth, minSamplesLeaf: rf.MinSamplesLeaf},
			features: features,
		}
		trees[t] = b.build(samples)
	})
	if err != nil {
		return errors.Wrap(err, "RandomForestRegressor.Fit")
	}

	rf.Trees = trees
	rf.SetDimensions(cols, rows)
	rf.SetFitted()
	log.GetLoggerWithName("ensemble").Debug("RandomForestRegressor fitted",
		log.ModelNameKey, "RandomForestRegressor",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.HyperParamsKey, rf.GetParams(),
	)
	return nil
}

// Predict returns the mean tree prediction for every row of X.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	n := float64(len(rf.Trees))
	return predictTrees("RandomForestRegressor.Predict", rf.StateManager, X, func(row []float64) float64 {
		v := 0.0
		for _, t := range rf.Trees {
			v += t.Predict(row)
		}
		return v / n
	})
}

// Score returns R² on (X, y).
func (rf *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, yPred)
}

// FeatureImportances returns normalised total variance reduction per feature.
func (rf *RandomForestRegressor) FeatureImportances() []float64 {
	if !rf.IsFitted() {
		return nil
	}
	n, _ := rf.GetDimensions()
	return featureImportances(rf.Trees, n)
}

// GetParams returns the parameters of the regressor
func (rf *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     rf.NEstimators,
		"max_depth":        rf.MaxDepth,
		"max_features":     rf.MaxFeatures,
		"min_samples_leaf": rf.MinSamplesLeaf,
		"bootstrap":        rf.Bootstrap,
		"random_state":     rf.RandomState,
		"n_jobs":           rf.NJobs,
	}
}

// SetParams sets the parameters of the regressor. nil restores the default.
func (rf *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	def := NewRandomForestRegressor()
	for key, value := range params {
		var err error
		switch key {
		case "n_estimators":
			rf.NEstimators, err = intParam(key, value, def.NEstimators)
		case "max_depth":
			rf.MaxDepth, err = intParam(key, value, def.MaxDepth)
		case "max_features":
			rf.MaxFeatures, err = floatParam(key, value, def.MaxFeatures)
		case "min_samples_leaf":
			rf.MinSamplesLeaf, err = intParam(key, value, def.MinSamplesLeaf)
		case "bootstrap":
			rf.Bootstrap, err = boolParam(key, value, def.Bootstrap)
		case "random_state":
			rf.RandomState, err = intParam(key, value, def.RandomState)
		case "n_jobs":
			rf.NJobs, err = intParam(key, value, def.NJobs)
		default:
			return model.UnknownParam("RandomForestRegressor.SetParams", key)
		}
		if err != nil {
			return err
		}
	}
	return rf.validate()
}

// Clone returns an unfitted copy with the same hyperparameters.
func (rf *RandomForestRegressor) Clone() model.Regressor {
	return &RandomForestRegressor{
		StateManager:   model.NewStateManager(),
		NEstimators:    rf.NEstimators,
		MaxDepth:       rf.MaxDepth,
		MaxFeatures:    rf.MaxFeatures,
		MinSamplesLeaf: rf.MinSamplesLeaf,
		Bootstrap:      rf.Bootstrap,
		RandomState:    rf.RandomState,
		NJobs:          rf.NJobs,
	}
}

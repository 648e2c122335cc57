package ensemble

import (
	"context"
	"encoding/gob"
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

func init() {
	gob.Register(&GradientBoostingRegressor{})
	gob.Register(&RandomForestRegressor{})
}

var (
	_ model.Scorer = (*GradientBoostingRegressor)(nil)
	_ model.Scorer = (*RandomForestRegressor)(nil)
)

// 予測時に行方向で並列化する閾値
const parallelThreshold = 1000

// GradientBoostingRegressor は二乗誤差の勾配ブースティング回帰
type GradientBoostingRegressor struct {
	*model.StateManager

	// Hyperparameters (XGBoost / LightGBM naming)
	NEstimators     int     // Number of boosting rounds
	LearningRate    float64 // Shrinkage applied to every tree
	MaxDepth        int     // Maximum tree depth, <= 0 for no limit
	ColsampleBytree float64 // Fraction of columns sampled per tree
	MinSamplesLeaf  int     // Minimum number of samples in a leaf
	RegLambda       float64 // L2 regularization on leaf values
	RandomState     int     // Random seed

	// Fitted
	InitScore float64
	Trees     []*Tree
}

// NewGradientBoostingRegressor creates a regressor with default parameters.
func NewGradientBoostingRegressor() *GradientBoostingRegressor {
	return &GradientBoostingRegressor{
		StateManager:    model.NewStateManager(),
		NEstimators:     100,
		LearningRate:    0.1,
		MaxDepth:        3,
		ColsampleBytree: 1.0,
		MinSamplesLeaf:  1,
		RegLambda:       1.0,
		RandomState:     42,
	}
}

// WithNEstimators sets the number of boosting rounds
func (g *GradientBoostingRegressor) WithNEstimators(n int) *GradientBoostingRegressor {
	g.NEstimators = n
	return g
}

// WithLearningRate sets the learning rate
func (g *GradientBoostingRegressor) WithLearningRate(lr float64) *GradientBoostingRegressor {
	g.LearningRate = lr
	return g
}

// WithMaxDepth sets the maximum depth
func (g *GradientBoostingRegressor) WithMaxDepth(d int) *GradientBoostingRegressor {
	g.MaxDepth = d
	return g
}

// WithColsampleBytree sets the column fraction sampled per tree
func (g *GradientBoostingRegressor) WithColsampleBytree(f float64) *GradientBoostingRegressor {
	g.ColsampleBytree = f
	return g
}

// WithRandomState sets the random seed
func (g *GradientBoostingRegressor) WithRandomState(seed int) *GradientBoostingRegressor {
	g.RandomState = seed
	return g
}

func (g *GradientBoostingRegressor) validate() error {
	switch {
	case g.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be at least 1", g.NEstimators)
	case g.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", g.LearningRate)
	case g.ColsampleBytree <= 0 || g.ColsampleBytree > 1:
		return errors.NewValidationError("colsample_bytree", "must be in (0, 1]", g.ColsampleBytree)
	case g.MinSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", g.MinSamplesLeaf)
	case g.RegLambda < 0:
		return errors.NewValidationError("reg_lambda", "must be non-negative", g.RegLambda)
	}
	return nil
}

// Fit trains NEstimators trees on the residuals of the running prediction.
func (g *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")

	if err := g.validate(); err != nil {
		return err
	}
	rows, cols, target, err := checkTrainingData("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("ensemble").With(log.ModelNameKey, "GradientBoostingRegressor")
	data := newDataset(X)
	rng := rand.New(rand.NewPCG(uint64(g.RandomState), uint64(g.RandomState)))

	g.InitScore = 0
	for _, v := range target {
		g.InitScore += v
	}
	g.InitScore /= float64(rows)

	pred := make([]float64, rows)
	for i := range pred {
		pred[i] = g.InitScore
	}
	grad := make([]float64, rows)
	hess := make([]float64, rows)
	for i := range hess {
		hess[i] = 1
	}
	samples := seq(rows)
	nCols := max(1, int(math.Round(g.ColsampleBytree*float64(cols))))

	g.Trees = make([]*Tree, 0, g.NEstimators)
	for m := 0; m < g.NEstimators; m++ {
		for i := range grad {
			grad[i] = pred[i] - target[i]
		}

		features := seq(cols)
		if nCols < cols {
			features = rng.Perm(cols)[:nCols]
			sort.Ints(features)
		}
		b := &builder{
			data:     data,
			grad:     grad,
			hess:     hess,
			params:   treeParams{maxDepth: g.MaxDepth, minSamplesLeaf: g.MinSamplesLeaf, lambda: g.RegLambda},
			features: func() []int { return features },
		}
		tree := b.build(samples)
		shrink(tree.Root, g.LearningRate)
		g.Trees = append(g.Trees, tree)

		parallel.ParallelizeWithThreshold(rows, parallelThreshold, func(start, end int) {
			for i := start; i < end; i++ {
				pred[i] += tree.Predict(data.row(i))
			}
		})

		if logger.Enabled(context.Background(), log.LevelDebug) && (m+1)%10 == 0 {
			mse := 0.0
			for i := range pred {
				d := pred[i] - target[i]
				mse += d * d
			}
			logger.Debug("Boosting round",
				log.IterationKey, m+1,
				log.RMSEKey, math.Sqrt(mse/float64(rows)),
			)
		}
	}

	g.SetDimensions(cols, rows)
	g.SetFitted()
	logger.Debug("GradientBoostingRegressor fitted",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.HyperParamsKey, g.GetParams(),
	)
	return nil
}

func shrink(n *TreeNode, rate float64) {
	if n == nil {
		return
	}
	if n.Leaf {
		n.Value *= rate
		return
	}
	shrink(n.Left, rate)
	shrink(n.Right, rate)
}

// Predict returns the boosted prediction for every row of X.
func (g *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := g.RequireFitted("GradientBoostingRegressor", "Predict"); err != nil {
		return nil, err
	}
	return predictTrees("GradientBoostingRegressor.Predict", g.StateManager, X, func(row []float64) float64 {
		v := g.InitScore
		for _, t := range g.Trees {
			v += t.Predict(row)
		}
		return v
	})
}

// Score returns R² on (X, y).
func (g *GradientBoostingRegressor) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := g.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, yPred)
}

// FeatureImportances returns normalised total split gain per feature.
func (g *GradientBoostingRegressor) FeatureImportances() []float64 {
	if !g.IsFitted() {
		return nil
	}
	n, _ := g.GetDimensions()
	return featureImportances(g.Trees, n)
}

// GetParams returns the parameters of the regressor
func (g *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     g.NEstimators,
		"learning_rate":    g.LearningRate,
		"max_depth":        g.MaxDepth,
		"colsample_bytree": g.ColsampleBytree,
		"min_samples_leaf": g.MinSamplesLeaf,
		"reg_lambda":       g.RegLambda,
		"random_state":     g.RandomState,
	}
}

// SetParams sets the parameters of the regressor. nil restores the default.
func (g *GradientBoostingRegressor) SetParams(params map[string]interface{}) error {
	def := NewGradientBoostingRegressor()
	for key, value := range params {
		var err error
		switch key {
		case "n_estimators":
			g.NEstimators, err = intParam(key, value, def.NEstimators)
		case "learning_rate":
			g.LearningRate, err = floatParam(key, value, def.LearningRate)
		case "max_depth":
			g.MaxDepth, err = intParam(key, value, def.MaxDepth)
		case "colsample_bytree":
			g.ColsampleBytree, err = floatParam(key, value, def.ColsampleBytree)
		case "min_samples_leaf":
			g.MinSamplesLeaf, err = intParam(key, value, def.MinSamplesLeaf)
		case "reg_lambda":
			g.RegLambda, err = floatParam(key, value, def.RegLambda)
		case "random_state":
			g.RandomState, err = intParam(key, value, def.RandomState)
		default:
			return model.UnknownParam("GradientBoostingRegressor.SetParams", key)
		}
		if err != nil {
			return err
		}
	}
	return g.validate()
}

// Clone returns an unfitted copy with the same hyperparameters. Invalid
// values are copied as is and reported by the clone's Fit.
func (g *GradientBoostingRegressor) Clone() model.Regressor {
	return &GradientBoostingRegressor{
		StateManager:    model.NewStateManager(),
		NEstimators:     g.NEstimators,
		LearningRate:    g.LearningRate,
		MaxDepth:        g.MaxDepth,
		ColsampleBytree: g.ColsampleBytree,
		MinSamplesLeaf:  g.MinSamplesLeaf,
		RegLambda:       g.RegLambda,
		RandomState:     g.RandomState,
	}
}

// predictTrees evaluates f on every row of X after checking the feature count.
func predictTrees(op string, state *model.StateManager, X mat.Matrix, f func(row []float64) float64) (mat.Matrix, error) {
	rows, cols := X.Dims()
	if err := state.RequireFeatures(op, cols); err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	out := mat.NewDense(rows, 1, nil)
	parallel.ParallelizeWithThreshold(rows, parallelThreshold, func(start, end int) {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			out.Set(i, 0, f(row))
		}
	})
	return out, nil
}

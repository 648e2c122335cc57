package ensemble

import (
	"bytes"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikecount/core/model"
	"github.com/YuminosukeSato/bikecount/metrics"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
)

// stepData は x0 > 0.5 で 10 だけ跳ねる階段関数 + x1 の線形項
func stepData(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x0, x1, x2 := rng.Float64(), rng.Float64(), rng.Float64()
		X.SetRow(i, []float64{x0, x1, x2})
		v := 2 * x1
		if x0 > 0.5 {
			v += 10
		}
		y.Set(i, 0, v)
	}
	return X, y
}

func rmse(t *testing.T, est model.Regressor, X, y mat.Matrix) float64 {
	t.Helper()
	pred, err := est.Predict(X)
	require.NoError(t, err)
	v, err := metrics.RMSEMatrix(y, pred)
	require.NoError(t, err)
	return v
}

func TestTree_SingleSplit(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	data := newDataset(X)
	grad := []float64{-1, -1, -5, -5} // y = 1,1,5,5
	hess := []float64{1, 1, 1, 1}
	b := &builder{
		data:     data,
		grad:     grad,
		hess:     hess,
		params:   treeParams{maxDepth: 0, minSamplesLeaf: 1},
		features: func() []int { return []int{0} },
	}
	tree := b.build(seq(4))

	require.False(t, tree.Root.Leaf)
	assert.Equal(t, 2.5, tree.Root.Threshold)
	assert.Equal(t, 1, tree.Depth())
	assert.Equal(t, 1.0, tree.Predict([]float64{0}))
	assert.Equal(t, 5.0, tree.Predict([]float64{10}))
}

func TestGradientBoosting_FitsStepFunction(t *testing.T) {
	X, y := stepData(400, 1)
	gb := NewGradientBoostingRegressor().WithNEstimators(50)
	require.NoError(t, gb.Fit(X, y))
	assert.Len(t, gb.Trees, 50)

	Xt, yt := stepData(200, 2)
	assert.Less(t, rmse(t, gb, Xt, yt), 0.5)

	imp := gb.FeatureImportances()
	require.Len(t, imp, 3)
	assert.InDelta(t, 1.0, imp[0]+imp[1]+imp[2], 1e-9)
	assert.Greater(t, imp[0], imp[2])
}

func TestGradientBoosting_Deterministic(t *testing.T) {
	X, y := stepData(200, 3)
	a := NewGradientBoostingRegressor().WithNEstimators(20).WithColsampleBytree(0.5)
	b := NewGradientBoostingRegressor().WithNEstimators(20).WithColsampleBytree(0.5)
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	pa, err := a.Predict(X)
	require.NoError(t, err)
	pb, err := b.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(pa, pb))
}

func TestGradientBoosting_DepthLimit(t *testing.T) {
	X, y := stepData(200, 4)
	gb := NewGradientBoostingRegressor().WithNEstimators(5).WithMaxDepth(2)
	require.NoError(t, gb.Fit(X, y))
	for _, tree := range gb.Trees {
		assert.LessOrEqual(t, tree.Depth(), 2)
	}
}

func TestRandomForest_FitsStepFunction(t *testing.T) {
	X, y := stepData(300, 5)
	rf := NewRandomForestRegressor().WithNEstimators(20).WithMaxDepth(6)
	require.NoError(t, rf.Fit(X, y))

	Xt, yt := stepData(100, 6)
	assert.Less(t, rmse(t, rf, Xt, yt), 1.0)
}

func TestRandomForest_IndependentOfNJobs(t *testing.T) {
	X, y := stepData(150, 7)
	serial := NewRandomForestRegressor().WithNEstimators(8).WithMaxFeatures(0.5)
	serial.NJobs = 1
	concurrent := NewRandomForestRegressor().WithNEstimators(8).WithMaxFeatures(0.5)
	concurrent.NJobs = 4

	require.NoError(t, serial.Fit(X, y))
	require.NoError(t, concurrent.Fit(X, y))

	ps, err := serial.Predict(X)
	require.NoError(t, err)
	pc, err := concurrent.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(ps, pc))
}

func TestRandomForest_NoBootstrapFullDepthInterpolates(t *testing.T) {
	X, y := stepData(50, 8)
	rf := NewRandomForestRegressor().WithNEstimators(3)
	rf.Bootstrap = false
	require.NoError(t, rf.Fit(X, y))
	assert.InDelta(t, 0.0, rmse(t, rf, X, y), 1e-9)
}

func TestParams(t *testing.T) {
	gb := NewGradientBoostingRegressor()
	require.NoError(t, gb.SetParams(map[string]interface{}{
		"n_estimators":     200.0,
		"learning_rate":    0.05,
		"max_depth":        5,
		"colsample_bytree": 0.3,
	}))
	assert.Equal(t, 200, gb.NEstimators)
	assert.Equal(t, 0.05, gb.LearningRate)
	assert.Equal(t, 5, gb.MaxDepth)
	assert.Equal(t, 0.3, gb.ColsampleBytree)

	require.NoError(t, gb.SetParams(map[string]interface{}{"max_depth": nil, "learning_rate": nil}))
	assert.Equal(t, 3, gb.MaxDepth)
	assert.Equal(t, 0.1, gb.LearningRate)

	var valErr *errors.ValidationError
	assert.True(t, errors.As(gb.SetParams(map[string]interface{}{"colsample_bytree": 1.5}), &valErr))
	assert.Error(t, gb.SetParams(map[string]interface{}{"num_leaves": 31}))

	rf := NewRandomForestRegressor()
	require.NoError(t, rf.SetParams(map[string]interface{}{"max_features": 0.5, "bootstrap": false}))
	clone := rf.Clone()
	assert.Equal(t, rf.GetParams(), clone.GetParams())
	assert.False(t, clone.IsFitted())
}

func TestErrors(t *testing.T) {
	gb := NewGradientBoostingRegressor()
	_, err := gb.Predict(mat.NewDense(1, 3, nil))
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))

	X, y := stepData(20, 9)
	require.NoError(t, gb.WithNEstimators(2).Fit(X, y))
	_, err = gb.Predict(mat.NewDense(1, 2, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	bad := mat.NewDense(2, 1, []float64{1, math.NaN()})
	assert.Error(t, NewRandomForestRegressor().Fit(bad, mat.NewDense(2, 1, []float64{1, 2})))
}

func TestGobRoundTrip(t *testing.T) {
	X, y := stepData(100, 10)
	var est model.Regressor = NewGradientBoostingRegressor().WithNEstimators(10)
	require.NoError(t, est.Fit(X, y))
	want, err := est.Predict(X)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(&est, &buf))
	var loaded model.Regressor
	require.NoError(t, model.LoadModelFromReader(&loaded, &buf))

	assert.True(t, loaded.IsFitted())
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}

func TestClone_KeepsParamsAndDefersValidation(t *testing.T) {
	gb := NewGradientBoostingRegressor().WithColsampleBytree(2).WithRandomState(7)
	clone := gb.Clone()
	assert.Equal(t, gb.GetParams(), clone.GetParams())
	assert.False(t, clone.IsFitted())

	X, y := stepData(20, 3)
	var valErr *errors.ValidationError
	require.True(t, errors.As(clone.Fit(X, y), &valErr))
	assert.Equal(t, "colsample_bytree", valErr.ParamName)

	rf := NewRandomForestRegressor().WithMaxDepth(4)
	rf.NJobs = 2
	rfClone := rf.Clone().(*RandomForestRegressor)
	assert.Equal(t, 4, rfClone.MaxDepth)
	assert.Equal(t, 2, rfClone.NJobs)
}

func TestScorer(t *testing.T) {
	X, y := stepData(300, 11)
	for _, s := range []model.Scorer{
		NewGradientBoostingRegressor(),
		NewRandomForestRegressor().WithNEstimators(20),
	} {
		require.NoError(t, s.(model.Regressor).Fit(X, y))
		r2, err := s.Score(X, y)
		require.NoError(t, err)
		assert.Greater(t, r2, 0.9)
	}
}

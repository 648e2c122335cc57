package linear

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikecount/core/model"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
)

func TestLinearRegression_Basic(t *testing.T) {
	// y = 2x + 1
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{3, 5, 7, 9})

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	assert.InDelta(t, 2.0, lr.Weights()[0], 1e-9)
	assert.InDelta(t, 1.0, lr.Intercept(), 1e-9)

	pred, err := lr.Predict(mat.NewDense(2, 1, []float64{5, 6}))
	require.NoError(t, err)
	assert.InDelta(t, 11.0, pred.At(0, 0), 1e-9)
	assert.InDelta(t, 13.0, pred.At(1, 0), 1e-9)

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestLinearRegression_NoIntercept(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})

	lr := NewLinearRegression(WithFitIntercept(false))
	require.NoError(t, lr.Fit(X, y))
	assert.InDelta(t, 2.0, lr.Weights()[0], 1e-9)
	assert.Equal(t, 0.0, lr.Intercept())
}

func TestLinearRegression_CollinearOneHot(t *testing.T) {
	// 2 つの one-hot 列の和は常に 1 なので切片と線形従属
	X := mat.NewDense(4, 2, []float64{
		1, 0,
		0, 1,
		1, 0,
		0, 1,
	})
	y := mat.NewDense(4, 1, []float64{1, 3, 1, 3})

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	assert.Equal(t, 1, lr.Rank_)

	pred, err := lr.Predict(X)
	require.NoError(t, err)
	for i, want := range []float64{1, 3, 1, 3} {
		assert.InDelta(t, want, pred.At(i, 0), 1e-9)
	}
	// 最小ノルム解は対称
	w := lr.Weights()
	assert.InDelta(t, -w[0], w[1], 1e-9)
}

func TestLinearRegression_Errors(t *testing.T) {
	lr := NewLinearRegression()

	_, err := lr.Predict(mat.NewDense(1, 1, []float64{1}))
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))

	err = lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(2, 1, []float64{1, 2}))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	require.NoError(t, lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(3, 1, []float64{1, 2, 3})))
	_, err = lr.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	assert.True(t, errors.As(err, &dimErr))
}

func TestRidge_ShrinksTowardsZero(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{3, 5, 7, 9})

	small := NewRidge(WithAlpha(1e-8))
	require.NoError(t, small.Fit(X, y))
	assert.InDelta(t, 2.0, small.Weights()[0], 1e-6)

	// 中心化した X の二乗和は 5 なので w = 2*5/(5+alpha)
	large := NewRidge(WithAlpha(5))
	require.NoError(t, large.Fit(X, y))
	assert.InDelta(t, 1.0, large.Weights()[0], 1e-9)
	assert.InDelta(t, 6.0-2.5*1.0, large.Intercept(), 1e-9)
}

func TestRidge_Params(t *testing.T) {
	rg := NewRidge()
	assert.Equal(t, map[string]interface{}{"alpha": 1.0, "fit_intercept": true}, rg.GetParams())

	require.NoError(t, rg.SetParams(map[string]interface{}{"alpha": 10, "fit_intercept": false}))
	assert.Equal(t, 10.0, rg.Alpha)
	assert.False(t, rg.FitIntercept)

	require.NoError(t, rg.SetParams(map[string]interface{}{"alpha": nil}))
	assert.Equal(t, DefaultAlpha, rg.Alpha)

	assert.Error(t, rg.SetParams(map[string]interface{}{"alpha": -1.0}))
	assert.Error(t, rg.SetParams(map[string]interface{}{"max_iter": 10}))
}

func TestClone_IsUnfittedWithSameParams(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{1, 2, 3})

	for _, est := range []model.Regressor{NewLinearRegression(WithFitIntercept(false)), NewRidge(WithAlpha(3))} {
		require.NoError(t, est.Fit(X, y))
		clone := est.Clone()
		assert.False(t, clone.IsFitted())
		assert.Equal(t, est.GetParams(), clone.GetParams())
	}
}

func TestGobRoundTrip(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{1, 0, 2, 1, 3, 0, 4, 1})
	y := mat.NewDense(4, 1, []float64{1, 3, 3, 5})

	var est model.Regressor = NewRidge(WithAlpha(0.5))
	require.NoError(t, est.Fit(X, y))
	want, err := est.Predict(X)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(&est, &buf))
	var loaded model.Regressor
	require.NoError(t, model.LoadModelFromReader(&loaded, &buf))

	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))
}

func TestLinearModel_Coefficients(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{3, 5, 7, 9})

	models := map[string]model.LinearModel{
		"ols":   NewLinearRegression(),
		"ridge": NewRidge(WithAlpha(1e-10)),
	}
	for name, m := range models {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, m.Fit(X, y))
			w := m.Weights()
			assert.InDelta(t, 2.0, w[0], 1e-6)
			assert.InDelta(t, 1.0, m.Intercept(), 1e-6)

			w[0] = 100
			assert.InDelta(t, 2.0, m.Weights()[0], 1e-6, "Weights returns a copy")

			score, err := m.Score(X, y)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, score, 1e-9)
		})
	}
}

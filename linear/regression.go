// Package linear provides least-squares regressors over the preprocessed
// design matrix: LinearRegression and its L2-penalised variant Ridge.
package linear

import (
	"encoding/gob"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikecount/core/model"
	"github.com/YuminosukeSato/bikecount/core/parallel"
	"github.com/YuminosukeSato/bikecount/metrics"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
	"github.com/YuminosukeSato/bikecount/pkg/log"
)

func init() {
	gob.Register(&LinearRegression{})
	gob.Register(&Ridge{})
}

var (
	_ model.LinearModel = (*LinearRegression)(nil)
	_ model.LinearModel = (*Ridge)(nil)
)

// 並列処理の閾値（この値以下の行数では逐次処理を使用）
const parallelThreshold = 1000

// LinearRegression は最小二乗法による線形回帰モデル
//
// One-hot 列と切片が線形従属になるため、正規方程式の逆行列ではなく
// SVD による擬似逆行列で最小ノルム解を求める。
type LinearRegression struct {
	model.BaseEstimator

	FitIntercept bool

	Coef_      []float64 // 重み（係数）
	Intercept_ float64   // 切片
	Rank_      int       // 中心化した X のランク
	NFeatures  int       // 特徴量の数
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &LinearRegression{FitIntercept: o.fitIntercept}
}

// Fit はモデルを訓練データで学習させる
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	d, err := center("LinearRegression.Fit", X, y, lr.FitIntercept)
	if err != nil {
		return err
	}

	var svd mat.SVD
	if ok := svd.Factorize(d.x, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "SVD factorization failed", errors.ErrSingularMatrix)
	}
	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// 小さい特異値は 0 とみなす (numpy.linalg.lstsq と同じ rcond)
	r, c := d.x.Dims()
	tol := 0.0
	if len(values) > 0 {
		tol = values[0] * float64(max(r, c)) * eps
	}

	var uty mat.VecDense
	uty.MulVec(u.T(), d.y)
	rank := 0
	for i, s := range values {
		if s > tol {
			uty.SetVec(i, uty.AtVec(i)/s)
			rank++
		} else {
			uty.SetVec(i, 0)
		}
	}

	var w mat.VecDense
	w.MulVec(&v, &uty)

	lr.Coef_ = vecToSlice(&w)
	lr.Intercept_ = d.intercept(lr.Coef_)
	lr.Rank_ = rank
	lr.NFeatures = c
	if err := errors.CheckNumericalStability("LinearRegression.Fit", lr.Coef_, 0); err != nil {
		return err
	}
	lr.SetFitted()

	log.GetLoggerWithName("linear").Debug("LinearRegression fitted",
		log.ModelNameKey, "LinearRegression",
		log.SamplesKey, r,
		log.FeaturesKey, c,
		"rank", rank,
	)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.CheckFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	return predictLinear("LinearRegression.Predict", X, lr.Coef_, lr.Intercept_)
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, yPred)
}

// Weights は学習された重み（係数）を返す
func (lr *LinearRegression) Weights() []float64 {
	return append([]float64(nil), lr.Coef_...)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.Intercept_
}

// GetParams returns the hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{"fit_intercept": lr.FitIntercept}
}

// SetParams updates hyperparameters. A nil value restores the default.
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "fit_intercept":
			if value == nil {
				lr.FitIntercept = defaultOptions().fitIntercept
				continue
			}
			b, err := model.BoolParam(key, value)
			if err != nil {
				return err
			}
			lr.FitIntercept = b
		default:
			return model.UnknownParam("LinearRegression.SetParams", key)
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (lr *LinearRegression) Clone() model.Regressor {
	return NewLinearRegression(WithFitIntercept(lr.FitIntercept))
}

const eps = 2.220446049250313e-16

// centered は中心化済みの設計行列と目的変数
type centered struct {
	x     *mat.Dense
	y     *mat.VecDense
	xMean []float64
	yMean float64
}

// intercept は ȳ - x̄·w
func (d *centered) intercept(w []float64) float64 {
	b := d.yMean
	for j, m := range d.xMean {
		b -= m * w[j]
	}
	return b
}

// center validates X and y and, when fitIntercept is set, subtracts the column
// means so the intercept can be recovered after solving.
func center(op string, X, y mat.Matrix, fitIntercept bool) (*centered, error) {
	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return nil, errors.NewDimensionError(op, r, ry, 0)
	}
	if cy != 1 {
		return nil, errors.NewValueError(op, "y must be a column vector")
	}
	if err := errors.CheckMatrix(op, X, r, c); err != nil {
		return nil, err
	}
	if err := errors.CheckMatrix(op, y, r, 1); err != nil {
		return nil, err
	}

	d := &centered{
		x:     mat.NewDense(r, c, nil),
		y:     mat.NewVecDense(r, nil),
		xMean: make([]float64, c),
	}
	if fitIntercept {
		for i := 0; i < r; i++ {
			d.yMean += y.At(i, 0)
			for j := 0; j < c; j++ {
				d.xMean[j] += X.At(i, j)
			}
		}
		d.yMean /= float64(r)
		for j := range d.xMean {
			d.xMean[j] /= float64(r)
		}
	}

	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			d.y.SetVec(i, y.At(i, 0)-d.yMean)
			for j := 0; j < c; j++ {
				d.x.Set(i, j, X.At(i, j)-d.xMean[j])
			}
		}
	})
	return d, nil
}

// predictLinear computes X·w + b as an (n x 1) matrix.
func predictLinear(op string, X mat.Matrix, w []float64, b float64) (mat.Matrix, error) {
	r, c := X.Dims()
	if c != len(w) {
		return nil, errors.NewDimensionError(op, len(w), c, 1)
	}
	if r == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}

	var out mat.VecDense
	out.MulVec(X, mat.NewVecDense(c, append([]float64(nil), w...)))
	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		v := out.AtVec(i) + b
		if err := errors.CheckScalar(op, v, i); err != nil {
			return nil, err
		}
		predictions.Set(i, 0, v)
	}
	return predictions, nil
}

func vecToSlice(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

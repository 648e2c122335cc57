package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikecount/core/model"
	"github.com/YuminosukeSato/bikecount/metrics"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
	"github.com/YuminosukeSato/bikecount/pkg/log"
)

// DefaultAlpha is the Ridge penalty used when none is given.
const DefaultAlpha = 1.0

// Ridge は L2 正則化付き線形回帰
//
// 中心化した X に対して (XᵀX + αI) w = Xᵀy を Cholesky 分解で解く。
// 切片は正則化しない。
type Ridge struct {
	model.BaseEstimator

	Alpha        float64
	FitIntercept bool

	Coef_      []float64
	Intercept_ float64
	NFeatures  int
}

// NewRidge creates a Ridge regressor. Use WithAlpha to change the penalty.
func NewRidge(opts ...Option) *Ridge {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Ridge{Alpha: o.alpha, FitIntercept: o.fitIntercept}
}

// Fit solves the penalised normal equation.
func (rg *Ridge) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Ridge.Fit")

	if rg.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", rg.Alpha)
	}
	d, err := center("Ridge.Fit", X, y, rg.FitIntercept)
	if err != nil {
		return err
	}
	r, c := d.x.Dims()

	var gram mat.SymDense
	gram.SymOuterK(1, d.x.T())
	for j := 0; j < c; j++ {
		gram.SetSym(j, j, gram.At(j, j)+rg.Alpha)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return errors.NewModelError("Ridge.Fit", "matrix is not positive definite, increase alpha", errors.ErrSingularMatrix)
	}

	var xty mat.VecDense
	xty.MulVec(d.x.T(), d.y)
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &xty); err != nil {
		return errors.NewModelError("Ridge.Fit", "cholesky solve failed", err)
	}

	rg.Coef_ = vecToSlice(&w)
	rg.Intercept_ = d.intercept(rg.Coef_)
	rg.NFeatures = c
	if err := errors.CheckNumericalStability("Ridge.Fit", rg.Coef_, 0); err != nil {
		return err
	}
	rg.SetFitted()

	log.GetLoggerWithName("linear").Debug("Ridge fitted",
		log.ModelNameKey, "Ridge",
		log.SamplesKey, r,
		log.FeaturesKey, c,
		log.HyperParamsKey, rg.GetParams(),
	)
	return nil
}

// Predict returns X·w + b.
func (rg *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rg.CheckFitted("Ridge", "Predict"); err != nil {
		return nil, err
	}
	return predictLinear("Ridge.Predict", X, rg.Coef_, rg.Intercept_)
}

// Score returns R² on (X, y).
func (rg *Ridge) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := rg.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, yPred)
}

// Weights returns a copy of the coefficients.
func (rg *Ridge) Weights() []float64 {
	return append([]float64(nil), rg.Coef_...)
}

// Intercept returns the fitted intercept.
func (rg *Ridge) Intercept() float64 {
	return rg.Intercept_
}

// GetParams returns the hyperparameters.
func (rg *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         rg.Alpha,
		"fit_intercept": rg.FitIntercept,
	}
}

// SetParams updates hyperparameters. A nil value restores the default.
func (rg *Ridge) SetParams(params map[string]interface{}) error {
	def := defaultOptions()
	for key, value := range params {
		switch key {
		case "alpha":
			if value == nil {
				rg.Alpha = def.alpha
				continue
			}
			a, err := model.FloatParam(key, value)
			if err != nil {
				return err
			}
			if a < 0 {
				return errors.NewValidationError(key, "must be non-negative", a)
			}
			rg.Alpha = a
		case "fit_intercept":
			if value == nil {
				rg.FitIntercept = def.fitIntercept
				continue
			}
			b, err := model.BoolParam(key, value)
			if err != nil {
				return err
			}
			rg.FitIntercept = b
		default:
			return model.UnknownParam("Ridge.SetParams", key)
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (rg *Ridge) Clone() model.Regressor {
	return NewRidge(WithAlpha(rg.Alpha), WithFitIntercept(rg.FitIntercept))
}

package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer is implemented by every regressor of this module.
type Scorer interface {
	// Score returns R² of the predictions on X against y.
	Score(X, y mat.Matrix) (float64, error)
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters keyed by their sklearn name.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
// A nil value resets the parameter to the estimator default.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// Regressor is the estimator contract the model pipeline plugs into.
//
// Clone returns an unfitted copy carrying the same hyperparameters; grid
// search workers each train on their own clone.
type Regressor interface {
	Fitter
	Predictor
	ParameterGetter
	ParameterSetter
	IsFitted() bool
	Clone() Regressor
}

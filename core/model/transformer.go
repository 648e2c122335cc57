package model

import "gonum.org/v1/gonum/mat"

// Transformer is an unsupervised matrix stage such as StandardScaler.
// Statistics are learned by Fit only; Transform never refits.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う (n_samples x 1)
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// LinearModel は係数を公開する線形回帰 (LinearRegression, Ridge)
type LinearModel interface {
	Regressor
	Scorer
	// Weights は学習された係数のコピーを返す
	Weights() []float64
	Intercept() float64
}

// Package bikecount predicts hourly bike counts of the Paris counters from
// counter observations joined with a 3-hourly weather table.
//
// The library follows a scikit-learn-like API: estimators expose Fit,
// Predict, GetParams and SetParams, and a Pipeline chains the feature
// preprocessing with one regressor.
//
// # Quick Start
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report, err := driver.Run(context.Background(), cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Evaluation.RMSE)
//
// # Packages
//
//   - dataset: typed records, calendar windows, holidays and the Merger
//   - dataset/csvio: CSV readers and the prediction writer
//   - frame: typed columnar table consumed by preprocessing
//   - features: date, cyclical and distance feature derivers
//   - preprocessing: StandardScaler, OneHotEncoder, ColumnTransformer, Preprocessor
//   - linear: LinearRegression and Ridge
//   - ensemble: GradientBoostingRegressor and RandomForestRegressor
//   - metrics: MSE, RMSE, MAE, R²
//   - model_selection: TrainTestSplit, KFold, GridSearchCV
//   - pipeline: preprocessing + estimator, gob persistence
//   - driver: train, evaluate, tune and export steps of a run
//   - config: YAML and BIKECOUNT_* environment configuration
//   - core/model, core/parallel: shared interfaces and worker helpers
//   - pkg/errors, pkg/log: typed errors and structured logging
//
// # scikit-learn Compatibility
//
// Hyperparameter names match scikit-learn and nested pipeline parameters use
// the "regressor__" prefix, so a grid written for a Python GridSearchCV
// carries over unchanged.
package bikecount

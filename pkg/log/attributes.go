// Package log defines standard attribute keys for pipeline operations.
//
// Using these keys keeps merge, preprocessing and training logs consistent so
// that a whole run can be filtered by operation, component or estimator id.
// Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples").

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of estimator or transformer.
	// Examples: "GradientBoostingRegressor", "StandardScaler"
	ModelNameKey = "model.name"

	// EstimatorIDKey provides a unique identifier for one training run.
	EstimatorIDKey = "estimator.id"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_transform", "merge"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the run.
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	// SamplesKey indicates the number of rows.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of feature columns.
	FeaturesKey = "data.features"

	// ColumnsKey lists column names.
	ColumnsKey = "data.columns"
)

// Merge
const (
	// JoinGapsKey is the number of observations without an auxiliary row.
	JoinGapsKey = "merge.join_gaps"

	// DroppedColumnsKey lists the auxiliary columns removed by cleaning or configuration.
	DroppedColumnsKey = "merge.dropped_columns"

	// ImputedColumnsKey lists the auxiliary columns that had missing values filled.
	ImputedColumnsKey = "merge.imputed_columns"
)

// Performance and Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// RMSEKey records root mean squared error.
	RMSEKey = "metrics.rmse"

	// R2ScoreKey records R² coefficient of determination.
	R2ScoreKey = "metrics.r2_score"

	// IterationKey records the current boosting round or candidate number.
	IterationKey = "training.iteration"

	// FoldKey records the cross-validation fold.
	FoldKey = "training.fold"
)

// Prediction
const (
	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"
)

// Error Context
const (
	// ErrorCodeKey provides a structured error code.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// ErrorOpKey is the operation that failed, e.g. "Merger.Merge".
	ErrorOpKey = "error.op"

	// ErrorColumnKey names the offending column of a SchemaError.
	ErrorColumnKey = "error.column"

	// ErrorParamKey names the rejected parameter of a ValidationError.
	ErrorParamKey = "error.param"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains estimator hyperparameters.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// WorkerIDKey identifies a grid-search worker.
	WorkerIDKey = "infra.worker_id"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"
	OperationMerge        = "merge"
	OperationGridSearch   = "grid_search"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorSchema            = "SCHEMA"
	ErrorEmptyData         = "EMPTY_DATA"
)

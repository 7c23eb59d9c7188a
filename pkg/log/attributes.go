// Package log defines standard attribute keys for training and prediction.
//
// Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so that log records from the regressor, the prediction
// service and the HTTP layer can be filtered together.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model.
	// Examples: "GDRegressor", "StandardScaler"
	ModelNameKey = "model.name"

	// ModelSetIDKey identifies one training run (a set of per-metric models).
	ModelSetIDKey = "model.set_id"

	// MetricKey names the predicted TENG metric.
	// Examples: "voc", "isc", "power", "energy"
	MetricKey = "teng.metric"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "score", "reload"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	// Examples: "linear", "predictor", "api", "materials"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape and Source
const (
	// SamplesKey indicates the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// DroppedKey indicates the number of rows dropped before training.
	DroppedKey = "data.dropped"

	// SourceKey names where the materials database was loaded from.
	// Examples: "json", "xlsx", "fallback"
	SourceKey = "data.source"

	// PathKey is a file system path involved in the operation.
	PathKey = "data.path"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// LossKey records the mean squared error in standardized space.
	LossKey = "metrics.loss"

	// R2ScoreKey records the clamped R² coefficient of determination.
	R2ScoreKey = "metrics.r2_score"

	// RMSEKey records the root mean squared error in original units.
	RMSEKey = "metrics.rmse"

	// IterationKey records the current gradient descent iteration.
	IterationKey = "training.iteration"

	// LearningRateKey records the learning rate.
	LearningRateKey = "hyperparams.learning_rate"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// StacktraceKey contains stack trace information for debugging.
	// Populated automatically by the zerolog backend.
	StacktraceKey = "error.stacktrace"

	// DetailKey holds the structured body of typed errors and warnings.
	DetailKey = "error.detail"
)

// HTTP Context
const (
	// RequestIDKey carries the chi request id.
	RequestIDKey = "http.request_id"

	// MethodKey is the HTTP method.
	MethodKey = "http.method"

	// RouteKey is the matched route pattern.
	RouteKey = "http.route"

	// StatusKey is the HTTP response status.
	StatusKey = "http.status"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"
	OperationReload  = "reload"
	OperationLoad    = "load"

	PhaseTraining   = "training"
	PhaseInference  = "inference"
	PhaseValidation = "validation"

	ErrorNotFitted    = "NOT_FITTED"
	ErrorInvalidInput = "INVALID_INPUT"
	ErrorInternal     = "INTERNAL"
)

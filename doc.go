// Package tengml predicts triboelectric nanogenerator (TENG) performance
// from film composition.
//
// A film is described by its polymer matrix, filler, filler loading (wt%)
// and thickness (µm). Categorical fields are mapped to ordinal codes and
// one gradient-descent linear regressor per metric (open-circuit voltage,
// short-circuit current, power density and energy) is trained on the
// materials database.
//
// # Packages
//
//   - linear: GDRegressor, full-batch gradient descent on standardized data
//   - preprocessing: StandardScaler
//   - metrics: MSE, RMSE, MAE and clamped R²
//   - materials: database loading (JSON, XLSX, built-in fallback), encoding, paging and statistics
//   - predictor: trains all metrics concurrently and serves predictions
//   - report: parity plots
//   - api: HTTP API
//   - config: environment configuration
//   - cmd/tengml: command line entry point
//
// # Quick Start
//
//	X := mat.NewDense(2, 4, []float64{
//	    10, 0, 0, 100,
//	    10, 8, 5, 70,
//	})
//	y := mat.NewDense(2, 1, []float64{90, 200})
//
//	reg := linear.NewGDRegressor()
//	if err := reg.Fit(X, y); err != nil {
//	    log.Fatal(err)
//	}
//	pred, err := reg.Predict(X)
//
// Errors carry stack traces and are classified with errors.IsNotFitted and
// errors.IsInvalidInput from pkg/errors. Logging goes through pkg/log, which
// is backed by zerolog.
package tengml

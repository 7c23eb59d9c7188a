package errors

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Train",
			kind:    "metric failed",
			err:     fmt.Errorf("test error"),
			wantMsg: "tengml: Train: metric failed: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "no models",
			err:     nil,
			wantMsg: "tengml: Predict: no models",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("GDRegressor.Fit", 4, 3, 0)

	want := "tengml: GDRegressor.Fit: dimension mismatch on axis 0 (rows). Expected 4, got 3"
	assert.Equal(t, want, err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Got)

	assert.True(t, IsInvalidInput(err), "dimension errors are invalid input")
	assert.False(t, IsNotFitted(err))
}

func TestNewInvalidInputError(t *testing.T) {
	err := NewInvalidInputErrorf("DenseFromRows", "row %d has %d columns, expected %d", 2, 3, 4)

	assert.Equal(t, "tengml: DenseFromRows: invalid input: row 2 has 3 columns, expected 4", err.Error())
	assert.True(t, Is(err, ErrInvalidInput))

	var inErr *InvalidInputError
	require.True(t, As(err, &inErr))
	assert.Equal(t, "DenseFromRows", inErr.Op)
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("GDRegressor", "Predict")

	want := "tengml: GDRegressor: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}

	assert.True(t, IsNotFitted(err))
	assert.False(t, IsInvalidInput(err))
}

func TestMarksSurviveWrapping(t *testing.T) {
	err := Wrap(NewNotFittedError("GDRegressor", "Score"), "scoring voc")
	assert.True(t, IsNotFitted(err))

	err = Wrapf(NewDimensionError("GDRegressor.Predict", 4, 2, 1), "metric %s", "isc")
	assert.True(t, IsInvalidInput(err))
	assert.Contains(t, err.Error(), "metric isc")
}

func TestNewValueError(t *testing.T) {
	err := NewValueError("WithLearningRate", "learning_rate: -0.5 (must be positive)")
	assert.Equal(t, "tengml: WithLearningRate: learning_rate: -0.5 (must be positive)", err.Error())

	var valErr *ValueError
	assert.True(t, As(err, &valErr))
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("TENG_PAGE_SIZE", "must be positive", -1)
	assert.Equal(t, "tengml: validation failed for parameter 'TENG_PAGE_SIZE': must be positive (got: -1)", err.Error())
}

func TestWarnings(t *testing.T) {
	warn := NewConvergenceWarning("GradientDescent", 2000, "loss did not decrease")
	assert.Equal(t, "GradientDescent failed to converge after 2000 iterations: loss did not decrease", warn.Error())

	undefined := NewUndefinedMetricWarning("r2_score", "zero total sum of squares", 0)
	assert.Equal(t, "'r2_score' is ill-defined and being set to 0.000000 due to zero total sum of squares.", undefined.Error())

	conv := NewDataConversionWarning("material row", "dropped", "missing Voc")
	assert.Contains(t, conv.Error(), "missing Voc")
}

func TestWarnHandlers(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []error
	)
	SetWarningHandler(func(w error) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, w)
	})
	t.Cleanup(func() { SetWarningHandler(func(error) {}) })

	Warn(NewUndefinedMetricWarning("r2_score", "constant target", 0))
	require.Len(t, seen, 1)

	// zerolog sink takes precedence over the plain handler
	var zl []error
	SetZerologWarnFunc(func(w error) { zl = append(zl, w) })
	Warn(NewConvergenceWarning("GradientDescent", 10, ""))
	SetZerologWarnFunc(nil)

	assert.Len(t, seen, 1)
	assert.Len(t, zl, 1)
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrEmptyData, "in GDRegressor.Fit")

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}
	if !strings.Contains(wrapped.Error(), "in GDRegressor.Fit") {
		t.Error("Expected wrapped error to contain wrapping message")
	}
}

func TestErrorChaining(t *testing.T) {
	err1 := fmt.Errorf("base error")
	err2 := Wrap(err1, "wrapped once")
	err3 := NewModelError("Operation", "failed", err2)

	if !strings.Contains(err3.Error(), "base error") {
		t.Error("Expected error chain to contain base error")
	}

	formatted := fmt.Sprintf("%+v", err3)
	if !strings.Contains(formatted, "errors_test.go") {
		t.Error("Expected detailed error to contain stack trace")
	}
}

func TestCheckFinite(t *testing.T) {
	assert.NoError(t, CheckFinite("fit", 0, []float64{1, 2}, []float64{3}))
	assert.NoError(t, CheckFinite("fit", 0))

	err := CheckFinite("fit", 7, []float64{0.5}, []float64{1, nan(), 3})
	require.Error(t, err)
	var numErr *NumericalInstabilityError
	require.True(t, As(err, &numErr))
	assert.Equal(t, 7, numErr.Iteration)
	assert.Len(t, numErr.Values, 3)

	assert.Error(t, CheckFinite("bias", 3, []float64{inf()}))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-0.4, 0, 1))
	assert.Equal(t, 1.0, Clamp(1.3, 0, 1))
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
	assert.True(t, math.IsNaN(Clamp(nan(), 0, 1)))
}

// Package metrics は回帰モデルの評価指標を提供します。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/tengml/tengml/pkg/errors"
)

// checkPair は yTrue と yPred の長さを検証し、値をスライスとして返す
func checkPair(op string, yTrue, yPred mat.Vector) ([]float64, []float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return nil, nil, errors.NewInvalidInputError(op, "empty vector")
	}
	if yPred.Len() != n {
		return nil, nil, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return toSlice(yTrue), toSlice(yPred), nil
}

func toSlice(v mat.Vector) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

// columnVector は n×1 の行列を VecDense に変換する
func columnVector(op string, m mat.Matrix) (*mat.VecDense, error) {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewInvalidInputError(op, "empty matrix")
	}
	if c != 1 {
		return nil, errors.NewInvalidInputError(op, "must be a column vector (n×1 matrix)")
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, m)), nil
}

func matrixPair(op string, yTrue, yPred mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	t, err := columnVector(op, yTrue)
	if err != nil {
		return nil, nil, err
	}
	p, err := columnVector(op, yPred)
	if err != nil {
		return nil, nil, err
	}
	return t, p, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred mat.Vector) (float64, error) {
	t, p, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	// MSE = (1/n) * Σ(yTrue - yPred)²
	d := floats.Distance(t, p, 2)
	return d * d / float64(len(t)), nil
}

// MSEMatrix は n×1 行列の入力に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := matrixPair("MSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred mat.Vector) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// RMSEMatrix は n×1 行列の入力に対してRMSEを計算する
func RMSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := matrixPair("RMSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return RMSE(t, p)
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred mat.Vector) (float64, error) {
	t, p, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	// MAE = (1/n) * Σ|yTrue - yPred|
	return floats.Distance(t, p, 1) / float64(len(t)), nil
}

// MAEMatrix は n×1 行列の入力に対してMAEを計算する
func MAEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := matrixPair("MAEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MAE(t, p)
}

// sumsOfSquares は全変動（TSS）と残差変動（RSS）を返す
func sumsOfSquares(t, p []float64) (tss, rss float64) {
	mean := stat.Mean(t, nil)
	for i := range t {
		tss += (t[i] - mean) * (t[i] - mean)
		rss += (t[i] - p[i]) * (t[i] - p[i])
	}
	return tss, rss
}

// R2Score は決定係数（R²）を計算する。負の値もそのまま返す。
// yTrue の全変動が0の場合はエラー。
func R2Score(yTrue, yPred mat.Vector) (float64, error) {
	t, p, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	tss, rss := sumsOfSquares(t, p)
	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}

	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}

// ClampedR2Score は [0, 1] に切り詰めた決定係数を返す。
//
// yTrue が定数（全変動0）の場合、予測が完全一致なら 1、
// そうでなければ 0 を返し UndefinedMetricWarning を発生させる。
func ClampedR2Score(yTrue, yPred mat.Vector) (float64, error) {
	t, p, err := checkPair("ClampedR2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	tss, rss := sumsOfSquares(t, p)
	if tss == 0 {
		if rss == 0 {
			return 1, nil
		}
		errors.Warn(errors.NewUndefinedMetricWarning("r2_score", "zero variance in y_true", 0))
		return 0, nil
	}

	r2 := 1 - rss/tss
	if math.IsNaN(r2) {
		return 0, errors.NewNumericalInstabilityError("ClampedR2Score", []float64{tss, rss}, 0)
	}
	return errors.Clamp(r2, 0, 1), nil
}

// ClampedR2ScoreMatrix は n×1 行列の入力に対して ClampedR2Score を計算する
func ClampedR2ScoreMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := matrixPair("ClampedR2ScoreMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return ClampedR2Score(t, p)
}

// Package preprocessing は学習前の特徴量変換を提供します。
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/tengml/tengml/core/model"
	"github.com/tengml/tengml/core/parallel"
	"github.com/tengml/tengml/pkg/errors"
)

// zeroStdThreshold 未満の標準偏差は Epsilon が 0 のとき 1 に置き換えられる
const zeroStdThreshold = 1e-8

var _ model.InverseTransformer = (*StandardScaler)(nil)

// StandardScaler はデータを列ごとに平均0、標準偏差1に変換する標準化スケーラー。
// 標準偏差は母標準偏差（n で割る）を使う。
type StandardScaler struct {
	model.BaseEstimator

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の割る値（標準偏差 + Epsilon）
	Scale []float64

	// NFeatures は特徴量の数
	NFeatures int

	// NSamples は学習に使ったサンプル数
	NSamples int

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool

	// Epsilon は標準偏差に常に加算される値。
	// 0 の場合は代わりにほぼ0の標準偏差を1に置き換える。
	Epsilon float64
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(X)
//	XScaled, err := scaler.Transform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// NewStandardScalerWithEpsilon は標準偏差に eps を加算するStandardScalerを作成する。
// 定数列でもゼロ除算が起きず、定数列の標準化値は 0 になる。
func NewStandardScalerWithEpsilon(eps float64) *StandardScaler {
	s := NewStandardScaler(true, true)
	s.Epsilon = eps
	return s
}

// Fit は訓練データから統計情報（平均、標準偏差）を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewInvalidInputError("StandardScaler.Fit", "empty data")
	}
	if s.Epsilon < 0 || math.IsNaN(s.Epsilon) {
		return errors.NewValidationError("epsilon", "must be non-negative", s.Epsilon)
	}

	mean := make([]float64, c)
	scale := make([]float64, c)
	col := make([]float64, r)

	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		m, std := stat.PopMeanStdDev(col, nil)

		if s.WithMean {
			mean[j] = m
		}

		// WithMean=false でも散らばりは平均周りで測る
		if s.WithStd {
			scale[j] = s.guard(std)
		} else {
			scale[j] = 1.0
		}
	}

	if err := errors.CheckFinite("StandardScaler.Fit", 0, mean, scale); err != nil {
		return errors.Mark(err, errors.ErrInvalidInput)
	}

	s.Mean = mean
	s.Scale = scale
	s.NFeatures = c
	s.NSamples = r
	s.SetFitted()
	return nil
}

func (s *StandardScaler) guard(std float64) float64 {
	if s.Epsilon > 0 {
		return std + s.Epsilon
	}
	if math.Abs(std) < zeroStdThreshold {
		return 1.0
	}
	return std
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.CheckFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("StandardScaler.Transform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	parallel.ParallelizeWithThreshold(r, parallel.DefaultThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				result.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Scale[j])
			}
		}
	})

	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.CheckFitted("StandardScaler", "InverseTransform"); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("StandardScaler.InverseTransform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	parallel.ParallelizeWithThreshold(r, parallel.DefaultThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				result.Set(i, j, X.At(i, j)*s.Scale[j]+s.Mean[j])
			}
		}
	})

	return result, nil
}

// InverseTransformValue は1列目の統計で単一の値を元のスケールに戻す。
// 目的変数（n×1）用。
func (s *StandardScaler) InverseTransformValue(v float64) (float64, error) {
	if err := s.CheckFitted("StandardScaler", "InverseTransformValue"); err != nil {
		return 0, err
	}
	return v*s.Scale[0] + s.Mean[0], nil
}

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
		"epsilon":   s.Epsilon,
	}
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, epsilon=%g)", s.WithMean, s.WithStd, s.Epsilon)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, epsilon=%g, n_features=%d)",
		s.WithMean, s.WithStd, s.Epsilon, s.NFeatures)
}

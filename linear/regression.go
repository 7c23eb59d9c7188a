// Package linear は勾配降下法で学習する線形回帰モデルを提供します。
package linear

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/tengml/tengml/core/model"
	"github.com/tengml/tengml/metrics"
	"github.com/tengml/tengml/pkg/errors"
	"github.com/tengml/tengml/pkg/log"
	"github.com/tengml/tengml/preprocessing"
)

// 既定のハイパーパラメータ
const (
	DefaultEpsilon      = 1e-8
	DefaultMaxIter      = 2000
	DefaultLearningRate = 0.1
	DefaultDecayEvery   = 500
	DefaultDecayFactor  = 0.9
)

const modelName = "GDRegressor"

var (
	_ model.Regressor       = (*GDRegressor)(nil)
	_ model.ParameterGetter = (*GDRegressor)(nil)
	_ model.WeightExporter  = (*GDRegressor)(nil)
)

// GDRegressor はフルバッチ勾配降下法で学習する線形回帰モデル。
//
// 特徴量と目的変数はそれぞれ母標準偏差 + Epsilon で標準化され、
// 重みと切片は標準化空間で学習される。Predict は元の単位で値を返す。
// 乱数を使わないため、同じデータに対する Fit は常に同じ状態を作る。
//
// 学習済みモデルの Predict・Score は複数のゴルーチンから同時に呼べるが、
// Fit は他の呼び出しと同時に実行してはならない。
type GDRegressor struct {
	model.BaseEstimator

	// ハイパーパラメータ
	epsilon      float64
	maxIter      int
	learningRate float64
	decayEvery   int
	decayFactor  float64
	featureNames []string

	// 学習済みの状態（Fit のみが更新する）
	xScaler   *preprocessing.StandardScaler
	yScaler   *preprocessing.StandardScaler
	weights   []float64 // 標準化空間の重み
	bias      float64   // 標準化空間の切片
	nFeatures int
	nSamples  int
	finalLoss float64
}

// NewGDRegressor は新しいGDRegressorを作成する
//
// 使用例:
//
//	reg := linear.NewGDRegressor(linear.WithMaxIter(5000))
//	err := reg.Fit(X, y)
//	pred, err := reg.Predict(XTest)
func NewGDRegressor(opts ...Option) *GDRegressor {
	r := &GDRegressor{
		epsilon:      DefaultEpsilon,
		maxIter:      DefaultMaxIter,
		learningRate: DefaultLearningRate,
		decayEvery:   DefaultDecayEvery,
		decayFactor:  DefaultDecayFactor,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *GDRegressor) validateParams() error {
	switch {
	case r.epsilon < 0 || math.IsNaN(r.epsilon):
		return errors.NewValidationError("epsilon", "must be non-negative", r.epsilon)
	case r.maxIter < 0:
		return errors.NewValidationError("max_iter", "must be non-negative", r.maxIter)
	case !(r.learningRate > 0) || math.IsInf(r.learningRate, 0):
		return errors.NewValidationError("learning_rate", "must be a positive finite number", r.learningRate)
	case r.decayEvery < 1:
		return errors.NewValidationError("decay_every", "must be at least 1", r.decayEvery)
	case !(r.decayFactor > 0 && r.decayFactor <= 1):
		return errors.NewValidationError("decay_factor", "must be in (0, 1]", r.decayFactor)
	}
	return nil
}

// Fit はモデルを訓練データで学習させる。
// X は n×m、y は n×1。成功すると以前の学習状態はすべて置き換えられる。
// 失敗した場合は以前の状態がそのまま残る。
func (r *GDRegressor) Fit(X, y mat.Matrix) error {
	if err := r.validateParams(); err != nil {
		return err
	}

	n, m := X.Dims()
	if n == 0 || m == 0 {
		return errors.NewInvalidInputError("GDRegressor.Fit", "empty feature matrix")
	}
	ny, cy := y.Dims()
	if ny != n {
		return errors.NewDimensionError("GDRegressor.Fit", n, ny, 0)
	}
	if cy != 1 {
		return errors.NewInvalidInputErrorf("GDRegressor.Fit", "y must be a column vector, got %d columns", cy)
	}

	logger := log.GetLoggerWithName("linear.gd").With(log.ModelNameKey, modelName)
	start := time.Now()

	xScaler := preprocessing.NewStandardScalerWithEpsilon(r.epsilon)
	Z, err := xScaler.FitTransform(X)
	if err != nil {
		return errors.Wrap(err, "GDRegressor.Fit: standardize features")
	}
	yScaler := preprocessing.NewStandardScalerWithEpsilon(r.epsilon)
	yz, err := yScaler.FitTransform(y)
	if err != nil {
		return errors.Wrap(err, "GDRegressor.Fit: standardize target")
	}

	xs := mat.DenseCopyOf(Z)
	ys := mat.Col(nil, 0, yz)

	weights, bias, err := r.descend(xs, ys, logger)
	if err != nil {
		return err
	}

	finalLoss := standardizedMSE(xs, ys, weights, bias)
	if initialLoss := floats.Dot(ys, ys) / float64(n); finalLoss > initialLoss {
		errors.Warn(errors.NewConvergenceWarning(modelName, r.maxIter,
			fmt.Sprintf("loss rose from %.4g to %.4g; lower the learning rate", initialLoss, finalLoss)))
	}

	r.xScaler = xScaler
	r.yScaler = yScaler
	r.weights = weights
	r.bias = bias
	r.nFeatures = m
	r.nSamples = n
	r.finalLoss = finalLoss
	r.SetFitted()

	logger.Debug("fit completed",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, m,
		log.LossKey, r.finalLoss,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// descend は標準化済みデータに対してフルバッチ勾配降下を行う。
// 学習率は iter%decayEvery == 0 の反復の更新後に減衰する（iter=0 を含む）。
func (r *GDRegressor) descend(xs *mat.Dense, ys []float64, logger log.Logger) ([]float64, float64, error) {
	n, m := xs.Dims()
	weights := make([]float64, m)
	grad := make([]float64, m)
	bias := 0.0
	rate := r.learningRate
	invN := 1 / float64(n)

	for iter := 0; iter < r.maxIter; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		gradBias := 0.0

		for i := 0; i < n; i++ {
			row := xs.RawRowView(i)
			e := bias + floats.Dot(weights, row) - ys[i]
			gradBias += e
			floats.AddScaled(grad, e, row)
		}

		bias -= rate * gradBias * invN
		floats.AddScaled(weights, -rate*invN, grad)

		if iter%r.decayEvery == 0 {
			rate *= r.decayFactor
			if err := errors.CheckFinite("GDRegressor.Fit", iter, []float64{bias}, weights); err != nil {
				return nil, 0, err
			}
			logger.Debug("gradient descent progress",
				log.IterationKey, iter,
				log.LearningRateKey, rate,
			)
		}
	}

	if err := errors.CheckFinite("GDRegressor.Fit", r.maxIter, []float64{bias}, weights); err != nil {
		return nil, 0, err
	}
	return weights, bias, nil
}

func standardizedMSE(xs *mat.Dense, ys, weights []float64, bias float64) float64 {
	n, _ := xs.Dims()
	sum := 0.0
	for i := 0; i < n; i++ {
		e := bias + floats.Dot(weights, xs.RawRowView(i)) - ys[i]
		sum += e * e
	}
	return sum / float64(n)
}

// Predict は入力データに対する予測を行い、n×1 の行列を入力と同じ順序で返す
func (r *GDRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := r.CheckFitted(modelName, "Predict"); err != nil {
		return nil, err
	}

	n, m := X.Dims()
	if m != r.nFeatures {
		return nil, errors.NewDimensionError("GDRegressor.Predict", r.nFeatures, m, 1)
	}
	if n == 0 {
		return nil, errors.NewInvalidInputError("GDRegressor.Predict", "no rows to predict")
	}

	Z, err := r.xScaler.Transform(X)
	if err != nil {
		return nil, err
	}
	xs := mat.DenseCopyOf(Z)

	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, r.bias+floats.Dot(r.weights, xs.RawRowView(i)))
	}

	return r.yScaler.InverseTransform(out)
}

// Score はモデルの決定係数（R²）を [0, 1] に切り詰めて返す。
// y が定数の場合の扱いは metrics.ClampedR2Score を参照。
func (r *GDRegressor) Score(X, y mat.Matrix) (float64, error) {
	if err := r.CheckFitted(modelName, "Score"); err != nil {
		return 0, err
	}

	yPred, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.ClampedR2ScoreMatrix(y, yPred)
}

// Coef は元の単位に換算した係数を返す。未学習なら nil。
func (r *GDRegressor) Coef() []float64 {
	if !r.IsFitted() {
		return nil
	}
	ys := r.yScaler.Scale[0]
	coef := make([]float64, r.nFeatures)
	for j, w := range r.weights {
		coef[j] = w * ys / r.xScaler.Scale[j]
	}
	return coef
}

// Intercept は元の単位に換算した切片を返す。未学習なら 0。
func (r *GDRegressor) Intercept() float64 {
	if !r.IsFitted() {
		return 0
	}
	shift := r.bias
	for j, w := range r.weights {
		shift -= w * r.xScaler.Mean[j] / r.xScaler.Scale[j]
	}
	return r.yScaler.Mean[0] + r.yScaler.Scale[0]*shift
}

// StandardizedWeights は標準化空間の重みと切片を返す
func (r *GDRegressor) StandardizedWeights() ([]float64, float64) {
	return append([]float64(nil), r.weights...), r.bias
}

// FinalLoss は学習終了時の標準化空間での平均二乗誤差を返す
func (r *GDRegressor) FinalLoss() float64 {
	return r.finalLoss
}

// NFeatures は学習時の特徴量の数を返す
func (r *GDRegressor) NFeatures() int {
	return r.nFeatures
}

// ExportWeights は元の単位の係数と切片を ModelWeights として書き出す
func (r *GDRegressor) ExportWeights() (*model.ModelWeights, error) {
	if err := r.CheckFitted(modelName, "ExportWeights"); err != nil {
		return nil, err
	}

	mw := &model.ModelWeights{
		ModelType:       modelName,
		Version:         model.WeightsVersion,
		Coefficients:    r.Coef(),
		Intercept:       r.Intercept(),
		Hyperparameters: r.GetParams(),
		Metadata: map[string]interface{}{
			"n_samples":  r.nSamples,
			"n_features": r.nFeatures,
			"final_loss": r.finalLoss,
		},
		IsFitted: true,
	}
	if len(r.featureNames) == r.nFeatures {
		mw.Features = append([]string(nil), r.featureNames...)
	}
	if err := mw.Validate(); err != nil {
		return nil, err
	}
	return mw, nil
}

// GetParams はモデルのハイパーパラメータを取得する
func (r *GDRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"epsilon":       r.epsilon,
		"max_iter":      r.maxIter,
		"learning_rate": r.learningRate,
		"decay_every":   r.decayEvery,
		"decay_factor":  r.decayFactor,
	}
}

// String はモデルの文字列表現を返す
func (r *GDRegressor) String() string {
	if !r.IsFitted() {
		return fmt.Sprintf("GDRegressor(max_iter=%d, learning_rate=%g)", r.maxIter, r.learningRate)
	}
	return fmt.Sprintf("GDRegressor(max_iter=%d, learning_rate=%g, n_features=%d, n_samples=%d)",
		r.maxIter, r.learningRate, r.nFeatures, r.nSamples)
}

// DenseFromRows は行スライスから行列を作成する。
// 空の入力、幅0の行、行ごとに長さが異なる入力は InvalidInput になる。
func DenseFromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, errors.NewInvalidInputError("DenseFromRows", "no rows")
	}
	m := len(rows[0])
	if m == 0 {
		return nil, errors.NewInvalidInputError("DenseFromRows", "rows have no columns")
	}

	data := make([]float64, 0, len(rows)*m)
	for i, row := range rows {
		if len(row) != m {
			return nil, errors.NewInvalidInputErrorf("DenseFromRows", "row %d has %d values, expected %d", i, len(row), m)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), m, data), nil
}

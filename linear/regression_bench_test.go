package linear

import (
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// createBenchmarkData はベンチマーク用のデータを生成する
func createBenchmarkData(rows, cols int) (*mat.Dense, *mat.Dense) {
	// シードを固定して再現性を確保
	rng := rand.New(rand.NewPCG(42, 42))

	X := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			X.Set(i, j, rng.Float64()*2.0-1.0)
		}
	}

	trueWeights := make([]float64, cols)
	for j := 0; j < cols; j++ {
		trueWeights[j] = float64(j+1) * 0.5
	}

	// y = X * weights + 1 + 小さなノイズ
	y := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		sum := 1.0
		for j := 0; j < cols; j++ {
			sum += X.At(i, j) * trueWeights[j]
		}
		sum += (rng.Float64() - 0.5) * 0.1
		y.Set(i, 0, sum)
	}

	return X, y
}

// BenchmarkGDRegressorFit は材料データベース程度から大きめのデータまでFitを計測する
func BenchmarkGDRegressorFit(b *testing.B) {
	sizes := []struct {
		name string
		rows int
		cols int
	}{
		{"Tiny_4x4", 4, 4},
		{"Small_100x4", 100, 4},
		{"Medium_1000x4", 1000, 4},
		{"Large_5000x10", 5000, 10},
	}

	for _, size := range sizes {
		b.Run(size.name, func(b *testing.B) {
			X, y := createBenchmarkData(size.rows, size.cols)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				reg := NewGDRegressor()
				if err := reg.Fit(X, y); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkGDRegressorPredict は標準化を含む予測を計測する
func BenchmarkGDRegressorPredict(b *testing.B) {
	X, y := createBenchmarkData(5000, 4)
	reg := NewGDRegressor(WithMaxIter(100))
	if err := reg.Fit(X, y); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := reg.Predict(X); err != nil {
			b.Fatal(err)
		}
	}
}

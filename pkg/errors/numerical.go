package errors

import "math"

// CheckFinite は groups のいずれかに NaN または ±Inf が含まれていれば
// NumericalInstabilityError を返す。エラーには最初の非有限値を含む
// グループがそのまま記録される。
func CheckFinite(operation string, iteration int, groups ...[]float64) error {
	for _, g := range groups {
		for _, v := range g {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return NewNumericalInstabilityError(operation, append([]float64(nil), g...), iteration)
			}
		}
	}
	return nil
}

// Clamp は v を [lo, hi] に収める。NaN はそのまま返す。
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

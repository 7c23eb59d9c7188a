package predictor

import (
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/tengml/tengml/core/model"
	"github.com/tengml/tengml/linear"
	"github.com/tengml/tengml/materials"
)

// Score is the fit quality of one metric's model on its training rows.
type Score struct {
	R2   float64 `json:"r2"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
}

// ModelSet is the result of one training run: one regressor per metric.
// It is never modified after Train returns it.
type ModelSet struct {
	ID        uuid.UUID
	TrainedAt time.Time
	Source    materials.SourceKind
	Samples   int
	Dropped   int
	Models    map[Metric]*linear.GDRegressor
	Scores    map[Metric]Score

	x       *mat.Dense
	targets map[Metric][]float64
}

// MetricSummary describes one metric's model.
type MetricSummary struct {
	Score   Score               `json:"score"`
	Weights *model.ModelWeights `json:"weights,omitempty"`
}

// Summary is the JSON view of a ModelSet.
type Summary struct {
	ID        uuid.UUID                `json:"id"`
	TrainedAt time.Time                `json:"trained_at"`
	Source    materials.SourceKind     `json:"source"`
	Samples   int                      `json:"samples"`
	Dropped   int                      `json:"dropped"`
	Metrics   map[Metric]MetricSummary `json:"metrics"`
}

// Summary returns scores and exported weights for every metric.
func (ms *ModelSet) Summary() Summary {
	s := Summary{
		ID:        ms.ID,
		TrainedAt: ms.TrainedAt,
		Source:    ms.Source,
		Samples:   ms.Samples,
		Dropped:   ms.Dropped,
		Metrics:   make(map[Metric]MetricSummary, len(ms.Models)),
	}
	for m, reg := range ms.Models {
		sum := MetricSummary{Score: ms.Scores[m]}
		if w, err := reg.ExportWeights(); err == nil {
			sum.Weights = w
		}
		s.Metrics[m] = sum
	}
	return s
}

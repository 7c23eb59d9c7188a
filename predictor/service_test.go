package predictor

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tengml/tengml/linear"
	"github.com/tengml/tengml/materials"
	"github.com/tengml/tengml/pkg/errors"
	"github.com/tengml/tengml/pkg/log"
)

func fallbackDB() *materials.Database {
	return materials.NewDatabase(materials.Fallback(), materials.SourceFallback, "")
}

func richDB() *materials.Database {
	ms := materials.Fallback()
	extra := []materials.Material{
		{ID: "R1", Polymer: "PTFE", Filler: "Ag", Loading: materials.Num(2), Thickness: materials.Num(50), Voc: materials.Num(310), Isc: materials.Num(20), Power: materials.Num(2.1)},
		{ID: "R2", Polymer: "PI", Filler: materials.NoFiller, Loading: materials.Num(0), Thickness: materials.Num(120), Voc: materials.Num(150), Isc: materials.Num(8), Power: materials.Num(0.9), Energy: materials.Num(0.4)},
		{ID: "R3", Polymer: "PDMS", Filler: "CNT", Loading: materials.Num(4), Thickness: materials.Num(80), Voc: materials.Num(180), Isc: materials.Num(9), Power: materials.Num(1.0)},
		{ID: "R4", Polymer: "PDMS", Filler: "CNT", Thickness: materials.Num(80), Voc: materials.Num(180)},
	}
	return materials.NewDatabase(append(ms, extra...), materials.SourceMemory, "")
}

func TestParseMetric(t *testing.T) {
	for _, s := range []string{"voc", "ISC", " Power ", "energy"} {
		_, err := ParseMetric(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseMetric("efficiency")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownMetric))

	assert.Equal(t, "Voc (V)", Voc.Label())
}

func TestServiceBeforeTraining(t *testing.T) {
	svc := NewService()

	_, err := svc.Current()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoModels))
	assert.True(t, errors.IsNotFitted(err))

	_, err = svc.Predict(materials.CAMXPreset())
	assert.True(t, errors.IsNotFitted(err))

	_, _, err = svc.Parity(Voc)
	assert.True(t, errors.Is(err, ErrNoModels))

	assert.Nil(t, svc.Database())
}

func TestServiceTrainAndPredict(t *testing.T) {
	svc := NewService()
	db := richDB()

	set, err := svc.Train(context.Background(), db)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, set.ID)
	assert.Equal(t, 7, set.Samples)
	assert.Equal(t, 1, set.Dropped)
	assert.Equal(t, materials.SourceMemory, set.Source)
	require.Len(t, set.Models, len(Metrics))

	for _, m := range Metrics {
		sc := set.Scores[m]
		assert.GreaterOrEqual(t, sc.R2, 0.0, m)
		assert.LessOrEqual(t, sc.R2, 1.0, m)
		assert.False(t, math.IsNaN(sc.RMSE), m)
		assert.GreaterOrEqual(t, sc.MAE, 0.0, m)
	}

	cur, err := svc.Current()
	require.NoError(t, err)
	assert.Same(t, set, cur)
	assert.Same(t, db, svc.Database())

	p, err := svc.Predict(materials.CAMXPreset())
	require.NoError(t, err)
	assert.Equal(t, set.ID, p.ModelSetID)
	assert.Equal(t, materials.CAMXPreset(), p.Composition)
	for _, m := range Metrics {
		v := p.Get(m)
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), m)
		assert.GreaterOrEqual(t, v, 0.0, m)
	}
}

func TestServicePredictionsAreFlooredAtZero(t *testing.T) {
	svc := NewService()
	_, err := svc.Train(context.Background(), fallbackDB())
	require.NoError(t, err)

	// far outside the training range the linear models go negative
	p, err := svc.Predict(materials.Composition{Polymer: "CA", Filler: "MXene", Loading: 0, Thickness: 10000})
	require.NoError(t, err)
	for _, m := range Metrics {
		assert.GreaterOrEqual(t, p.Get(m), 0.0, m)
	}
}

func TestServicePredictRejectsInvalidComposition(t *testing.T) {
	svc := NewService()
	_, err := svc.Train(context.Background(), fallbackDB())
	require.NoError(t, err)

	_, err = svc.Predict(materials.Composition{Polymer: "CA", Loading: -5, Thickness: 70})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestServiceTrainWithoutUsableRowsKeepsPreviousSet(t *testing.T) {
	svc := NewService()
	first, err := svc.Train(context.Background(), fallbackDB())
	require.NoError(t, err)

	empty := materials.NewDatabase([]materials.Material{{ID: "bad", Polymer: "CA"}}, materials.SourceMemory, "")
	_, err = svc.Train(context.Background(), empty)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	cur, err := svc.Current()
	require.NoError(t, err)
	assert.Same(t, first, cur)
}

func TestServiceTrainPropagatesRegressorErrors(t *testing.T) {
	svc := NewService(linear.WithLearningRate(-1))
	_, err := svc.Train(context.Background(), fallbackDB())
	require.Error(t, err)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
	var me *errors.ModelError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "Service.Train", me.Op)

	_, err = svc.Current()
	assert.True(t, errors.Is(err, ErrNoModels))
}

func TestServiceTrainCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewService().Train(ctx, fallbackDB())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestServiceRetrainIsDeterministic(t *testing.T) {
	svc := NewService()
	a, err := svc.Train(context.Background(), richDB())
	require.NoError(t, err)
	b, err := svc.Train(context.Background(), richDB())
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Scores, b.Scores)
	for _, m := range Metrics {
		assert.Equal(t, a.Models[m].Coef(), b.Models[m].Coef(), m)
	}
}

func TestServiceParity(t *testing.T) {
	svc := NewService()
	_, err := svc.Train(context.Background(), fallbackDB())
	require.NoError(t, err)

	measured, predicted, err := svc.Parity(Voc)
	require.NoError(t, err)
	assert.Equal(t, []float64{90, 200, 220, 240}, measured)
	require.Len(t, predicted, 4)

	_, _, err = svc.Parity(Metric("efficiency"))
	assert.True(t, errors.Is(err, ErrUnknownMetric))
}

func TestServiceReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"ID":"A","Polymer":"PTFE","Filler":"Ag","Loading":2,"Thickness":50,"Voc":310,"Isc":20,"Power":2.1},
		{"ID":"B","Polymer":"PI","Filler":"None","Loading":0,"Thickness":120,"Voc":150,"Isc":8,"Power":0.9},
		{"ID":"C","Polymer":"CA","Filler":"MXene","Loading":5,"Thickness":70,"Voc":200,"Isc":12,"Power":1.2}
	]`), 0o644))

	svc := NewService()
	set, err := svc.Reload(context.Background(), materials.Sources{JSONPath: path})
	require.NoError(t, err)
	assert.Equal(t, materials.SourceJSON, set.Source)
	assert.Equal(t, 3, set.Samples)
	assert.Equal(t, 3, svc.Database().Len())
}

func TestServiceConcurrentPredictDuringTrain(t *testing.T) {
	svc := NewService(linear.WithMaxIter(200))
	_, err := svc.Train(context.Background(), fallbackDB())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Train(context.Background(), richDB())
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Predict(materials.CAMXPreset())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestModelSetSummary(t *testing.T) {
	svc := NewService()
	set, err := svc.Train(context.Background(), fallbackDB())
	require.NoError(t, err)

	sum := set.Summary()
	assert.Equal(t, set.ID, sum.ID)
	require.Len(t, sum.Metrics, len(Metrics))
	w := sum.Metrics[Power].Weights
	require.NotNil(t, w)
	assert.Equal(t, materials.FeatureNames, w.Features)
	assert.Len(t, w.Coefficients, 4)
}

func TestServiceTrainLogsPerMetricScores(t *testing.T) {
	tl := log.UseTestLogger(log.LevelDebug, t.Cleanup)
	svc := NewService()

	set, err := svc.Train(context.Background(), fallbackDB())
	require.NoError(t, err)

	trained := tl.Find("model trained")
	require.Len(t, trained, len(Metrics))
	for _, r := range trained {
		assert.Equal(t, "predictor", r.Fields[log.ComponentKey])
		assert.Equal(t, set.ID.String(), r.Fields[log.ModelSetIDKey])
		assert.Contains(t, r.Fields, log.R2ScoreKey)
	}

	ready := tl.Find("model set ready")
	require.Len(t, ready, 1)
	assert.Equal(t, 4, ready[0].Fields[log.SamplesKey])
	assert.Equal(t, string(materials.SourceFallback), ready[0].Fields[log.SourceKey])

	_, err = svc.Train(context.Background(), materials.NewDatabase(nil, materials.SourceMemory, ""))
	require.Error(t, err)
	failed := tl.Find("training failed")
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Fields["error"], "no usable rows")
}

// Package predictor trains one regressor per TENG metric on the materials
// database and serves predictions from the latest successful training run.
package predictor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/tengml/tengml/linear"
	"github.com/tengml/tengml/materials"
	"github.com/tengml/tengml/metrics"
	"github.com/tengml/tengml/pkg/errors"
	"github.com/tengml/tengml/pkg/log"
)

// ErrNoModels is returned before the first successful training run.
// Errors wrapping it are also marked not-fitted.
var ErrNoModels = errors.New("no trained models")

func noModels() error {
	return errors.Mark(errors.WithStack(ErrNoModels), errors.ErrNotFitted)
}

// Prediction holds the predicted metrics for one composition.
// Negative model outputs are reported as 0.
type Prediction struct {
	ModelSetID  uuid.UUID             `json:"model_set_id"`
	Composition materials.Composition `json:"composition"`
	Voc         float64               `json:"voc"`
	Isc         float64               `json:"isc"`
	Power       float64               `json:"power"`
	Energy      float64               `json:"energy"`
}

// Get returns the predicted value of m.
func (p Prediction) Get(m Metric) float64 {
	switch m {
	case Voc:
		return p.Voc
	case Isc:
		return p.Isc
	case Power:
		return p.Power
	case Energy:
		return p.Energy
	}
	return 0
}

func (p *Prediction) set(m Metric, v float64) {
	switch m {
	case Voc:
		p.Voc = v
	case Isc:
		p.Isc = v
	case Power:
		p.Power = v
	case Energy:
		p.Energy = v
	}
}

// Service owns the current ModelSet and the database it was trained on.
// It is safe for concurrent use; a training run replaces both atomically.
type Service struct {
	mu      sync.RWMutex
	current *ModelSet
	db      *materials.Database

	regOpts []linear.Option
	logger  log.Logger
}

// NewService creates a Service whose regressors are built with regOpts.
func NewService(regOpts ...linear.Option) *Service {
	return &Service{
		regOpts: regOpts,
		logger:  log.GetLoggerWithName("predictor"),
	}
}

// Reload loads the database from src and trains on it.
func (s *Service) Reload(ctx context.Context, src materials.Sources) (*ModelSet, error) {
	db, err := materials.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	return s.Train(ctx, db)
}

type fitted struct {
	reg   *linear.GDRegressor
	score Score
}

// Train fits one regressor per metric concurrently and, when every fit
// succeeds, makes the result current. On failure the previous ModelSet
// stays in place.
func (s *Service) Train(ctx context.Context, db *materials.Database) (*ModelSet, error) {
	start := time.Now()
	ts := db.TrainingSet()
	if ts.Len() == 0 {
		err := errors.Mark(errors.NewInvalidInputErrorf("Service.Train", "no usable rows among %d materials", db.Len()), errors.ErrEmptyData)
		s.logger.Error("training failed", err, log.DroppedKey, ts.Dropped)
		return nil, err
	}

	X, err := linear.DenseFromRows(ts.Features)
	if err != nil {
		return nil, err
	}
	n := ts.Len()

	results := make([]fitted, len(Metrics))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range Metrics {
		g.Go(func() error {
			return errors.SafeExecute("train "+string(m), func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				f, err := s.fitMetric(X, targets(ts, m))
				if err != nil {
					return errors.NewModelError("Service.Train", string(m), err)
				}
				results[i] = f
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("training failed", err, log.SamplesKey, n)
		return nil, err
	}

	set := &ModelSet{
		ID:        uuid.New(),
		TrainedAt: time.Now().UTC(),
		Source:    db.Source,
		Samples:   n,
		Dropped:   ts.Dropped,
		Models:    make(map[Metric]*linear.GDRegressor, len(Metrics)),
		Scores:    make(map[Metric]Score, len(Metrics)),
		x:         X,
		targets:   make(map[Metric][]float64, len(Metrics)),
	}
	for i, m := range Metrics {
		set.Models[m] = results[i].reg
		set.Scores[m] = results[i].score
		set.targets[m] = targets(ts, m)
	}

	s.mu.Lock()
	s.current = set
	s.db = db
	s.mu.Unlock()

	logger := s.logger.With(log.ModelSetIDKey, set.ID.String())
	for _, m := range Metrics {
		sc := set.Scores[m]
		logger.Info("model trained",
			log.MetricKey, string(m),
			log.R2ScoreKey, sc.R2,
			log.RMSEKey, sc.RMSE,
		)
	}
	logger.Info("model set ready",
		log.OperationKey, log.OperationFit,
		log.SourceKey, string(db.Source),
		log.SamplesKey, n,
		log.DroppedKey, ts.Dropped,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return set, nil
}

func (s *Service) fitMetric(X *mat.Dense, target []float64) (fitted, error) {
	opts := append([]linear.Option{linear.WithFeatureNames(materials.FeatureNames...)}, s.regOpts...)
	reg := linear.NewGDRegressor(opts...)

	y := mat.NewDense(len(target), 1, append([]float64(nil), target...))
	if err := reg.Fit(X, y); err != nil {
		return fitted{}, err
	}

	r2, err := reg.Score(X, y)
	if err != nil {
		return fitted{}, err
	}
	pred, err := reg.Predict(X)
	if err != nil {
		return fitted{}, err
	}
	rmse, err := metrics.RMSEMatrix(y, pred)
	if err != nil {
		return fitted{}, err
	}
	mae, err := metrics.MAEMatrix(y, pred)
	if err != nil {
		return fitted{}, err
	}
	return fitted{reg: reg, score: Score{R2: r2, RMSE: rmse, MAE: mae}}, nil
}

// Current returns the latest ModelSet, or an ErrNoModels error.
func (s *Service) Current() (*ModelSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, noModels()
	}
	return s.current, nil
}

// Database returns the database behind the current ModelSet, or nil.
func (s *Service) Database() *materials.Database {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// Predict runs every metric's model on c.
func (s *Service) Predict(c materials.Composition) (Prediction, error) {
	set, err := s.Current()
	if err != nil {
		return Prediction{}, err
	}
	if err := c.Validate(); err != nil {
		return Prediction{}, err
	}

	X := mat.NewDense(1, len(materials.FeatureNames), c.Features())
	p := Prediction{ModelSetID: set.ID, Composition: c}
	for _, m := range Metrics {
		out, err := set.Models[m].Predict(X)
		if err != nil {
			return Prediction{}, errors.Wrapf(err, "predict %s", m)
		}
		p.set(m, math.Max(0, out.At(0, 0)))
	}

	s.logger.Debug("prediction served",
		log.OperationKey, log.OperationPredict,
		log.ModelSetIDKey, set.ID.String(),
	)
	return p, nil
}

// Parity returns measured and predicted values of m for the training rows
// of the current ModelSet.
func (s *Service) Parity(m Metric) (measured, predicted []float64, err error) {
	set, err := s.Current()
	if err != nil {
		return nil, nil, err
	}
	return set.Parity(m)
}

// Parity returns measured and predicted values of m for the training rows.
func (ms *ModelSet) Parity(m Metric) (measured, predicted []float64, err error) {
	reg, ok := ms.Models[m]
	if !ok {
		return nil, nil, errors.Wrapf(ErrUnknownMetric, "%q", string(m))
	}
	pred, err := reg.Predict(ms.x)
	if err != nil {
		return nil, nil, err
	}
	measured = append([]float64(nil), ms.targets[m]...)
	return measured, mat.Col(nil, 0, pred), nil
}

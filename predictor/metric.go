package predictor

import (
	"strings"

	"github.com/tengml/tengml/materials"
	"github.com/tengml/tengml/pkg/errors"
)

// Metric is a predicted TENG performance figure.
type Metric string

const (
	Voc    Metric = "voc"
	Isc    Metric = "isc"
	Power  Metric = "power"
	Energy Metric = "energy"
)

// Metrics lists every metric in display order.
var Metrics = []Metric{Voc, Isc, Power, Energy}

// ErrUnknownMetric is returned by ParseMetric.
var ErrUnknownMetric = errors.New("unknown metric")

// ParseMetric accepts a metric name in any case.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Metrics {
		if m == known {
			return m, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownMetric, "%q", s)
}

// Label is the axis label used in reports.
func (m Metric) Label() string {
	switch m {
	case Voc:
		return "Voc (V)"
	case Isc:
		return "Isc (µA)"
	case Power:
		return "Power density (W/m²)"
	case Energy:
		return "Energy"
	}
	return string(m)
}

// targets returns the column of ts that m is trained on.
func targets(ts *materials.TrainingSet, m Metric) []float64 {
	switch m {
	case Voc:
		return ts.Voc
	case Isc:
		return ts.Isc
	case Power:
		return ts.Power
	case Energy:
		return ts.Energy
	}
	return nil
}

// Package materials loads the TENG materials database and turns it into
// training data for the performance regressors.
package materials

import (
	"math"
	"strconv"
	"strings"

	"github.com/tengml/tengml/pkg/errors"
)

// Material is one row of the materials database.
type Material struct {
	ID        string `json:"ID"`
	Name      string `json:"Name"`
	Polymer   string `json:"Polymer"`
	Filler    string `json:"Filler"`
	Loading   Value  `json:"Loading"`   // wt%
	Thickness Value  `json:"Thickness"` // µm
	Voc       Value  `json:"Voc"`       // V
	Isc       Value  `json:"Isc"`       // µA
	Power     Value  `json:"Power"`     // W/m²
	Energy    Value  `json:"Energy"`
	Ref       string `json:"Ref"`
}

// FillerName returns the filler, or "None" for pristine films.
func (m Material) FillerName() string {
	if IsNoFiller(m.Filler) {
		return NoFiller
	}
	return strings.TrimSpace(m.Filler)
}

// Composition returns the material's composition. Missing loading is 0
// and missing thickness is 100 µm.
func (m Material) Composition() Composition {
	return Composition{
		Polymer:   m.Polymer,
		Filler:    m.Filler,
		Loading:   m.Loading.Or(0),
		Thickness: m.Thickness.Or(100),
	}
}

// Trainable reports whether the row has every field the regressors need.
func (m Material) Trainable() bool {
	return m.Loading.Valid() && m.Thickness.Valid() &&
		m.Voc.Valid() && m.Isc.Valid() && m.Power.Valid()
}

// EnergyTarget is the recorded energy, or half the power when none is recorded.
func (m Material) EnergyTarget() (float64, bool) {
	if e, ok := m.Energy.Get(); ok {
		return e, true
	}
	if p, ok := m.Power.Get(); ok {
		return 0.5 * p, true
	}
	return 0, false
}

// Validate checks that a composition can be fed to a regressor.
func (c Composition) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{{"loading", c.Loading}, {"thickness", c.Thickness}} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return errors.NewInvalidInputErrorf("Composition", "%s must be a finite number", f.name)
		}
		if f.v < 0 {
			return errors.NewInvalidInputErrorf("Composition", "%s must not be negative, got %g", f.name, f.v)
		}
	}
	if strings.TrimSpace(c.Polymer) == "" {
		return errors.NewInvalidInputError("Composition", "polymer is required")
	}
	return nil
}

// normalizeHeader maps "Voc (V)", " voc" and "VOC" to "voc".
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if i := strings.IndexAny(h, " ([_"); i > 0 {
		h = h[:i]
	}
	if h == "reference" {
		return "ref"
	}
	return h
}

// fromRecord builds a Material from header → cell text.
// Keys must already be normalized.
func fromRecord(rec map[string]string) Material {
	text := func(k string) string { return strings.TrimSpace(rec[k]) }
	return Material{
		ID:        text("id"),
		Name:      text("name"),
		Polymer:   text("polymer"),
		Filler:    text("filler"),
		Loading:   numField(rec, "loading"),
		Thickness: numField(rec, "thickness"),
		Voc:       numField(rec, "voc"),
		Isc:       numField(rec, "isc"),
		Power:     numField(rec, "power"),
		Energy:    numField(rec, "energy"),
		Ref:       text("ref"),
	}
}

// numField parses rec[key], warning when non-numeric text is discarded.
func numField(rec map[string]string, key string) Value {
	s := strings.TrimSpace(rec[key])
	v := ParseValue(s)
	if !v.Valid() && s != "" && !strings.EqualFold(s, "nan") {
		errors.Warn(errors.NewDataConversionWarning(strconv.Quote(s), "missing "+key, "not a number"))
	}
	return v
}

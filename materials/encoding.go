package materials

import (
	"sort"
	"strings"
)

// Codes for categories absent from the tables below.
const (
	DefaultPolymerCode = 5.0
	DefaultFillerCode  = 5.0
)

// NoFiller is the filler name used for pristine polymer films.
const NoFiller = "None"

var polymerCodes = map[string]float64{
	"PTFE":      10,
	"PVDF":      9,
	"PI":        8,
	"CA":        7,
	"PDMS":      6,
	"PC":        5,
	"PP":        4,
	"PVC":       3,
	"PET":       2,
	"Nylon":     1,
	"Cellulose": 0.5,
	"PU":        0,
}

var fillerCodes = map[string]float64{
	"Au":       10,
	"Ag":       9,
	"MXene":    8,
	"Graphene": 7,
	"CNT":      6,
	"BaTiO3":   5,
	"TiO2":     4,
	"ZnO":      3,
	"Al2O3":    2,
	"Al":       1,
	"F":        1,
}

// EncodePolymer maps a polymer name to its ordinal code. Names are
// matched exactly after trimming; unknown names get DefaultPolymerCode.
func EncodePolymer(name string) float64 {
	if code, ok := polymerCodes[strings.TrimSpace(name)]; ok {
		return code
	}
	return DefaultPolymerCode
}

// IsNoFiller reports whether name denotes the absence of a filler.
func IsNoFiller(name string) bool {
	switch strings.TrimSpace(name) {
	case "", NoFiller, "NaN":
		return true
	}
	return false
}

// EncodeFiller maps a filler name to its ordinal code. An empty name,
// "None" and "NaN" encode as 0; unknown names get DefaultFillerCode.
func EncodeFiller(name string) float64 {
	if IsNoFiller(name) {
		return 0
	}
	if code, ok := fillerCodes[strings.TrimSpace(name)]; ok {
		return code
	}
	return DefaultFillerCode
}

// KnownPolymers returns the polymers with a dedicated code, highest code first.
func KnownPolymers() []string {
	return sortedByCode(polymerCodes)
}

// KnownFillers returns the fillers with a dedicated code, highest code first.
func KnownFillers() []string {
	return sortedByCode(fillerCodes)
}

func sortedByCode(codes map[string]float64) []string {
	names := make([]string, 0, len(codes))
	for name := range codes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := codes[names[i]], codes[names[j]]
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})
	return names
}

// Composition describes a film to predict for.
type Composition struct {
	Polymer   string  `json:"polymer"`
	Filler    string  `json:"filler"`
	Loading   float64 `json:"loading"`   // filler loading, wt%
	Thickness float64 `json:"thickness"` // film thickness, µm
}

// Features returns [polymer code, filler code, loading, thickness].
func (c Composition) Features() []float64 {
	return []float64{
		EncodePolymer(c.Polymer),
		EncodeFiller(c.Filler),
		c.Loading,
		c.Thickness,
	}
}

// FeatureNames names the columns produced by Composition.Features.
var FeatureNames = []string{"polymer_code", "filler_code", "loading", "thickness"}

// CAMXPreset is the cellulose acetate / MXene reference film.
func CAMXPreset() Composition {
	return Composition{Polymer: "CA", Filler: "MXene", Loading: 5, Thickness: 70}
}

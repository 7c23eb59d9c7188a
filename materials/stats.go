package materials

import (
	"strings"

	"github.com/montanaflynn/stats"
)

// Stats summarizes a Database.
type Stats struct {
	Total    int     `json:"total"`
	Polymers int     `json:"polymers"`
	Fillers  int     `json:"fillers"`
	AvgPower float64 `json:"avg_power"`
	MaxPower float64 `json:"max_power"`
}

// Stats counts distinct polymers and fillers (pristine films excluded)
// and summarizes power density. Missing power counts as 0.
func (db *Database) Stats() Stats {
	s := Stats{Total: len(db.Materials)}
	if s.Total == 0 {
		return s
	}

	polymers := make(map[string]struct{})
	fillers := make(map[string]struct{})
	power := make(stats.Float64Data, 0, s.Total)

	for _, m := range db.Materials {
		if p := strings.TrimSpace(m.Polymer); p != "" {
			polymers[p] = struct{}{}
		}
		if !IsNoFiller(m.Filler) {
			fillers[strings.TrimSpace(m.Filler)] = struct{}{}
		}
		power = append(power, m.Power.Or(0))
	}

	s.Polymers = len(polymers)
	s.Fillers = len(fillers)
	// power is non-empty, so neither call can fail
	s.AvgPower, _ = stats.Mean(power)
	s.MaxPower, _ = stats.Max(power)
	return s
}

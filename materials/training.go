package materials

// TrainingSet is the numeric view of a Database used to fit the regressors.
// Row i of every slice belongs to the same material.
type TrainingSet struct {
	IDs      []string
	Features [][]float64 // [polymer code, filler code, loading, thickness]
	Voc      []float64
	Isc      []float64
	Power    []float64
	Energy   []float64 // recorded energy, else 0.5 × power
	Dropped  int       // rows skipped for missing loading, thickness, voc, isc or power
}

// Len returns the number of usable rows.
func (ts *TrainingSet) Len() int {
	return len(ts.Features)
}

// TrainingSet extracts the usable rows. A field counts as missing when it
// is absent or not a number; a recorded 0 is kept.
func (db *Database) TrainingSet() *TrainingSet {
	ts := &TrainingSet{}
	for _, m := range db.Materials {
		if !m.Trainable() {
			ts.Dropped++
			continue
		}
		energy, _ := m.EnergyTarget()

		ts.IDs = append(ts.IDs, m.ID)
		ts.Features = append(ts.Features, m.Composition().Features())
		ts.Voc = append(ts.Voc, m.Voc.Or(0))
		ts.Isc = append(ts.Isc, m.Isc.Or(0))
		ts.Power = append(ts.Power, m.Power.Or(0))
		ts.Energy = append(ts.Energy, energy)
	}
	return ts
}

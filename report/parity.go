// Package report renders diagnostic plots for trained models.
package report

import (
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	_ "gonum.org/v1/plot/vg/vgimg" // registers the png format

	"github.com/tengml/tengml/pkg/errors"
)

// Default image size of a parity plot.
const (
	DefaultWidth  = 5 * vg.Inch
	DefaultHeight = 5 * vg.Inch
)

var (
	pointColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	idealColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// Parity builds a measured-vs-predicted scatter plot with the y = x line.
// label names the quantity on both axes.
func Parity(label string, measured, predicted []float64) (*plot.Plot, error) {
	if len(measured) == 0 {
		return nil, errors.NewInvalidInputError("report.Parity", "no points to plot")
	}
	if len(measured) != len(predicted) {
		return nil, errors.NewDimensionError("report.Parity", len(measured), len(predicted), 0)
	}

	if err := errors.CheckFinite("report.Parity", 0, measured, predicted); err != nil {
		return nil, errors.Mark(err, errors.ErrInvalidInput)
	}

	pts := make(plotter.XYs, len(measured))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range measured {
		pts[i].X = measured[i]
		pts[i].Y = predicted[i]
		lo = math.Min(lo, math.Min(measured[i], predicted[i]))
		hi = math.Max(hi, math.Max(measured[i], predicted[i]))
	}
	lo, hi = pad(lo, hi)

	p := plot.New()
	p.Title.Text = "Parity: " + label
	p.X.Label.Text = "Measured " + label
	p.Y.Label.Text = "Predicted " + label
	p.X.Min, p.X.Max = lo, hi
	p.Y.Min, p.Y.Max = lo, hi

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, errors.Wrap(err, "parity scatter")
	}
	scatter.GlyphStyle.Color = pointColor
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(4)

	ideal := plotter.NewFunction(func(x float64) float64 { return x })
	ideal.Color = idealColor
	ideal.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}

	p.Add(plotter.NewGrid(), ideal, scatter)
	p.Legend.Add("samples", scatter)
	p.Legend.Add("y = x", ideal)
	p.Legend.Top = true
	p.Legend.Left = true

	return p, nil
}

// pad widens [lo, hi] by 5% on each side, or by 1 when the range is empty.
func pad(lo, hi float64) (float64, float64) {
	d := (hi - lo) * 0.05
	if d == 0 {
		d = 1
	}
	return lo - d, hi + d
}

// WritePNG renders p as a PNG image of the default size.
func WritePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(DefaultWidth, DefaultHeight, "png")
	if err != nil {
		return errors.Wrap(err, "render png")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "write png")
	}
	return nil
}

// SavePNG renders p to a PNG file at path.
func SavePNG(path string, p *plot.Plot) error {
	if err := p.Save(DefaultWidth, DefaultHeight, path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}

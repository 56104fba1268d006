package chart

import (
	"math"

	"github.com/XavierBriggs/fortuna/services/carviz/internal/aggregate"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/layout"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/transition"
	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
)

// BandPadding is the gap between bars as a fraction of the band step
const BandPadding = 0.1

// Bar shows mean acceleration per manufacturer. Bar shapes are in plot-area
// coordinates, offset by the margins when drawn.
type Bar struct {
	*base
	band layout.Band
}

// NewBar creates an unrendered bar chart
func NewBar(dims layout.Dimensions, sel Selector, opts ...Option) *Bar {
	b := &Bar{}
	b.base = newBase(models.ChartBar, "Acceleration", dims, sel, accelerationByManufacturer, opts)
	b.base.kind = b
	return b
}

func accelerationByManufacturer(records []models.CarRecord, r models.YearRange) ([]Datum, error) {
	return manufacturerRows(aggregate.AccelerationByManufacturer(records, r)), nil
}

func (b *Bar) bind(Dataset) {}

func (b *Bar) color(string) string {
	return SteelBlue
}

func (b *Bar) geometry(rows []Datum) (geometry, error) {
	if err := b.dims.Validate(); err != nil {
		return geometry{}, err
	}
	w, h := b.dims.InnerWidth(), b.dims.InnerHeight()

	band := layout.NewBand(datumKeys(rows), 0, w, BandPadding)
	y := layout.NewLinear(0, valueCeiling(rows), h, 0)

	targets := make([]transition.Target, 0, len(rows))
	xTicks := make([]Tick, 0, len(rows))
	for _, d := range rows {
		x, _ := band.Position(d.Key)
		top := y.Scale(d.Value)
		targets = append(targets, transition.Target{
			Key: d.Key,
			Shape: transition.Shape{
				X: x, Y: top, Width: band.Bandwidth(), Height: h - top, Value: d.Value,
			},
			Collapsed: transition.Shape{X: x, Y: h, Width: band.Bandwidth()},
		})
		xTicks = append(xTicks, Tick{Label: d.Key, Position: x + band.Bandwidth()/2})
	}

	b.band = band
	return geometry{
		targets: targets,
		x:       &Axis{Label: "Manufacturer", Ticks: xTicks},
		y:       linearAxis("Acceleration", y),
	}, nil
}

// Brush selects the manufacturers whose bars intersect [px0, px1] (plot-area
// pixels). The selection becomes the model years those manufacturers cover.
// A zero-width brush, or one that touches no bar, clears the selection.
func (b *Bar) Brush(px0, px1 float64) (models.YearRange, error) {
	r, err := b.brushRange(px0, px1)
	if err != nil {
		return models.Unset(), err
	}
	return b.submit(r), nil
}

func (b *Bar) brushRange(px0, px1 float64) (models.YearRange, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Unrendered {
		return models.Unset(), ErrNotRendered
	}

	w := b.dims.InnerWidth()
	p0 := math.Max(0, math.Min(w, px0))
	p1 := math.Max(0, math.Min(w, px1))
	if p0 == p1 {
		return models.Unset(), nil
	}

	keys := b.band.InvertRange(p0, p1)
	if len(keys) == 0 {
		return models.Unset(), nil
	}
	lo, hi := b.boundsLocked()
	return b.dataset.YearsFor(keys...).Clamp(lo, hi), nil
}

package chart

import (
	"math"
	"sort"
	"strconv"

	"github.com/XavierBriggs/fortuna/services/carviz/internal/aggregate"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/layout"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/transition"
	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
)

// Line shows mean MPG per model year. Vertices are in plot-area coordinates
// and ordered by year.
type Line struct {
	*base
	x       layout.Linear
	minYear int
	maxYear int
}

// NewLine creates an unrendered line chart
func NewLine(dims layout.Dimensions, sel Selector, opts ...Option) *Line {
	l := &Line{}
	l.base = newBase(models.ChartLine, "MPG", dims, sel, mpgByYear, opts)
	l.base.kind = l
	return l
}

func mpgByYear(records []models.CarRecord, r models.YearRange) ([]Datum, error) {
	rows := aggregate.MPGByYear(records, r)
	out := make([]Datum, len(rows))
	for i, row := range rows {
		out[i] = Datum{
			Key:   strconv.Itoa(row.Key),
			X:     float64(row.Key),
			Value: row.Value,
			Count: row.Count,
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].X < out[j].X })
	return out, nil
}

func (l *Line) bind(ds Dataset) {
	l.minYear, l.maxYear = ds.YearBounds()
}

func (l *Line) color(string) string {
	return SteelBlue
}

func (l *Line) geometry(rows []Datum) (geometry, error) {
	if err := l.dims.Validate(); err != nil {
		return geometry{}, err
	}
	w, h := l.dims.InnerWidth(), l.dims.InnerHeight()

	var x layout.Linear
	if len(rows) == 0 {
		// Nothing selected: keep the axis on the dataset's years
		x = layout.NewLinear(float64(l.minYear), float64(l.maxYear), 0, w)
	} else {
		lo, hi := rows[0].X, rows[0].X
		for _, d := range rows[1:] {
			lo, hi = math.Min(lo, d.X), math.Max(hi, d.X)
		}
		x = layout.NewLinear(lo, hi, 0, w)
	}
	y := layout.NewLinear(0, valueCeiling(rows), h, 0)

	targets := make([]transition.Target, 0, len(rows))
	for _, d := range rows {
		px := x.Scale(d.X)
		targets = append(targets, transition.Target{
			Key:       d.Key,
			Shape:     transition.Shape{X: px, Y: y.Scale(d.Value), Value: d.Value},
			Collapsed: transition.Shape{X: px, Y: h},
		})
	}

	xAxis := linearAxis("Model Year", x)
	years := xAxis.Ticks[:0]
	for _, t := range xAxis.Ticks {
		if t.Value == math.Trunc(t.Value) {
			years = append(years, t)
		}
	}
	xAxis.Ticks = years

	l.x = x
	return geometry{
		targets: targets,
		x:       xAxis,
		y:       linearAxis("MPG", y),
	}, nil
}

// Brush maps [px0, px1] (plot-area pixels) through the inverse x scale to a
// whole-year range, rounding outward and clamping to the dataset's years. A
// brush that is zero-width after clamping clears the selection.
func (l *Line) Brush(px0, px1 float64) (models.YearRange, error) {
	r, err := l.brushRange(px0, px1)
	if err != nil {
		return models.Unset(), err
	}
	return l.submit(r), nil
}

func (l *Line) brushRange(px0, px1 float64) (models.YearRange, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == Unrendered {
		return models.Unset(), ErrNotRendered
	}

	p0, p1 := l.x.ClampPixel(px0), l.x.ClampPixel(px1)
	if p0 > p1 {
		p0, p1 = p1, p0
	}
	if p0 == p1 {
		return models.Unset(), nil
	}

	const eps = 1e-9
	y0 := int(math.Floor(l.x.Invert(p0) + eps))
	y1 := int(math.Ceil(l.x.Invert(p1) - eps))

	lo, hi := l.boundsLocked()
	return models.NewYearRange(y0, y1).Clamp(lo, hi), nil
}

// valueCeiling is the top of a value axis starting at zero
func valueCeiling(rows []Datum) float64 {
	top := 0.0
	for _, d := range rows {
		top = math.Max(top, d.Value)
	}
	if top <= 0 {
		return 1
	}
	return top
}

func linearAxis(label string, s layout.Linear) *Axis {
	values := s.Ticks(10)
	ticks := make([]Tick, len(values))
	for i, v := range values {
		ticks[i] = Tick{Value: v, Label: layout.FormatTick(v), Position: s.Scale(v)}
	}
	return &Axis{Label: label, Ticks: ticks}
}

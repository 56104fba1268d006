package chart

import (
	"fmt"
	"math"
	"time"

	"github.com/XavierBriggs/fortuna/services/carviz/internal/aggregate"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/layout"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/transition"
	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
)

// Pie zoom limits and button steps
const (
	MinZoom     = 1.0
	MaxZoom     = 10.0
	ZoomInStep  = 1.2
	ZoomOutStep = 0.8
)

// Pie shows mean MPG per manufacturer. Slices use X/Y as the centre, Width as
// the outer radius and StartAngle/EndAngle in radians clockwise from 12 o'clock.
type Pie struct {
	*base
	zoom    float64
	palette map[string]string
}

// NewPie creates an unrendered pie chart
func NewPie(dims layout.Dimensions, sel Selector, opts ...Option) *Pie {
	p := &Pie{zoom: MinZoom, palette: map[string]string{}}
	p.base = newBase(models.ChartPie, "MPG", dims, sel, mpgByManufacturer, opts)
	p.base.kind = p
	return p
}

func mpgByManufacturer(records []models.CarRecord, r models.YearRange) ([]Datum, error) {
	return manufacturerRows(aggregate.MPGByManufacturer(records, r)), nil
}

func manufacturerRows(rows []models.AggregateRow[string]) []Datum {
	out := make([]Datum, len(rows))
	for i, row := range rows {
		out[i] = Datum{Key: row.Key, Value: row.Value, Count: row.Count}
	}
	return out
}

func (p *Pie) bind(ds Dataset) {
	p.palette = paletteFor(ds.Manufacturers())
}

func (p *Pie) color(key string) string {
	if c, ok := p.palette[key]; ok {
		return c
	}
	return Category10[0]
}

func (p *Pie) geometry(rows []Datum) (geometry, error) {
	if err := p.dims.Validate(); err != nil {
		return geometry{}, err
	}

	cx := p.dims.Margin.Left + p.dims.InnerWidth()/2
	cy := p.dims.Margin.Top + p.dims.InnerHeight()/2
	radius := math.Min(p.dims.InnerWidth(), p.dims.InnerHeight()) / 2 * p.zoom

	total := 0.0
	for _, d := range rows {
		if d.Value > 0 {
			total += d.Value
		}
	}

	targets := make([]transition.Target, 0, len(rows))
	angle := 0.0
	for _, d := range rows {
		span := 0.0
		if total > 0 && d.Value > 0 {
			span = d.Value / total * 2 * math.Pi
		}
		shape := transition.Shape{
			X: cx, Y: cy, Width: radius,
			StartAngle: angle, EndAngle: angle + span,
			Value: d.Value,
		}
		collapsed := shape
		collapsed.EndAngle = angle
		collapsed.Value = 0
		targets = append(targets, transition.Target{Key: d.Key, Shape: shape, Collapsed: collapsed})
		angle += span
	}
	return geometry{targets: targets}, nil
}

// Select handles a click on a slice: the selection becomes the model years
// that manufacturer appears in
func (p *Pie) Select(key string) (models.YearRange, error) {
	r, err := p.selectRange(key)
	if err != nil {
		return models.Unset(), err
	}
	return p.submit(r), nil
}

func (p *Pie) selectRange(key string) (models.YearRange, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Unrendered {
		return models.Unset(), ErrNotRendered
	}
	if _, ok := p.rowLocked(key); !ok {
		return models.Unset(), fmt.Errorf("%w: %q on pie chart", ErrUnknownKey, key)
	}
	r := p.dataset.YearsFor(key)
	if !r.IsSet() {
		return models.Unset(), fmt.Errorf("%w: %q has no records", ErrUnknownKey, key)
	}
	lo, hi := p.boundsLocked()
	return r.Clamp(lo, hi), nil
}

// Zoom scales the pie by factor within [MinZoom, MaxZoom] and returns the new scale
func (p *Pie) Zoom(factor float64) (float64, error) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidZoom, factor)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Unrendered {
		return 0, ErrNotRendered
	}

	prev := p.zoom
	p.zoom = math.Max(MinZoom, math.Min(MaxZoom, p.zoom*factor))
	if p.zoom == prev {
		return p.zoom, nil
	}
	if err := p.relayoutLocked(); err != nil {
		p.zoom = prev
		return prev, err
	}
	return p.zoom, nil
}

// ZoomIn is the zoom-in button
func (p *Pie) ZoomIn() (float64, error) {
	return p.Zoom(ZoomInStep)
}

// ZoomOut is the zoom-out button
func (p *Pie) ZoomOut() (float64, error) {
	return p.Zoom(ZoomOutStep)
}

// ZoomLevel returns the current scale
func (p *Pie) ZoomLevel() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.zoom
}

// Frame adds the zoom level to the common frame
func (p *Pie) Frame(now time.Time) (Frame, error) {
	f, err := p.base.Frame(now)
	if err != nil {
		return f, err
	}
	f.Zoom = p.ZoomLevel()
	return f, nil
}

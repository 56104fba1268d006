package chart_test

import (
	"errors"
	"math"
	"testing"

	"github.com/XavierBriggs/fortuna/services/carviz/internal/chart"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/datastore"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/layout"
	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
)

// decadeDataset spans 1970-1980 so the line's x scale is 74px per year
func decadeDataset(t *testing.T) *datastore.Store {
	t.Helper()
	ds, err := datastore.NewStore("decade", []models.CarRecord{
		{Manufacturer: "A", ModelYear: 1970, MPG: 18, Acceleration: 12},
		{Manufacturer: "B", ModelYear: 1975, MPG: 22, Acceleration: 14},
		{Manufacturer: "A", ModelYear: 1980, MPG: 30, Acceleration: 16},
	})
	if err != nil {
		t.Fatalf("failed to build dataset: %v", err)
	}
	return ds
}

func TestLine_Brush(t *testing.T) {
	tests := []struct {
		name     string
		px0, px1 float64
		expected models.YearRange
	}{
		{"exact years", 148, 296, models.NewYearRange(1972, 1974)},
		{"rounds outward", 150, 290, models.NewYearRange(1972, 1974)},
		{"reversed", 296, 148, models.NewYearRange(1972, 1974)},
		{"clamped left", -500, 100, models.NewYearRange(1970, 1972)},
		{"clamped right", 700, 5000, models.NewYearRange(1979, 1980)},
		{"whole axis", -1, 741, models.NewYearRange(1970, 1980)},
		{"zero width", 100, 100, models.Unset()},
		{"outside the axis", 800, 900, models.Unset()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := &recordingSelector{}
			line := chart.NewLine(layout.Default().Line, sel)
			if err := line.Render(decadeDataset(t)); err != nil {
				t.Fatalf("render failed: %v", err)
			}

			r, err := line.Brush(tt.px0, tt.px1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, r)
			}

			w := sel.last(t)
			if w.Range != tt.expected {
				t.Errorf("expected store write %s, got %s", tt.expected, w.Range)
			}
			if w.Source != string(models.ChartLine) {
				t.Errorf("expected source line, got %q", w.Source)
			}
		})
	}
}

func TestLine_BrushUsesCurrentScale(t *testing.T) {
	line := chart.NewLine(layout.Default().Line, &recordingSelector{})
	if err := line.Render(decadeDataset(t)); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	// After narrowing to 1975-1980 the axis spans 148px per year
	if _, err := line.OnSelectionChanged(selectYears(1975, 1980)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, err := line.Brush(0, 148)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != models.NewYearRange(1975, 1976) {
		t.Errorf("expected [1975,1976], got %s", r)
	}
}

func TestLine_AxisTicksAreWholeYears(t *testing.T) {
	line := chart.NewLine(layout.Default().Line, nil)
	if err := line.Render(decadeDataset(t)); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	f, _ := line.Frame(after)

	if len(f.XAxis.Ticks) != 11 {
		t.Fatalf("expected 11 year ticks, got %d", len(f.XAxis.Ticks))
	}
	for _, tick := range f.XAxis.Ticks {
		if tick.Value != math.Trunc(tick.Value) {
			t.Errorf("unexpected fractional tick %v", tick.Value)
		}
	}
	if f.XAxis.Ticks[0].Label != "1970" || f.XAxis.Ticks[0].Position != 0 {
		t.Errorf("unexpected first tick %+v", f.XAxis.Ticks[0])
	}
}

func TestBar_Brush(t *testing.T) {
	// Bands over 730px with padding 0.1: A spans ~[34.8, 347.6], B ~[382.4, 695.2]
	tests := []struct {
		name     string
		px0, px1 float64
		expected models.YearRange
	}{
		{"first bar", 0, 100, models.NewYearRange(1970, 1971)},
		{"second bar", 360, 400, models.NewYearRange(1970, 1970)},
		{"both bars", 300, 400, models.NewYearRange(1970, 1971)},
		{"gap before bars", 0, 20, models.Unset()},
		{"gap between bars", 350, 380, models.Unset()},
		{"zero width", 200, 200, models.Unset()},
		{"beyond the axis", 900, 1000, models.Unset()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := &recordingSelector{}
			bar := chart.NewBar(layout.Default().Bar, sel)
			if err := bar.Render(scenarioDataset(t)); err != nil {
				t.Fatalf("render failed: %v", err)
			}

			r, err := bar.Brush(tt.px0, tt.px1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, r)
			}
			if sel.last(t).Range != tt.expected {
				t.Errorf("expected store write %s, got %s", tt.expected, sel.last(t).Range)
			}
		})
	}
}

func TestPie_Select(t *testing.T) {
	sel := &recordingSelector{}
	pie := chart.NewPie(layout.Default().Pie, sel)
	if err := pie.Render(scenarioDataset(t)); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	r, err := pie.Select("B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != models.NewYearRange(1970, 1970) {
		t.Errorf("expected [1970,1970], got %s", r)
	}
	if w := sel.last(t); w.Range != r || w.Source != "pie" {
		t.Errorf("unexpected write %+v", w)
	}

	if _, err := pie.Select("Z"); !errors.Is(err, chart.ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}
	if len(sel.writes) != 1 {
		t.Errorf("expected a failed select to write nothing, got %d writes", len(sel.writes))
	}
}

func TestPie_IsNotBrushable(t *testing.T) {
	var c chart.Chart = chart.NewPie(layout.Default().Pie, nil)
	if _, ok := c.(chart.Brusher); ok {
		t.Error("pie should not implement Brusher")
	}
	var z chart.Chart = chart.NewBar(layout.Default().Bar, nil)
	if _, ok := z.(chart.Zoomer); ok {
		t.Error("bar should not implement Zoomer")
	}
}

func TestPie_SliceAngles(t *testing.T) {
	pie := chart.NewPie(layout.Default().Pie, nil)
	if err := pie.Render(scenarioDataset(t)); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	slices := primitives(t, pie, after)

	split := 22.5 / 52.5 * 2 * math.Pi
	if !approx(slices["A"].Shape.StartAngle, 0) || !approx(slices["A"].Shape.EndAngle, split) {
		t.Errorf("unexpected A angles %+v", slices["A"].Shape)
	}
	if !approx(slices["B"].Shape.StartAngle, split) || !approx(slices["B"].Shape.EndAngle, 2*math.Pi) {
		t.Errorf("unexpected B angles %+v", slices["B"].Shape)
	}
	// 400x300 canvas: radius 150 centred at (200,150)
	if s := slices["A"].Shape; s.Width != 150 || s.X != 200 || s.Y != 150 {
		t.Errorf("unexpected slice geometry %+v", s)
	}
	if slices["A"].Color != chart.Category10[0] || slices["B"].Color != chart.Category10[1] {
		t.Errorf("unexpected colours %s %s", slices["A"].Color, slices["B"].Color)
	}
}

func TestPie_ColoursAreStableAcrossSelections(t *testing.T) {
	pie := chart.NewPie(layout.Default().Pie, nil, chart.WithClock(fixedClock()))
	if err := pie.Render(scenarioDataset(t)); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	pie.OnSelectionChanged(selectYears(1970, 1970))
	pie.OnSelectionChanged(selectYears(1971, 1971))

	if c := primitives(t, pie, after)["A"].Color; c != chart.Category10[0] {
		t.Errorf("expected A to keep its colour, got %s", c)
	}
}

func TestPie_Zoom(t *testing.T) {
	pie := chart.NewPie(layout.Default().Pie, nil, chart.WithClock(fixedClock()))

	if _, err := pie.ZoomIn(); !errors.Is(err, chart.ErrNotRendered) {
		t.Errorf("expected ErrNotRendered, got %v", err)
	}
	if err := pie.Render(scenarioDataset(t)); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	steps := []struct {
		name     string
		zoom     func() (float64, error)
		expected float64
	}{
		{"zoom in", pie.ZoomIn, 1.2},
		{"zoom in again", pie.ZoomIn, 1.44},
		{"zoom out", pie.ZoomOut, 1.152},
		{"capped at max", func() (float64, error) { return pie.Zoom(100) }, chart.MaxZoom},
		{"capped at min", func() (float64, error) { return pie.Zoom(0.001) }, chart.MinZoom},
		{"out at min stays", pie.ZoomOut, chart.MinZoom},
	}
	for _, s := range steps {
		got, err := s.zoom()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", s.name, err)
		}
		if !approx(got, s.expected) {
			t.Errorf("%s: expected %v, got %v", s.name, s.expected, got)
		}
	}

	if _, err := pie.Zoom(0); !errors.Is(err, chart.ErrInvalidZoom) {
		t.Errorf("expected ErrInvalidZoom, got %v", err)
	}
	if _, err := pie.Zoom(math.NaN()); !errors.Is(err, chart.ErrInvalidZoom) {
		t.Errorf("expected ErrInvalidZoom for NaN, got %v", err)
	}
}

func TestPie_ZoomScalesRadius(t *testing.T) {
	pie := chart.NewPie(layout.Default().Pie, nil, chart.WithClock(fixedClock()))
	if err := pie.Render(scenarioDataset(t)); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if _, err := pie.Zoom(2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, _ := pie.Frame(after)
	if f.Zoom != 2 {
		t.Errorf("expected frame zoom 2, got %v", f.Zoom)
	}
	for _, p := range f.Primitives {
		if p.Shape.Width != 300 {
			t.Errorf("expected radius 300 for %s, got %v", p.Key, p.Shape.Width)
		}
	}
}

// Package render draws chart frames as SVG with go-chart.
package render

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/XavierBriggs/fortuna/services/carviz/internal/chart"
	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
)

// ContentType of everything this package writes
const ContentType = "image/svg+xml"

const singlePointWidth = 1e-3

// SVG writes the frame to w. A frame with nothing to draw produces an empty
// canvas of the chart's size rather than an error.
func SVG(w io.Writer, f chart.Frame) error {
	var (
		buf bytes.Buffer
		err error
	)

	switch f.Chart {
	case models.ChartPie:
		err = pie(f).Render(gochart.SVG, &buf)
	case models.ChartBar:
		bc, ok := bar(f)
		if !ok {
			return Empty(w, f)
		}
		err = bc.Render(gochart.SVG, &buf)
	case models.ChartLine:
		lc, ok := line(f)
		if !ok {
			return Empty(w, f)
		}
		err = lc.Render(gochart.SVG, &buf)
	default:
		return fmt.Errorf("unknown chart %q", f.Chart)
	}

	if err != nil {
		if drawable(f) {
			return fmt.Errorf("rendering %s chart: %w", f.Chart, err)
		}
		return Empty(w, f)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// Empty writes a blank canvas sized like the frame
func Empty(w io.Writer, f chart.Frame) error {
	width, height := size(f)
	_, err := fmt.Fprintf(w,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" data-chart="%s" data-empty="true">`+
			`<rect width="100%%" height="100%%" fill="#ffffff"/></svg>`,
		width, height, f.Chart)
	return err
}

// drawable reports whether any primitive has a positive value
func drawable(f chart.Frame) bool {
	for _, p := range f.Primitives {
		if p.Shape.Value > 0 {
			return true
		}
	}
	return false
}

func size(f chart.Frame) (int, int) {
	return int(math.Round(f.Dimensions.Width)), int(math.Round(f.Dimensions.Height))
}

func color(hex string) drawing.Color {
	return drawing.ColorFromHex(hex)
}

func padding(f chart.Frame) gochart.Box {
	m := f.Dimensions.Margin
	return gochart.Box{
		Top:    int(m.Top),
		Left:   int(m.Left),
		Right:  int(m.Right),
		Bottom: int(m.Bottom),
	}
}

func ticks(a *chart.Axis) []gochart.Tick {
	if a == nil {
		return nil
	}
	out := make([]gochart.Tick, len(a.Ticks))
	for i, t := range a.Ticks {
		out[i] = gochart.Tick{Value: t.Value, Label: t.Label}
	}
	return out
}

// span keeps ticks that already cover a range. go-chart derives the axis
// range from explicit ticks, so a set with no spread is replaced by unlabelled
// ends at lo and hi around the ticks that fall between them.
func span(ts []gochart.Tick, lo, hi float64) []gochart.Tick {
	if len(ts) >= 2 && ts[0].Value != ts[len(ts)-1].Value {
		return ts
	}
	out := []gochart.Tick{{Value: lo}}
	for _, t := range ts {
		if t.Value > lo && t.Value < hi {
			out = append(out, t)
		}
	}
	return append(out, gochart.Tick{Value: hi})
}

func axisName(a *chart.Axis) string {
	if a == nil {
		return ""
	}
	return a.Label
}

// pie maps slices to values; the interpolated value drives the slice size so
// entering and exiting slices grow and shrink
func pie(f chart.Frame) gochart.PieChart {
	width, height := size(f)
	values := make([]gochart.Value, 0, len(f.Primitives))
	for _, p := range f.Primitives {
		if p.Shape.Value <= 0 {
			continue
		}
		values = append(values, gochart.Value{
			Label: p.Key,
			Value: p.Shape.Value,
			Style: gochart.Style{
				FillColor:   color(p.Color),
				StrokeColor: drawing.ColorWhite,
				StrokeWidth: 1,
			},
		})
	}

	// Zoom enlarges the drawing surface around a fixed canvas
	zoom := math.Max(f.Zoom, 1)
	return gochart.PieChart{
		Width:  int(float64(width) * zoom),
		Height: int(float64(height) * zoom),
		Values: values,
	}
}

func bar(f chart.Frame) (gochart.BarChart, bool) {
	width, height := size(f)
	bars := make([]gochart.Value, 0, len(f.Primitives))
	top := 0.0
	barWidth := 0.0
	for _, p := range f.Primitives {
		bars = append(bars, gochart.Value{
			Label: p.Key,
			Value: p.Shape.Value,
			Style: gochart.Style{FillColor: color(p.Color), StrokeColor: color(p.Color)},
		})
		top = math.Max(top, math.Max(p.Value, p.Shape.Value))
		barWidth = math.Max(barWidth, p.Shape.Width)
	}
	if len(bars) == 0 || top <= 0 {
		return gochart.BarChart{}, false
	}
	if t := lastTick(f.YAxis); t > top {
		top = t
	}

	return gochart.BarChart{
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: padding(f)},
		BarWidth:   int(barWidth),
		BarSpacing: int(barWidth * chart.BandPadding / (1 - chart.BandPadding)),
		XAxis:      gochart.Style{FontSize: 8},
		YAxis: gochart.YAxis{
			Name:  axisName(f.YAxis),
			Range: &gochart.ContinuousRange{Min: 0, Max: top},
			Ticks: ticks(f.YAxis),
		},
		Bars: bars,
	}, true
}

func line(f chart.Frame) (gochart.Chart, bool) {
	points := make([]chart.Primitive, 0, len(f.Primitives))
	for _, p := range f.Primitives {
		if !p.Exiting {
			points = append(points, p)
		}
	}
	if len(points) == 0 {
		return gochart.Chart{}, false
	}
	sort.Slice(points, func(i, j int) bool { return points[i].X < points[j].X })

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	minX, maxX, top := points[0].X, points[0].X, 0.0
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Shape.Value
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		top = math.Max(top, math.Max(p.Value, p.Shape.Value))
	}
	if minX == maxX {
		// go-chart needs two distinct x values; a single year is drawn as
		// a pair of coincident dots
		x, y := xs[0], ys[0]
		xs = []float64{x - singlePointWidth, x + singlePointWidth}
		ys = []float64{y, y}
		minX, maxX = minX-0.5, maxX+0.5
	}
	if t := lastTick(f.YAxis); t > top {
		top = t
	}
	if top <= 0 {
		top = 1
	}

	width, height := size(f)
	return gochart.Chart{
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: padding(f)},
		XAxis: gochart.XAxis{
			Name:  axisName(f.XAxis),
			Range: &gochart.ContinuousRange{Min: minX, Max: maxX},
			Ticks: span(ticks(f.XAxis), minX, maxX),
		},
		YAxis: gochart.YAxis{
			Name:  axisName(f.YAxis),
			Range: &gochart.ContinuousRange{Min: 0, Max: top},
			Ticks: span(ticks(f.YAxis), 0, top),
		},
		Series: []gochart.Series{
			gochart.ContinuousSeries{
				Name:    string(f.Chart),
				XValues: xs,
				YValues: ys,
				Style: gochart.Style{
					StrokeColor: color(chart.SteelBlue),
					StrokeWidth: 1.5,
					DotColor:    color(chart.SteelBlue),
					DotWidth:    3,
				},
			},
		},
	}, true
}

func lastTick(a *chart.Axis) float64 {
	if a == nil || len(a.Ticks) == 0 {
		return 0
	}
	return a.Ticks[len(a.Ticks)-1].Value
}

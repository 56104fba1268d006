package layout

import (
	"fmt"

	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
)

// Margin is the space between the SVG edge and the plot area
type Margin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Dimensions describes one chart's canvas
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Margin Margin  `json:"margin"`
}

// InnerWidth is the plot width inside the margins
func (d Dimensions) InnerWidth() float64 {
	return d.Width - d.Margin.Left - d.Margin.Right
}

// InnerHeight is the plot height inside the margins
func (d Dimensions) InnerHeight() float64 {
	return d.Height - d.Margin.Top - d.Margin.Bottom
}

// Validate rejects canvases with no drawable area
func (d Dimensions) Validate() error {
	if d.InnerWidth() <= 0 || d.InnerHeight() <= 0 {
		return fmt.Errorf("invalid dimensions %vx%v with margins %+v: no drawable area", d.Width, d.Height, d.Margin)
	}
	return nil
}

// Layout is the single source of chart sizes. Every scale, inverse scale and
// renderer reads its pixel extent from here.
type Layout struct {
	Pie  Dimensions `json:"pie"`
	Bar  Dimensions `json:"bar"`
	Line Dimensions `json:"line"`
}

// Default returns the stock dashboard sizes
func Default() Layout {
	return Layout{
		Pie: Dimensions{Width: 400, Height: 300},
		Bar: Dimensions{
			Width: 800, Height: 300,
			Margin: Margin{Top: 20, Right: 20, Bottom: 50, Left: 50},
		},
		Line: Dimensions{
			Width: 800, Height: 300,
			Margin: Margin{Top: 20, Right: 20, Bottom: 30, Left: 40},
		},
	}
}

// For returns the dimensions of a chart
func (l Layout) For(id models.ChartID) Dimensions {
	switch id {
	case models.ChartPie:
		return l.Pie
	case models.ChartBar:
		return l.Bar
	default:
		return l.Line
	}
}

// Validate checks every chart
func (l Layout) Validate() error {
	for _, id := range models.ChartIDs {
		if err := l.For(id).Validate(); err != nil {
			return fmt.Errorf("%s chart: %w", id, err)
		}
	}
	return nil
}

package models

import "fmt"

// CarRecord is one row of the automobile dataset.
// Only Manufacturer, ModelYear, MPG and Acceleration are required.
type CarRecord struct {
	Manufacturer string  `json:"Manufacturer"`
	ModelYear    int     `json:"Model Year"`
	MPG          float64 `json:"MPG"`
	Acceleration float64 `json:"Acceleration"`
	Model        string  `json:"Model,omitempty"`
	Cylinders    int     `json:"Cylinders,omitempty"`
	Horsepower   float64 `json:"Horsepower,omitempty"`
	Weight       float64 `json:"Weight,omitempty"`
	Origin       string  `json:"Origin,omitempty"`
}

// YearRange is an inclusive model-year filter. The zero value is unset.
type YearRange struct {
	Min    int  `json:"min"`
	Max    int  `json:"max"`
	Active bool `json:"active"`
}

// Unset returns the "no filter" range
func Unset() YearRange {
	return YearRange{}
}

// NewYearRange builds an active range, swapping bounds if needed so Min <= Max
func NewYearRange(a, b int) YearRange {
	if a > b {
		a, b = b, a
	}
	return YearRange{Min: a, Max: b, Active: true}
}

// IsSet reports whether the range filters anything
func (r YearRange) IsSet() bool {
	return r.Active
}

// Contains reports whether year falls inside the range. An unset range contains every year.
func (r YearRange) Contains(year int) bool {
	if !r.Active {
		return true
	}
	return year >= r.Min && year <= r.Max
}

// Clamp restricts an active range to [lo, hi]
func (r YearRange) Clamp(lo, hi int) YearRange {
	if !r.Active {
		return r
	}
	minY, maxY := r.Min, r.Max
	if minY < lo {
		minY = lo
	}
	if maxY > hi {
		maxY = hi
	}
	if minY > maxY {
		// Entirely outside the bounds: snap to the nearest edge
		if r.Max < lo {
			return NewYearRange(lo, lo)
		}
		return NewYearRange(hi, hi)
	}
	return NewYearRange(minY, maxY)
}

func (r YearRange) String() string {
	if !r.Active {
		return "unset"
	}
	return fmt.Sprintf("[%d,%d]", r.Min, r.Max)
}

// AggregateRow is one group of a grouped mean. K is a manufacturer name or a model year.
type AggregateRow[K comparable] struct {
	Key   K       `json:"key"`
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// ChartID names one of the three linked charts
type ChartID string

const (
	ChartPie  ChartID = "pie"
	ChartBar  ChartID = "bar"
	ChartLine ChartID = "line"
)

// ChartIDs lists the charts in registration order
var ChartIDs = []ChartID{ChartPie, ChartBar, ChartLine}

// ParseChartID validates a chart name from a URL or message
func ParseChartID(s string) (ChartID, bool) {
	switch ChartID(s) {
	case ChartPie, ChartBar, ChartLine:
		return ChartID(s), true
	}
	return "", false
}

// SelectionChanged is delivered to every selection listener after a write
type SelectionChanged struct {
	Range  YearRange `json:"range"`
	Source string    `json:"source,omitempty"` // chart or API that issued the write
	Seq    uint64    `json:"seq"`
}

package layout

import (
	"math"
	"strconv"
)

// Linear maps a continuous domain onto a pixel range
type Linear struct {
	D0, D1 float64
	R0, R1 float64
}

// NewLinear builds a linear scale. A zero-width domain is widened by 0.5 on each side.
func NewLinear(d0, d1, r0, r1 float64) Linear {
	if d0 == d1 {
		d0, d1 = d0-0.5, d1+0.5
	}
	return Linear{D0: d0, D1: d1, R0: r0, R1: r1}
}

// Scale maps a domain value to pixels
func (s Linear) Scale(v float64) float64 {
	t := (v - s.D0) / (s.D1 - s.D0)
	return s.R0 + t*(s.R1-s.R0)
}

// Invert maps pixels back to the domain
func (s Linear) Invert(px float64) float64 {
	t := (px - s.R0) / (s.R1 - s.R0)
	return s.D0 + t*(s.D1-s.D0)
}

// ClampPixel restricts px to the scale's range
func (s Linear) ClampPixel(px float64) float64 {
	lo, hi := math.Min(s.R0, s.R1), math.Max(s.R0, s.R1)
	return math.Max(lo, math.Min(hi, px))
}

// Ticks returns roughly count evenly spaced round values within the domain
func (s Linear) Ticks(count int) []float64 {
	lo, hi := math.Min(s.D0, s.D1), math.Max(s.D0, s.D1)
	if count <= 0 || lo == hi {
		return []float64{lo}
	}

	step := tickStep(lo, hi, count)
	first := math.Ceil(lo/step) * step

	var ticks []float64
	for i := 0; ; i++ {
		v := first + float64(i)*step
		if v > hi+step*1e-9 {
			break
		}
		ticks = append(ticks, math.Round(v/step)*step)
	}
	return ticks
}

func tickStep(lo, hi float64, count int) float64 {
	step0 := (hi - lo) / float64(count)
	step1 := math.Pow(10, math.Floor(math.Log10(step0)))
	ratio := step0 / step1
	switch {
	case ratio >= math.Sqrt(50):
		step1 *= 10
	case ratio >= math.Sqrt(10):
		step1 *= 5
	case ratio >= math.Sqrt(2):
		step1 *= 2
	}
	return step1
}

// Band lays ordered keys out as equal-width bands with padding
type Band struct {
	keys      []string
	index     map[string]int
	r0, r1    float64
	padding   float64
	step      float64
	bandwidth float64
	start     float64
}

// NewBand builds a band scale; padding applies both between and around bands
func NewBand(keys []string, r0, r1, padding float64) Band {
	b := Band{
		keys:    keys,
		index:   make(map[string]int, len(keys)),
		r0:      r0,
		r1:      r1,
		padding: padding,
	}
	for i, k := range keys {
		b.index[k] = i
	}

	n := float64(len(keys))
	if n == 0 {
		return b
	}
	b.step = (r1 - r0) / math.Max(1, n-padding+2*padding)
	b.bandwidth = b.step * (1 - padding)
	b.start = r0 + ((r1-r0)-b.step*(n-padding))*0.5
	return b
}

// Position returns the left edge of key's band
func (b Band) Position(key string) (float64, bool) {
	i, ok := b.index[key]
	if !ok {
		return 0, false
	}
	return b.start + b.step*float64(i), true
}

// Bandwidth is the width of every band
func (b Band) Bandwidth() float64 {
	return b.bandwidth
}

// Keys returns the domain in order
func (b Band) Keys() []string {
	return b.keys
}

// InvertRange returns the keys whose bands intersect [px0, px1]
func (b Band) InvertRange(px0, px1 float64) []string {
	if px0 > px1 {
		px0, px1 = px1, px0
	}
	var hits []string
	for i, k := range b.keys {
		x := b.start + b.step*float64(i)
		if x+b.bandwidth >= px0 && x <= px1 {
			hits = append(hits, k)
		}
	}
	return hits
}

// FormatTick renders a tick value without trailing zeros
func FormatTick(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Package transition interpolates chart geometry between two renders.
// Each chart owns one Animator; starting a transition abandons whatever the
// previous one was doing and continues from its current position.
package transition

import (
	"sync"
	"time"
)

// Shape is the animatable geometry of one primitive. Charts use the fields
// they need: bars use the box, slices the angles, points X/Y.
type Shape struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	StartAngle float64 `json:"startAngle"`
	EndAngle   float64 `json:"endAngle"`
	Value      float64 `json:"value"`
}

// Lerp interpolates every field of a toward b
func Lerp(a, b Shape, t float64) Shape {
	mix := func(x, y float64) float64 { return x + (y-x)*t }
	return Shape{
		X:          mix(a.X, b.X),
		Y:          mix(a.Y, b.Y),
		Width:      mix(a.Width, b.Width),
		Height:     mix(a.Height, b.Height),
		StartAngle: mix(a.StartAngle, b.StartAngle),
		EndAngle:   mix(a.EndAngle, b.EndAngle),
		Value:      mix(a.Value, b.Value),
	}
}

// EaseCubic is cubic in-out easing over [0,1]
func EaseCubic(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}

// Target is where a primitive should end up. Collapsed is the zero-size shape
// it grows from when entering, or shrinks to when exiting.
type Target struct {
	Key       string
	Shape     Shape
	Collapsed Shape
}

// Frame is one primitive at a point in time
type Frame struct {
	Key     string `json:"key"`
	Shape   Shape  `json:"shape"`
	Exiting bool   `json:"exiting,omitempty"`
}

type item struct {
	key     string
	from    Shape
	to      Shape
	exiting bool
}

// Animator tracks the in-flight transition of a single chart
type Animator struct {
	mu       sync.Mutex
	duration time.Duration
	id       uint64
	started  time.Time
	settled  bool
	items    []item
}

// NewAnimator creates an animator; a zero duration makes every change immediate
func NewAnimator(duration time.Duration) *Animator {
	return &Animator{duration: duration}
}

// Jump places primitives at their targets without animating
func (a *Animator) Jump(now time.Time, targets []Target) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.id++
	a.started = now
	a.settled = true
	a.items = make([]item, 0, len(targets))
	for _, t := range targets {
		a.items = append(a.items, item{key: t.Key, from: t.Shape, to: t.Shape})
	}
	return a.id
}

// Start begins a transition toward targets, removing exits. Any transition
// still running is superseded: primitives continue from where it left them.
func (a *Animator) Start(now time.Time, targets []Target, exits []Target) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	current := make(map[string]Shape, len(a.items))
	for _, it := range a.items {
		if it.exiting && a.progressLocked(now) >= 1 {
			continue
		}
		current[it.key] = Lerp(it.from, it.to, EaseCubic(a.progressLocked(now)))
	}

	a.id++
	a.started = now
	a.settled = false

	items := make([]item, 0, len(targets)+len(exits))
	for _, t := range targets {
		from, ok := current[t.Key]
		if !ok {
			from = t.Collapsed
		}
		items = append(items, item{key: t.Key, from: from, to: t.Shape})
	}
	for _, t := range exits {
		from, ok := current[t.Key]
		if !ok {
			continue
		}
		items = append(items, item{key: t.Key, from: from, to: t.Collapsed, exiting: true})
	}
	a.items = items
	return a.id
}

// At returns every primitive's geometry at now. Exiting primitives are
// dropped once the transition completes.
func (a *Animator) At(now time.Time) []Frame {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.progressLocked(now)
	eased := EaseCubic(p)

	frames := make([]Frame, 0, len(a.items))
	for _, it := range a.items {
		if it.exiting && p >= 1 {
			continue
		}
		frames = append(frames, Frame{
			Key:     it.key,
			Shape:   Lerp(it.from, it.to, eased),
			Exiting: it.exiting,
		})
	}
	return frames
}

// Active reports whether a transition is still running at now
func (a *Animator) Active(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progressLocked(now) < 1
}

// ID identifies the latest transition
func (a *Animator) ID() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.id
}

// Duration returns the configured transition length
func (a *Animator) Duration() time.Duration {
	return a.duration
}

func (a *Animator) progressLocked(now time.Time) float64 {
	if a.settled || a.duration <= 0 {
		return 1
	}
	elapsed := now.Sub(a.started)
	if elapsed <= 0 {
		return 0
	}
	p := float64(elapsed) / float64(a.duration)
	if p > 1 {
		return 1
	}
	return p
}

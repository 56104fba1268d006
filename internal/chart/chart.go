// Package chart implements the three linked chart components. Each chart
// owns its scales, its keyed primitives and one Animator, reads the shared
// selection through OnSelectionChanged and writes it through a Selector when
// a gesture lands on it.
package chart

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/carviz/internal/layout"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/reconcile"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/transition"
	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
)

var (
	// ErrNotRendered is returned by every operation called before Render
	ErrNotRendered = errors.New("chart not rendered")

	// ErrUnknownKey is returned when a hover or click names no visible datum
	ErrUnknownKey = errors.New("unknown key")

	// ErrUnsupportedGesture is returned when a chart does not handle a gesture
	ErrUnsupportedGesture = errors.New("gesture not supported by chart")

	// ErrInvalidZoom is returned for non-positive zoom factors
	ErrInvalidZoom = errors.New("zoom factor must be positive")
)

// State of a chart's lifecycle
type State int

const (
	Unrendered State = iota
	Rendered
	Updating
)

func (s State) String() string {
	switch s {
	case Rendered:
		return "rendered"
	case Updating:
		return "updating"
	default:
		return "unrendered"
	}
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name; unknown names are Unrendered
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "rendered":
		*s = Rendered
	case "updating":
		*s = Updating
	default:
		*s = Unrendered
	}
	return nil
}

// Dataset is the read-only view of the loaded data a chart needs
type Dataset interface {
	All() []models.CarRecord
	YearBounds() (int, int)
	Manufacturers() []string
	YearsFor(manufacturers ...string) models.YearRange
}

// Selector is the write side of the shared selection
type Selector interface {
	SetFrom(source string, r models.YearRange)
}

// Datum is one aggregate row as a chart sees it
type Datum struct {
	Key   string  `json:"key"`
	X     float64 `json:"x,omitempty"` // model year on the line chart
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// Aggregator computes a chart's rows for the records inside r
type Aggregator func(records []models.CarRecord, r models.YearRange) ([]Datum, error)

// Primitive is one drawable mark: a slice, a bar or a line vertex
type Primitive struct {
	Datum
	Shape   transition.Shape `json:"shape"`
	Color   string           `json:"color"`
	Exiting bool             `json:"exiting,omitempty"`
}

// Tick is one labelled axis position
type Tick struct {
	Value    float64 `json:"value"`
	Label    string  `json:"label"`
	Position float64 `json:"position"`
}

// Axis is an axis as currently laid out
type Axis struct {
	Label string `json:"label"`
	Ticks []Tick `json:"ticks"`
}

// Frame is everything needed to draw a chart at one instant
type Frame struct {
	Chart      models.ChartID    `json:"chart"`
	State      State             `json:"state"`
	Selection  models.YearRange  `json:"selection"`
	Dimensions layout.Dimensions `json:"dimensions"`
	Primitives []Primitive       `json:"primitives"`
	XAxis      *Axis             `json:"xAxis,omitempty"`
	YAxis      *Axis             `json:"yAxis,omitempty"`
	Zoom       float64           `json:"zoom,omitempty"`
	Transition uint64            `json:"transition"`
	Animating  bool              `json:"animating"`
	Error      string            `json:"error,omitempty"`
}

// Update describes what a selection change did to one chart
type Update struct {
	Chart      models.ChartID         `json:"chart"`
	Selection  models.YearRange       `json:"selection"`
	Plan       reconcile.Plan[string] `json:"plan"`
	Transition uint64                 `json:"transition"`
}

// Tooltip is the hover content for one datum
type Tooltip struct {
	Chart models.ChartID `json:"chart"`
	Key   string         `json:"key"`
	Label string         `json:"label"`
	Value float64        `json:"value"`
	Count int            `json:"count"`
	Text  string         `json:"text"`
}

// Chart is the behaviour shared by the pie, bar and line charts
type Chart interface {
	ID() models.ChartID
	State() State
	Render(ds Dataset) error
	OnSelectionChanged(ev models.SelectionChanged) (Update, error)
	Hover(key string) (Tooltip, error)
	Frame(now time.Time) (Frame, error)
	LastError() error
}

// Brusher is implemented by charts with a brushable x axis
type Brusher interface {
	Brush(px0, px1 float64) (models.YearRange, error)
}

// Zoomer is implemented by charts that zoom
type Zoomer interface {
	Zoom(factor float64) (float64, error)
}

// StateHook observes state transitions
type StateHook func(id models.ChartID, from, to State)

type options struct {
	clock      func() time.Time
	duration   time.Duration
	aggregator Aggregator
	hook       StateHook
}

// Option configures a chart
type Option func(*options)

// WithClock replaces time.Now for transitions
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithTransition sets the transition duration; zero disables animation
func WithTransition(d time.Duration) Option {
	return func(o *options) { o.duration = d }
}

// WithAggregator replaces the chart's default aggregation
func WithAggregator(a Aggregator) Option {
	return func(o *options) { o.aggregator = a }
}

// WithStateHook registers an observer for state transitions
func WithStateHook(h StateHook) Option {
	return func(o *options) { o.hook = h }
}

// DefaultTransition matches the dashboard's update animation
const DefaultTransition = 500 * time.Millisecond

// geometry is a laid-out set of rows
type geometry struct {
	targets []transition.Target
	x, y    *Axis
}

// kind is what differs between the three charts
type kind interface {
	geometry(rows []Datum) (geometry, error)
	color(key string) string
	bind(ds Dataset)
}

// base holds the lifecycle and reconcile logic. All fields are guarded by mu.
type base struct {
	mu sync.Mutex

	id        models.ChartID
	measure   string
	dims      layout.Dimensions
	kind      kind
	selector  Selector
	aggregate Aggregator
	anim      *transition.Animator
	clock     func() time.Time
	hook      StateHook

	state     State
	dataset   Dataset
	selection models.YearRange
	rows      []Datum
	data      map[string]Datum
	geo       geometry
	lastErr   error
}

func newBase(id models.ChartID, measure string, dims layout.Dimensions, sel Selector, agg Aggregator, opts []Option) *base {
	o := options{
		clock:      time.Now,
		duration:   DefaultTransition,
		aggregator: agg,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &base{
		id:        id,
		measure:   measure,
		dims:      dims,
		selector:  sel,
		aggregate: o.aggregator,
		anim:      transition.NewAnimator(o.duration),
		clock:     o.clock,
		hook:      o.hook,
		data:      make(map[string]Datum),
	}
}

// ID names the chart
func (b *base) ID() models.ChartID {
	return b.id
}

// Dimensions returns the chart's canvas
func (b *base) Dimensions() layout.Dimensions {
	return b.dims
}

// State returns the lifecycle state
func (b *base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// LastError returns the error of the most recent failed update, or nil
func (b *base) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Render draws the chart from the full dataset with no selection applied.
// Rendering again resets the chart to the new dataset.
func (b *base) Render(ds Dataset) error {
	if ds == nil {
		return fmt.Errorf("render %s: nil dataset", b.id)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.kind.bind(ds)
	rows, err := b.aggregate(ds.All(), models.Unset())
	if err != nil {
		return fmt.Errorf("render %s: %w", b.id, err)
	}
	geo, err := b.kind.geometry(rows)
	if err != nil {
		return fmt.Errorf("render %s: %w", b.id, err)
	}

	b.dataset = ds
	b.selection = models.Unset()
	b.rows = rows
	b.geo = geo
	b.data = indexRows(rows, nil, nil)
	b.lastErr = nil
	b.anim.Jump(b.clock(), geo.targets)
	b.setState(Rendered)
	return nil
}

// OnSelectionChanged recomputes the chart over the selected years and starts
// a transition toward the new layout. On failure the previous primitives stay
// on screen and the error is kept for LastError.
func (b *base) OnSelectionChanged(ev models.SelectionChanged) (Update, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Unrendered {
		return Update{}, ErrNotRendered
	}

	b.setState(Updating)
	defer b.setState(Rendered)

	rows, err := b.aggregate(b.dataset.All(), ev.Range)
	if err == nil {
		var geo geometry
		if geo, err = b.kind.geometry(rows); err == nil {
			b.selection = ev.Range
			return b.applyLocked(rows, geo), nil
		}
	}

	b.lastErr = fmt.Errorf("update %s for %s: %w", b.id, ev.Range, err)
	return Update{}, b.lastErr
}

// applyLocked reconciles rows against what is on screen and animates the change
func (b *base) applyLocked(rows []Datum, geo geometry) Update {
	plan := reconcile.Diff(datumKeys(b.rows), datumKeys(rows))

	exits := make([]transition.Target, 0, len(plan.Exit))
	for _, key := range plan.Exit {
		for _, t := range b.geo.targets {
			if t.Key == key {
				exits = append(exits, t)
				break
			}
		}
	}

	id := b.anim.Start(b.clock(), geo.targets, exits)

	b.data = indexRows(rows, plan.Exit, b.data)
	b.rows = rows
	b.geo = geo
	b.lastErr = nil

	return Update{
		Chart:      b.id,
		Selection:  b.selection,
		Plan:       plan,
		Transition: id,
	}
}

// relayoutLocked re-runs geometry over the current rows (zoom)
func (b *base) relayoutLocked() error {
	geo, err := b.kind.geometry(b.rows)
	if err != nil {
		return err
	}
	b.applyLocked(b.rows, geo)
	return nil
}

// Hover returns the tooltip for a visible datum
func (b *base) Hover(key string) (Tooltip, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Unrendered {
		return Tooltip{}, ErrNotRendered
	}
	d, ok := b.rowLocked(key)
	if !ok {
		return Tooltip{}, fmt.Errorf("%w: %q on %s chart", ErrUnknownKey, key, b.id)
	}
	return Tooltip{
		Chart: b.id,
		Key:   d.Key,
		Label: d.Key,
		Value: d.Value,
		Count: d.Count,
		Text:  fmt.Sprintf("%s\n%s: %.2f", d.Key, b.measure, d.Value),
	}, nil
}

// Frame returns the chart's primitives as they appear at now
func (b *base) Frame(now time.Time) (Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Unrendered {
		return Frame{}, ErrNotRendered
	}

	frames := b.anim.At(now)
	prims := make([]Primitive, 0, len(frames))
	for _, f := range frames {
		prims = append(prims, Primitive{
			Datum:   b.data[f.Key],
			Shape:   f.Shape,
			Color:   b.kind.color(f.Key),
			Exiting: f.Exiting,
		})
	}

	frame := Frame{
		Chart:      b.id,
		State:      b.state,
		Selection:  b.selection,
		Dimensions: b.dims,
		Primitives: prims,
		XAxis:      b.geo.x,
		YAxis:      b.geo.y,
		Transition: b.anim.ID(),
		Animating:  b.anim.Active(now),
	}
	if b.lastErr != nil {
		frame.Error = b.lastErr.Error()
	}
	return frame, nil
}

// Rows returns the current aggregate, without exiting rows
func (b *base) Rows() []Datum {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Datum, len(b.rows))
	copy(out, b.rows)
	return out
}

func (b *base) rowLocked(key string) (Datum, bool) {
	for _, d := range b.rows {
		if d.Key == key {
			return d, true
		}
	}
	return Datum{}, false
}

// boundsLocked returns the dataset's year bounds
func (b *base) boundsLocked() (int, int) {
	return b.dataset.YearBounds()
}

func (b *base) setState(s State) {
	if b.state == s {
		return
	}
	from := b.state
	b.state = s
	if b.hook != nil {
		b.hook(b.id, from, s)
	}
}

// submit writes r to the selection, or clears it when r is unset. It must be
// called without holding mu: listeners include this chart.
func (b *base) submit(r models.YearRange) models.YearRange {
	if b.selector != nil {
		b.selector.SetFrom(string(b.id), r)
	}
	return r
}

func datumKeys(rows []Datum) []string {
	return reconcile.Keys(rows, func(d Datum) string { return d.Key })
}

// indexRows maps keys to data, carrying over exiting rows from prev so their
// labels survive until the exit transition ends
func indexRows(rows []Datum, exiting []string, prev map[string]Datum) map[string]Datum {
	out := make(map[string]Datum, len(rows)+len(exiting))
	for _, k := range exiting {
		if d, ok := prev[k]; ok {
			out[k] = d
		}
	}
	for _, d := range rows {
		out[d.Key] = d
	}
	return out
}

// Package dashboard links the pie, bar and line charts through one shared
// selection and publishes every change to connected clients.
package dashboard

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/carviz/internal/chart"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/datastore"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/layout"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/reconcile"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/render"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/selection"
	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
)

// ErrUnknownChart is returned for a chart name that is not pie, bar or line
var ErrUnknownChart = errors.New("unknown chart")

// Source labels for selection writes that do not come from a chart gesture
const (
	SourceAPI       = "api"
	SourceWebSocket = "ws"
)

// Publisher receives every message the dashboard emits
type Publisher interface {
	Broadcast(msg models.ServerMessage)
}

// DatasetInfo summarises the loaded data
type DatasetInfo struct {
	Source        string   `json:"source"`
	Records       int      `json:"records"`
	MinYear       int      `json:"min_year"`
	MaxYear       int      `json:"max_year"`
	Manufacturers []string `json:"manufacturers"`
}

// ChartUpdate is the payload of a chart_update message
type ChartUpdate struct {
	Seq    uint64       `json:"seq"`
	Update chart.Update `json:"update"`
	Frame  chart.Frame  `json:"frame"`
}

// Snapshot is the full dashboard state sent to a client on connect
type Snapshot struct {
	Dataset   DatasetInfo      `json:"dataset"`
	Selection models.YearRange `json:"selection"`
	Seq       uint64           `json:"seq"`
	Charts    []chart.Frame    `json:"charts"`
}

// Option configures a Dashboard
type Option func(*Dashboard)

// WithPublisher sets where selection and chart updates are sent
func WithPublisher(p Publisher) Option {
	return func(d *Dashboard) { d.publisher = p }
}

// WithClock replaces time.Now for transitions and message timestamps
func WithClock(clock func() time.Time) Option {
	return func(d *Dashboard) { d.clock = clock }
}

// WithTransition sets the chart transition duration
func WithTransition(duration time.Duration) Option {
	return func(d *Dashboard) { d.duration = duration }
}

// Dashboard owns the selection store and the three charts.
// mu serialises gestures; selection listeners run inside the gesture that
// triggered them and never take mu themselves.
type Dashboard struct {
	mu sync.Mutex

	data      *datastore.Store
	layout    layout.Layout
	selection *selection.Store
	publisher Publisher
	clock     func() time.Time
	duration  time.Duration

	pie    *chart.Pie
	bar    *chart.Bar
	line   *chart.Line
	charts map[models.ChartID]chart.Chart

	unsubscribe []func()
}

// New builds the charts over data, links them and renders them unfiltered
func New(data *datastore.Store, l layout.Layout, opts ...Option) (*Dashboard, error) {
	if data == nil {
		return nil, fmt.Errorf("dashboard requires a dataset")
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}

	d := &Dashboard{
		data:      data,
		layout:    l,
		selection: selection.NewStore(),
		clock:     time.Now,
		duration:  chart.DefaultTransition,
	}
	for _, opt := range opts {
		opt(d)
	}

	chartOpts := []chart.Option{
		chart.WithClock(d.clock),
		chart.WithTransition(d.duration),
	}
	d.pie = chart.NewPie(l.Pie, d.selection, chartOpts...)
	d.bar = chart.NewBar(l.Bar, d.selection, chartOpts...)
	d.line = chart.NewLine(l.Line, d.selection, chartOpts...)
	d.charts = map[models.ChartID]chart.Chart{
		models.ChartPie:  d.pie,
		models.ChartBar:  d.bar,
		models.ChartLine: d.line,
	}

	for _, id := range models.ChartIDs {
		if err := d.charts[id].Render(data); err != nil {
			return nil, err
		}
	}

	d.unsubscribe = append(d.unsubscribe, d.selection.Subscribe(d.announce))
	for _, id := range models.ChartIDs {
		c := d.charts[id]
		d.unsubscribe = append(d.unsubscribe, d.selection.Subscribe(func(ev models.SelectionChanged) {
			d.update(c, ev)
		}))
	}

	return d, nil
}

// Close detaches the charts from the selection
func (d *Dashboard) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, fn := range d.unsubscribe {
		fn()
	}
	d.unsubscribe = nil
}

func (d *Dashboard) announce(ev models.SelectionChanged) {
	metrics.SelectionChanges.WithLabelValues(metrics.SourceLabel(ev.Source)).Inc()
	d.publish(models.MessageTypeSelectionChanged, ev)
}

func (d *Dashboard) update(c chart.Chart, ev models.SelectionChanged) {
	label := string(c.ID())
	start := time.Now()
	upd, err := c.OnSelectionChanged(ev)
	metrics.ChartUpdateDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ChartUpdateErrors.WithLabelValues(label).Inc()
		fmt.Printf("⚠️  %v\n", err)
		return
	}
	metrics.ChartUpdates.WithLabelValues(label).Inc()
	d.publishFrame(c, ev.Seq, upd)
}

func (d *Dashboard) publishFrame(c chart.Chart, seq uint64, upd chart.Update) {
	if d.publisher == nil {
		return
	}
	frame, err := c.Frame(d.clock())
	if err != nil {
		return
	}
	d.publish(models.MessageTypeChartUpdate, ChartUpdate{Seq: seq, Update: upd, Frame: frame})
}

func (d *Dashboard) publish(msgType string, payload interface{}) {
	if d.publisher == nil {
		return
	}
	d.publisher.Broadcast(models.ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: d.clock(),
	})
}

func (d *Dashboard) lookup(id models.ChartID) (chart.Chart, error) {
	c, ok := d.charts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChart, id)
	}
	return c, nil
}

// Brush applies a brush gesture in plot-area pixels to a chart's x axis.
// Only the bar and line charts are brushable.
func (d *Dashboard) Brush(id models.ChartID, px0, px1 float64) (models.YearRange, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, err := d.lookup(id)
	if err != nil {
		return models.Unset(), err
	}
	b, ok := c.(chart.Brusher)
	if !ok {
		return models.Unset(), fmt.Errorf("%w: brush on %s", chart.ErrUnsupportedGesture, id)
	}
	metrics.Gestures.WithLabelValues(string(id), "brush").Inc()
	return b.Brush(px0, px1)
}

// SelectSlice applies a click on a pie slice
func (d *Dashboard) SelectSlice(key string) (models.YearRange, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	metrics.Gestures.WithLabelValues(string(models.ChartPie), "select").Inc()
	return d.pie.Select(key)
}

// Zoom scales the pie chart by factor and returns the resulting zoom level
func (d *Dashboard) Zoom(factor float64) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	metrics.Gestures.WithLabelValues(string(models.ChartPie), "zoom").Inc()
	before := d.pie.ZoomLevel()
	level, err := d.pie.Zoom(factor)
	if err != nil {
		return level, err
	}
	if level != before {
		d.publishZoom()
	}
	return level, nil
}

// ZoomDirection applies the zoom-in or zoom-out step
func (d *Dashboard) ZoomDirection(direction string) (float64, error) {
	switch direction {
	case "in":
		return d.Zoom(chart.ZoomInStep)
	case "out":
		return d.Zoom(chart.ZoomOutStep)
	default:
		return 0, fmt.Errorf("%w: direction %q", chart.ErrInvalidZoom, direction)
	}
}

// ZoomChart routes a zoom to a named chart; only the pie zooms
func (d *Dashboard) ZoomChart(id models.ChartID, req models.ZoomRequest) (float64, error) {
	c, err := d.lookup(id)
	if err != nil {
		return 0, err
	}
	if _, ok := c.(chart.Zoomer); !ok {
		return 0, fmt.Errorf("%w: zoom on %s", chart.ErrUnsupportedGesture, id)
	}
	if req.Factor != 0 {
		return d.Zoom(req.Factor)
	}
	return d.ZoomDirection(req.Direction)
}

// publishZoom sends the relaid-out pie; every visible slice updates in place
func (d *Dashboard) publishZoom() {
	frame, err := d.pie.Frame(d.clock())
	if err != nil {
		return
	}
	keys := make([]string, 0, len(frame.Primitives))
	for _, p := range frame.Primitives {
		if !p.Exiting {
			keys = append(keys, p.Key)
		}
	}
	d.publish(models.MessageTypeChartUpdate, ChartUpdate{
		Seq: d.selection.Seq(),
		Update: chart.Update{
			Chart:      models.ChartPie,
			Selection:  frame.Selection,
			Plan:       reconcile.Plan[string]{Update: keys},
			Transition: frame.Transition,
		},
		Frame: frame,
	})
}

// SetSelection writes a year range directly. The range is not clamped.
func (d *Dashboard) SetSelection(r models.YearRange) models.YearRange {
	return d.SetSelectionFrom(SourceAPI, r)
}

// SetSelectionFrom is SetSelection with the writer recorded on the event
func (d *Dashboard) SetSelectionFrom(source string, r models.YearRange) models.YearRange {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.selection.SetFrom(source, r)
	return d.selection.Get()
}

// ClearSelection removes the year filter from every chart
func (d *Dashboard) ClearSelection() {
	d.SetSelectionFrom(SourceAPI, models.Unset())
}

// Selection returns the current year range
func (d *Dashboard) Selection() models.YearRange {
	return d.selection.Get()
}

// Hover returns tooltip content for a datum on a chart
func (d *Dashboard) Hover(id models.ChartID, key string) (chart.Tooltip, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, err := d.lookup(id)
	if err != nil {
		return chart.Tooltip{}, err
	}
	metrics.Gestures.WithLabelValues(string(id), "hover").Inc()
	return c.Hover(key)
}

// Frame returns a chart as it looks now
func (d *Dashboard) Frame(id models.ChartID) (chart.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, err := d.lookup(id)
	if err != nil {
		return chart.Frame{}, err
	}
	return c.Frame(d.clock())
}

// SVG renders a chart as it looks now
func (d *Dashboard) SVG(w io.Writer, id models.ChartID) error {
	frame, err := d.Frame(id)
	if err != nil {
		return err
	}
	return render.SVG(w, frame)
}

// Snapshot returns the dataset summary, selection and every chart frame
func (d *Dashboard) Snapshot() (Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := Snapshot{
		Dataset:   d.info(),
		Selection: d.selection.Get(),
		Seq:       d.selection.Seq(),
		Charts:    make([]chart.Frame, 0, len(models.ChartIDs)),
	}
	now := d.clock()
	for _, id := range models.ChartIDs {
		frame, err := d.charts[id].Frame(now)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Charts = append(snap.Charts, frame)
	}
	return snap, nil
}

// Dataset summarises the loaded data
func (d *Dashboard) Dataset() DatasetInfo {
	return d.info()
}

func (d *Dashboard) info() DatasetInfo {
	lo, hi := d.data.YearBounds()
	return DatasetInfo{
		Source:        d.data.Source(),
		Records:       d.data.Len(),
		MinYear:       lo,
		MaxYear:       hi,
		Manufacturers: d.data.Manufacturers(),
	}
}

// Layout returns the chart sizes in use
func (d *Dashboard) Layout() layout.Layout {
	return d.layout
}

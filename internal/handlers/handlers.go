package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/XavierBriggs/fortuna/services/carviz/internal/chart"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/client"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/dashboard"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/hub"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/render"
	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are restricted by the CORS middleware on the HTTP API only
		return true
	},
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	dash *dashboard.Dashboard
	hub  *hub.Hub
	ctx  context.Context
}

// NewHandler creates a new handler. ctx bounds the lifetime of websocket
// clients, which outlive the request that opened them.
func NewHandler(ctx context.Context, dash *dashboard.Dashboard, h *hub.Hub) *Handler {
	return &Handler{
		dash: dash,
		hub:  h,
		ctx:  ctx,
	}
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	info := h.dash.Dataset()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"timestamp":      time.Now().UTC(),
		"service":        "carviz",
		"records":        info.Records,
		"active_clients": h.hub.GetClientCount(),
	})
}

// GetHubMetrics returns the websocket hub counters
func (h *Handler) GetHubMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.hub.GetMetrics())
}

// GetDataset returns the record count, year bounds and manufacturers
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.dash.Dataset())
}

// GetSelection returns the current year range
func (h *Handler) GetSelection(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"selection": h.dash.Selection(),
	})
}

// PutSelection sets the year range directly
// Body: {"min": 1972, "max": 1976}
func (h *Handler) PutSelection(w http.ResponseWriter, r *http.Request) {
	var req models.SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid selection body", err)
		return
	}

	sel := h.dash.SetSelection(models.NewYearRange(req.Min, req.Max))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"selection": sel,
	})
}

// DeleteSelection clears the year filter
func (h *Handler) DeleteSelection(w http.ResponseWriter, r *http.Request) {
	h.dash.ClearSelection()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"selection": h.dash.Selection(),
	})
}

// GetCharts returns a snapshot of every chart
func (h *Handler) GetCharts(w http.ResponseWriter, r *http.Request) {
	snap, err := h.dash.Snapshot()
	if err != nil {
		respondChartError(w, "failed to build snapshot", err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// GetChart returns one chart's current frame
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	id, ok := chartParam(w, r)
	if !ok {
		return
	}

	frame, err := h.dash.Frame(id)
	if err != nil {
		respondChartError(w, "failed to read chart", err)
		return
	}
	respondJSON(w, http.StatusOK, frame)
}

// GetChartSVG renders one chart as SVG
func (h *Handler) GetChartSVG(w http.ResponseWriter, r *http.Request) {
	id, ok := chartParam(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.dash.SVG(&buf, id); err != nil {
		respondChartError(w, "failed to render chart", err)
		return
	}

	w.Header().Set("Content-Type", render.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		fmt.Printf("error writing svg: %v\n", err)
	}
}

// GetTooltip returns hover content
// Query params: key
func (h *Handler) GetTooltip(w http.ResponseWriter, r *http.Request) {
	id, ok := chartParam(w, r)
	if !ok {
		return
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		respondError(w, http.StatusBadRequest, "key is required", nil)
		return
	}

	tip, err := h.dash.Hover(id, key)
	if err != nil {
		respondChartError(w, "failed to read tooltip", err)
		return
	}
	respondJSON(w, http.StatusOK, tip)
}

// Brush applies a brush gesture
// Body: {"x0": 148, "x1": 296}
func (h *Handler) Brush(w http.ResponseWriter, r *http.Request) {
	id, ok := chartParam(w, r)
	if !ok {
		return
	}

	var req models.BrushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid brush body", err)
		return
	}

	sel, err := h.dash.Brush(id, req.X0, req.X1)
	if err != nil {
		respondChartError(w, "brush rejected", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"selection": sel,
	})
}

// Select applies a click on a pie slice
// Body: {"key": "ford"}
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	id, ok := chartParam(w, r)
	if !ok {
		return
	}
	if id != models.ChartPie {
		respondChartError(w, "select rejected", fmt.Errorf("%w: select on %s", chart.ErrUnsupportedGesture, id))
		return
	}

	var req models.SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		respondError(w, http.StatusBadRequest, "key is required", err)
		return
	}

	sel, err := h.dash.SelectSlice(req.Key)
	if err != nil {
		respondChartError(w, "select rejected", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"selection": sel,
	})
}

// Zoom scales the pie chart
// Body: {"factor": 1.2} or {"direction": "in"}
func (h *Handler) Zoom(w http.ResponseWriter, r *http.Request) {
	id, ok := chartParam(w, r)
	if !ok {
		return
	}

	var req models.ZoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid zoom body", err)
		return
	}

	level, err := h.dash.ZoomChart(id, req)
	if err != nil {
		respondChartError(w, "zoom rejected", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"zoom": level,
	})
}

// HandleWebSocket upgrades HTTP connections to WebSocket. The client is
// registered before the snapshot is taken so no broadcast falls between the
// two; updates queued ahead of the snapshot carry a seq no newer than it.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		fmt.Printf("⚠️  WebSocket upgrade error: %v\n", err)
		return
	}

	clientID := uuid.New().String()
	c := client.NewClient(clientID, conn, h.hub, h.dash)
	h.hub.Register(c)

	snap, err := h.dash.Snapshot()
	if err != nil {
		fmt.Printf("❌ Snapshot for %s failed: %v\n", clientID, err)
		h.hub.Unregister(c)
		conn.Close()
		return
	}
	c.TrySend(models.ServerMessage{
		Type:      models.MessageTypeSnapshot,
		Payload:   snap,
		Timestamp: time.Now(),
	})

	// Start client pumps (use handler context, not request context)
	go c.WritePump(h.ctx)
	go c.ReadPump(h.ctx)

	fmt.Printf("✓ WebSocket connection established: %s\n", clientID)
}

// chartParam reads and validates the {chart} URL parameter
func chartParam(w http.ResponseWriter, r *http.Request) (models.ChartID, bool) {
	name := chi.URLParam(r, "chart")
	id, ok := models.ParseChartID(name)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("unknown chart %q", name), nil)
		return "", false
	}
	return id, true
}

// respondChartError maps chart and dashboard errors to HTTP status codes
func respondChartError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chart.ErrNotRendered):
		status = http.StatusConflict
	case errors.Is(err, chart.ErrUnknownKey), errors.Is(err, dashboard.ErrUnknownChart):
		status = http.StatusNotFound
	case errors.Is(err, chart.ErrUnsupportedGesture), errors.Is(err, chart.ErrInvalidZoom):
		status = http.StatusBadRequest
	}
	respondError(w, status, fmt.Sprintf("%s: %v", message, err), err)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Printf("error encoding response: %v\n", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := models.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}

	if err != nil {
		fmt.Printf("error: %s - %v\n", message, err)
	}

	if err := json.NewEncoder(w).Encode(errResp); err != nil {
		fmt.Printf("error encoding error response: %v\n", err)
	}
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/carviz/internal/chart"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/dashboard"
	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Buffer size for outbound messages
	sendBufferSize = 256
)

// Client represents a WebSocket client connection
type Client struct {
	ID               string
	conn             *websocket.Conn
	Send             chan models.ServerMessage // Exported for hub access
	hub              Hub
	dashboard        Dashboard
	connectedAt      time.Time
	messagesSent     int64
	messagesReceived int64
	lastMessageAt    time.Time
	closed           bool
	mu               sync.Mutex
}

// Hub defines the interface for the broadcast hub
type Hub interface {
	Unregister(client *Client)
}

// Dashboard is the set of gestures a client may submit
type Dashboard interface {
	Brush(id models.ChartID, px0, px1 float64) (models.YearRange, error)
	SelectSlice(key string) (models.YearRange, error)
	ZoomChart(id models.ChartID, req models.ZoomRequest) (float64, error)
	SetSelectionFrom(source string, r models.YearRange) models.YearRange
	Hover(id models.ChartID, key string) (chart.Tooltip, error)
}

// NewClient creates a new client instance
func NewClient(id string, conn *websocket.Conn, hub Hub, dash Dashboard) *Client {
	return &Client{
		ID:          id,
		conn:        conn,
		Send:        make(chan models.ServerMessage, sendBufferSize),
		hub:         hub,
		dashboard:   dash,
		connectedAt: time.Now(),
	}
}

// ReadPump pumps gestures from the WebSocket connection to the dashboard
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg models.ClientMessage
			if err := c.conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					fmt.Printf("client %s unexpected close: %v\n", c.ID, err)
				}
				return
			}

			c.updateReceived()
			c.HandleMessage(msg)
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				fmt.Printf("client %s write error: %v\n", c.ID, err)
				return
			}

			c.updateSent()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend sends a message to the client (non-blocking)
// Returns true if sent, false if buffer is full or the client is closed
func (c *Client) TrySend(msg models.ServerMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

// Close closes the Send channel once. The read pump may still be handling a
// gesture, so every later TrySend reports false instead of panicking.
func (c *Client) Close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.closed = true
	close(c.Send)
	return true
}

// GetStats returns connection statistics
func (c *Client) GetStats() models.ConnectionStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	bufferUtilization := float64(len(c.Send)) / float64(sendBufferSize) * 100.0

	return models.ConnectionStats{
		ClientID:          c.ID,
		ConnectedAt:       c.connectedAt,
		MessagesSent:      c.messagesSent,
		MessagesReceived:  c.messagesReceived,
		LastMessageAt:     c.lastMessageAt,
		BufferSize:        sendBufferSize,
		BufferUtilization: bufferUtilization,
	}
}

// HandleMessage processes one message from the client. Selection changes
// reach every client through the hub; tooltips and errors go to this client only.
func (c *Client) HandleMessage(msg models.ClientMessage) {
	switch msg.Type {
	case models.MessageTypeBrush:
		c.handleBrush(msg.Payload)
	case models.MessageTypeSelect:
		c.handleSelect(msg.Payload)
	case models.MessageTypeClear:
		c.dashboard.SetSelectionFrom(dashboard.SourceWebSocket, models.Unset())
	case models.MessageTypeHover:
		c.handleHover(msg.Payload)
	case models.MessageTypeZoom:
		c.handleZoom(msg.Payload)
	case models.MessageTypeHeartbeat:
		c.sendHeartbeat()
	default:
		c.sendError("unknown_message_type", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (c *Client) handleBrush(payload map[string]interface{}) {
	var req models.BrushRequest
	if err := decodePayload(payload, &req); err != nil {
		c.sendError("invalid_payload", "failed to parse brush")
		return
	}
	id, ok := models.ParseChartID(req.Chart)
	if !ok {
		c.sendError("unknown_chart", fmt.Sprintf("unknown chart: %q", req.Chart))
		return
	}
	if _, err := c.dashboard.Brush(id, req.X0, req.X1); err != nil {
		c.sendGestureError(err)
	}
}

func (c *Client) handleSelect(payload map[string]interface{}) {
	var req models.SelectRequest
	if err := decodePayload(payload, &req); err != nil || req.Key == "" {
		c.sendError("invalid_payload", "select requires a key")
		return
	}
	if _, err := c.dashboard.SelectSlice(req.Key); err != nil {
		c.sendGestureError(err)
	}
}

func (c *Client) handleHover(payload map[string]interface{}) {
	var req models.HoverRequest
	if err := decodePayload(payload, &req); err != nil {
		c.sendError("invalid_payload", "failed to parse hover")
		return
	}
	id, ok := models.ParseChartID(req.Chart)
	if !ok {
		c.sendError("unknown_chart", fmt.Sprintf("unknown chart: %q", req.Chart))
		return
	}
	tip, err := c.dashboard.Hover(id, req.Key)
	if err != nil {
		c.sendGestureError(err)
		return
	}
	c.TrySend(models.ServerMessage{
		Type:      models.MessageTypeTooltip,
		Payload:   tip,
		Timestamp: time.Now(),
	})
}

func (c *Client) handleZoom(payload map[string]interface{}) {
	var req struct {
		Chart string `json:"chart"`
		models.ZoomRequest
	}
	if err := decodePayload(payload, &req); err != nil {
		c.sendError("invalid_payload", "failed to parse zoom")
		return
	}
	id := models.ChartPie
	if req.Chart != "" {
		var ok bool
		if id, ok = models.ParseChartID(req.Chart); !ok {
			c.sendError("unknown_chart", fmt.Sprintf("unknown chart: %q", req.Chart))
			return
		}
	}
	if _, err := c.dashboard.ZoomChart(id, req.ZoomRequest); err != nil {
		c.sendGestureError(err)
	}
}

// sendGestureError reports a rejected gesture with a stable code
func (c *Client) sendGestureError(err error) {
	code := "gesture_failed"
	switch {
	case errors.Is(err, chart.ErrUnknownKey):
		code = "unknown_key"
	case errors.Is(err, chart.ErrUnsupportedGesture):
		code = "unsupported_gesture"
	case errors.Is(err, chart.ErrInvalidZoom):
		code = "invalid_zoom"
	case errors.Is(err, chart.ErrNotRendered):
		code = "not_rendered"
	case errors.Is(err, dashboard.ErrUnknownChart):
		code = "unknown_chart"
	}
	c.sendError(code, err.Error())
}

// sendHeartbeat sends a heartbeat response
func (c *Client) sendHeartbeat() {
	stats := c.GetStats()
	c.TrySend(models.ServerMessage{
		Type:      models.MessageTypeHeartbeat,
		Payload:   stats,
		Timestamp: time.Now(),
	})
}

// sendError sends an error message to the client
func (c *Client) sendError(code, message string) {
	c.TrySend(models.ServerMessage{
		Type: models.MessageTypeError,
		Payload: models.ErrorMessage{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now(),
	})
}

// updateSent increments the sent message counter
func (c *Client) updateSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messagesSent++
	c.lastMessageAt = time.Now()
}

// updateReceived increments the received message counter
func (c *Client) updateReceived() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messagesReceived++
	c.lastMessageAt = time.Now()
}

// decodePayload re-decodes a generic payload into a typed request
func decodePayload(payload map[string]interface{}, v interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

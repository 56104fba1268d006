package models

import "time"

// Message types for WebSocket communication
const (
	// server -> client
	MessageTypeSnapshot         = "snapshot"
	MessageTypeSelectionChanged = "selection_changed"
	MessageTypeChartUpdate      = "chart_update"
	MessageTypeTooltip          = "tooltip"
	MessageTypeHeartbeat        = "heartbeat"
	MessageTypeError            = "error"

	// client -> server
	MessageTypeBrush  = "brush"
	MessageTypeSelect = "select"
	MessageTypeClear  = "clear"
	MessageTypeHover  = "hover"
	MessageTypeZoom   = "zoom"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// BrushRequest is a drag-selection over a chart axis, in pixels
type BrushRequest struct {
	Chart string  `json:"chart"`
	X0    float64 `json:"x0"`
	X1    float64 `json:"x1"`
}

// SelectRequest picks one pie slice
type SelectRequest struct {
	Key string `json:"key"`
}

// HoverRequest asks for tooltip content
type HoverRequest struct {
	Chart string `json:"chart"`
	Key   string `json:"key"`
}

// ZoomRequest scales the pie chart. Factor wins over Direction when both are set.
type ZoomRequest struct {
	Factor    float64 `json:"factor,omitempty"`
	Direction string  `json:"direction,omitempty"` // "in" or "out"
}

// SelectionRequest sets the year range directly
type SelectionRequest struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// ConnectionStats represents connection statistics
type ConnectionStats struct {
	ClientID          string    `json:"client_id"`
	ConnectedAt       time.Time `json:"connected_at"`
	MessagesSent      int64     `json:"messages_sent"`
	MessagesReceived  int64     `json:"messages_received"`
	LastMessageAt     time.Time `json:"last_message_at"`
	BufferSize        int       `json:"buffer_size"`
	BufferUtilization float64   `json:"buffer_utilization"` // Percentage
}

// ErrorMessage represents an error message
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the JSON body of every failed HTTP request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

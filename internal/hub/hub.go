package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/carviz/internal/client"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
)

const (
	broadcastBufferSize = 1000
	metricsInterval     = 30 * time.Second
)

// Hub maintains the set of active clients and broadcasts dashboard updates to them
type Hub struct {
	// Registered clients
	clients   map[*client.Client]bool
	clientsMu sync.RWMutex

	// Outbound messages from the dashboard
	broadcast chan models.ServerMessage

	// Register requests from clients
	register chan *client.Client

	// Unregister requests from clients
	unregister chan *client.Client

	// Clients already queued for eviction
	evicting map[*client.Client]bool

	// Closed once Run has shut down
	done chan struct{}

	// Metrics
	totalConnections int64
	totalMessages    int64
	totalDropped     int64
	metricsMu        sync.Mutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client.Client]bool),
		broadcast:  make(chan models.ServerMessage, broadcastBufferSize),
		register:   make(chan *client.Client),
		unregister: make(chan *client.Client),
		evicting:   make(map[*client.Client]bool),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	fmt.Println("✓ Hub started")

	// Start metrics reporter
	go h.reportMetrics(ctx)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		}
	}
}

// Register adds a client to the hub. After shutdown the client is closed
// instead.
func (h *Hub) Register(c *client.Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(c *client.Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues a message for every connected client. It never blocks the
// dashboard: when the buffer is full the message is dropped.
func (h *Hub) Broadcast(msg models.ServerMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.incrementDropped(1)
		fmt.Println("⚠️  Broadcast buffer full, dropping message")
	}
}

// registerClient adds a client to the active clients map
func (h *Hub) registerClient(c *client.Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.clients[c] = true
	h.incrementTotalConnections()
	metrics.WSClients.Set(float64(len(h.clients)))

	fmt.Printf("client %s connected (total: %d)\n", c.ID, len(h.clients))
}

// unregisterClient removes a client from the active clients map
func (h *Hub) unregisterClient(c *client.Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	delete(h.evicting, c)
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.Close()
		metrics.WSClients.Set(float64(len(h.clients)))
		fmt.Printf("client %s disconnected (total: %d)\n", c.ID, len(h.clients))
	}
}

// broadcastMessage sends a message to every client
func (h *Hub) broadcastMessage(msg models.ServerMessage) {
	h.clientsMu.RLock()
	clients := make([]*client.Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	sent := 0
	dropped := 0

	for _, c := range clients {
		if c.TrySend(msg) {
			sent++
		} else {
			dropped++
			// Client buffer full - they're too slow, disconnect them
			if h.markEvicting(c) {
				fmt.Printf("⚠️  client %s buffer full, disconnecting\n", c.ID)
				go h.Unregister(c)
			}
		}
	}

	if sent > 0 {
		h.incrementTotalMessages()
		metrics.WSMessages.Inc()
	}

	if dropped > 0 {
		h.incrementDropped(dropped)
		fmt.Printf("⚠️  Dropped %d messages (slow clients)\n", dropped)
	}
}

// markEvicting reports whether c was not already queued for eviction
func (h *Hub) markEvicting(c *client.Client) bool {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if h.evicting[c] {
		return false
	}
	h.evicting[c] = true
	return true
}

// GetMetrics returns hub metrics
func (h *Hub) GetMetrics() map[string]interface{} {
	h.clientsMu.RLock()
	activeClients := len(h.clients)
	h.clientsMu.RUnlock()

	h.metricsMu.Lock()
	totalConnections := h.totalConnections
	totalMessages := h.totalMessages
	totalDropped := h.totalDropped
	h.metricsMu.Unlock()

	return map[string]interface{}{
		"active_clients":     activeClients,
		"total_connections":  totalConnections,
		"total_messages":     totalMessages,
		"total_dropped":      totalDropped,
		"broadcast_capacity": cap(h.broadcast),
		"broadcast_usage":    len(h.broadcast),
	}
}

// GetClientCount returns the number of active clients
func (h *Hub) GetClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// shutdown closes all client connections
func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	fmt.Printf("🛑 Shutting down hub (%d active clients)\n", len(h.clients))

	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
	h.evicting = make(map[*client.Client]bool)
	close(h.done)
	metrics.WSClients.Set(0)
}

// reportMetrics periodically reports hub metrics
func (h *Hub) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := h.GetMetrics()
			fmt.Printf("📊 Hub Metrics: clients=%d total_connections=%d messages=%d dropped=%d\n",
				m["active_clients"],
				m["total_connections"],
				m["total_messages"],
				m["total_dropped"])
		}
	}
}

func (h *Hub) incrementTotalConnections() {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	h.totalConnections++
}

func (h *Hub) incrementTotalMessages() {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	h.totalMessages++
}

func (h *Hub) incrementDropped(n int) {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	h.totalDropped += int64(n)
	metrics.WSDropped.Add(float64(n))
}

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"basement-monitor/internal/logging"
	"basement-monitor/internal/notification"
)

const (
	maxHubConnections = 100
	writeWait         = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub pushes notification events to connected dashboard clients. Clients may
// subscribe to a single device with ?dev-id=.
type Hub struct {
	connections map[*websocket.Conn]string // conn -> device filter, "" for all
	mutex       sync.Mutex
	logger      *logging.Logger
}

var _ notification.Channel = (*Hub)(nil)

func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]string),
		logger:      logger,
	}
}

func (h *Hub) Name() string { return "websocket" }

// Serve upgrades the request and keeps the connection registered until the
// client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	if !h.Add(conn, r.URL.Query().Get("dev-id")) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many connections"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	defer h.Remove(conn)

	// drain reads so close frames and pings are handled
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Add registers a connection. It reports false when the hub is full.
func (h *Hub) Add(conn *websocket.Conn, deviceID string) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if len(h.connections) >= maxHubConnections {
		h.logger.Warnf("Max WebSocket connections reached (%d)", maxHubConnections)
		return false
	}
	h.connections[conn] = deviceID
	h.logger.Infof("Added WebSocket connection (total: %d)", len(h.connections))
	return true
}

func (h *Hub) Remove(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.connections[conn]; ok {
		delete(h.connections, conn)
		_ = conn.Close()
		h.logger.Infof("Removed WebSocket connection (remaining: %d)", len(h.connections))
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections)
}

// Send broadcasts the event as JSON. Broken connections are dropped and do
// not fail the delivery; having no listeners is not an error either.
func (h *Hub) Send(_ context.Context, evt notification.Event, msg notification.Message) error {
	payload, err := json.Marshal(struct {
		notification.Event
		Subject string `json:"subject"`
	}{Event: evt, Subject: msg.Subject})
	if err != nil {
		return fmt.Errorf("failed to marshal websocket event: %w", err)
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn, filter := range h.connections {
		if filter != "" && filter != evt.DeviceID {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Errorf("Failed to send WebSocket message: %v", err)
			delete(h.connections, conn)
			_ = conn.Close()
		}
	}
	return nil
}

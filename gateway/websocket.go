package gateway

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/statelab/dashkit/notify"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
)

// wsEvent is the wire format pushed to dashboard clients on every
// notification transition. A nil notification means the slot cleared.
type wsEvent struct {
	Type         string               `json:"type"` // "notification" or "cleared"
	Notification *notify.Notification `json:"notification,omitempty"`
}

// wsHub broadcasts notification transitions to connected WebSocket
// clients. Writes to a single connection are serialized.
type wsHub struct {
	upgrader websocket.Upgrader
	notes    *notify.Channel
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]*sync.Mutex
	unsub   func()
}

func newWSHub(notes *notify.Channel, logger *slog.Logger) *wsHub {
	return &wsHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is same-origin; cross-origin upgrades are refused
			// by the default CheckOrigin.
		},
		notes:   notes,
		logger:  logger,
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

func (h *wsHub) start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unsub != nil {
		return
	}
	h.unsub = h.notes.Subscribe(h.broadcast)
}

func (h *wsHub) stop() {
	h.mu.Lock()
	if h.unsub != nil {
		h.unsub()
		h.unsub = nil
	}
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[*websocket.Conn]*sync.Mutex)
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

func (h *wsHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	writeMu := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = writeMu
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", count)

	// Send the current state so a reconnecting dashboard renders
	// immediately instead of waiting for the next transition.
	if n, ok := h.notes.Active(); ok {
		h.writeEvent(conn, writeMu, wsEvent{Type: "notification", Notification: &n})
	}

	go h.readLoop(conn)
	go h.pingLoop(conn, writeMu)
}

// readLoop drains client frames and detects disconnects.
func (h *wsHub) readLoop(conn *websocket.Conn) {
	defer h.removeClient(conn)

	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *wsHub) pingLoop(conn *websocket.Conn, writeMu *sync.Mutex) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		h.mu.Lock()
		_, alive := h.clients[conn]
		h.mu.Unlock()
		if !alive {
			return
		}

		writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := conn.WriteMessage(websocket.PingMessage, nil)
		writeMu.Unlock()
		if err != nil {
			h.removeClient(conn)
			return
		}
	}
}

func (h *wsHub) broadcast(n *notify.Notification) {
	event := wsEvent{Type: "cleared"}
	if n != nil {
		event = wsEvent{Type: "notification", Notification: n}
	}

	h.mu.Lock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for conn, writeMu := range h.clients {
		targets[conn] = writeMu
	}
	h.mu.Unlock()

	for conn, writeMu := range targets {
		h.writeEvent(conn, writeMu, event)
	}
}

func (h *wsHub) writeEvent(conn *websocket.Conn, writeMu *sync.Mutex, event wsEvent) {
	writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := conn.WriteJSON(event)
	writeMu.Unlock()

	if err != nil {
		h.removeClient(conn)
	}
}

func (h *wsHub) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		_ = conn.Close()
		h.logger.Debug("websocket client disconnected", "clients", count)
	}
}

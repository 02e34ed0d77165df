package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rustyeddy/gridtrader/events"
	"github.com/rustyeddy/gridtrader/metrics"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

// Hub streams grid events to websocket clients as JSON envelopes. All writes
// happen on the Run goroutine; gorilla connections allow one writer only.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}

	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}

	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: logger,
	}
}

// Run owns the client set until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))
			h.log.Info("ws client connected", "total", n)

		case conn := <-h.unregister:
			h.drop(conn)

		case msg := <-h.broadcast:
			h.writeAll(websocket.TextMessage, msg)

		case <-ticker.C:
			h.writeAll(websocket.PingMessage, nil)
		}
	}
}

func (h *Hub) writeAll(kind int, msg []byte) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(kind, msg); err != nil {
			h.log.Debug("ws write failed", "err", err)
			h.drop(c)
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		conn.Close()
		metrics.WebSocketClients.Set(float64(n))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
	metrics.WebSocketClients.Set(0)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues e for every client. A full queue drops the event so the
// engine is never held up by slow readers.
func (h *Hub) Publish(e events.Event) {
	b, err := json.Marshal(events.Wrap(e))
	if err != nil {
		h.log.Warn("ws encode event", "kind", e.Kind(), "err", err)
		return
	}
	select {
	case h.broadcast <- b:
	default:
	}
}

// HandleWS upgrades GET /api/v1/ws.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("ws upgrade failed", "err", err)
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	// Read pump: clients only send pongs and close frames.
	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

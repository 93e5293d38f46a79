// Package broadcast fans match events out to WebSocket viewers. It is
// adapted from the teacher's internal/api/websocket.go Hub — the same
// register/unregister/broadcast channel shape — retargeted from pushing
// game/streaming state to pushing the §6 match event stream, and with its
// connection-limiting and origin-checking concerns injected as small
// interfaces/funcs instead of imported directly, so this package has no
// dependency on internal/api (it is the other way around).
package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// MaxConnectionsTotal bounds the whole server's WebSocket fan-out.
const MaxConnectionsTotal = 500

// ConnLimiter caps concurrent connections per client IP. Satisfied by
// internal/api's WebSocketRateLimiter.
type ConnLimiter interface {
	Allow(ip string) bool
	Release(ip string)
}

// Metrics are optional hooks for internal/api/observability.go to update
// Prometheus gauges/counters without this package importing api.
type Metrics struct {
	OnConnectionsChanged func(count int)
	OnMessageSent        func()
	OnRejected           func(reason string)
}

type client struct {
	conn *websocket.Conn
	ip   string
}

// Hub holds every connected viewer and serializes match events to each of
// them as JSON `{event, data}` envelopes.
type Hub struct {
	clients    map[*websocket.Conn]*client
	broadcast  chan []byte
	register   chan *client
	unregister chan *websocket.Conn
	mu         sync.RWMutex

	upgrader    websocket.Upgrader
	checkOrigin func(origin string) bool
	limiter     ConnLimiter
	metrics     Metrics
}

// New builds a Hub. checkOrigin may be nil to allow every origin (tests);
// limiter may be nil to disable per-IP connection caps.
func New(checkOrigin func(origin string) bool, limiter ConnLimiter, metrics Metrics) *Hub {
	h := &Hub{
		clients:     make(map[*websocket.Conn]*client),
		broadcast:   make(chan []byte, 256),
		register:    make(chan *client),
		unregister:  make(chan *websocket.Conn),
		checkOrigin: checkOrigin,
		limiter:     limiter,
		metrics:     metrics,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if h.checkOrigin == nil {
				return true
			}
			ok := h.checkOrigin(r.Header.Get("Origin"))
			if !ok && h.metrics.OnRejected != nil {
				h.metrics.OnRejected("origin")
			}
			return ok
		},
	}
	return h
}

// Run drains the register/unregister/broadcast channels until the process
// exits. Intended to be launched with `go hub.Run()`.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.conn] = c
			h.mu.Unlock()
			h.reportCount()

		case conn := <-h.unregister:
			h.mu.Lock()
			if c, ok := h.clients[conn]; ok {
				if h.limiter != nil {
					h.limiter.Release(c.ip)
				}
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()
			h.reportCount()

		case message := <-h.broadcast:
			h.deliver(message)
			if h.metrics.OnMessageSent != nil {
				h.metrics.OnMessageSent()
			}
		}
	}
}

func (h *Hub) deliver(message []byte) {
	h.mu.RLock()
	dead := make([]*websocket.Conn, 0)
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			dead = append(dead, conn)
		}
	}
	h.mu.RUnlock()

	if len(dead) == 0 {
		return
	}
	h.mu.Lock()
	for _, conn := range dead {
		if c, ok := h.clients[conn]; ok {
			if h.limiter != nil {
				h.limiter.Release(c.ip)
			}
			delete(h.clients, conn)
		}
		conn.Close()
	}
	h.mu.Unlock()
}

func (h *Hub) reportCount() {
	if h.metrics.OnConnectionsChanged != nil {
		h.metrics.OnConnectionsChanged(h.ClientCount())
	}
}

// Broadcast encodes {event, data} as JSON and queues it for every client;
// a full queue drops the message rather than blocking the caller (the
// match tick goroutine, for "state" events, must never stall on a slow
// viewer).
func (h *Hub) Broadcast(event string, data interface{}) {
	payload, err := json.Marshal(map[string]interface{}{"event": event, "data": data})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- payload:
	default:
	}
}

// ClientCount reports how many viewers are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades an HTTP request to a WebSocket connection and
// registers it, enforcing the total and per-IP connection caps.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request, ip string) {
	if h.ClientCount() >= MaxConnectionsTotal {
		if h.metrics.OnRejected != nil {
			h.metrics.OnRejected("ws_total_limit")
		}
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	if h.limiter != nil && !h.limiter.Allow(ip) {
		if h.metrics.OnRejected != nil {
			h.metrics.OnRejected("ws_ip_limit")
		}
		http.Error(w, "too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.limiter != nil {
			h.limiter.Release(ip)
		}
		return
	}

	c := &client{conn: conn, ip: ip}
	h.register <- c

	go func() {
		defer func() { h.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			// Viewers are read-only; any inbound frame is simply discarded.
		}
	}()
}

// Package api serves a read-only live view of an acquisition run.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"datalogger/driver"
	"datalogger/logger"
)

const (
	clientBuffer = 64
	writeWait    = 2 * time.Second

	// recentSamples bounds the history served by /samples
	recentSamples = 1000
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is one message pushed to websocket clients:
// {"type":"status","status":{...}} or {"type":"sample","elapsed":..,"reading":..}
type Event struct {
	Type   string             `json:"type"`
	Status *driver.StatusInfo `json:"status,omitempty"`
	*driver.Sample
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub fans acquisition events out to websocket clients and keeps the most
// recent samples
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	status  driver.StatusInfo
	samples []driver.Sample
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		status:  driver.StatusInfo{State: driver.StateIdle.String()},
	}
}

// Router exposes /ws, /status and /samples
func (h *Hub) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", h.ServeWS)
	r.Get("/status", h.handleStatus)
	r.Get("/samples", h.handleSamples)
	return r
}

// PublishStatus records and broadcasts a state change. It never blocks.
func (h *Hub) PublishStatus(info driver.StatusInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = info
	h.broadcastLocked(Event{Type: "status", Status: &info})
}

// PublishSample records and broadcasts one sample. It never blocks.
func (h *Hub) PublishSample(s driver.Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append(h.samples, s)
	if n := len(h.samples); n > recentSamples {
		h.samples = h.samples[n-recentSamples:]
	}
	h.broadcastLocked(Event{Type: "sample", Sample: &s})
}

// Clients returns the number of connected websocket clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) broadcastLocked(ev Event) {
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			// Slow client: drop it rather than stall acquisition
			logger.Warn("Monitor client %s too slow, disconnecting", c.conn.RemoteAddr())
			close(c.send)
			delete(h.clients, c)
		}
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan Event, clientBuffer)}

	h.mu.Lock()
	status := h.status
	c.send <- Event{Type: "status", Status: &status}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	logger.Debug("Monitor client connected: %s", conn.RemoteAddr())
	go h.writePump(c)

	// Clients never send anything meaningful; reading detects disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(c)
	conn.Close()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(ev); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	status := h.status
	h.mu.Unlock()
	writeJSON(w, status)
}

func (h *Hub) handleSamples(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	samples := append([]driver.Sample{}, h.samples...)
	h.mu.Unlock()
	writeJSON(w, samples)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}

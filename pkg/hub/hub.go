package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-focus/internal/log"
)

// queueSize bounds pending broadcasts; Broadcast drops beyond it.
const queueSize = 256

// Hub owns the dashboard clients. A single goroutine (Run) mutates the
// client set and writes to client queues.
type Hub struct {
	name string

	mu      sync.RWMutex
	clients map[*Client]struct{}

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed when Run returns

	running atomic.Bool
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// New creates a hub; name tags its log lines.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, queueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client. Run it once, in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.done)
	}()

	logger := log.With("hub", h.name)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			logger.Info("hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			logger.Info("dashboard connected", "user", c.user, "session", c.filter, "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			h.remove(c)
			n := len(h.clients)
			h.mu.Unlock()
			logger.Info("dashboard disconnected", "clients", n)

		case msg := <-h.broadcast:
			h.fanOut(msg, logger)
		}
	}
}

// fanOut queues msg for every matching client. A client whose queue is
// full is dropped rather than stalling the others.
func (h *Hub) fanOut(msg Message, logger *slog.Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		if !msg.matches(c.user, c.filter) {
			continue
		}
		select {
		case c.send <- msg:
			h.sent.Add(1)
		default:
			h.remove(c)
			logger.Warn("dropped slow dashboard", "user", c.user, "session", c.filter)
		}
	}
}

// remove closes and forgets c. Callers hold mu.
func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.remove(c)
	}
}

// Broadcast queues msg without blocking; it is counted as dropped when
// the queue is full.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
		log.Debug("broadcast queue full, dropping message", "hub", h.name, "session", msg.Session)
	}
}

// BroadcastJSON encodes v and broadcasts it scoped to a user's session.
func (h *Hub) BroadcastJSON(user, session string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(user, session, data))
	return nil
}

// ClientCount returns the number of connected dashboards.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Stats returns delivered and dropped message counts.
func (h *Hub) Stats() (sent, dropped uint64) {
	return h.sent.Load(), h.dropped.Load()
}

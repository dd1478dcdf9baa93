package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-locomotion/internal/log"
)

type reply struct {
	client  *Client
	message Message
}

// Hub fans frames out to every connected viewer. Only Run touches the
// client set's channels; everything else talks to it over channels.
type Hub struct {
	name string

	clients map[*Client]bool

	broadcast  chan Message
	unicast    chan reply
	register   chan *Client
	unregister chan *Client

	// handler sees every message a client sends; nil drops them
	handler Handler

	mu       sync.RWMutex
	running  bool
	dropped  uint64
	stop     chan struct{}
	stopOnce sync.Once

	logger *slog.Logger
}

// New creates a new Hub
func New(name string) *Hub {
	return &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		unicast:    make(chan reply, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		logger:     log.For("hub").With("hub", name),
	}
}

// OnMessage installs the handler for client messages. Call before Run.
func (h *Hub) OnMessage(handler Handler) {
	h.handler = handler
}

// Run owns the client set until Stop. Call it in its own goroutine.
func (h *Hub) Run() {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	for {
		select {
		case <-h.stop:
			h.closeAll()
			h.logger.Info("hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			h.remove(c)
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "clients", n)

		case r := <-h.unicast:
			h.mu.Lock()
			if h.clients[r.client] {
				h.deliver(r.client, r.message)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				h.deliver(c, msg)
			}
			h.mu.Unlock()
		}
	}
}

// deliver queues msg for c, dropping c if its buffer is full. h.mu is held.
func (h *Hub) deliver(c *Client, msg Message) {
	select {
	case c.send <- msg:
	default:
		h.remove(c)
		h.logger.Warn("dropped slow client")
	}
}

// remove forgets c and closes its send channel. h.mu is held.
func (h *Hub) remove(c *Client) {
	if h.clients[c] {
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
	h.running = false
}

// Stop closes every client and ends Run. It is safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		// Broadcast channel full - drop message
		h.mu.Lock()
		h.dropped++
		dropped := h.dropped
		h.mu.Unlock()
		if dropped%100 == 1 {
			h.logger.Warn("broadcast channel full, dropping message", "dropped", dropped)
		}
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Dropped returns how many broadcasts were discarded because the hub was
// saturated.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Package ws provides the WebSocket layer: a subscription hub, a Redis
// relay that feeds it, and the frame protocol handler.
package ws

import (
	"log/slog"
	"sync"

	"github.com/queueup/queueup/internal/event"
	"github.com/queueup/queueup/internal/metrics"
)

// sendBuffer is the per-client outbound queue. A client that cannot drain
// this many frames is dropped rather than allowed to stall the hub.
const sendBuffer = 32

// client is one connected WebSocket peer as the hub sees it.
type client struct {
	send chan []byte

	// dead marks a client whose send channel has been closed. Guarded by
	// Hub.mu so a late send never races the close.
	dead bool
}

func newClient() *client {
	return &client{send: make(chan []byte, sendBuffer)}
}

// Hub routes event payloads to connected clients by channel name.
// Channel names match the Redis publish channels, so the relay can hand
// messages straight through.
//
// Every send to a client channel and the close of that channel happen
// under mu. Sends are non-blocking, so holding the lock across delivery
// is cheap and rules out a send on a closed channel.
type Hub struct {
	logger  *slog.Logger
	metrics metrics.Recorder

	mu       sync.Mutex
	channels map[string]map[*client]struct{}
	global   map[*client]struct{}
	clients  map[*client]struct{}
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger, recorder metrics.Recorder) *Hub {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Hub{
		logger:   logger.With("component", "ws.hub"),
		metrics:  recorder,
		channels: make(map[string]map[*client]struct{}),
		global:   make(map[*client]struct{}),
		clients:  make(map[*client]struct{}),
	}
}

// register adds a connection to the hub.
func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetConnectedClients(int64(total))
}

// unregister removes a connection and all of its subscriptions. Safe to
// call more than once for the same client.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	h.dropLocked(c)
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetConnectedClients(int64(total))
}

// dropLocked removes a client from every registry and closes its send
// channel. Caller holds h.mu. This is the only place send is closed.
func (h *Hub) dropLocked(c *client) {
	if c.dead {
		return
	}
	c.dead = true

	delete(h.clients, c)
	delete(h.global, c)
	for name, subs := range h.channels {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.channels, name)
		}
	}
	close(c.send)
}

// subscribe adds the client to a recruitment channel.
func (h *Hub) subscribe(c *client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.dead {
		return
	}
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*client]struct{})
		h.channels[channel] = subs
	}
	subs[c] = struct{}{}
}

// unsubscribe removes the client from a recruitment channel.
func (h *Hub) unsubscribe(c *client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
}

// subscribeGlobal adds the client to the all-recruitments feed.
func (h *Hub) subscribeGlobal(c *client) {
	h.mu.Lock()
	if !c.dead {
		h.global[c] = struct{}{}
	}
	h.mu.Unlock()
}

// unsubscribeGlobal removes the client from the all-recruitments feed.
func (h *Hub) unsubscribeGlobal(c *client) {
	h.mu.Lock()
	delete(h.global, c)
	h.mu.Unlock()
}

// Broadcast delivers a payload to every subscriber of a channel. Clients
// with a full send buffer are disconnected so one slow reader cannot
// block delivery to the rest.
func (h *Hub) Broadcast(channel string, payload []byte) {
	h.mu.Lock()
	subs := h.channels[channel]
	if channel == event.GlobalChannel {
		subs = h.global
	}
	dropped := 0
	for c := range subs {
		if !h.deliverLocked(c, payload, channel) {
			dropped++
		}
	}
	total := len(h.clients)
	h.mu.Unlock()

	if dropped > 0 {
		h.metrics.SetConnectedClients(int64(total))
	}
}

// Close drops every connected client. Used at shutdown after the relay
// has stopped feeding the hub.
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		h.dropLocked(c)
	}
	h.mu.Unlock()

	h.metrics.SetConnectedClients(0)
}

// send delivers a payload to a single client, dropping it if stalled.
// A client already dropped by a racing broadcast is ignored.
func (h *Hub) send(c *client, payload []byte) {
	h.mu.Lock()
	dropped := !h.deliverLocked(c, payload, "")
	total := len(h.clients)
	h.mu.Unlock()

	if dropped {
		h.metrics.SetConnectedClients(int64(total))
	}
}

// deliverLocked attempts a non-blocking send, dropping the client when
// its buffer is full. Caller holds h.mu. Returns false when the client
// was dropped here or was already dead.
func (h *Hub) deliverLocked(c *client, payload []byte, channel string) bool {
	if c.dead {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		h.logger.Warn("dropping slow websocket client",
			slog.String("channel", channel),
		)
		h.dropLocked(c)
		return false
	}
}

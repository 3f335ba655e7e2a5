package websocket

import (
	"context"
	"sync"

	"reading-surface/internal/gateway"
	"reading-surface/internal/pkg/logger"
)

// Hub fans outbound gateway envelopes out to every connected host window and
// feeds host messages back into the gateway. One surface, possibly several
// host connections (e.g. the app plus a devtools panel).
type Hub struct {
	// Registered host connections.
	clients map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run exits, so pumps never block on a dead hub.
	done chan struct{}

	// Lock for safe map access
	mu sync.RWMutex

	gw *gateway.Gateway

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(gw *gateway.Gateway, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		gw:         gw,
		logger:     log,
	}
}

// Run owns the client set and forwards every outbound envelope. It returns
// when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	outbound, err := h.gw.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("Hub", "Host connected", map[string]interface{}{"remote": client.Remote()})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			h.logger.Info("Hub", "Host disconnected", map[string]interface{}{"remote": client.Remote()})

		case msg, ok := <-outbound:
			if !ok {
				return nil
			}
			h.broadcast(msg.Payload)
			msg.Ack()
		}
	}
}

// HandleInbound feeds one raw host message into the gateway dispatcher.
func (h *Hub) HandleInbound(data []byte) {
	h.gw.Dispatch(data)
}

// admit hands a new client to the hub. Returns false once the hub shut down.
func (h *Hub) admit(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// release detaches a client. Safe to call after the hub shut down; the
// unregister send must never strand a pump goroutine on a dead hub.
func (h *Hub) release(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.Send <- data:
		default:
			// Slow host; the channel is fire-and-forget, so drop rather
			// than block the surface.
			h.logger.Warn("Hub", "Host send buffer full, dropping message", map[string]interface{}{
				"remote": client.Remote(),
			})
		}
	}
}

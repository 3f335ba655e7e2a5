// Package gateway is the bidirectional structured-message channel between
// the surface and its host. Components never talk to the host directly; they
// Send through the gateway, and inbound host commands are dispatched by type
// to whichever component registered for them.
package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"reading-surface/internal/pkg/logger"
)

// OutboundTopic carries every envelope leaving the surface. The websocket
// hub and the analytics forwarder subscribe to it.
const OutboundTopic = "surface.outbound"

// Handler processes one inbound message, already decoded to a map.
type Handler func(payload map[string]interface{})

type Gateway struct {
	pubSub *gochannel.GoChannel
	logger logger.ILogger
	sink   *Sink
	clock  func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler
}

func New(pubSub *gochannel.GoChannel, log logger.ILogger, sink *Sink, clock func() time.Time) *Gateway {
	if clock == nil {
		clock = time.Now
	}
	return &Gateway{
		pubSub:   pubSub,
		logger:   log,
		sink:     sink,
		clock:    clock,
		handlers: make(map[string]Handler),
	}
}

// Send wraps payload with {type, timestamp} and delivers it to the host
// exactly once, best effort. The channel is fire-and-forget: delivery
// failures are logged and dropped, never surfaced to the caller.
func (g *Gateway) Send(msgType string, payload map[string]interface{}) {
	now := g.clock()
	envelope := make(map[string]interface{}, len(payload)+2)
	for k, v := range payload {
		if k == "type" || k == "timestamp" {
			continue
		}
		envelope[k] = v
	}
	envelope["type"] = msgType
	envelope["timestamp"] = now.UnixMilli()

	data, err := json.Marshal(envelope)
	if err != nil {
		g.logger.Warn("Gateway", "Dropping unmarshalable outbound message", map[string]interface{}{
			"type": msgType, "error": err.Error(),
		})
		return
	}

	g.sink.Record(DirectionOutbound, msgType, data, now)

	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := g.pubSub.Publish(OutboundTopic, msg); err != nil {
		g.logger.Warn("Gateway", "Outbound delivery failed, message dropped", map[string]interface{}{
			"type": msgType, "error": err.Error(),
		})
	}
}

// Handle registers the handler for an inbound message type. One handler per
// type; a later registration replaces the earlier one.
func (g *Gateway) Handle(msgType string, h Handler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[msgType] = h
}

// Dispatch routes one raw inbound message by its type field. Unknown types
// are ignored without error; malformed messages are logged and dropped.
func (g *Gateway) Dispatch(raw []byte) {
	var msg map[string]interface{}
	if err := json.Unmarshal(raw, &msg); err != nil {
		g.logger.Warn("Gateway", "Dropping malformed inbound message", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	msgType, _ := msg["type"].(string)
	if msgType == "" {
		g.logger.Warn("Gateway", "Dropping inbound message without type", nil)
		return
	}

	g.sink.Record(DirectionInbound, msgType, raw, g.clock())

	g.mu.RLock()
	h, ok := g.handlers[msgType]
	g.mu.RUnlock()
	if !ok {
		g.logger.Debug("Gateway", "Ignoring unknown inbound message type", map[string]interface{}{
			"type": msgType,
		})
		return
	}
	h(msg)
}

// Subscribe returns the stream of outbound envelopes for forwarding
// transports (websocket hub, NATS forwarder).
func (g *Gateway) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return g.pubSub.Subscribe(ctx, OutboundTopic)
}

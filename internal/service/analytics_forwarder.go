package service

import (
	"context"
	"encoding/json"
	"time"

	"reading-surface/internal/gateway"
	"reading-surface/internal/pkg/logger"
	"reading-surface/pkg/events"
	pktNats "reading-surface/pkg/nats"
)

type IAnalyticsForwarder interface {
	Run(ctx context.Context) error
}

// analyticsForwarder republishes every outbound surface envelope to NATS so
// the host's analytics pipeline can persist page-time and annotation data.
// Delivery is best effort: a failed publish is logged and the message
// dropped, matching the fire-and-forget contract of the gateway.
type analyticsForwarder struct {
	gw        *gateway.Gateway
	publisher *pktNats.Publisher
	logger    logger.ILogger
}

func NewAnalyticsForwarder(gw *gateway.Gateway, publisher *pktNats.Publisher, log logger.ILogger) IAnalyticsForwarder {
	return &analyticsForwarder{gw: gw, publisher: publisher, logger: log}
}

func (f *analyticsForwarder) Run(ctx context.Context) error {
	messages, err := f.gw.Subscribe(ctx)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			f.forward(ctx, msg.Payload)
			msg.Ack()
		}
	}()

	return nil
}

func (f *analyticsForwarder) forward(ctx context.Context, payload []byte) {
	var envelope map[string]interface{}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		f.logger.Warn("Analytics", "Skipping undecodable envelope", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	msgType, _ := envelope["type"].(string)
	if msgType == "" {
		return
	}

	evt := events.BaseEvent{
		Type:       msgType,
		Data:       envelope,
		OccurredAt: time.Now(),
	}
	if err := f.publisher.Publish(ctx, evt); err != nil {
		f.logger.Warn("Analytics", "Forwarding failed, event dropped", map[string]interface{}{
			"type": msgType, "error": err.Error(),
		})
	}
}

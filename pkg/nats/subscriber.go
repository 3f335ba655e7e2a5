package nats

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// CommandHandler processes one raw inbound command message.
type CommandHandler func(ctx context.Context, data []byte) error

// Subscriber listens for host commands arriving over NATS, the transport
// used when the surface runs headless with no websocket host attached.
type Subscriber struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(url string) (*Subscriber, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &Subscriber{nc: nc, js: js}, nil
}

// Subscribe registers a handler for a command subject pattern on the
// SURFACE_COMMANDS stream. A durable consumer ensures commands sent while
// the surface was down are still delivered.
func (s *Subscriber) Subscribe(subject string, durableName string, handler CommandHandler) error {
	ctx := context.Background()

	_, err := s.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "SURFACE_COMMANDS",
		Subjects:  []string{"surface.commands.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		log.Printf("Warn: Failed to ensure stream 'SURFACE_COMMANDS': %v", err)
	}

	consumer, err := s.js.CreateOrUpdateConsumer(ctx, "SURFACE_COMMANDS", jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	_, err = consumer.Consume(func(msg jetstream.Msg) {
		if err := handler(context.Background(), msg.Data()); err != nil {
			log.Printf("Handler failed for command %s: %v", msg.Subject(), err)
			msg.Nak() // Retry
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	log.Printf("Subscribed to %s with durable %s", subject, durableName)
	return nil
}

// Close closes the connection.
func (s *Subscriber) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}

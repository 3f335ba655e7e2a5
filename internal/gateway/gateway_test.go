package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reading-surface/internal/pkg/logger"
)

func newTestGateway(t *testing.T) (*Gateway, *Sink) {
	t.Helper()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })
	sink := NewSink(64)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gw := New(pubSub, logger.NewNopLogger(), sink, func() time.Time { return fixed })
	return gw, sink
}

func TestSendWrapsEnvelope(t *testing.T) {
	gw, sink := newTestGateway(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, err := gw.Subscribe(ctx)
	require.NoError(t, err)

	gw.Send("pageChange", map[string]interface{}{
		"previousPage": 1,
		"newPage":      2,
		// A caller-supplied type must not clobber the envelope.
		"type": "bogus",
	})

	select {
	case msg := <-out:
		var envelope map[string]interface{}
		require.NoError(t, json.Unmarshal(msg.Payload, &envelope))
		assert.Equal(t, "pageChange", envelope["type"])
		assert.EqualValues(t, 2, envelope["newPage"])
		assert.NotZero(t, envelope["timestamp"])
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("no outbound message delivered")
	}

	records := sink.OfType(DirectionOutbound, "pageChange")
	require.Len(t, records, 1)
}

func TestDispatchRoutesByType(t *testing.T) {
	gw, sink := newTestGateway(t)

	var gotPage float64
	gw.Handle("goToPage", func(payload map[string]interface{}) {
		gotPage, _ = payload["page"].(float64)
	})

	gw.Dispatch([]byte(`{"type":"goToPage","page":7}`))
	assert.Equal(t, float64(7), gotPage)

	// Unknown types are ignored without error, but still logged to the sink.
	gw.Dispatch([]byte(`{"type":"somethingElse"}`))
	assert.Len(t, sink.OfType(DirectionInbound, "somethingElse"), 1)

	// Malformed input and missing type are dropped.
	gw.Dispatch([]byte(`{not json`))
	gw.Dispatch([]byte(`{"page":1}`))
	assert.Len(t, sink.Records(), 2)
}

func TestSinkBounded(t *testing.T) {
	sink := NewSink(3)
	for i := 0; i < 10; i++ {
		sink.Record(DirectionOutbound, "evt", []byte(`{}`), time.Now())
	}
	assert.Len(t, sink.Records(), 3)
}

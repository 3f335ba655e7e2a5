package tracker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reading-surface/internal/gateway"
	"reading-surface/internal/pkg/logger"
	"reading-surface/pkg/render"
	"reading-surface/pkg/render/memory"
)

// fakeClock is advanced manually; the idle timer still runs on real time, so
// tests combine short idle windows with explicit clock jumps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setup(t *testing.T, idleAfter time.Duration, clock func() time.Time) (*Tracker, *gateway.Sink, *memory.Engine) {
	t.Helper()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })
	sink := gateway.NewSink(128)
	gw := gateway.New(pubSub, logger.NewNopLogger(), sink, clock)

	eng := memory.NewEngine()
	eng.Register("doc://book", memory.Document{Pages: []memory.PageContent{
		{TextNodes: []render.TextNode{{ID: "t1", Text: "page one"}}},
		{TextNodes: []render.TextNode{{ID: "t2", Text: "page two"}}},
		{TextNodes: []render.TextNode{{ID: "t3", Text: "page three"}}},
	}})
	require.NoError(t, eng.Load(context.Background(), "doc://book"))

	tr := New(gw, logger.NewNopLogger(), clock, idleAfter)
	tr.Start(eng)
	t.Cleanup(tr.Stop)
	return tr, sink, eng
}

func sampleFields(t *testing.T, rec gateway.Record) map[string]float64 {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Payload, &m))
	out := make(map[string]float64)
	for k, v := range m {
		if f, ok := v.(float64); ok {
			out[k] = f
		}
	}
	return out
}

func TestPageChangeTelemetry(t *testing.T) {
	clock := newFakeClock()
	tr, sink, eng := setup(t, time.Hour, clock.Now)

	clock.Advance(12 * time.Second)
	require.NoError(t, eng.GoTo(2))

	recs := sink.OfType(gateway.DirectionOutbound, gateway.EvtPageChange)
	require.Len(t, recs, 1)
	fields := sampleFields(t, recs[0])
	assert.Equal(t, float64(1), fields["previousPage"])
	assert.Equal(t, float64(2), fields["newPage"])
	assert.Equal(t, float64(12), fields["timeSpent"])
	assert.Equal(t, float64(12), fields["totalTimeSpent"])
	assert.Equal(t, float64(12), fields["activeTimeSpent"])
	assert.Equal(t, 2, tr.CurrentPage())
}

func TestIdleTimeExcludedFromActive(t *testing.T) {
	clock := newFakeClock()
	tr, sink, eng := setup(t, 250*time.Millisecond, clock.Now)

	// 9 seconds of engaged reading, then the quiet window elapses.
	clock.Advance(9 * time.Second)
	require.Eventually(t, tr.IsIdle, 2*time.Second, 5*time.Millisecond)

	// 3 more seconds pass while idle, then the page flips.
	clock.Advance(3 * time.Second)
	require.NoError(t, eng.GoTo(2))

	recs := sink.OfType(gateway.DirectionOutbound, gateway.EvtPageChange)
	require.Len(t, recs, 1)
	fields := sampleFields(t, recs[0])
	assert.Equal(t, float64(12), fields["totalTimeSpent"])
	assert.Equal(t, float64(9), fields["activeTimeSpent"])
}

func TestIdleTransitionsEmitOnce(t *testing.T) {
	clock := newFakeClock()
	tr, sink, _ := setup(t, 50*time.Millisecond, clock.Now)

	require.Eventually(t, tr.IsIdle, 2*time.Second, 5*time.Millisecond)

	tr.Interaction()
	assert.False(t, tr.IsIdle())

	// Further interactions while active must not re-emit.
	tr.Interaction()
	tr.Interaction()

	require.Eventually(t, tr.IsIdle, 2*time.Second, 5*time.Millisecond)

	recs := sink.OfType(gateway.DirectionOutbound, gateway.EvtIdleStateChange)
	require.Len(t, recs, 3)

	var states []bool
	for _, r := range recs {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(r.Payload, &m))
		states = append(states, m["isIdle"].(bool))
	}
	assert.Equal(t, []bool{true, false, true}, states)
}

func TestSamePageTransitionStillResets(t *testing.T) {
	clock := newFakeClock()
	tr, sink, eng := setup(t, time.Hour, clock.Now)

	clock.Advance(5 * time.Second)
	require.NoError(t, eng.GoTo(1))

	recs := sink.OfType(gateway.DirectionOutbound, gateway.EvtPageChange)
	require.Len(t, recs, 1)
	fields := sampleFields(t, recs[0])
	assert.Equal(t, float64(1), fields["previousPage"])
	assert.Equal(t, float64(1), fields["newPage"])
	assert.Equal(t, float64(5), fields["timeSpent"])

	// Entry timestamp was reset: another 2 seconds yields a 2-second dwell.
	clock.Advance(2 * time.Second)
	require.NoError(t, eng.GoTo(2))
	recs = sink.OfType(gateway.DirectionOutbound, gateway.EvtPageChange)
	require.Len(t, recs, 2)
	fields = sampleFields(t, recs[1])
	assert.Equal(t, float64(2), fields["timeSpent"])
	assert.Equal(t, float64(7), fields["totalTimeSpent"])
	_ = tr
}

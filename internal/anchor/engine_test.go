package anchor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reading-surface/internal/entity"
	"reading-surface/internal/gateway"
	"reading-surface/internal/pkg/logger"
	repomem "reading-surface/internal/repository/memory"
	"reading-surface/internal/tracker"
	"reading-surface/pkg/render"
	"reading-surface/pkg/render/memory"
)

type fixture struct {
	engine   *Engine
	render   *memory.Engine
	sink     *gateway.Sink
	notes    *repomem.NoteRepository
	captured *repomem.CaptureRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })
	sink := gateway.NewSink(128)
	gw := gateway.New(pubSub, logger.NewNopLogger(), sink, nil)

	eng := memory.NewEngine()
	eng.Register("doc://book", memory.Document{Pages: []memory.PageContent{
		{TextNodes: []render.TextNode{{ID: "p1t1", Text: "chapter one introduction section begins here"}}},
		{TextNodes: []render.TextNode{
			{ID: "p2t1", Text: "say hello\n"},
			{ID: "p2t2", Text: "world now"},
		}},
	}})
	require.NoError(t, eng.Load(context.Background(), "doc://book"))

	notes := repomem.NewNoteRepository()
	captured := repomem.NewCaptureRepository()
	anchorEng := New(Options{
		Render:       eng,
		Gateway:      gw,
		Logger:       logger.NewNopLogger(),
		Notes:        notes,
		Captured:     captured,
		RetryDelay:   20 * time.Millisecond,
		TooltipDelay: 10 * time.Millisecond,
		PollInterval: time.Hour,
	})
	t.Cleanup(anchorEng.Stop)

	return &fixture{engine: anchorEng, render: eng, sink: sink, notes: notes, captured: captured}
}

func (f *fixture) textLayer(t *testing.T, page int) *render.TextLayer {
	t.Helper()
	pg, err := f.render.Page(page)
	require.NoError(t, err)
	layer, err := pg.TextLayer()
	require.NoError(t, err)
	return layer
}

func TestReanchorExactMatch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.render.RenderPage(2))

	f.notes.Replace([]entity.Note{{ID: "n1", Page: 2, SelectedText: "hello   world", Content: "greeting"}})
	require.Equal(t, 1, f.notes.Count())
	cached, ok := f.notes.Get("n1")
	require.True(t, ok)
	assert.Equal(t, "greeting", cached.Content)

	f.engine.Reanchor(2)

	layer := f.textLayer(t, 2)
	d, ok := layer.Decoration("n1")
	require.True(t, ok, "note should be anchored")
	assert.True(t, d.Exact)
	assert.Equal(t, "hello\nworld", d.Text, "decoration wraps the raw span across the whitespace divergence")
	assert.Len(t, layer.Decorations(), 1)
}

func TestReanchorIdempotent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.render.RenderPage(2))
	f.notes.Replace([]entity.Note{{ID: "n1", Page: 2, SelectedText: "hello world"}})

	f.engine.Reanchor(2)
	f.engine.Reanchor(2)
	f.engine.Reanchor(2)

	layer := f.textLayer(t, 2)
	assert.Len(t, layer.Decorations(), 1, "repeated passes must not accumulate decorations")
	_, ok := layer.Decoration("n1")
	assert.True(t, ok)
}

func TestReanchorFuzzyFallback(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.render.RenderPage(1))
	// Verbatim text is absent; its first three significant words are on the page.
	f.notes.Replace([]entity.Note{{ID: "n2", Page: 1, SelectedText: "the introduction section begins eventually"}})

	f.engine.Reanchor(1)

	layer := f.textLayer(t, 1)
	d, ok := layer.Decoration("n2")
	require.True(t, ok)
	assert.False(t, d.Exact)
	assert.Equal(t, "introduction section begins", d.Text)
}

func TestUnmatchedNoteIsNotAnError(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.render.RenderPage(1))
	f.notes.Replace([]entity.Note{{ID: "n3", Page: 1, SelectedText: "phrase that never occurs"}})

	f.engine.Reanchor(1)

	layer := f.textLayer(t, 1)
	assert.Empty(t, layer.Decorations(), "unmatched note stays unanchored, ready for the next pass")
}

func TestRetryWhenTextLayerNotReady(t *testing.T) {
	f := newFixture(t)
	f.notes.Replace([]entity.Note{{ID: "n1", Page: 2, SelectedText: "hello world"}})

	// Layer not rendered yet: the pass schedules a retry instead of failing.
	f.engine.Reanchor(2)

	require.NoError(t, f.render.RenderPage(2))

	require.Eventually(t, func() bool {
		layer := f.textLayer(t, 2)
		_, ok := layer.Decoration("n1")
		return ok
	}, time.Second, 5*time.Millisecond, "retry timer should anchor the note once the layer renders")
}

func TestReanchorAfterRerender(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.render.RenderPage(2))
	f.notes.Replace([]entity.Note{{ID: "n1", Page: 2, SelectedText: "hello world"}})
	f.engine.Reanchor(2)

	// Re-render regenerates text nodes and drops the decoration.
	require.NoError(t, f.render.RenderPage(2))
	layer := f.textLayer(t, 2)
	require.Empty(t, layer.Decorations())

	f.engine.Reanchor(2)
	assert.Len(t, layer.Decorations(), 1)
}

func TestClickEmitsNoteClicked(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.render.RenderPage(2))
	f.notes.Replace([]entity.Note{{ID: "n1", Page: 2, SelectedText: "hello world"}})
	f.engine.Reanchor(2)

	f.textLayer(t, 2).Click("n1")

	recs := f.sink.OfType(gateway.DirectionOutbound, gateway.EvtNoteClicked)
	require.Len(t, recs, 1)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(recs[0].Payload, &m))
	assert.Equal(t, "n1", m["noteId"])
	assert.EqualValues(t, 2, m["page"])
}

func TestHoverTooltip(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.render.RenderPage(2))
	f.notes.Replace([]entity.Note{{ID: "n1", Page: 2, SelectedText: "hello world", Title: "Greeting", Content: "a note"}})
	f.engine.Reanchor(2)

	layer := f.textLayer(t, 2)
	layer.Hover("n1", true)

	require.Eventually(t, func() bool {
		return layer.ActiveTooltip() != nil
	}, time.Second, 2*time.Millisecond, "tooltip should appear after the hover delay")
	assert.Equal(t, "Greeting", layer.ActiveTooltip().Title)

	layer.Hover("n1", false)
	assert.Nil(t, layer.ActiveTooltip())
}

func TestHoverLeaveBeforeDelayShowsNothing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.render.RenderPage(2))
	f.notes.Replace([]entity.Note{{ID: "n1", Page: 2, SelectedText: "hello world"}})
	f.engine.Reanchor(2)

	layer := f.textLayer(t, 2)
	layer.Hover("n1", true)
	layer.Hover("n1", false)

	time.Sleep(30 * time.Millisecond)
	assert.Nil(t, layer.ActiveTooltip(), "leaving before the delay cancels the tooltip")
}

// Production wiring: the engine reads the page number the tracker maintains,
// not the render engine's, so the telemetry sample for a transition is always
// out before any pass runs for the entered page.
func TestTelemetrySamplePrecedesCaptureForEnteredPage(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })
	sink := gateway.NewSink(128)
	gw := gateway.New(pubSub, logger.NewNopLogger(), sink, nil)

	eng := memory.NewEngine()
	eng.Register("doc://book", memory.Document{Pages: []memory.PageContent{
		{TextNodes: []render.TextNode{{ID: "p1t1", Text: "first page"}}},
		{TextNodes: []render.TextNode{{ID: "p2t1", Text: "second page"}}},
	}})
	require.NoError(t, eng.Load(context.Background(), "doc://book"))

	pageTracker := tracker.New(gw, logger.NewNopLogger(), nil, time.Hour)
	pageTracker.Start(eng)
	t.Cleanup(pageTracker.Stop)

	anchorEng := New(Options{
		Render:       eng,
		Gateway:      gw,
		Logger:       logger.NewNopLogger(),
		Notes:        repomem.NewNoteRepository(),
		Captured:     repomem.NewCaptureRepository(),
		CurrentPage:  pageTracker.CurrentPage,
		RetryDelay:   20 * time.Millisecond,
		TooltipDelay: 10 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	anchorEng.Start(ctx)
	t.Cleanup(anchorEng.Stop)

	// An annotation already sits on page 2 before the user navigates there.
	require.NoError(t, eng.RenderPage(2))
	pg, err := eng.Page(2)
	require.NoError(t, err)
	editor, err := pg.EditorLayer()
	require.NoError(t, err)
	editor.Add(&render.AnnotationElement{ID: "e1", Kind: render.AnnotationHighlight, Color: "#ffff00"})

	require.NoError(t, eng.GoTo(2))

	require.Eventually(t, func() bool {
		return len(sink.OfType(gateway.DirectionOutbound, gateway.EvtAnnotation)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	pageChangeAt, annotationAt := -1, -1
	for i, r := range sink.Records() {
		if r.Direction != gateway.DirectionOutbound {
			continue
		}
		switch r.Type {
		case gateway.EvtPageChange:
			if pageChangeAt < 0 {
				pageChangeAt = i
			}
		case gateway.EvtAnnotation:
			if annotationAt < 0 {
				annotationAt = i
			}
		}
	}
	require.GreaterOrEqual(t, pageChangeAt, 0)
	require.GreaterOrEqual(t, annotationAt, 0)
	assert.Less(t, pageChangeAt, annotationAt, "page-change telemetry must be recorded before the first pass for the entered page")
}

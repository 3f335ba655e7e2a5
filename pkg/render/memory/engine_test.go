package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reading-surface/pkg/render"
)

func twoPageDoc() Document {
	return Document{Pages: []PageContent{
		{TextNodes: []render.TextNode{{ID: "p1t1", Text: "first page text"}}},
		{TextNodes: []render.TextNode{{ID: "p2t1", Text: "second page text"}}},
	}}
}

func TestLoadAndReady(t *testing.T) {
	eng := NewEngine()
	eng.Register("doc://book", twoPageDoc())

	select {
	case <-eng.Ready():
		t.Fatal("ready before load")
	default:
	}

	require.NoError(t, eng.Load(context.Background(), "doc://book"))

	select {
	case <-eng.Ready():
	default:
		t.Fatal("ready channel not closed after load")
	}
	assert.Equal(t, 2, eng.PageCount())
	assert.Equal(t, 1, eng.CurrentPage())

	assert.Error(t, eng.Load(context.Background(), "doc://missing"))
}

func TestLayersNotReadyUntilRendered(t *testing.T) {
	eng := NewEngine()
	eng.Register("doc://book", twoPageDoc())
	require.NoError(t, eng.Load(context.Background(), "doc://book"))

	pg, err := eng.Page(1)
	require.NoError(t, err)

	_, err = pg.TextLayer()
	assert.ErrorIs(t, err, render.ErrNotReady)
	_, err = pg.EditorLayer()
	assert.ErrorIs(t, err, render.ErrNotReady)

	require.NoError(t, eng.RenderPage(1))

	layer, err := pg.TextLayer()
	require.NoError(t, err)
	assert.Equal(t, "first page text", layer.Nodes()[0].Text)
}

func TestRerenderDropsDecorationsKeepsAnnotations(t *testing.T) {
	eng := NewEngine()
	eng.Register("doc://book", twoPageDoc())
	require.NoError(t, eng.Load(context.Background(), "doc://book"))
	require.NoError(t, eng.RenderPage(1))

	pg, _ := eng.Page(1)
	layer, err := pg.TextLayer()
	require.NoError(t, err)
	require.NoError(t, layer.AddDecoration(&render.Decoration{
		NoteID: "n1", StartNode: 0, EndNode: 0, StartOffset: 0, EndOffset: 5,
	}))

	editor, err := pg.EditorLayer()
	require.NoError(t, err)
	editor.Add(&render.AnnotationElement{Kind: render.AnnotationInk})

	require.NoError(t, eng.RenderPage(1))

	fresh, err := pg.TextLayer()
	require.NoError(t, err)
	assert.Empty(t, fresh.Decorations(), "re-render regenerates text nodes")

	editorAgain, err := pg.EditorLayer()
	require.NoError(t, err)
	assert.Len(t, editorAgain.Elements(), 1, "user annotations survive re-renders")
}

func TestEventDeliveryOrder(t *testing.T) {
	eng := NewEngine()
	eng.Register("doc://book", twoPageDoc())
	require.NoError(t, eng.Load(context.Background(), "doc://book"))

	var order []string
	eng.Subscribe(render.EventPageChanging, func(render.Event) { order = append(order, "first") })
	unsub := eng.Subscribe(render.EventPageChanging, func(render.Event) { order = append(order, "second") })

	require.NoError(t, eng.GoTo(2))
	assert.Equal(t, []string{"first", "second"}, order)

	unsub()
	require.NoError(t, eng.GoTo(1))
	assert.Equal(t, []string{"first", "second", "first"}, order)

	assert.ErrorIs(t, eng.GoTo(99), render.ErrNoSuchPage)
}

func TestDecorationRangeValidation(t *testing.T) {
	layer := render.NewTextLayer(1, []render.TextNode{{ID: "t1", Text: "short"}})

	assert.Error(t, layer.AddDecoration(&render.Decoration{NoteID: "n1", StartNode: 0, EndNode: 0, StartOffset: 0, EndOffset: 99}))
	assert.Error(t, layer.AddDecoration(&render.Decoration{NoteID: "n1", StartNode: 0, EndNode: 3}))
	assert.Error(t, layer.AddDecoration(&render.Decoration{NoteID: ""}))

	require.NoError(t, layer.AddDecoration(&render.Decoration{NoteID: "n1", StartNode: 0, EndNode: 0, StartOffset: 0, EndOffset: 5}))
	assert.Error(t, layer.AddDecoration(&render.Decoration{NoteID: "n1", StartNode: 0, EndNode: 0, StartOffset: 0, EndOffset: 5}),
		"second live decoration for the same note must be rejected")

	assert.True(t, layer.RemoveDecoration("n1"))
	assert.False(t, layer.RemoveDecoration("n1"))
}

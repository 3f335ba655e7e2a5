// Package memory provides an in-memory render.Engine. It backs the component
// tests and the scripted simulation tool, standing in for a real viewer.
package memory

import (
	"context"
	"fmt"
	"sync"

	"reading-surface/pkg/render"
)

// PageContent describes one page of a registered document.
type PageContent struct {
	TextNodes []render.TextNode
}

// Document is the content served for a registered URL.
type Document struct {
	Pages []PageContent
}

type pageState struct {
	number  int
	content PageContent

	textLayer   *render.TextLayer
	editorLayer *render.EditorLayer
}

type subscription struct {
	id int
	h  render.Handler
}

// Engine is an in-memory document viewer. Pages start with both layers
// unrendered; RenderPage renders them and emits the layer events, mirroring
// how a real engine regenerates layers after navigation or zoom.
type Engine struct {
	mu      sync.Mutex
	docs    map[string]Document
	pages   []*pageState
	current int
	zoom    float64
	loaded  bool
	ready   chan struct{}

	nextSubID int
	subs      map[render.EventKind][]subscription
}

func NewEngine() *Engine {
	return &Engine{
		docs:  make(map[string]Document),
		zoom:  1.0,
		ready: make(chan struct{}),
		subs:  make(map[render.EventKind][]subscription),
	}
}

// Register makes a document available under a URL for Load.
func (e *Engine) Register(url string, doc Document) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docs[url] = doc
}

// Load opens a previously registered document, closes the ready channel and
// emits EventDocumentLoaded.
func (e *Engine) Load(ctx context.Context, url string) error {
	e.mu.Lock()
	doc, ok := e.docs[url]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("memory engine: unknown document %q", url)
	}
	e.pages = e.pages[:0]
	for i, pc := range doc.Pages {
		e.pages = append(e.pages, &pageState{number: i + 1, content: pc})
	}
	e.current = 1
	wasLoaded := e.loaded
	e.loaded = true
	ready := e.ready
	e.mu.Unlock()

	if !wasLoaded {
		close(ready)
	}
	e.emit(render.Event{Kind: render.EventDocumentLoaded, Page: 1})
	return nil
}

func (e *Engine) Ready() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

func (e *Engine) CurrentPage() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *Engine) PageCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pages)
}

func (e *Engine) Zoom() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.zoom
}

func (e *Engine) SetZoom(zoom float64) {
	e.mu.Lock()
	if zoom > 0 {
		e.zoom = zoom
	}
	e.mu.Unlock()
}

// GoTo navigates and emits EventPageChanging. Layers of the target page are
// not rendered here; a real engine renders them asynchronously afterwards,
// which RenderPage simulates.
func (e *Engine) GoTo(page int) error {
	e.mu.Lock()
	if page < 1 || page > len(e.pages) {
		e.mu.Unlock()
		return render.ErrNoSuchPage
	}
	e.current = page
	e.mu.Unlock()

	e.emit(render.Event{Kind: render.EventPageChanging, Page: page})
	return nil
}

func (e *Engine) Subscribe(kind render.EventKind, h render.Handler) func() {
	e.mu.Lock()
	e.nextSubID++
	id := e.nextSubID
	e.subs[kind] = append(e.subs[kind], subscription{id: id, h: h})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		subs := e.subs[kind]
		for i, s := range subs {
			if s.id == id {
				e.subs[kind] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

func (e *Engine) Page(n int) (render.Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n < 1 || n > len(e.pages) {
		return nil, render.ErrNoSuchPage
	}
	return &enginePage{engine: e, state: e.pages[n-1]}, nil
}

// RenderPage builds fresh text and editor layers for a page and emits the
// layer-rendered events. Calling it again regenerates the text nodes, which
// drops every decoration attached to the old layer, exactly like a real
// re-render.
func (e *Engine) RenderPage(n int) error {
	e.mu.Lock()
	if n < 1 || n > len(e.pages) {
		e.mu.Unlock()
		return render.ErrNoSuchPage
	}
	st := e.pages[n-1]
	st.textLayer = render.NewTextLayer(n, st.content.TextNodes)
	if st.editorLayer == nil {
		// User-created annotations survive re-renders; the editor layer is
		// created once and kept.
		st.editorLayer = render.NewEditorLayer(n)
	}
	e.mu.Unlock()

	e.emit(render.Event{Kind: render.EventAnnotationLayerRendered, Page: n})
	e.emit(render.Event{Kind: render.EventAnnotationEditorLayerRendered, Page: n})
	return nil
}

// emit delivers synchronously, in subscription order, without holding the
// engine lock so handlers may call back into the engine.
func (e *Engine) emit(ev render.Event) {
	e.mu.Lock()
	subs := make([]subscription, len(e.subs[ev.Kind]))
	copy(subs, e.subs[ev.Kind])
	e.mu.Unlock()

	for _, s := range subs {
		s.h(ev)
	}
}

type enginePage struct {
	engine *Engine
	state  *pageState
}

func (p *enginePage) Number() int { return p.state.number }

func (p *enginePage) TextLayer() (*render.TextLayer, error) {
	p.engine.mu.Lock()
	defer p.engine.mu.Unlock()
	if p.state.textLayer == nil {
		return nil, render.ErrNotReady
	}
	return p.state.textLayer, nil
}

func (p *enginePage) EditorLayer() (*render.EditorLayer, error) {
	p.engine.mu.Lock()
	defer p.engine.mu.Unlock()
	if p.state.editorLayer == nil {
		return nil, render.ErrNotReady
	}
	return p.state.editorLayer, nil
}

package render

import (
	"context"
	"errors"
)

// ErrNotReady means the engine or one of its per-page layers has not finished
// rendering yet. Callers retry; nothing about it is fatal.
var ErrNotReady = errors.New("render: not ready")

// ErrNoSuchPage is returned for page numbers outside [1, PageCount].
var ErrNoSuchPage = errors.New("render: no such page")

// EventKind names the engine bus events this module consumes.
type EventKind string

const (
	EventPageChanging                  EventKind = "pagechanging"
	EventAnnotationLayerRendered       EventKind = "annotationlayerrendered"
	EventAnnotationEditorLayerRendered EventKind = "annotationeditorlayerrendered"
	EventDocumentLoaded                EventKind = "documentloaded"
)

// Event is a single engine bus notification.
type Event struct {
	Kind EventKind
	Page int
}

// Handler receives engine bus events. Delivery is synchronous and in
// subscription order, which is what lets the telemetry tracker observe a page
// transition before re-anchoring starts for the entered page.
type Handler func(Event)

// Engine is the document viewer capability handed to each component at
// construction. It replaces ambient lookup of a shared viewer instance so the
// tracker and the anchoring engine can be tested against the in-memory
// implementation.
type Engine interface {
	// Load opens the document at url. Readiness is signalled via Ready.
	Load(ctx context.Context, url string) error

	// Ready is closed once the current document is fully open.
	Ready() <-chan struct{}

	CurrentPage() int
	PageCount() int
	Zoom() float64
	SetZoom(zoom float64)

	// GoTo navigates to the given 1-based page and emits EventPageChanging.
	GoTo(page int) error

	// Subscribe registers a handler for one event kind and returns an
	// unsubscribe function.
	Subscribe(kind EventKind, h Handler) func()

	// Page returns the 1-based page n.
	Page(n int) (Page, error)
}

// Page exposes the two per-page overlays this module works with. Both return
// ErrNotReady until the engine has rendered them for the current view.
type Page interface {
	Number() int
	TextLayer() (*TextLayer, error)
	EditorLayer() (*EditorLayer, error)
}

// Position is an on-page box, in page coordinates at the current zoom.
type Position struct {
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Package anchor re-attaches host-owned notes to a render tree whose text
// nodes are regenerated on every render, and captures annotations the user
// created directly in the view.
package anchor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reading-surface/internal/entity"
	"reading-surface/internal/gateway"
	"reading-surface/internal/pkg/logger"
	"reading-surface/internal/repository/memory"
	"reading-surface/pkg/render"
	"reading-surface/pkg/textmatch"
)

// Engine runs the two independent algorithms of the annotation layer: the
// search-and-highlight re-anchoring pass and the polling capture diff. Both
// share the current-page value maintained by the telemetry tracker.
type Engine struct {
	render   render.Engine
	gw       *gateway.Gateway
	logger   logger.ILogger
	notes    *memory.NoteRepository
	captured *memory.CaptureRepository

	currentPage  func() int
	retryDelay   time.Duration
	tooltipDelay time.Duration
	pollInterval time.Duration

	mu           sync.Mutex
	retryTimer   *time.Timer
	tooltipTimer *time.Timer
	subs         []func()
}

// Options bundles the engine's collaborators and tuning knobs.
type Options struct {
	Render       render.Engine
	Gateway      *gateway.Gateway
	Logger       logger.ILogger
	Notes        *memory.NoteRepository
	Captured     *memory.CaptureRepository
	CurrentPage  func() int
	RetryDelay   time.Duration
	TooltipDelay time.Duration
	PollInterval time.Duration
}

func New(opts Options) *Engine {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	if opts.TooltipDelay <= 0 {
		opts.TooltipDelay = 500 * time.Millisecond
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.CurrentPage == nil {
		opts.CurrentPage = opts.Render.CurrentPage
	}
	return &Engine{
		render:       opts.Render,
		gw:           opts.Gateway,
		logger:       opts.Logger,
		notes:        opts.Notes,
		captured:     opts.Captured,
		currentPage:  opts.CurrentPage,
		retryDelay:   opts.RetryDelay,
		tooltipDelay: opts.TooltipDelay,
		pollInterval: opts.PollInterval,
	}
}

// Start subscribes to the layer-rendered events and launches the polling
// loop. Must run after the tracker subscribed, so the current-page value is
// already updated when re-anchoring reads it.
func (e *Engine) Start(ctx context.Context) {
	e.subs = append(e.subs,
		e.render.Subscribe(render.EventAnnotationLayerRendered, func(ev render.Event) {
			e.Reanchor(ev.Page)
		}),
		e.render.Subscribe(render.EventAnnotationEditorLayerRendered, func(ev render.Event) {
			e.CapturePage(ev.Page)
		}),
	)

	go e.pollLoop(ctx)
}

// Stop unsubscribes and cancels pending timers.
func (e *Engine) Stop() {
	for _, unsub := range e.subs {
		unsub()
	}
	e.subs = nil

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.retryTimer != nil {
		e.retryTimer.Stop()
		e.retryTimer = nil
	}
	if e.tooltipTimer != nil {
		e.tooltipTimer.Stop()
		e.tooltipTimer = nil
	}
}

// SetNotes replaces the cached notes wholesale and re-anchors the page in
// view. Called for every displayNotes command.
func (e *Engine) SetNotes(notes []entity.Note) {
	e.notes.Replace(notes)
	e.logger.Info("Anchor", "Notes replaced", map[string]interface{}{"count": len(notes)})
	e.Reanchor(e.currentPage())
}

// pollLoop drives the capture diff and retries still-unanchored notes on a
// fixed cadence.
func (e *Engine) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			page := e.currentPage()
			e.CapturePage(page)
			e.anchorUnmatched(page)
		}
	}
}

// Reanchor runs a full search-and-highlight pass for every cached note
// targeting the page. Safe to invoke any number of times: each pass removes
// the note's stale decoration before attaching a fresh one, and a single
// pass never leaves more than one live decoration per note.
func (e *Engine) Reanchor(page int) {
	e.anchorPass(page, false)
}

// anchorUnmatched re-anchors only notes that currently have no decoration,
// so the polling cadence does not churn already-attached highlights.
func (e *Engine) anchorUnmatched(page int) {
	e.anchorPass(page, true)
}

func (e *Engine) anchorPass(page int, onlyMissing bool) {
	notes := e.notes.ForPage(page)
	if len(notes) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pg, err := e.render.Page(page)
	if err != nil {
		e.logger.Debug("Anchor", "Page unavailable", map[string]interface{}{
			"page": page, "error": err.Error(),
		})
		return
	}
	layer, err := pg.TextLayer()
	if errors.Is(err, render.ErrNotReady) {
		e.scheduleRetryLocked(page)
		return
	}
	if err != nil {
		e.logger.Warn("Anchor", "Text layer inaccessible", map[string]interface{}{
			"page": page, "error": err.Error(),
		})
		return
	}

	ix := textmatch.NewIndex(layerNodes(layer))

	unmatched := 0
	for _, note := range notes {
		if onlyMissing {
			if _, ok := layer.Decoration(note.ID); ok {
				continue
			}
		}
		// One note failing must not abort the rest of the pass.
		if err := e.anchorNote(layer, ix, note, page); err != nil {
			if errors.Is(err, errNoMatch) {
				unmatched++
				e.logger.Debug("Anchor", "Note unmatched this pass", map[string]interface{}{
					"noteId": note.ID, "page": page,
				})
				continue
			}
			e.logger.Warn("Anchor", "Failed to decorate note", map[string]interface{}{
				"noteId": note.ID, "page": page, "error": err.Error(),
			})
		}
	}
	if unmatched > 0 {
		// Unmatched notes stay eligible; the polling loop retries them.
		e.logger.Debug("Anchor", "Pass left notes unanchored", map[string]interface{}{
			"page": page, "unmatched": unmatched,
		})
	}
}

// errNoMatch marks the "not yet matched" outcome, which is not a failure.
var errNoMatch = errors.New("no match this pass")

func (e *Engine) anchorNote(layer *render.TextLayer, ix *textmatch.Index, note entity.Note, page int) error {
	m, ok := ix.Search(note.SelectedText)
	if !ok {
		return errNoMatch
	}

	// Remove-then-add runs inside one pass under the engine lock, so an
	// overlapping retry can never observe a duplicate decoration.
	layer.RemoveDecoration(note.ID)

	d := &render.Decoration{
		NoteID:      note.ID,
		StartNode:   m.StartNode,
		StartOffset: m.StartOffset,
		EndNode:     m.EndNode,
		EndOffset:   m.EndOffset,
		Text:        ix.RawSlice(m),
		Exact:       m.Exact,
	}
	d.OnClick = func() {
		e.gw.Send(gateway.EvtNoteClicked, map[string]interface{}{
			"noteId": note.ID,
			"page":   page,
		})
	}
	d.OnHover = func(entered bool) {
		e.hover(layer, note, entered)
	}

	if err := layer.AddDecoration(d); err != nil {
		return fmt.Errorf("wrap span for note %s: %w", note.ID, err)
	}

	e.logger.Debug("Anchor", "Note anchored", map[string]interface{}{
		"noteId": note.ID, "page": page, "exact": m.Exact,
	})
	return nil
}

// hover shows the note detail tooltip after the configured delay and hides
// it as soon as the pointer leaves.
func (e *Engine) hover(layer *render.TextLayer, note entity.Note, entered bool) {
	e.mu.Lock()
	if e.tooltipTimer != nil {
		e.tooltipTimer.Stop()
		e.tooltipTimer = nil
	}
	if entered {
		e.tooltipTimer = time.AfterFunc(e.tooltipDelay, func() {
			layer.ShowTooltip(note.ID, note.Title, note.Content)
		})
	}
	e.mu.Unlock()

	if !entered {
		layer.HideTooltip()
	}
}

// scheduleRetryLocked arms the single retry timer for a page whose text
// layer has not finished rendering. The pending timer is always cleared
// before a new one is scheduled. Retries are unbounded: notes may target
// pages not yet visited.
func (e *Engine) scheduleRetryLocked(page int) {
	if e.retryTimer != nil {
		e.retryTimer.Stop()
	}
	e.retryTimer = time.AfterFunc(e.retryDelay, func() {
		e.Reanchor(page)
	})
	e.logger.Debug("Anchor", "Text layer not ready, retry scheduled", map[string]interface{}{
		"page": page,
	})
}

func layerNodes(layer *render.TextLayer) []textmatch.Node {
	nodes := layer.Nodes()
	out := make([]textmatch.Node, len(nodes))
	for i, n := range nodes {
		out[i] = textmatch.Node{ID: n.ID, Text: n.Text}
	}
	return out
}

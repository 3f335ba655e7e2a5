package anchor

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"reading-surface/internal/gateway"
	"reading-surface/pkg/render"
)

// CapturePage diffs a page's annotation editor layer against the set of
// already-reported identities and ships each new element exactly once.
// Invoked on every polling tick and immediately after the engine signals the
// editor layer rendered.
func (e *Engine) CapturePage(page int) {
	pg, err := e.render.Page(page)
	if err != nil {
		return
	}
	layer, err := pg.EditorLayer()
	if err != nil {
		if !errors.Is(err, render.ErrNotReady) {
			e.logger.Warn("Capture", "Editor layer inaccessible", map[string]interface{}{
				"page": page, "error": err.Error(),
			})
		}
		return
	}

	for _, el := range layer.Elements() {
		key := e.captured.Key(page, el)
		if e.captured.Seen(key) {
			continue
		}
		// A broken element must not abort the rest of the diff.
		payload, err := e.capturePayload(page, el)
		if err != nil {
			e.logger.Warn("Capture", "Skipping unreadable annotation element", map[string]interface{}{
				"page": page, "error": err.Error(),
			})
			continue
		}
		e.captured.Mark(key)
		e.gw.Send(gateway.EvtAnnotation, payload)
	}
}

func (e *Engine) capturePayload(page int, el *render.AnnotationElement) (map[string]interface{}, error) {
	kind := classify(el)

	id := el.ID
	if id == "" {
		id = uuid.NewString()
	}

	pos := el.Pos
	pos.Page = page

	payload := map[string]interface{}{
		"id":       id,
		"type":     string(kind),
		"page":     page,
		"position": pos,
	}

	switch kind {
	case render.AnnotationFreeText:
		payload["text"] = el.Text
		payload["fontSize"] = el.FontSize
		payload["color"] = el.Color
	case render.AnnotationInk:
		if len(el.Bitmap) == 0 {
			return nil, errors.New("ink element without bitmap snapshot")
		}
		payload["bitmap"] = el.Bitmap
		payload["width"] = el.BitmapWidth
		payload["height"] = el.BitmapHeight
	case render.AnnotationHighlight:
		payload["color"] = el.Color
	}
	return payload, nil
}

// classify resolves an element's annotation type: the explicit kind
// attribute wins, then structural class hints, then unknown.
func classify(el *render.AnnotationElement) render.AnnotationKind {
	switch el.Kind {
	case render.AnnotationFreeText, render.AnnotationInk, render.AnnotationHighlight:
		return el.Kind
	}
	for _, class := range el.Classes {
		switch {
		case strings.Contains(class, "freeTextEditor"):
			return render.AnnotationFreeText
		case strings.Contains(class, "inkEditor"):
			return render.AnnotationInk
		case strings.Contains(class, "highlightEditor"):
			return render.AnnotationHighlight
		}
	}
	return render.AnnotationUnknown
}

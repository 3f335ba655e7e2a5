package render

import "sync"

// AnnotationKind classifies a user-created annotation element.
type AnnotationKind string

const (
	AnnotationFreeText  AnnotationKind = "freetext"
	AnnotationInk       AnnotationKind = "ink"
	AnnotationHighlight AnnotationKind = "highlight"
	AnnotationUnknown   AnnotationKind = "unknown"
)

// AnnotationElement is one element of a page's annotation editor layer: an
// ink stroke, a free text box or a highlight the user created directly in
// the view. The engine may or may not assign an ID or an explicit Kind;
// Classes carries the structural hints used to infer the kind when it is
// missing.
type AnnotationElement struct {
	ID      string
	Kind    AnnotationKind
	Classes []string

	// Free text payload.
	Text     string
	FontSize float64

	// Highlight and free text color; ink stroke color.
	Color string

	// Ink payload: a rendered bitmap snapshot plus pixel dimensions.
	Bitmap       []byte
	BitmapWidth  int
	BitmapHeight int

	Pos Position
}

// EditorLayer is a page's annotation editor overlay. The capture loop diffs
// its elements against the set of already-reported identities.
type EditorLayer struct {
	page int

	mu       sync.Mutex
	elements []*AnnotationElement
}

// NewEditorLayer builds a rendered editor layer for page.
func NewEditorLayer(page int) *EditorLayer {
	return &EditorLayer{page: page}
}

func (l *EditorLayer) PageNumber() int { return l.page }

// Add appends a user-created annotation element to the layer.
func (l *EditorLayer) Add(el *AnnotationElement) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.elements = append(l.elements, el)
}

// Elements returns the layer's annotation elements in creation order.
func (l *EditorLayer) Elements() []*AnnotationElement {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*AnnotationElement, len(l.elements))
	copy(out, l.elements)
	return out
}

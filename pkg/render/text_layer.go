package render

import (
	"fmt"
	"sync"
)

// TextNode is one selectable text node of a page's text layer. Nodes are
// regenerated on every render, so nothing outside the layer may hold on to
// them across renders.
type TextNode struct {
	ID   string
	Text string
}

// Decoration is a highlight marker wrapped around a raw-text span, tagged
// with the note id it re-anchors. Node indexes refer to the layer's current
// node list; offsets are raw byte offsets within those nodes.
type Decoration struct {
	NoteID      string
	StartNode   int
	StartOffset int
	EndNode     int
	EndOffset   int
	Text        string
	Exact       bool

	// OnClick and OnHover carry the interactive behavior attached by the
	// anchoring engine. OnHover receives true on enter and false on leave.
	OnClick func()
	OnHover func(entered bool)
}

// Tooltip is the floating note detail shown while hovering a decoration.
type Tooltip struct {
	NoteID  string
	Title   string
	Content string
}

// TextLayer is a page's overlay of selectable text nodes plus the highlight
// decorations wrapped around them. At most one decoration per note id is
// live at any time; AddDecoration enforces it.
type TextLayer struct {
	page int

	mu          sync.Mutex
	nodes       []TextNode
	decorations map[string]*Decoration
	tooltip     *Tooltip
}

// NewTextLayer builds a rendered text layer for page with the given nodes.
func NewTextLayer(page int, nodes []TextNode) *TextLayer {
	return &TextLayer{
		page:        page,
		nodes:       nodes,
		decorations: make(map[string]*Decoration),
	}
}

func (l *TextLayer) PageNumber() int { return l.page }

// Nodes returns the layer's text nodes in document order.
func (l *TextLayer) Nodes() []TextNode {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]TextNode, len(l.nodes))
	copy(out, l.nodes)
	return out
}

// AddDecoration wraps a span in a highlight marker. The range must lie within
// the bounds of the layer's concrete nodes; a range that cannot be
// constructed is reported as an error and skipped by the caller.
func (l *TextLayer) AddDecoration(d *Decoration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if d.NoteID == "" {
		return fmt.Errorf("decoration without note id")
	}
	if _, exists := l.decorations[d.NoteID]; exists {
		return fmt.Errorf("duplicate decoration for note %s", d.NoteID)
	}
	if err := l.checkRange(d); err != nil {
		return err
	}
	l.decorations[d.NoteID] = d
	return nil
}

func (l *TextLayer) checkRange(d *Decoration) error {
	if d.StartNode < 0 || d.StartNode >= len(l.nodes) || d.EndNode < 0 || d.EndNode >= len(l.nodes) {
		return fmt.Errorf("node index out of range for note %s", d.NoteID)
	}
	if d.StartNode > d.EndNode {
		return fmt.Errorf("inverted node range for note %s", d.NoteID)
	}
	if d.StartOffset < 0 || d.StartOffset > len(l.nodes[d.StartNode].Text) {
		return fmt.Errorf("start offset %d out of node bounds for note %s", d.StartOffset, d.NoteID)
	}
	if d.EndOffset < 0 || d.EndOffset > len(l.nodes[d.EndNode].Text) {
		return fmt.Errorf("end offset %d out of node bounds for note %s", d.EndOffset, d.NoteID)
	}
	if d.StartNode == d.EndNode && d.StartOffset > d.EndOffset {
		return fmt.Errorf("inverted offsets for note %s", d.NoteID)
	}
	return nil
}

// RemoveDecoration removes the live decoration for a note id, if any.
func (l *TextLayer) RemoveDecoration(noteID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.decorations[noteID]; !ok {
		return false
	}
	delete(l.decorations, noteID)
	return true
}

// Decoration returns the live decoration for a note id.
func (l *TextLayer) Decoration(noteID string) (*Decoration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.decorations[noteID]
	return d, ok
}

// Decorations returns all live decorations.
func (l *TextLayer) Decorations() []*Decoration {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Decoration, 0, len(l.decorations))
	for _, d := range l.decorations {
		out = append(out, d)
	}
	return out
}

// Click simulates a pointer click on a note's decoration.
func (l *TextLayer) Click(noteID string) {
	l.mu.Lock()
	d, ok := l.decorations[noteID]
	l.mu.Unlock()
	if ok && d.OnClick != nil {
		d.OnClick()
	}
}

// Hover simulates the pointer entering (true) or leaving (false) a note's
// decoration.
func (l *TextLayer) Hover(noteID string, entered bool) {
	l.mu.Lock()
	d, ok := l.decorations[noteID]
	l.mu.Unlock()
	if ok && d.OnHover != nil {
		d.OnHover(entered)
	}
}

// ShowTooltip displays the floating note detail for a decoration.
func (l *TextLayer) ShowTooltip(noteID, title, content string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tooltip = &Tooltip{NoteID: noteID, Title: title, Content: content}
}

// HideTooltip removes the floating detail, if shown.
func (l *TextLayer) HideTooltip() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tooltip = nil
}

// ActiveTooltip returns the currently shown tooltip, or nil.
func (l *TextLayer) ActiveTooltip() *Tooltip {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tooltip
}

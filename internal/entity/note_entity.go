package entity

// Note is a host-owned annotation: the text the user selected on a page plus
// the note body they wrote for it. The surface holds a read-only cached copy
// pushed down wholesale via the displayNotes command; it is never mutated or
// deleted client-side, only replaced.
type Note struct {
	ID           string `json:"id"`
	Page         int    `json:"page"`
	SelectedText string `json:"selectedText"`
	Title        string `json:"title,omitempty"`
	Content      string `json:"content"`
}

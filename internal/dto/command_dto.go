package dto

import "reading-surface/internal/entity"

// Command payloads decoded from inbound host messages. Validation tags are
// enforced at the dispatch boundary; a command failing validation is logged
// and dropped, never fatal.

type LoadDocumentCommand struct {
	URL string `json:"url" validate:"required"`
}

type GoToPageCommand struct {
	Page int `json:"page" validate:"gte=1"`
}

type SetZoomCommand struct {
	Zoom float64 `json:"zoom" validate:"gt=0"`
}

type DisplayNotesCommand struct {
	Notes []entity.Note `json:"notes" validate:"required,dive"`
}

// InboundMessage is the minimal shape every host message must satisfy before
// it is handed to the gateway.
type InboundMessage struct {
	Type string `json:"type" validate:"required"`
}

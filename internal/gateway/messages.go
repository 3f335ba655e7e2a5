package gateway

// Inbound command messages accepted from the host.
const (
	CmdLoadPDF             = "loadPDF"
	CmdLoadDocument        = "loadDocument"
	CmdGoToPage            = "goToPage"
	CmdSetZoom             = "setZoom"
	CmdAddBookmark         = "addBookmark"
	CmdToggleHighlightMode = "toggleHighlightMode"
	CmdDisplayNotes        = "displayNotes"
	CmdUserInteraction     = "userInteraction"
)

// Outbound event messages shipped to the host.
const (
	EvtPDFReady             = "pdfReady"
	EvtPageChange           = "pageChange"
	EvtIdleStateChange      = "idleStateChange"
	EvtTextSelection        = "textSelection"
	EvtHighlight            = "highlight"
	EvtBookmarkAdded        = "bookmarkAdded"
	EvtHighlightModeChanged = "highlightModeChanged"
	EvtNoteClicked          = "noteClicked"
	EvtAnnotation           = "annotation"
)

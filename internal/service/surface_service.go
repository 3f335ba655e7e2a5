package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"reading-surface/internal/anchor"
	"reading-surface/internal/dto"
	"reading-surface/internal/entity"
	"reading-surface/internal/gateway"
	"reading-surface/internal/pkg/logger"
	"reading-surface/pkg/render"
)

type ISurfaceService interface {
	// Start registers the command vocabulary on the gateway.
	Start()

	LoadDocument(url string)
	GoToPage(page int)
	SetZoom(zoom float64)
	AddBookmark()
	ToggleHighlightMode()
	DisplayNotes(notes []entity.Note)

	// ReportSelection and ReportHighlight relay view-side selections to the
	// host. The embedding view calls them; they are not engine bus events.
	ReportSelection(text string, pos render.Position)
	ReportHighlight(text, color string, pos render.Position)

	HighlightModeEnabled() bool
}

type surfaceService struct {
	engine   render.Engine
	gw       *gateway.Gateway
	anchor   *anchor.Engine
	logger   logger.ILogger
	validate *validator.Validate

	loadAttempts   int
	loadRetryDelay time.Duration

	mu            sync.Mutex
	highlightMode bool
}

func NewSurfaceService(
	engine render.Engine,
	gw *gateway.Gateway,
	anchorEngine *anchor.Engine,
	log logger.ILogger,
	loadAttempts int,
	loadRetryDelay time.Duration,
) ISurfaceService {
	if loadAttempts <= 0 {
		loadAttempts = 10
	}
	if loadRetryDelay <= 0 {
		loadRetryDelay = time.Second
	}
	return &surfaceService{
		engine:         engine,
		gw:             gw,
		anchor:         anchorEngine,
		logger:         log,
		validate:       validator.New(),
		loadAttempts:   loadAttempts,
		loadRetryDelay: loadRetryDelay,
	}
}

func (s *surfaceService) Start() {
	load := func(payload map[string]interface{}) {
		var cmd dto.LoadDocumentCommand
		if err := s.decode(payload, &cmd); err != nil {
			s.logger.Warn("Surface", "Invalid load command", map[string]interface{}{"error": err.Error()})
			return
		}
		s.LoadDocument(cmd.URL)
	}
	s.gw.Handle(gateway.CmdLoadPDF, load)
	s.gw.Handle(gateway.CmdLoadDocument, load)

	s.gw.Handle(gateway.CmdGoToPage, func(payload map[string]interface{}) {
		var cmd dto.GoToPageCommand
		if err := s.decode(payload, &cmd); err != nil {
			s.logger.Warn("Surface", "Invalid goToPage command", map[string]interface{}{"error": err.Error()})
			return
		}
		s.GoToPage(cmd.Page)
	})

	s.gw.Handle(gateway.CmdSetZoom, func(payload map[string]interface{}) {
		var cmd dto.SetZoomCommand
		if err := s.decode(payload, &cmd); err != nil {
			s.logger.Warn("Surface", "Invalid setZoom command", map[string]interface{}{"error": err.Error()})
			return
		}
		s.SetZoom(cmd.Zoom)
	})

	s.gw.Handle(gateway.CmdAddBookmark, func(map[string]interface{}) {
		s.AddBookmark()
	})

	s.gw.Handle(gateway.CmdToggleHighlightMode, func(map[string]interface{}) {
		s.ToggleHighlightMode()
	})

	s.gw.Handle(gateway.CmdDisplayNotes, func(payload map[string]interface{}) {
		var cmd dto.DisplayNotesCommand
		if err := s.decode(payload, &cmd); err != nil {
			s.logger.Warn("Surface", "Invalid displayNotes command", map[string]interface{}{"error": err.Error()})
			return
		}
		s.DisplayNotes(cmd.Notes)
	})
}

// LoadDocument opens a document and announces readiness. Initial setup is
// the one place where waiting is bounded: after the configured attempts the
// failure is logged and the host simply never receives pdfReady.
func (s *surfaceService) LoadDocument(url string) {
	go func() {
		if err := s.engine.Load(context.Background(), url); err != nil {
			s.logger.Error("Surface", "Document load failed", map[string]interface{}{
				"url": url, "error": err.Error(),
			})
			return
		}

		for attempt := 1; ; attempt++ {
			select {
			case <-s.engine.Ready():
				s.gw.Send(gateway.EvtPDFReady, map[string]interface{}{
					"totalPages":  s.engine.PageCount(),
					"currentPage": s.engine.CurrentPage(),
				})
				return
			case <-time.After(s.loadRetryDelay):
				if attempt >= s.loadAttempts {
					s.logger.Error("Surface", "Viewer never became ready", map[string]interface{}{
						"url": url, "attempts": attempt,
					})
					return
				}
				s.logger.Debug("Surface", "Viewer not ready yet", map[string]interface{}{
					"url": url, "attempt": attempt,
				})
			}
		}
	}()
}

// GoToPage navigates only when the target differs from the page in view.
func (s *surfaceService) GoToPage(page int) {
	if page == s.engine.CurrentPage() {
		return
	}
	if err := s.engine.GoTo(page); err != nil {
		s.logger.Warn("Surface", "Navigation failed", map[string]interface{}{
			"page": page, "error": err.Error(),
		})
	}
}

func (s *surfaceService) SetZoom(zoom float64) {
	s.engine.SetZoom(zoom)
}

// AddBookmark is deliberately not idempotent: every call emits a fresh
// bookmarkAdded with the current page.
func (s *surfaceService) AddBookmark() {
	s.gw.Send(gateway.EvtBookmarkAdded, map[string]interface{}{
		"id":   uuid.NewString(),
		"page": s.engine.CurrentPage(),
	})
}

func (s *surfaceService) ToggleHighlightMode() {
	s.mu.Lock()
	s.highlightMode = !s.highlightMode
	enabled := s.highlightMode
	s.mu.Unlock()

	s.gw.Send(gateway.EvtHighlightModeChanged, map[string]interface{}{
		"enabled": enabled,
	})
}

func (s *surfaceService) HighlightModeEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highlightMode
}

func (s *surfaceService) DisplayNotes(notes []entity.Note) {
	s.anchor.SetNotes(notes)
}

func (s *surfaceService) ReportSelection(text string, pos render.Position) {
	s.gw.Send(gateway.EvtTextSelection, map[string]interface{}{
		"text":     text,
		"page":     pos.Page,
		"position": pos,
	})
}

func (s *surfaceService) ReportHighlight(text, color string, pos render.Position) {
	if color == "" {
		color = "#ffff00"
	}
	s.gw.Send(gateway.EvtHighlight, map[string]interface{}{
		"text":     text,
		"page":     pos.Page,
		"color":    color,
		"position": pos,
	})
}

// decode round-trips a dispatched payload map into a typed command and
// validates it.
func (s *surfaceService) decode(payload map[string]interface{}, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("re-encode payload: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode command: %w", err)
	}
	if err := s.validate.Struct(out); err != nil {
		return fmt.Errorf("validate command: %w", err)
	}
	return nil
}

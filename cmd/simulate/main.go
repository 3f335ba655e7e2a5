package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"reading-surface/internal/bootstrap"
	"reading-surface/internal/config"
	"reading-surface/internal/gateway"
	"reading-surface/pkg/render"
	"reading-surface/pkg/render/memory"

	"github.com/fatih/color"
)

// Scripted end-to-end session against the in-memory engine. Drives the
// gateway with host commands and prints every outbound envelope.

func dispatch(c *bootstrap.Container, v map[string]interface{}) {
	raw, _ := json.Marshal(v)
	color.Cyan("HOST -> %s", string(raw))
	c.Gateway.Dispatch(raw)
}

func dumpOutbound(c *bootstrap.Container, since int) int {
	records := c.Sink.Records()
	for _, r := range records[since:] {
		if r.Direction != gateway.DirectionOutbound {
			continue
		}
		color.Green("SURFACE -> [%s] %s", r.Type, string(r.Payload))
	}
	return len(records)
}

func main() {
	cfg := config.Load()
	cfg.Viewer.IdleAfter = 2 * time.Second
	cfg.Viewer.PollInterval = 200 * time.Millisecond
	cfg.App.NatsURL = "" // standalone run
	cfg.App.LogFilePath = "simulate.log"
	cfg.App.BridgeLogFilePath = "simulate-bridge.log"

	engine := memory.NewEngine()
	engine.Register("story.pdf", memory.Document{
		Pages: []memory.PageContent{
			{TextNodes: []render.TextNode{
				{ID: "t0", Text: "Chapter One\n"},
				{ID: "t1", Text: "The quick brown fox jumps over the lazy dog."},
			}},
			{TextNodes: []render.TextNode{
				{ID: "t0", Text: "say hello\n"},
				{ID: "t1", Text: "world and goodbye"},
			}},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container := bootstrap.NewContainer(engine, cfg)
	container.Start(ctx)
	defer container.Stop()

	color.Yellow("\n=== 1. Load document ===")
	dispatch(container, map[string]interface{}{"type": "loadDocument", "url": "story.pdf"})
	time.Sleep(300 * time.Millisecond)
	seen := dumpOutbound(container, 0)

	color.Yellow("\n=== 2. Read page 1, then navigate ===")
	container.Tracker.Interaction()
	time.Sleep(1 * time.Second)
	dispatch(container, map[string]interface{}{"type": "goToPage", "page": 2})
	time.Sleep(100 * time.Millisecond)
	seen = dumpOutbound(container, seen)

	color.Yellow("\n=== 3. Anchor a note on page 2 ===")
	dispatch(container, map[string]interface{}{
		"type": "displayNotes",
		"notes": []map[string]interface{}{
			{"id": "n1", "page": 2, "selectedText": "hello   world", "title": "Greeting", "content": "Anchored across two text nodes."},
		},
	})
	if err := engine.RenderPage(2); err != nil {
		color.Red("render failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	page, _ := engine.Page(2)
	textLayer, err := page.TextLayer()
	if err != nil {
		color.Red("text layer unavailable: %v", err)
		return
	}
	for _, d := range textLayer.Decorations() {
		color.Magenta("DECORATION note=%s exact=%v text=%q", d.NoteID, d.Exact, d.Text)
	}
	if ds := textLayer.Decorations(); len(ds) > 0 {
		textLayer.Click(ds[0].NoteID)
	}
	time.Sleep(100 * time.Millisecond)
	seen = dumpOutbound(container, seen)

	color.Yellow("\n=== 4. User draws an annotation ===")
	editorLayer, err := page.EditorLayer()
	if err != nil {
		color.Red("editor layer unavailable: %v", err)
		return
	}
	editorLayer.Add(&render.AnnotationElement{
		Kind: render.AnnotationFreeText,
		Text: "margin note",
		Pos:  render.Position{Page: 2, X: 10, Y: 20, Width: 80, Height: 16},
	})
	time.Sleep(500 * time.Millisecond)
	seen = dumpOutbound(container, seen)

	color.Yellow("\n=== 5. Go idle, then wake ===")
	time.Sleep(cfg.Viewer.IdleAfter + 500*time.Millisecond)
	container.Tracker.Interaction()
	time.Sleep(100 * time.Millisecond)
	dumpOutbound(container, seen)

	fmt.Println()
	color.Yellow("Done. %d messages recorded.", len(container.Sink.Records()))
}

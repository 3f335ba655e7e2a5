package main

import (
	"context"
	"log"

	"reading-surface/internal/bootstrap"
	"reading-surface/internal/config"
	"reading-surface/internal/server"
	"reading-surface/internal/tracer"
	"reading-surface/pkg/render"
	"reading-surface/pkg/render/memory"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.App.OtlpEndpoint)
	defer shutdownTracer(context.Background())

	// 3. Render Engine
	// The in-memory engine stands in for an embedded viewer; a sample
	// document is registered so the surface can be driven end to end.
	engine := memory.NewEngine()
	engine.Register("sample.pdf", memory.Document{
		Pages: []memory.PageContent{
			{TextNodes: []render.TextNode{
				{ID: "t0", Text: "Chapter One\n"},
				{ID: "t1", Text: "It was a bright cold day in April, and the clocks were striking thirteen."},
			}},
			{TextNodes: []render.TextNode{
				{ID: "t0", Text: "Chapter Two\n"},
				{ID: "t1", Text: "The second page continues the story with more text to anchor notes on."},
			}},
		},
	})

	// 4. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(engine, cfg)

	// 5. Start Background Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	container.Start(ctx)
	defer container.Stop()

	// 6. Initialize Server
	srv := server.New(cfg, container)

	// 7. Run Server
	log.Fatal(srv.Run())
}

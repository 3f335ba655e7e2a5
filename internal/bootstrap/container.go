package bootstrap

import (
	"context"
	"log"
	"time"

	"reading-surface/internal/anchor"
	"reading-surface/internal/config"
	"reading-surface/internal/controller"
	"reading-surface/internal/gateway"
	"reading-surface/internal/pkg/logger"
	"reading-surface/internal/repository/memory"
	"reading-surface/internal/service"
	"reading-surface/internal/tracker"
	"reading-surface/internal/websocket"
	"reading-surface/pkg/render"

	pktNats "reading-surface/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type Container struct {
	// Controllers
	SurfaceController controller.ISurfaceController

	// Domain components
	Gateway      *gateway.Gateway
	Sink         *gateway.Sink
	Tracker      *tracker.Tracker
	AnchorEngine *anchor.Engine
	RenderEngine render.Engine

	SurfaceService service.ISurfaceService

	// WebSockets bridge to the host page
	WebSocketHub *websocket.Hub

	// Background Services (Exposed for main.go to run)
	AnalyticsForwarder service.IAnalyticsForwarder

	natsSub *pktNats.Subscriber
}

func NewContainer(engine render.Engine, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	sink := gateway.NewSink(0)
	gw := gateway.New(pubSub, sysLogger, sink, time.Now)

	// 3. In-Memory Repositories
	noteRepo := memory.NewNoteRepository()
	captureRepo := memory.NewCaptureRepository()

	// 4. Domain Components
	pageTracker := tracker.New(gw, sysLogger, time.Now, cfg.Viewer.IdleAfter)

	anchorEngine := anchor.New(anchor.Options{
		Render:       engine,
		Gateway:      gw,
		Logger:       sysLogger,
		Notes:        noteRepo,
		Captured:     captureRepo,
		CurrentPage:  pageTracker.CurrentPage,
		RetryDelay:   cfg.Viewer.AnchorRetryDelay,
		TooltipDelay: cfg.Viewer.TooltipDelay,
		PollInterval: cfg.Viewer.PollInterval,
	})

	surfaceService := service.NewSurfaceService(
		engine,
		gw,
		anchorEngine,
		sysLogger,
		cfg.Viewer.LoadAttempts,
		cfg.Viewer.LoadRetryDelay,
	)

	// 5. Infrastructure
	// NATS is optional: without a URL the surface runs standalone and
	// outbound analytics stay on the in-process bus only.
	var natsPub *pktNats.Publisher
	var natsSub *pktNats.Subscriber
	if cfg.App.NatsURL != "" {
		var err error
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		}
		natsSub, err = pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		}
	}

	var forwarder service.IAnalyticsForwarder
	if natsPub != nil {
		forwarder = service.NewAnalyticsForwarder(gw, natsPub, sysLogger)
	}

	// WebSocket Hub with its own log file, so bridge traffic does not
	// drown the application log.
	bridgeLogger := logger.NewIsolatedLogger(cfg.App.BridgeLogFilePath)
	wsHub := websocket.NewHub(gw, bridgeLogger)

	return &Container{
		SurfaceController:  controller.NewSurfaceController(surfaceService, gw, sink),
		Gateway:            gw,
		Sink:               sink,
		Tracker:            pageTracker,
		AnchorEngine:       anchorEngine,
		RenderEngine:       engine,
		SurfaceService:     surfaceService,
		WebSocketHub:       wsHub,
		AnalyticsForwarder: forwarder,
		natsSub:            natsSub,
	}
}

// Start wires the runtime pieces together. The tracker subscribes before the
// re-anchoring engine: the page-change telemetry must already be recorded
// when re-anchoring reads the current page.
func (c *Container) Start(ctx context.Context) {
	c.SurfaceService.Start()
	c.Tracker.Start(c.RenderEngine)
	c.Gateway.Handle(gateway.CmdUserInteraction, func(map[string]interface{}) {
		c.Tracker.Interaction()
	})
	c.AnchorEngine.Start(ctx)

	go func() {
		if err := c.WebSocketHub.Run(ctx); err != nil {
			log.Printf("Background WebSocket Hub Error: %v", err)
		}
	}()

	if c.AnalyticsForwarder != nil {
		go func() {
			log.Println("Background: Starting Analytics Forwarder...")
			if err := c.AnalyticsForwarder.Run(ctx); err != nil {
				log.Printf("Background Forwarder Error: %v", err)
			}
		}()
	}

	// Remote hosts can drive the viewer through NATS work-queue commands.
	if c.natsSub != nil {
		err := c.natsSub.Subscribe("surface.commands.inbound", "surface-gateway", func(_ context.Context, data []byte) error {
			c.Gateway.Dispatch(data)
			return nil
		})
		if err != nil {
			log.Printf("[WARN] Failed to subscribe to NATS commands: %v", err)
		}
	}
}

// Stop releases background resources.
func (c *Container) Stop() {
	c.AnchorEngine.Stop()
	if c.natsSub != nil {
		c.natsSub.Close()
	}
}

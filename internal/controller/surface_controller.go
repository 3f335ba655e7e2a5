package controller

import (
	"encoding/json"

	"reading-surface/internal/dto"
	"reading-surface/internal/gateway"
	"reading-surface/internal/pkg/serverutils"
	"reading-surface/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type ISurfaceController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
	Messages(ctx *fiber.Ctx) error
	Dispatch(ctx *fiber.Ctx) error
}

type surfaceController struct {
	surfaceService service.ISurfaceService
	gateway        *gateway.Gateway
	sink           *gateway.Sink
	validate       *validator.Validate
}

func NewSurfaceController(surfaceService service.ISurfaceService, gw *gateway.Gateway, sink *gateway.Sink) ISurfaceController {
	return &surfaceController{
		surfaceService: surfaceService,
		gateway:        gw,
		sink:           sink,
		validate:       validator.New(),
	}
}

func (c *surfaceController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/surface/v1")
	h.Get("health", c.Health)
	h.Get("diagnostics/messages", c.Messages)
	h.Post("messages", c.Dispatch)
}

func (c *surfaceController) Health(ctx *fiber.Ctx) error {
	return serverutils.OK(ctx, "ok", fiber.Map{
		"highlightMode": c.surfaceService.HighlightModeEnabled(),
	})
}

// Messages returns the recent message log, optionally filtered by
// ?direction=in|out and ?type=<messageType>.
func (c *surfaceController) Messages(ctx *fiber.Ctx) error {
	direction := ctx.Query("direction")
	msgType := ctx.Query("type")

	if direction != "" && msgType != "" {
		return serverutils.OK(ctx, "Success fetch messages", c.sink.OfType(gateway.Direction(direction), msgType))
	}
	return serverutils.OK(ctx, "Success fetch messages", c.sink.Records())
}

// Dispatch accepts a raw viewer message and routes it through the gateway,
// exactly as if it had arrived over the websocket bridge.
func (c *surfaceController) Dispatch(ctx *fiber.Ctx) error {
	body := ctx.Body()

	var msg dto.InboundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return serverutils.NewAppError(fiber.StatusBadRequest, "malformed message body")
	}
	if err := c.validate.Struct(msg); err != nil {
		return serverutils.NewAppError(fiber.StatusBadRequest, "message type is required")
	}

	c.gateway.Dispatch(body)
	return serverutils.OK(ctx, "Message dispatched", fiber.Map{"type": msg.Type})
}

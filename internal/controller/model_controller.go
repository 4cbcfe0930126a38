package controller

import (
	"nexus-ai-be/internal/dto"
	"nexus-ai-be/internal/pkg/logger"
	"nexus-ai-be/internal/pkg/serverutils"
	"nexus-ai-be/internal/service"
	internalWS "nexus-ai-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IModelController interface {
	RegisterRoutes(r fiber.Router)
	Loaded(ctx *fiber.Ctx) error
	Available(ctx *fiber.Ctx) error
	Load(ctx *fiber.Ctx) error
	Unload(ctx *fiber.Ctx) error
	UnloadByBody(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Events(ctx *fiber.Ctx) error
}

type modelController struct {
	modelService service.IModelService
	hub          *internalWS.Hub
	jwtSecret    string
	logger       logger.ILogger
}

func NewModelController(modelService service.IModelService, hub *internalWS.Hub, jwtSecret string, log logger.ILogger) IModelController {
	return &modelController{
		modelService: modelService,
		hub:          hub,
		jwtSecret:    jwtSecret,
		logger:       log,
	}
}

func (c *modelController) RegisterRoutes(r fiber.Router) {
	// browsers cannot set headers on a websocket handshake, so the event
	// stream authenticates itself and sits outside the JWT group
	r.Get("/models/v1/events", c.Events)

	h := r.Group("/models/v1")
	h.Use(serverutils.JwtMiddleware(c.jwtSecret))
	h.Get("/loaded", c.Loaded)
	h.Get("/available", c.Available)
	h.Post("/load", c.Load)
	h.Post("/unload", c.UnloadByBody)
	h.Delete("/unload/:id", c.Unload)
	h.Get("/:id/status", c.Status)
}

func (c *modelController) Loaded(ctx *fiber.Ctx) error {
	models := c.modelService.ListLoaded(ctx.UserContext())
	return ctx.JSON(serverutils.SuccessResponse("Loaded models", models))
}

func (c *modelController) Available(ctx *fiber.Ctx) error {
	adapters, err := c.modelService.ListAvailable(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Available adapters", adapters))
}

func (c *modelController) Load(ctx *fiber.Ctx) error {
	var req dto.LoadAdapterRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	res, err := c.modelService.Load(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("LoRA adapter loaded successfully", res))
}

func (c *modelController) Unload(ctx *fiber.Ctx) error {
	id := ctx.Params("id")
	if err := c.modelService.Unload(ctx.UserContext(), id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Model unloaded successfully", fiber.Map{"model_id": id}))
}

func (c *modelController) UnloadByBody(ctx *fiber.Ctx) error {
	var req dto.UnloadModelRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if err := c.modelService.Unload(ctx.UserContext(), req.ModelId); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Model unloaded successfully", fiber.Map{"model_id": req.ModelId}))
}

func (c *modelController) Status(ctx *fiber.Ctx) error {
	status := c.modelService.Status(ctx.UserContext(), ctx.Params("id"))
	return ctx.JSON(serverutils.SuccessResponse("Model status", status))
}

// Events upgrades to a websocket carrying adapter lifecycle events.
// Token: query "token" (browsers) or the Authorization header (tooling).
func (c *modelController) Events(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}

	tokenStr := ctx.Query("token")
	if tokenStr == "" {
		authHeader := ctx.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" || c.jwtSecret == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Missing token (Query 'token' or Header 'Authorization')")
	}

	claims, ok := serverutils.ParseToken(tokenStr, c.jwtSecret)
	if !ok {
		c.logger.Warn("ModelController", "Invalid Token in WS Handshake", nil)
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}
	adminID, _ := claims["user_id"].(string)

	return websocket.New(func(conn *websocket.Conn) {
		internalWS.ServeWs(c.hub, conn, adminID)
	})(ctx)
}

package controller

import (
	"nexus-ai-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

type healthController struct {
	modelService service.IModelService
}

func NewHealthController(modelService service.IModelService) IHealthController {
	return &healthController{modelService: modelService}
}

// RegisterRoutes mounts on the app root, outside /api.
func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
	r.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

func (c *healthController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(c.modelService.Health(ctx.UserContext()))
}

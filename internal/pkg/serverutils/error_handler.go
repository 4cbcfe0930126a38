package serverutils

import (
	"errors"

	"nexus-ai-be/pkg/adapter"
	"nexus-ai-be/pkg/llm"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware turns errors returned by handlers into the JSON
// envelope. It must run before the routes it guards.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		code, message := StatusFor(err)
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}

// StatusFor maps an error to the HTTP status reported to clients.
func StatusFor(err error) (int, string) {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message
	case errors.Is(err, adapter.ErrAdapterNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, adapter.ErrAdapterConflict):
		return fiber.StatusConflict, err.Error()
	case errors.Is(err, adapter.ErrAdapterLoadFailed):
		return fiber.StatusBadGateway, err.Error()
	case errors.Is(err, llm.ErrBackendTimeout):
		return fiber.StatusGatewayTimeout, err.Error()
	case errors.Is(err, llm.ErrBackendUnavailable):
		return fiber.StatusServiceUnavailable, err.Error()
	default:
		return fiber.StatusInternalServerError, err.Error()
	}
}

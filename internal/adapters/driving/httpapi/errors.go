package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
)

// StatusCode maps an error to the HTTP status returned to clients.
func StatusCode(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnsupportedType):
		return fiber.StatusBadRequest
	case domain.IsNotFound(err):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrBuildInProgress):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrUpstreamTimeout),
		errors.Is(err, domain.ErrNoGeneration),
		errors.Is(err, domain.ErrEmbeddingUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// errorHandler renders every handler error as {"error": ..., "status": "error"}.
func errorHandler(c fiber.Ctx, err error) error {
	code := StatusCode(err)
	if code >= fiber.StatusInternalServerError {
		logger.Error("%s %s: %v", c.Method(), c.Path(), err)
	} else {
		logger.Debug("%s %s: %v", c.Method(), c.Path(), err)
	}
	if domain.IsRetryable(err) {
		c.Set(fiber.HeaderRetryAfter, "5")
	}
	return c.Status(code).JSON(fiber.Map{
		"error":  err.Error(),
		"status": "error",
	})
}

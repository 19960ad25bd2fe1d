package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/CloudShare/internal/app/service"
	"go.uber.org/zap"
)

// contentError maps a retrieval failure to the plain-text responses served
// on /raw and /sub. expiredMsg differs between the two routes.
func contentError(c *fiber.Ctx, logger *zap.Logger, err error, expiredMsg string) error {
	status, msg := fiber.StatusInternalServerError, "Internal Server Error"
	switch {
	case errors.Is(err, service.ErrNotFound):
		status, msg = fiber.StatusNotFound, "Not found"
	case errors.Is(err, service.ErrExpired):
		status, msg = fiber.StatusGone, expiredMsg
	case errors.Is(err, service.ErrLimitReached):
		status, msg = fiber.StatusGone, "Download limit reached"
	case errors.Is(err, service.ErrUpstreamUnavailable):
		status, msg = fiber.StatusBadGateway, "Failed to fetch subscription"
	default:
		logger.Error("failed to resolve content",
			zap.String("id", c.Params("id")),
			zap.Error(err),
		)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(status).SendString(msg)
}

// jsonError maps service errors to the {error} JSON shape of the API routes.
func jsonError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	if ve, ok := service.AsValidation(err); ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ve.Message})
	}
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	case errors.Is(err, service.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	default:
		logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
	}
}

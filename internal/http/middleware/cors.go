package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// CORS allows any origin to call the sharing API. Preflight requests are
// answered here and never reach a handler.
func CORS() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		c.Set(fiber.HeaderAccessControlAllowMethods, "GET, POST, OPTIONS, DELETE")
		c.Set(fiber.HeaderAccessControlAllowHeaders, "Content-Type, Authorization")
		c.Set(fiber.HeaderAccessControlExposeHeaders, "Content-Disposition, subscription-userinfo, "+RequestIDHeader)

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}

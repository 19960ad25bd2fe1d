package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// AdminAuth rejects requests whose Bearer credential is not accepted by
// verify.
func AdminAuth(verify func(credential string) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get(fiber.HeaderAuthorization)
		credential, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || credential == "" || !verify(credential) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}

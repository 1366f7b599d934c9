package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/adpilot/backend/internal/http/dto"
)

// InternalKeyMiddleware guards service-to-service callbacks with a shared key
// in X-Internal-Key. An empty key rejects every request.
func InternalKeyMiddleware(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get("X-Internal-Key")
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid internal key"})
		}
		return c.Next()
	}
}

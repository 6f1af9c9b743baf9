package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Walrus/app/controllers"
	"github.com/ManuelReschke/Walrus/internal/pkg/usercontext"
)

// RequireStaff lets only staff members through. Must run after APIKeyAuthMiddleware.
func RequireStaff(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsAuthenticated {
		return controllers.Unauthorized(c, "authentication required")
	}
	if !userCtx.IsStaff {
		return controllers.Forbidden(c, "staff only")
	}
	return c.Next()
}

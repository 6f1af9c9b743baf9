package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Walrus/app/controllers"
	"github.com/ManuelReschke/Walrus/app/models"
	"github.com/ManuelReschke/Walrus/app/repository"
	"github.com/ManuelReschke/Walrus/internal/pkg/usercontext"
)

// APIKeyAuthMiddleware authenticates requests carrying a member API key header.
func APIKeyAuthMiddleware(members repository.MemberRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := ExtractAPIKey(c)
		if apiKey == "" {
			return controllers.Unauthorized(c, "missing API key")
		}

		member, err := members.GetByAPIKeyHash(models.HashAPIKey(apiKey))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return controllers.Unauthorized(c, "invalid API key")
			}
			log.Errorf("[API] API key lookup failed: %v", err)
			return controllers.Fail(c, err)
		}
		if !member.IsActive() {
			return controllers.Forbidden(c, "member inactive")
		}

		usercontext.Set(c, member)
		return c.Next()
	}
}

// ExtractAPIKey reads the key from X-API-Key or a Bearer Authorization header.
func ExtractAPIKey(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

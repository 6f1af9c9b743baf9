package controllers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Walrus/app/models"
	"github.com/ManuelReschke/Walrus/internal/pkg/provider"
	"github.com/ManuelReschke/Walrus/internal/pkg/usercontext"
)

var validate = validator.New()

// parseBody decodes the JSON body into dst and validates it. An empty body
// leaves dst untouched so defaults set by the caller survive.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(dst); err != nil {
			return err
		}
	}
	return validate.Struct(dst)
}

// currentMember returns the authenticated member or an unauthorized error.
func currentMember(c *fiber.Ctx) (*models.Member, error) {
	member := usercontext.Member(c)
	if member == nil {
		return nil, provider.NewError(provider.CodeUnauthorized, "authentication required", nil)
	}
	return member, nil
}

package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/Walrus/app/controllers"
	"github.com/ManuelReschke/Walrus/app/models"
	apiv1 "github.com/ManuelReschke/Walrus/internal/api/v1"
	"github.com/ManuelReschke/Walrus/internal/pkg/cache"
	"github.com/ManuelReschke/Walrus/internal/pkg/middleware"
	"github.com/ManuelReschke/Walrus/internal/pkg/provider"
)

const defaultRateLimit = 120

type ApiRouter struct {
	deps Deps
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", h.limiter())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return controllers.OK(ctx, fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	apiv1.RegisterHandlers(v1, h.deps.API, apiv1.Security{
		Auth:  middleware.APIKeyAuthMiddleware(h.deps.Members),
		Staff: middleware.RequireStaff,
	})
}

// limiter counts requests per API key, falling back to the client IP, in the
// shared redis so every instance sees the same window.
func (h ApiRouter) limiter() fiber.Handler {
	limit := h.deps.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	cfg := limiter.Config{
		Max:        limit,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if key := middleware.ExtractAPIKey(c); key != "" {
				return "key:" + models.HashAPIKey(key)
			}
			return "ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(controllers.Response{
				Code:    provider.CodeResourceBusy,
				Message: "too many requests",
			})
		},
	}
	if h.deps.Redis != nil {
		cfg.Storage = cache.NewStorage(h.deps.Redis, cache.LimiterStorageDB)
	}
	return limiter.New(cfg)
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}

package router

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuelReschke/Walrus/app/controllers"
	"github.com/ManuelReschke/Walrus/internal/pkg/provider"
)

const healthTimeout = 2 * time.Second

// HttpRouter serves the operational routes: health and metrics.
type HttpRouter struct {
	deps Deps
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", h.health)

	metrics := app.Group("/metrics")
	if len(h.deps.MonitorUsers) > 0 {
		metrics.Use(basicauth.New(basicauth.Config{Users: h.deps.MonitorUsers}))
	}
	metrics.Get("/prometheus", adaptor.HTTPHandler(promhttp.Handler()))
	metrics.Get("/", monitor.New())
}

func NewHttpRouter(deps Deps) *HttpRouter {
	return &HttpRouter{deps: deps}
}

// health pings the database and redis. Any failure answers 503.
func (h HttpRouter) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	checks := fiber.Map{"database": "ok", "redis": "ok"}
	healthy := true

	if h.deps.DB != nil {
		sqlDB, err := h.deps.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			log.Warnf("[API] Health check database: %v", err)
			checks["database"] = "unavailable"
			healthy = false
		}
	}
	if h.deps.Redis != nil {
		if err := h.deps.Redis.Ping(ctx).Err(); err != nil {
			log.Warnf("[API] Health check redis: %v", err)
			checks["redis"] = "unavailable"
			healthy = false
		}
	}

	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(controllers.Response{
			Code:    provider.CodeResourceNotAvailable,
			Message: provider.CodeResourceNotAvailable.Message(),
			Data:    checks,
		})
	}
	return controllers.OK(c, checks)
}

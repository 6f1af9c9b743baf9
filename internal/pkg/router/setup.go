package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Walrus/app/repository"
	apiv1 "github.com/ManuelReschke/Walrus/internal/api/v1"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps are the services the routers hand to their routes.
type Deps struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Members repository.MemberRepository
	API     apiv1.ServerInterface

	// MonitorUsers protects /metrics with basic auth. Empty leaves it open.
	MonitorUsers map[string]string
	// RateLimit is the number of API requests allowed per key and minute.
	RateLimit int
}

func InstallRouter(app *fiber.App, deps Deps) {
	// Ops routes first so health checks are not rate limited.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

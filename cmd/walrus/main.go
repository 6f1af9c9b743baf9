package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	flog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/Walrus/app/controllers"
	"github.com/ManuelReschke/Walrus/app/repository"
	apiv1 "github.com/ManuelReschke/Walrus/internal/api/v1"
	"github.com/ManuelReschke/Walrus/internal/pkg/cache"
	"github.com/ManuelReschke/Walrus/internal/pkg/database"
	"github.com/ManuelReschke/Walrus/internal/pkg/env"
	"github.com/ManuelReschke/Walrus/internal/pkg/ingestion"
	"github.com/ManuelReschke/Walrus/internal/pkg/jobqueue"
	"github.com/ManuelReschke/Walrus/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/Walrus/internal/pkg/provider"
	"github.com/ManuelReschke/Walrus/internal/pkg/proxyaccount"
	"github.com/ManuelReschke/Walrus/internal/pkg/router"
	"github.com/ManuelReschke/Walrus/internal/pkg/secretstore"
	"github.com/ManuelReschke/Walrus/internal/pkg/spotify"
)

func main() {
	app, manager := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		flog.Info("Shutting down")
		manager.Stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			flog.Errorf("Shutdown: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

// NewApplication wires every service and returns the app with the running job manager.
func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	rdb := cache.GetClient()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	// PROVIDER
	def, err := provider.Lookup(provider.CodeSpotify)
	if err != nil {
		log.Fatal(err)
	}
	apps, err := providerApps(def)
	if err != nil {
		log.Fatal(err)
	}
	for _, app := range apps {
		if err := repos.Provider.Ensure(def.App(app.Code).Row()); err != nil {
			log.Fatalf("seed provider %s: %v", app.Code, err)
		}
	}
	cfg := apps[0]

	box, err := tokenBox()
	if err != nil {
		log.Fatalf("secret store: %v", err)
	}
	if box == nil {
		flog.Warn("TOKEN_ENCRYPTION_KEY is empty, provider tokens are stored in plaintext (dev only)")
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	states := provider.NewStateStore(cache.NewStorage(rdb, cache.StateStorageDB))
	tokens := provider.NewTokenService(repos.APIToken, repos.Provider, cache.NewTokenCache(rdb), box, states)
	for _, app := range apps {
		tokens.Register(provider.NewHandler(app, httpClient), provider.NewSpotifyProfile(app, httpClient))
	}

	spotifyClient := spotify.NewClient(provider.NewGateway(cfg, httpClient))

	// SERVICES
	usage := counter.New(rdb, repos.ProxyAccount)
	proxies := proxyaccount.NewService(
		repos.ProxyAccount,
		repos.Provider,
		cache.NewProxyAssignmentCache(rdb, cache.DefaultAssignmentTTL),
		cache.NewLocker(rdb),
		tokens,
		usage,
	)
	ingest := ingestion.NewService(repos, tokens, spotifyClient, cache.NewPlaylistOrderCache(rdb, cache.DefaultPlaylistOrderTTL), nil)
	ingest.SetMarket(env.GetEnv("SPOTIFY_MARKET", spotify.DefaultMarket))

	// JOBS
	queue := jobqueue.NewQueue(rdb, env.GetEnvInt("JOB_WORKERS", jobqueue.DefaultWorkers))
	jobqueue.RegisterIngestion(queue, ingest)
	ingest.SetScheduler(queue)

	intervals := jobqueue.DefaultIntervals()
	intervals.CollectAll = env.GetEnvDuration("JOB_COLLECT_ALL_INTERVAL", intervals.CollectAll)
	intervals.ArtistSweep = env.GetEnvDuration("JOB_ARTIST_SWEEP_INTERVAL", intervals.ArtistSweep)
	intervals.ContextSweep = env.GetEnvDuration("JOB_CONTEXT_SWEEP_INTERVAL", intervals.ContextSweep)
	intervals.CounterFlush = env.GetEnvDuration("JOB_COUNTER_FLUSH_INTERVAL", intervals.CounterFlush)
	manager := jobqueue.NewManager(queue, usage, intervals)
	manager.Start()

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:     "walrus",
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: env.GetEnv("OPENAPI_FILE", "./public/docs/v1/openapi.yml"),
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	api := apiv1.NewAPIServer(
		controllers.NewAuthController(tokens, repos.ProxyAccount, proxies, provider.CodeSpotify, cfg.CallbackRedirect),
		controllers.NewProxyAccountController(proxies, provider.CodeSpotify),
		controllers.NewIngestionController(ingest),
	)
	router.InstallRouter(app, router.Deps{
		DB:           db,
		Redis:        rdb,
		Members:      repos.Member,
		API:          api,
		MonitorUsers: monitorUsers(),
		RateLimit:    env.GetEnvInt("API_RATE_LIMIT", 120),
	})

	return app, manager
}

// tokenBox opens the token encryption box. Plaintext storage is only allowed in development.
func tokenBox() (*secretstore.Box, error) {
	return secretstore.Require(env.GetEnv("TOKEN_ENCRYPTION_KEY", ""), env.IsDev())
}

// providerApps returns the config of the primary app followed by the extra
// proxy apps named in SPOTIFY_PROXY_APPS.
func providerApps(def provider.Definition) ([]provider.Config, error) {
	primary, err := provider.ConfigFromEnv(def)
	if err != nil {
		return nil, err
	}
	out := []provider.Config{primary}
	seen := map[string]bool{def.Code: true}
	for _, code := range strings.Split(env.GetEnv("SPOTIFY_PROXY_APPS", ""), ",") {
		code = strings.TrimSpace(code)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		cfg, err := provider.ConfigFromEnv(def.App(code))
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

func monitorUsers() map[string]string {
	user := env.GetEnv("METRICS_USER", "")
	if user == "" {
		return nil
	}
	return map[string]string{user: env.GetEnv("METRICS_PASSWORD", "")}
}

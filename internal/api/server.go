package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/glycowatch/backend/internal/advisor"
	"github.com/glycowatch/backend/internal/api/handlers"
	"github.com/glycowatch/backend/internal/assets"
	"github.com/glycowatch/backend/internal/metrics"
	"github.com/glycowatch/backend/internal/middleware/ratelimit"
	"github.com/glycowatch/backend/internal/middleware/security"
	"github.com/glycowatch/backend/internal/middleware/validation"
	"github.com/glycowatch/backend/internal/risk"
	"github.com/glycowatch/backend/pkg/config"
	"github.com/glycowatch/backend/pkg/logger"
)

const (
	dashboardTitle = "Glycemic Risk Dashboard"
	maxQueryLength = 2000
)

// Deps are the long-lived components the HTTP surface is built from.
// Registry and Cache are optional and must be left nil when disabled.
type Deps struct {
	Handle   *assets.Handle
	Pipeline *risk.Pipeline
	Advisor  *advisor.Advisor
	Registry handlers.Registry
	Cache    handlers.Pinger
	Limiter  *ratelimit.RateLimiter

	// AccessLog enables fiber's request logger.
	AccessLog bool
}

func NewApp(cfg *config.Config, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:             cfg.Server.BodyLimit,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if deps.AccessLog {
		app.Use(fiberlogger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.Origins(), ","),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.Origins(),
		IsDevelopment:  cfg.Server.IsDevelopment(),
	}))

	threshold := deps.Pipeline.Threshold()

	dashboardHandler := handlers.NewDashboardHandler(dashboardTitle, threshold, deps.Advisor.Available())
	assessHandler := handlers.NewAssessHandler(deps.Pipeline, cfg.Risk.TopN)
	suggestHandler := handlers.NewSuggestHandler(deps.Advisor)
	assetsHandler := handlers.NewAssetsHandler(deps.Handle, threshold, deps.Registry)
	healthHandler := handlers.NewHealthHandler(deps.Advisor.Available(), deps.Cache)
	wsHandler := handlers.NewWebSocketHandler(
		deps.Advisor,
		maxQueryLength,
		time.Duration(cfg.Advisor.TimeoutSec)*time.Second,
	)

	app.Get("/", dashboardHandler.HandleIndex)
	app.Get("/metrics", metrics.MetricsHandler())

	limit := func(c *fiber.Ctx) error { return c.Next() }
	if deps.Limiter != nil {
		limit = deps.Limiter.Middleware()
	}

	api := app.Group("/api/v1", validation.Middleware(validation.Config{
		MaxQueryLength: maxQueryLength,
		Logger:         logger.Named("validation"),
	}))

	api.Post("/assess", assessHandler.HandleAssess)
	api.Post("/suggest", limit, suggestHandler.HandleSuggest)

	api.Get("/schema", assetsHandler.GetSchema)
	api.Get("/assets", assetsHandler.GetAssets)
	api.Get("/assets/history", assetsHandler.GetHistory)

	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/suggest", limit, websocket.New(wsHandler.HandleConnection))

	return app
}

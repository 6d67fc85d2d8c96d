// Package server assembles the Fiber application: middleware, static files,
// operational endpoints and the API routes.
package server

import (
	"context"
	"strings"
	"time"

	"inventory/internal/config"
	"inventory/internal/handlers"
	"inventory/internal/middleware"
	"inventory/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthCheck reports whether a backing store is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Config         *config.Config
	Log            *zap.Logger
	AuthService    *services.AuthService
	ProductService *services.ProductService
	// Health is optional; without it /health always reports healthy.
	Health HealthCheck
	// Registry is optional; a fresh one is created when nil.
	Registry *prometheus.Registry
}

// New builds the application. It does not start listening.
func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "inventory",
		ErrorHandler:          handlers.ErrorHandler(d.Log),
		DisableStartupMessage: true,
		BodyLimit:             10 * 1024 * 1024,
	})

	registry := d.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	metrics := middleware.NewMetrics(registry)

	// --- Middleware ---
	app.Use(requestid.New())
	app.Use(metrics.Handler())
	app.Use(middleware.RequestLogger(d.Log.Named("http")))
	app.Use(recover.New())
	app.Use(corsHandler(d.Config.CORSOrigins))

	app.Static("/uploads", d.Config.Media.UploadDir)

	// --- Operational endpoints ---
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Home Page")
	})
	app.Get("/health", healthHandler(d.Health))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// --- API Routes ---
	api := app.Group("/api")
	protected := middleware.AuthRequired(d.AuthService, d.Log.Named("auth_gate"))

	handlers.NewAuthHandler(d.AuthService, d.Config.Auth, d.Log).RegisterRoutes(api, protected)
	handlers.NewProductHandler(d.ProductService, d.Log).RegisterRoutes(api, protected)

	return app
}

func corsHandler(origins []string) fiber.Handler {
	allowOrigins := strings.Join(origins, ",")
	if allowOrigins == "" || allowOrigins == "*" {
		// Browsers refuse credentials with a wildcard origin.
		return cors.New(cors.Config{AllowOrigins: "*"})
	}
	return cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowCredentials: true,
	})
}

func healthHandler(check HealthCheck) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := fiber.Map{"status": "healthy", "time": time.Now().Format(time.RFC3339)}
		if check == nil {
			return c.JSON(status)
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := check(ctx); err != nil {
			status["status"] = "unhealthy"
			status["error"] = err.Error()
			return c.Status(fiber.StatusServiceUnavailable).JSON(status)
		}
		return c.JSON(status)
	}
}

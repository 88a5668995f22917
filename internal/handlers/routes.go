package handlers

import (
	"time"

	"pixstore/internal/metrics"
	"pixstore/internal/middleware"
	"pixstore/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the services the HTTP API is built from. Sweeper, Metrics
// and Gatherer are optional.
type Dependencies struct {
	Products   *services.ProductService
	Orders     *services.OrderService
	Auth       *services.AuthService
	Reconciler NotificationSubmitter
	Sweeper    SweepRunner
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
}

// NewApp builds the Fiber application with every route registered.
func NewApp(appName string, deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.Metrics(deps.Metrics))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	NewWebhookHandler(deps.Reconciler).RegisterRoutes(app)

	apiV1 := app.Group("/api/v1")
	NewProductHandler(deps.Products).RegisterRoutes(apiV1)
	NewOrderHandler(deps.Orders).RegisterRoutes(apiV1)
	NewAuthHandler(deps.Auth).RegisterRoutes(apiV1)

	admin := apiV1.Group("/admin", middleware.AuthRequired(deps.Auth))
	NewAdminHandler(deps.Orders, deps.Products, deps.Sweeper).RegisterRoutes(admin)

	return app
}

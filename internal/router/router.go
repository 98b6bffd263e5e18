package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cloudadept/cloudadept-api/internal/config"
	"github.com/cloudadept/cloudadept-api/internal/handler"
	"github.com/cloudadept/cloudadept-api/internal/middleware"
	"github.com/cloudadept/cloudadept-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ContactHandler     *handler.ContactHandler
	ContactFormHandler *handler.ContactFormHandler
	PageHandler        *handler.PageHandler
	Relay              handler.RelayStatus
	// SubmitLimiter guards the endpoints that reach the email relay.
	SubmitLimiter fiber.Handler
	// MountLimiter guards form creation, which holds memory until eviction.
	MountLimiter fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Relay))

	limiter := deps.SubmitLimiter
	if limiter == nil {
		limiter = middleware.RateLimit("contact", cfg.RateLimitMax, cfg.RateLimitWindow)
	}

	mountLimiter := deps.MountLimiter
	if mountLimiter == nil {
		mountLimiter = middleware.RateLimit("contact_forms", cfg.FormMountLimit, cfg.RateLimitWindow)
	}

	contact := api.Group("/contact")
	if deps.ContactHandler != nil {
		contact.Post("", limiter)
		deps.ContactHandler.Register(contact)
	}
	if deps.ContactFormHandler != nil {
		contact.Post("/forms", mountLimiter)
		contact.Post("/forms/:id/submit", limiter)
		deps.ContactFormHandler.Register(contact)
	}

	if deps.PageHandler != nil {
		deps.PageHandler.Register(api.Group("/pages"))
	}
}

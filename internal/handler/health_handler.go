package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cloudadept/cloudadept-api/internal/config"
	"github.com/cloudadept/cloudadept-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	Service         string    `json:"service"`
	Environment     string    `json:"environment"`
	RelayConfigured bool      `json:"relay_configured"`
}

// RelayStatus reports whether outbound email delivery is configured.
type RelayStatus interface {
	Configured() bool
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config, relay RelayStatus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}
		if relay != nil {
			payload.RelayConfigured = relay.Configured()
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}

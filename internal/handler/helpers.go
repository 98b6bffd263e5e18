package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/cloudadept/cloudadept-api/internal/form"
	"github.com/cloudadept/cloudadept-api/internal/middleware"
	"github.com/cloudadept/cloudadept-api/internal/service"
)

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

// contactErrorStatus maps submission and form errors to an HTTP status and
// the message shown to the caller.
func contactErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, form.ErrSpam):
		return fiber.StatusBadRequest, "invalid payload"
	case errors.Is(err, form.ErrValidation):
		return fiber.StatusUnprocessableEntity, "validation failed"
	case errors.Is(err, service.ErrContactDuplicate):
		return fiber.StatusTooManyRequests, "duplicate submission"
	case errors.Is(err, form.ErrSubmissionInFlight):
		return fiber.StatusConflict, "submission already in progress"
	case errors.Is(err, form.ErrAlreadySubmitted):
		return fiber.StatusConflict, "form already submitted"
	case errors.Is(err, form.ErrFormNotFound):
		return fiber.StatusNotFound, "contact form not found"
	case errors.Is(err, form.ErrFormClosed):
		return fiber.StatusGone, "contact form closed"
	case errors.Is(err, form.ErrRegistryFull):
		return fiber.StatusServiceUnavailable, "Too many open contact forms. Please try again later."
	case errors.Is(err, service.ErrConfiguration):
		return fiber.StatusServiceUnavailable, "Contact service temporarily unavailable"
	case errors.Is(err, service.ErrNetwork):
		return fiber.StatusGatewayTimeout, "An error occurred. Please try again later."
	default:
		return fiber.StatusBadGateway, "Failed to send message. Please try again later."
	}
}

// logContactError records failures the caller cannot fix.
func logContactError(logger *zerolog.Logger, status int, err error) {
	switch {
	case errors.Is(err, service.ErrConfiguration):
		logger.Error().Err(err).Msg("contact relay is not configured")
	case status >= fiber.StatusInternalServerError:
		logger.Warn().Err(err).Msg("contact submission failed")
	}
}

package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/cloudadept/cloudadept-api/internal/observability"
)

const apiPrefix = "/api/"

// Observability records request metrics and one structured log line per API
// call. Snapshot streams are logged but kept out of the latency histogram
// since their duration is the lifetime of the connection.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		if !strings.HasPrefix(c.Path(), apiPrefix) {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		statusLabel := strconv.Itoa(status)
		stream := strings.HasSuffix(route, "/ws")

		observability.HTTPRequests().WithLabelValues(method, route, statusLabel).Inc()
		if !stream {
			observability.HTTPLatency().WithLabelValues(method, route).Observe(duration.Seconds())
		}
		if status >= fiber.StatusBadRequest {
			observability.HTTPErrors().WithLabelValues(method, route, statusLabel).Inc()
		}

		fields := logger.With().
			Str("correlation_id", GetCorrelationID(c)).
			Str("route", route).
			Str("method", method).
			Int("status", status)
		if formID := c.Params("id"); formID != "" {
			fields = fields.Str("form_id", formID)
		}
		if stream {
			fields = fields.Dur("stream_duration", duration)
		} else {
			fields = fields.
				Float64("latency_ms", float64(duration)/float64(time.Millisecond)).
				Str("latency_bucket", latencyBucket(duration))
		}
		requestLogger := fields.Logger()

		switch {
		case status >= fiber.StatusInternalServerError:
			requestLogger.Error().Msg("request failed")
		case status == fiber.StatusTooManyRequests:
			requestLogger.Warn().Msg("request throttled")
		case status >= fiber.StatusBadRequest:
			requestLogger.Warn().Msg("request completed with client error")
		default:
			requestLogger.Info().Msg("request completed")
		}

		return err
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return c.Path()
}

// latencyBucket groups durations against the relay timeout scale.
func latencyBucket(duration time.Duration) string {
	switch {
	case duration <= 50*time.Millisecond:
		return "<=50ms"
	case duration <= 250*time.Millisecond:
		return "<=250ms"
	case duration <= time.Second:
		return "<=1s"
	case duration <= 5*time.Second:
		return "<=5s"
	default:
		return ">5s"
	}
}

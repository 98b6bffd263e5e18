package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/cloudadept/cloudadept-api/internal/middleware"
)

func TestCorrelationIDPropagatesIncomingHeader(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		fromCtx := middleware.CorrelationIDFromContext(c.UserContext())
		return c.SendString(middleware.GetCorrelationID(c) + "|" + fromCtx)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "req-42", resp.Header.Get("X-Correlation-ID"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "req-42|req-42", string(body))
}

func TestCorrelationIDGeneratedWhenMissing(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	require.Len(t, resp.Header.Get("X-Correlation-ID"), 36)
}

func TestRateLimitRejectsAfterMax(t *testing.T) {
	app := fiber.New()
	app.Post("/contact", middleware.RateLimit("contact", 2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/contact", nil), -1)
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
	}

	require.Equal(t, []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}, statuses)
}

func TestCorrelationIDReplacesUnsafeHeader(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "has spaces in it")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	id := resp.Header.Get("X-Correlation-ID")
	require.NotEqual(t, "has spaces in it", id)
	require.Len(t, id, 36)
}

package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/cloudadept/cloudadept-api/internal/config"
	"github.com/cloudadept/cloudadept-api/internal/dto"
	"github.com/cloudadept/cloudadept-api/internal/handler"
	"github.com/cloudadept/cloudadept-api/internal/seo"
)

func TestPageHandler_Metadata(t *testing.T) {
	catalog := seo.NewCatalog(config.SiteConfig{Name: "CloudAdept Systems", URL: "https://www.cloudadeptsystems.com"})
	app := fiber.New()
	handler.NewPageHandler(catalog).Register(app.Group("/api/v1/pages"))

	resp, body := doRequest(t, app, jsonRequest(t, http.MethodGet, "/api/v1/pages/Services/metadata", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var page dto.PageMetadataResponse
	require.NoError(t, json.Unmarshal(body.Data, &page))
	require.Equal(t, "Our Services | CloudAdept Systems", page.Title)
	require.Equal(t, "https://www.cloudadeptsystems.com/services", page.URL)
	require.NotEmpty(t, page.Tags)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(body.Meta, &meta))
	require.Equal(t, "services", meta["slug"])
	require.Equal(t, "CloudAdept Systems", meta["site_name"])

	resp, _ = doRequest(t, app, jsonRequest(t, http.MethodGet, "/api/v1/pages/careers/metadata", nil))
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

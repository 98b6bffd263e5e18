package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/cloudadept/cloudadept-api/internal/seo"
	"github.com/cloudadept/cloudadept-api/internal/utils"
)

// PageHandler serves head metadata for the site pages.
type PageHandler struct {
	catalog *seo.Catalog
}

// NewPageHandler constructs a page metadata handler.
func NewPageHandler(catalog *seo.Catalog) *PageHandler {
	return &PageHandler{catalog: catalog}
}

// Register wires page routes.
func (h *PageHandler) Register(router fiber.Router) {
	router.Get("/:slug/metadata", h.metadata)
}

// pageMeta describes which catalog entry answered the lookup.
type pageMeta struct {
	Slug     string `json:"slug"`
	SiteName string `json:"site_name"`
}

func (h *PageHandler) metadata(c *fiber.Ctx) error {
	page, err := h.catalog.Lookup(c.Params("slug"))
	if err != nil {
		if errors.Is(err, seo.ErrPageNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "page not found")
		}
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.OK(c, page, "page metadata", pageMeta{
		Slug:     page.Slug,
		SiteName: h.catalog.SiteName(),
	})
}

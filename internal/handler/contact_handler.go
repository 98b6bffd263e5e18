package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/cloudadept/cloudadept-api/internal/dto"
	"github.com/cloudadept/cloudadept-api/internal/form"
	"github.com/cloudadept/cloudadept-api/internal/models"
	"github.com/cloudadept/cloudadept-api/internal/utils"
)

// ContactHandler handles one-shot contact submissions.
type ContactHandler struct {
	registry *form.Registry
	logger   zerolog.Logger
}

// NewContactHandler constructs a contact handler.
func NewContactHandler(registry *form.Registry, logger zerolog.Logger) *ContactHandler {
	return &ContactHandler{
		registry: registry,
		logger:   logger.With().Str("component", "contact_handler").Logger(),
	}
}

// Register wires contact routes.
func (h *ContactHandler) Register(router fiber.Router) {
	router.Post("", h.submit)
}

func (h *ContactHandler) submit(c *fiber.Ctx) error {
	origin, ok := models.ParseFormOrigin(c.Query("origin"))
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "unknown form origin")
	}

	var payload dto.ContactRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	f, err := h.registry.Mount(origin)
	if err != nil {
		status, message := contactErrorStatus(err)
		logContactError(requestLogger(h.logger, c), status, err)
		return utils.SendError(c, status, message)
	}
	defer func() {
		_ = h.registry.Unmount(f.ID())
	}()

	snapshot, err := f.Submit(requestContext(c), payload)
	if err != nil {
		status, message := contactErrorStatus(err)
		logContactError(requestLogger(h.logger, c), status, err)
		if status == fiber.StatusUnprocessableEntity {
			return utils.Fail(c, status, message, snapshot.FieldErrors)
		}
		return utils.SendError(c, status, message)
	}

	return utils.SendSuccess(c, "contact submission accepted", dto.ContactResponse{
		ReferenceID: snapshot.ReferenceID,
		Status:      "sent",
	})
}

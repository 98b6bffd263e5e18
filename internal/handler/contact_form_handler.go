package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/cloudadept/cloudadept-api/internal/dto"
	"github.com/cloudadept/cloudadept-api/internal/form"
	"github.com/cloudadept/cloudadept-api/internal/models"
	"github.com/cloudadept/cloudadept-api/internal/utils"
)

const defaultStreamKeepAlive = 30 * time.Second

// ContactFormHandler exposes mounted form instances and their snapshot stream.
type ContactFormHandler struct {
	registry  *form.Registry
	keepAlive time.Duration
	logger    zerolog.Logger
}

// NewContactFormHandler creates a form handler instance.
func NewContactFormHandler(registry *form.Registry, logger zerolog.Logger) *ContactFormHandler {
	return &ContactFormHandler{
		registry:  registry,
		keepAlive: defaultStreamKeepAlive,
		logger:    logger.With().Str("component", "contact_form_handler").Logger(),
	}
}

// WithKeepAlive sets the ping interval of snapshot streams.
func (h *ContactFormHandler) WithKeepAlive(interval time.Duration) *ContactFormHandler {
	if interval > 0 {
		h.keepAlive = interval
	}
	return h
}

// Register binds form routes under the provided router group.
func (h *ContactFormHandler) Register(router fiber.Router) {
	router.Post("/forms", h.create)
	router.Get("/forms/:id/ws", h.upgrade, websocket.New(h.stream))
	router.Get("/forms/:id", h.get)
	router.Post("/forms/:id/submit", h.submit)
	router.Post("/forms/:id/reset", h.reset)
	router.Delete("/forms/:id", h.remove)
}

func (h *ContactFormHandler) create(c *fiber.Ctx) error {
	var payload dto.FormCreateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	origin, ok := models.ParseFormOrigin(payload.Origin)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "unknown form origin")
	}

	f, err := h.registry.Mount(origin)
	if err != nil {
		return h.fail(c, err, dto.FormSnapshot{})
	}
	requestLogger(h.logger, c).Debug().Str("form_id", f.ID()).Str("origin", string(origin)).Msg("contact form mounted")

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "contact form mounted", f.Snapshot())
}

func (h *ContactFormHandler) get(c *fiber.Ctx) error {
	f, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return h.fail(c, err, dto.FormSnapshot{})
	}

	return utils.SendSuccess(c, "contact form", f.Consume())
}

func (h *ContactFormHandler) submit(c *fiber.Ctx) error {
	f, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return h.fail(c, err, dto.FormSnapshot{})
	}

	var payload dto.ContactRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if prefersAsync(c) {
		snapshot, err := f.SubmitAsync(requestContext(c), payload)
		if err != nil {
			return h.fail(c, err, snapshot)
		}
		return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "contact submission in progress", snapshot)
	}

	snapshot, err := f.Submit(requestContext(c), payload)
	if err != nil {
		return h.fail(c, err, snapshot)
	}

	return utils.SendSuccess(c, "contact submission accepted", snapshot)
}

func (h *ContactFormHandler) reset(c *fiber.Ctx) error {
	f, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return h.fail(c, err, dto.FormSnapshot{})
	}

	snapshot, err := f.Reset()
	if err != nil {
		return h.fail(c, err, snapshot)
	}

	return utils.SendSuccess(c, "contact form reset", snapshot)
}

func (h *ContactFormHandler) remove(c *fiber.Ctx) error {
	if err := h.registry.Unmount(c.Params("id")); err != nil {
		return h.fail(c, err, dto.FormSnapshot{})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ContactFormHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	f, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return h.fail(c, err, dto.FormSnapshot{})
	}

	c.Locals("contact_form", f)
	return c.Next()
}

func (h *ContactFormHandler) stream(conn *websocket.Conn) {
	f, ok := conn.Locals("contact_form").(*form.Form)
	if !ok {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "form missing"))
		return
	}

	logger := h.logger.With().Str("form_id", f.ID()).Logger()
	updates, cancel := f.Subscribe()
	defer cancel()

	if err := conn.WriteJSON(f.Snapshot()); err != nil {
		logger.Debug().Err(err).Msg("form stream initial write failed")
		return
	}

	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger.Debug().Msg("form stream connected")
	defer logger.Debug().Msg("form stream disconnected")

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case snapshot, open := <-updates:
			if !open {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "form unmounted"))
				return
			}
			if err := conn.WriteJSON(snapshot); err != nil {
				logger.Debug().Err(err).Msg("form stream write failed")
				return
			}
		case <-keepAlive.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				return
			}
		case <-disconnected:
			return
		}
	}
}

func (h *ContactFormHandler) fail(c *fiber.Ctx, err error, snapshot dto.FormSnapshot) error {
	status, message := contactErrorStatus(err)
	logContactError(requestLogger(h.logger, c), status, err)

	if snapshot.FormID == "" {
		return utils.SendError(c, status, message)
	}
	return utils.SendErrorWithData(c, status, message, snapshot)
}

func prefersAsync(c *fiber.Ctx) bool {
	for _, part := range strings.Split(c.Get("Prefer"), ",") {
		if strings.EqualFold(strings.TrimSpace(part), "respond-async") {
			return true
		}
	}
	return false
}

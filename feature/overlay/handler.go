package overlay

import (
	"errors"

	"overlay-engine/core/logger"
	"overlay-engine/feature/catalog"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// PrivilegeHeader carries the caller privilege set by the auth gateway.
const PrivilegeHeader = "X-Privilege"

// TierHeader reports the tier an overlay response was served from.
const TierHeader = "X-Overlay-Tier"

// Handler handles HTTP requests for overlays.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the overlay routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/overlays")
	group.Get("/status", h.HandleStatus)
	group.Get("/detail/:feature/:key", h.HandleGetDetail)
	group.Get("/main/:page/:name", h.HandleGetMain)
	group.Post("/runs", h.HandleTriggerRun)
}

// HandleGetDetail returns the overlay of a detail table.
// @Summary Get Detail Overlay
// @Description Returns the computed rows of a detail table at the freshest tier the caller may read, or at ?tier=.
// @Tags overlays
// @Produce json
// @Param feature path string true "Feature"
// @Param key path string true "Table key"
// @Param tier query string false "fast, hourly or daily"
// @Success 200 {array} object "Rows"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /overlays/detail/{feature}/{key} [get]
func (h *Handler) HandleGetDetail(c *fiber.Ctx) error {
	return h.serve(c, catalog.Target{Kind: catalog.KindDetail, Category: c.Params("feature"), Key: c.Params("key")})
}

// HandleGetMain returns the overlay of a main table.
// @Summary Get Main Overlay
// @Tags overlays
// @Produce json
// @Param page path string true "Page"
// @Param name path string true "Table name"
// @Param tier query string false "fast, hourly or daily"
// @Success 200 {array} object "Rows"
// @Router /overlays/main/{page}/{name} [get]
func (h *Handler) HandleGetMain(c *fiber.Ctx) error {
	return h.serve(c, catalog.Target{Kind: catalog.KindMain, Category: c.Params("page"), Key: c.Params("name")})
}

func (h *Handler) serve(c *fiber.Ctx, target catalog.Target) error {
	l := logger.WithRayID(h.service.logger, c)

	rec, err := h.service.Overlay(c.Context(), target, c.Get(PrivilegeHeader), c.Query("tier"))
	switch {
	case errors.Is(err, ErrTierForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrUnknownTier):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		l.Error("Overlay lookup failed", zap.String("table", target.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	c.Set(TierHeader, rec.Tier.String())
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(rec.Body)
}

// HandleStatus reports the run state.
// @Summary Overlay Run Status
// @Tags overlays
// @Produce json
// @Success 200 {object} Status
// @Router /overlays/status [get]
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	return c.JSON(h.service.Status())
}

// HandleTriggerRun starts a background run.
// @Summary Trigger Overlay Run
// @Description Recomputes every overlay in the background. Rejects overlapping runs.
// @Tags overlays
// @Produce json
// @Success 202 {object} map[string]string "Run ID"
// @Failure 409 {object} map[string]string "Run in progress"
// @Router /overlays/runs [post]
func (h *Handler) HandleTriggerRun(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	id, err := h.service.Trigger(RunOptions{})
	if errors.Is(err, ErrRunInProgress) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	l.Info("Overlay run triggered", zap.String("run_id", id))
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"run_id": id})
}

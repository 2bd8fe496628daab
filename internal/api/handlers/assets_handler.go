package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/glycowatch/backend/internal/assets"
	"github.com/glycowatch/backend/internal/schema"
	"github.com/glycowatch/backend/internal/storage/models"
	"github.com/glycowatch/backend/pkg/logger"
)

type Registry interface {
	ListLoads(limit int) ([]models.AssetLoad, error)
}

type AssetsHandler struct {
	handle    *assets.Handle
	threshold float64
	registry  Registry
}

// NewAssetsHandler serves artifact metadata. registry may be nil when the
// registry is disabled.
func NewAssetsHandler(handle *assets.Handle, threshold float64, registry Registry) *AssetsHandler {
	return &AssetsHandler{
		handle:    handle,
		threshold: threshold,
		registry:  registry,
	}
}

func (h *AssetsHandler) GetAssets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"fingerprints": h.handle.Fingerprints,
		"loaded_at":    h.handle.LoadedAt,
		"columns":      h.handle.Schema.Len(),
		"threshold":    h.threshold,
		"baseline":     h.handle.Explainer.ExpectedValue(),
	})
}

func (h *AssetsHandler) GetHistory(c *fiber.Ctx) error {
	if h.registry == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Asset registry is disabled",
		})
	}

	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 200 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 200",
		})
	}

	loads, err := h.registry.ListLoads(limit)
	if err != nil {
		logger.Error("Failed to list asset loads", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list asset history",
		})
	}
	if loads == nil {
		loads = []models.AssetLoad{}
	}

	return c.JSON(fiber.Map{
		"loads": loads,
	})
}

func (h *AssetsHandler) GetSchema(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"columns": h.handle.Schema.Names(),
		"inputs":  schema.Ranges(),
	})
}

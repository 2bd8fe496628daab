package handlers

import (
	"bytes"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/glycowatch/backend/internal/schema"
	"github.com/glycowatch/backend/pkg/logger"
	"github.com/glycowatch/backend/web"
)

type DashboardHandler struct {
	page web.PageData
}

func NewDashboardHandler(title string, threshold float64, advisorAvailable bool) *DashboardHandler {
	return &DashboardHandler{
		page: web.PageData{
			Title:            title,
			Inputs:           schema.Ranges(),
			Threshold:        threshold,
			AdvisorAvailable: advisorAvailable,
		},
	}
}

func (h *DashboardHandler) HandleIndex(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := web.RenderIndex(&buf, h.page); err != nil {
		logger.Error("Failed to render dashboard", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to render dashboard")
	}

	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

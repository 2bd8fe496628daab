package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/glycowatch/backend/internal/forceplot"
	"github.com/glycowatch/backend/internal/risk"
	"github.com/glycowatch/backend/internal/schema"
	"github.com/glycowatch/backend/pkg/logger"
)

type AssessHandler struct {
	pipeline *risk.Pipeline
	topN     int
}

func NewAssessHandler(pipeline *risk.Pipeline, topN int) *AssessHandler {
	return &AssessHandler{
		pipeline: pipeline,
		topN:     topN,
	}
}

func (h *AssessHandler) HandleAssess(c *fiber.Ctx) error {
	var req struct {
		Patient schema.PatientSummary `json:"patient"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := h.pipeline.Assess(c.UserContext(), req.Patient)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to assess patient",
			"kind":  risk.ErrorKind(err),
		})
	}

	svg, err := forceplot.Render(result.Explanation, forceplot.Options{TopN: h.topN})
	if err != nil {
		logger.Warn("Failed to render force plot",
			zap.String("assessment_id", result.Assessment.ID),
			zap.Error(err),
		)
	}

	a := result.Assessment
	return c.JSON(fiber.Map{
		"assessment_id":     a.ID,
		"probability":       a.Probability,
		"label":             a.Label,
		"label_display":     a.Label.Display(),
		"threshold":         a.Threshold,
		"explanation":       result.Explanation,
		"top_contributions": result.Explanation.Top(h.topN),
		"force_plot_svg":    svg,
	})
}

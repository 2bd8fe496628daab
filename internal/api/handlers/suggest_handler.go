package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/glycowatch/backend/internal/advisor"
	"github.com/glycowatch/backend/internal/risk"
	"github.com/glycowatch/backend/pkg/circuitbreaker"
	"github.com/glycowatch/backend/pkg/logger"
)

type SuggestHandler struct {
	advisor *advisor.Advisor
}

func NewSuggestHandler(advisor *advisor.Advisor) *SuggestHandler {
	return &SuggestHandler{
		advisor: advisor,
	}
}

type suggestRequest struct {
	Assessment *risk.Assessment `json:"assessment"`
	Query      string           `json:"query"`
}

func (r suggestRequest) advisorRequest() advisor.Request {
	return advisor.Request{
		Assessment: r.Assessment,
		Query:      r.Query,
	}
}

func (h *SuggestHandler) HandleSuggest(c *fiber.Ctx) error {
	var req suggestRequest

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	suggestion, err := h.advisor.Suggest(c.UserContext(), req.advisorRequest())
	if err != nil {
		status, msg := advisorError(err)
		return c.Status(status).JSON(fiber.Map{
			"error": msg,
		})
	}

	return c.JSON(suggestion)
}

// advisorError maps advisor failures to a status code and a message that is
// safe to show in the page.
func advisorError(err error) (int, string) {
	switch {
	case errors.Is(err, advisor.ErrEmptyUserQuery):
		return fiber.StatusBadRequest, "Please describe the issue first."
	case errors.Is(err, advisor.ErrInvalidAssessment):
		return fiber.StatusBadRequest, "Please assess patient risk before asking for a suggestion."
	case errors.Is(err, advisor.ErrMissingCredential):
		return fiber.StatusServiceUnavailable, "The wellness advisor is not configured."
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return fiber.StatusBadGateway, "The wellness advisor is temporarily unavailable. Please try again shortly."
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "The wellness advisor took too long to answer."
	default:
		return fiber.StatusBadGateway, "Failed to generate a suggestion."
	}
}

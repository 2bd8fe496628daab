package handlers

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/glycowatch/backend/internal/advisor"
	"github.com/glycowatch/backend/internal/middleware/validation"
	"github.com/glycowatch/backend/pkg/logger"
)

type WebSocketHandler struct {
	advisor        *advisor.Advisor
	maxQueryLength int
	timeout        time.Duration
}

func NewWebSocketHandler(advisor *advisor.Advisor, maxQueryLength int, timeout time.Duration) *WebSocketHandler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &WebSocketHandler{
		advisor:        advisor,
		maxQueryLength: maxQueryLength,
		timeout:        timeout,
	}
}

type wsMessage struct {
	Type string `json:"type"`
	suggestRequest
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Debug("WebSocket connection established")

	defer func() {
		_ = c.Close()
		logger.Debug("WebSocket connection closed")
	}()

	for {
		var msg wsMessage

		if err := c.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}

		if msg.Type != "suggest" {
			continue
		}

		if err := validation.CheckQuery(msg.Query, h.maxQueryLength); err != nil {
			h.sendError(c, err.Error())
			continue
		}

		if err := h.streamSuggestion(c, msg.suggestRequest); err != nil {
			logger.Warn("Failed to stream suggestion", zap.Error(err))
			return
		}
	}
}

func (h *WebSocketHandler) streamSuggestion(c *websocket.Conn, req suggestRequest) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.sendChunk(c, "status", "Generating a personalised tip..."); err != nil {
		return err
	}

	suggestion, err := h.advisor.Suggest(ctx, req.advisorRequest())
	if err != nil {
		_, msg := advisorError(err)
		h.sendError(c, msg)
		return nil
	}

	for _, sentence := range suggestion.Sentences {
		if err := h.sendChunk(c, "chunk", sentence); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]any{
		"type":       "complete",
		"suggestion": suggestion.Text,
		"cached":     suggestion.Cached,
		"model":      suggestion.Model,
	})
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]any{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	err := c.WriteJSON(map[string]any{
		"type":  "error",
		"error": errorMsg,
	})
	if err != nil {
		logger.Debug("Failed to send WebSocket error", zap.Error(err))
	}
}

package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fakenews-detector/backend/internal/errs"
	"github.com/fakenews-detector/backend/internal/inference"
	"github.com/fakenews-detector/backend/pkg/logger"
)

type wsMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Content string `json:"content"`
}

type WebSocketHandler struct {
	service    *inference.Service
	history    PredictionLog
	maxTextLen int
}

func NewWebSocketHandler(service *inference.Service, history PredictionLog, maxTextLen int) *WebSocketHandler {
	return &WebSocketHandler{
		service:    service,
		history:    history,
		maxTextLen: maxTextLen,
	}
}

// HandleConnection answers each {"type":"predict","content":"..."} message
// with one prediction. Other message types are ignored. Work still in
// flight when the connection closes is cancelled.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg wsMessage
		err := c.ReadJSON(&msg)
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Error("Failed to read WebSocket message", zap.Error(err))
			}
			break
		}

		if msg.Type != "predict" {
			continue
		}

		if err := c.WriteJSON(h.answer(ctx, msg)); err != nil {
			logger.Error("Failed to write prediction", zap.Error(err))
			break
		}
	}
}

// answer classifies one message and builds the reply frame. Successful
// predictions are recorded like HTTP ones.
func (h *WebSocketHandler) answer(ctx context.Context, msg wsMessage) map[string]interface{} {
	if strings.TrimSpace(msg.Content) == "" {
		return wsError(msg.ID, "content is required")
	}
	if h.maxTextLen > 0 && len(msg.Content) > h.maxTextLen {
		return wsError(msg.ID, "content exceeds maximum length")
	}

	start := time.Now()
	preds, err := h.service.Predict(ctx, []string{msg.Content})
	if err != nil {
		if errors.Is(err, errs.ErrInput) {
			return wsError(msg.ID, err.Error())
		}
		logger.Error("Failed to classify WebSocket message", zap.Error(err))
		return wsError(msg.ID, "Failed to classify text")
	}
	remember(h.history, preds, time.Since(start))

	p := preds[0]
	return map[string]interface{}{
		"type":     "prediction",
		"id":       msg.ID,
		"label":    p.Label,
		"category": p.Category,
		"cached":   p.Cached,
		"model":    h.service.Context().Version(),
	}
}

func wsError(id, errorMsg string) map[string]interface{} {
	return map[string]interface{}{
		"type":  "error",
		"id":    id,
		"error": errorMsg,
	}
}

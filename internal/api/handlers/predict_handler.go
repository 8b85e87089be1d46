package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fakenews-detector/backend/internal/errs"
	"github.com/fakenews-detector/backend/internal/inference"
	"github.com/fakenews-detector/backend/internal/storage/models"
	"github.com/fakenews-detector/backend/pkg/logger"
)

// PredictionLog keeps served predictions. Write failures are logged only.
type PredictionLog interface {
	InsertPrediction(p *models.PredictionRecord) error
}

type PredictRequest struct {
	Text  string   `json:"text"`
	Texts []string `json:"texts"`
}

// Inputs returns the texts to classify, with Text first when both are set.
func (r PredictRequest) Inputs() []string {
	var out []string
	if r.Text != "" {
		out = append(out, r.Text)
	}
	return append(out, r.Texts...)
}

type PredictHandler struct {
	service *inference.Service
	history PredictionLog
}

func NewPredictHandler(service *inference.Service, history PredictionLog) *PredictHandler {
	return &PredictHandler{
		service: service,
		history: history,
	}
}

func (h *PredictHandler) HandlePredict(c *fiber.Ctx) error {
	var req PredictRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	texts := req.Inputs()
	if len(texts) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "text or texts is required",
		})
	}

	start := time.Now()
	preds, err := h.service.Predict(c.Context(), texts)
	if err != nil {
		if errors.Is(err, errs.ErrInput) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Failed to classify text", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to classify text",
		})
	}
	latency := time.Since(start)

	remember(h.history, preds, latency)

	return c.JSON(fiber.Map{
		"predictions": preds,
		"model":       h.service.Context().Version(),
		"latency_ms":  latency.Milliseconds(),
	})
}

func remember(history PredictionLog, preds []inference.Prediction, latency time.Duration) {
	if history == nil {
		return
	}

	now := time.Now()
	for _, p := range preds {
		rec := &models.PredictionRecord{
			ID:        uuid.New().String(),
			Text:      p.Text,
			Label:     p.Label,
			Category:  p.Category,
			Cached:    p.Cached,
			LatencyMS: latency.Milliseconds(),
			CreatedAt: now,
		}
		if err := history.InsertPrediction(rec); err != nil {
			logger.Warn("Failed to record prediction", zap.Error(err))
		}
	}
}

package handlers

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fakenews-detector/backend/internal/inference"
	"github.com/fakenews-detector/backend/internal/storage/models"
	"github.com/fakenews-detector/backend/pkg/logger"
)

// RunHistory reads recorded training runs.
type RunHistory interface {
	ListRuns(limit int) ([]models.TrainingRun, error)
	GetRun(id string) (*models.TrainingRun, error)
	GetCandidates(runID string) ([]models.CandidateResult, error)
}

const maxRunsLimit = 100

type ModelHandler struct {
	model *inference.Context
	runs  RunHistory
}

func NewModelHandler(model *inference.Context, runs RunHistory) *ModelHandler {
	return &ModelHandler{
		model: model,
		runs:  runs,
	}
}

// GetModel describes the artifact pair currently being served.
func (h *ModelHandler) GetModel(c *fiber.Ctx) error {
	resp := fiber.Map{
		"version":    h.model.Version(),
		"family":     h.model.Model.Family,
		"params":     h.model.Model.Params,
		"accuracy":   h.model.Model.Accuracy,
		"vocabulary": len(h.model.Extractor.Vocabulary()),
	}

	if m := h.model.Manifest; m != nil {
		resp["run_id"] = m.RunID
		resp["text_field"] = m.TextField
		resp["tokenizer"] = m.Tokenizer
		resp["created_at"] = m.CreatedAt
		candidates := make([]fiber.Map, 0, len(m.Candidates))
		for _, cand := range m.Candidates {
			candidates = append(candidates, fiber.Map{
				"name":     cand.Name,
				"params":   cand.Params,
				"cv_score": cand.CVScore,
				"accuracy": cand.Accuracy,
				"error":    cand.Error,
			})
		}
		resp["candidates"] = candidates
	}

	return c.JSON(resp)
}

func (h *ModelHandler) ListRuns(c *fiber.Ctx) error {
	if h.runs == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Run history is not available",
		})
	}

	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > maxRunsLimit {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 100",
		})
	}

	runs, err := h.runs.ListRuns(limit)
	if err != nil {
		logger.Error("Failed to list training runs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list training runs",
		})
	}

	out := make([]fiber.Map, 0, len(runs))
	for i := range runs {
		out = append(out, runJSON(&runs[i]))
	}

	return c.JSON(fiber.Map{
		"runs": out,
	})
}

func (h *ModelHandler) GetRun(c *fiber.Ctx) error {
	if h.runs == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Run history is not available",
		})
	}

	id := c.Params("id")
	run, err := h.runs.GetRun(id)
	if errors.Is(err, sql.ErrNoRows) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Training run not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get training run", zap.String("run_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get training run",
		})
	}

	candidates, err := h.runs.GetCandidates(id)
	if err != nil {
		logger.Error("Failed to get candidate results", zap.String("run_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get candidate results",
		})
	}

	resp := runJSON(run)
	cands := make([]fiber.Map, 0, len(candidates))
	for _, cand := range candidates {
		cands = append(cands, fiber.Map{
			"name":        cand.Name,
			"params":      cand.Params,
			"cv_score":    cand.CVScore,
			"accuracy":    cand.Accuracy,
			"error":       cand.Error,
			"duration_ms": cand.DurationMS,
		})
	}
	resp["candidates"] = cands

	return c.JSON(resp)
}

func runJSON(run *models.TrainingRun) fiber.Map {
	m := fiber.Map{
		"id":          run.ID,
		"status":      run.Status,
		"winner":      run.Winner,
		"accuracy":    run.Accuracy,
		"params":      run.Params,
		"train_rows":  run.TrainRows,
		"test_rows":   run.TestRows,
		"vocabulary":  run.Vocabulary,
		"started_at":  run.StartedAt.Unix(),
		"finished_at": nil,
	}
	if run.FinishedAt != nil {
		m["finished_at"] = run.FinishedAt.Unix()
	}
	if run.Status == models.RunStatusFailed {
		m["stage"] = run.Stage
		m["error"] = run.Error
	}
	return m
}

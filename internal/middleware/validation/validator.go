package validation

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxTextLength       int
	MaxBatchSize        int
	AllowedContentTypes []string
	// PredictPaths are the routes whose bodies carry text to classify.
	PredictPaths []string
	Logger       *zap.Logger
}

type predictBody struct {
	Text  *string  `json:"text"`
	Texts []string `json:"texts"`
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxTextLength == 0 {
		cfg.MaxTextLength = 20000
	}
	if cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = 100
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if len(cfg.PredictPaths) == 0 {
		cfg.PredictPaths = []string{"/api/v1/predict"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if !allowed(contentType, cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		if !matches(c.Path(), cfg.PredictPaths) {
			return c.Next()
		}

		var req predictBody
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		texts := req.Texts
		if req.Text != nil {
			texts = append([]string{*req.Text}, texts...)
		}

		if len(texts) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "text or texts is required",
			})
		}

		if len(texts) > cfg.MaxBatchSize {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "Too many texts in one request",
			})
		}

		for _, text := range texts {
			if strings.TrimSpace(sanitizeString(text)) == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "text must not be empty",
				})
			}
			if len(text) > cfg.MaxTextLength {
				cfg.Logger.Warn("Oversized text rejected",
					zap.String("ip", c.IP()),
					zap.Int("length", len(text)),
				)
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "text exceeds maximum length",
				})
			}
		}

		return c.Next()
	}
}

func allowed(contentType string, types []string) bool {
	for _, t := range types {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

func matches(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func sanitizeString(input string) string {
	return strings.ReplaceAll(input, "\x00", "")
}

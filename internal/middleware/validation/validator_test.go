package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

func post(t *testing.T, app *fiber.App, path, contentType, body string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestValidation(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware(Config{MaxTextLength: 20, MaxBatchSize: 2}))
	app.Post("/api/v1/predict", ok)
	app.Post("/api/v1/other", ok)

	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		want        int
	}{
		{"single text", "/api/v1/predict", "application/json", `{"text":"senate budget"}`, http.StatusOK},
		{"batch", "/api/v1/predict", "application/json; charset=utf-8", `{"texts":["a headline","another"]}`, http.StatusOK},
		{"form body", "/api/v1/predict", "application/x-www-form-urlencoded", `text=x`, http.StatusUnsupportedMediaType},
		{"no content type", "/api/v1/predict", "", `{"text":"x"}`, http.StatusUnsupportedMediaType},
		{"malformed", "/api/v1/predict", "application/json", `{"text":`, http.StatusBadRequest},
		{"missing text", "/api/v1/predict", "application/json", `{"title":"x"}`, http.StatusBadRequest},
		{"blank text", "/api/v1/predict", "application/json", `{"text":"   "}`, http.StatusBadRequest},
		{"too long", "/api/v1/predict", "application/json", `{"text":"this headline is far too long"}`, http.StatusRequestEntityTooLarge},
		{"batch too large", "/api/v1/predict", "application/json", `{"text":"a","texts":["b","c"]}`, http.StatusRequestEntityTooLarge},
		{"other route skips body checks", "/api/v1/other", "application/json", `{}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, post(t, app, tt.path, tt.contentType, tt.body))
		})
	}
}

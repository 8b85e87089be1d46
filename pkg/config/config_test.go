package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "data/True.csv", cfg.Corpus.TruePath)
	assert.Equal(t, "title", cfg.Corpus.TextField)
	assert.Equal(t, 0.2, cfg.Corpus.TestFraction)
	assert.Equal(t, int64(42), cfg.Corpus.Seed)
	assert.Equal(t, 0.7, cfg.Features.MaxDF)
	assert.Equal(t, "english", cfg.Features.StopWords)
	assert.Equal(t, 2, cfg.Search.Iterations)
	assert.Equal(t, 2, cfg.Search.Folds)
	assert.Equal(t, 0.7, cfg.Search.MinAccuracy)
	assert.Equal(t, "artifacts/model.bin", cfg.Artifacts.ModelPath)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trainer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
corpus:
  textField: text
  testFraction: 0.25
search:
  iterations: 5
  workers: 2
features:
  tokenizer: prose
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Corpus.TextField)
	assert.Equal(t, 0.25, cfg.Corpus.TestFraction)
	assert.Equal(t, 5, cfg.Search.Iterations)
	assert.Equal(t, 2, cfg.Search.Workers)
	assert.Equal(t, "prose", cfg.Features.Tokenizer)
	assert.Equal(t, 2, cfg.Search.Folds, "unset keys keep defaults")
}

func TestLoadFileEnvironmentOverride(t *testing.T) {
	t.Setenv("FAKENEWS_SEARCH_MINACCURACY", "0.9")
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Search.MinAccuracy)
}

func TestLoadFileMissingExplicitFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsOutOfRangeConstants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"test fraction", func(c *Config) { c.Corpus.TestFraction = 1 }, "corpus.testFraction"},
		{"text field", func(c *Config) { c.Corpus.TextField = "" }, "corpus.textField"},
		{"max df", func(c *Config) { c.Features.MaxDF = 0 }, "features.maxDF"},
		{"tokenizer", func(c *Config) { c.Features.Tokenizer = "bpe" }, "features.tokenizer"},
		{"folds", func(c *Config) { c.Search.Folds = 1 }, "search.folds"},
		{"iterations", func(c *Config) { c.Search.Iterations = 0 }, "search.iterations"},
		{"gate", func(c *Config) { c.Search.MinAccuracy = 1.5 }, "search.minAccuracy"},
		{"same artifact path", func(c *Config) { c.Artifacts.ModelPath = c.Artifacts.ExtractorPath }, "must differ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

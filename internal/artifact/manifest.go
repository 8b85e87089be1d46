package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fakenews-detector/backend/internal/errs"
)

// Manifest ties a fitted extractor to the classifier trained on its output.
type Manifest struct {
	RunID         string             `yaml:"run_id"`
	Family        string             `yaml:"family"`
	Accuracy      float64            `yaml:"accuracy"`
	Params        map[string]any     `yaml:"params"`
	TextField     string             `yaml:"text_field"`
	Tokenizer     string             `yaml:"tokenizer"`
	Vocabulary    int                `yaml:"vocabulary"`
	ExtractorPath string             `yaml:"extractor_path"`
	ModelPath     string             `yaml:"model_path"`
	MacroF1       float64            `yaml:"macro_f1,omitempty"`
	Confusion     [][]int            `yaml:"confusion,omitempty,flow"`
	Candidates    []CandidateSummary `yaml:"candidates,omitempty"`
	CreatedAt     time.Time          `yaml:"created_at"`
}

type CandidateSummary struct {
	Name     string  `yaml:"name"`
	Params   string  `yaml:"params,omitempty"`
	CVScore  float64 `yaml:"cv_score"`
	Accuracy float64 `yaml:"accuracy"`
	Error    string  `yaml:"error,omitempty"`
}

func WriteManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return persistenceErr("failed to encode manifest", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return persistenceErr("failed to create manifest directory", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return persistenceErr("failed to write manifest "+path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return persistenceErr("failed to move manifest into place at "+path, err)
	}
	return nil
}

func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, persistenceErr("failed to read manifest "+path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errs.New(errs.StagePersistence, errs.KindPersistence,
			fmt.Sprintf("failed to parse manifest %s", path), err)
	}
	return &m, nil
}

// Package inference serves predictions from a persisted extractor and
// classifier pair.
package inference

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fakenews-detector/backend/internal/artifact"
	"github.com/fakenews-detector/backend/internal/errs"
	"github.com/fakenews-detector/backend/internal/features"
	"github.com/fakenews-detector/backend/internal/model"
)

const (
	CategoryGenuine    = "Real News"
	CategoryFabricated = "Fake News"
)

type Prediction struct {
	Text     string `json:"text"`
	Label    int    `json:"label"`
	Category string `json:"category"`
	Cached   bool   `json:"cached,omitempty"`
}

// Category maps a binary label to its display name.
func Category(label int) string {
	if label == model.LabelGenuine {
		return CategoryGenuine
	}
	return CategoryFabricated
}

// Context holds everything needed to classify text. It is built once by
// Load and is safe for concurrent use.
type Context struct {
	Extractor *features.TFIDF
	Model     *model.Artifact
	Manifest  *artifact.Manifest
	// Digest fingerprints the artifact bytes when the store supports it.
	Digest string
}

func Load(store artifact.Store, extractorPath, modelPath string) (*Context, error) {
	var ext features.TFIDF
	if err := store.Load(extractorPath, &ext); err != nil {
		return nil, errs.Wrap(errs.StageInference, errs.KindPersistence, err)
	}
	if !ext.Fitted() {
		return nil, errs.New(errs.StageInference, errs.KindNotFitted,
			"extractor at "+extractorPath+" is not fitted", nil)
	}

	var art model.Artifact
	if err := store.Load(modelPath, &art); err != nil {
		return nil, errs.Wrap(errs.StageInference, errs.KindPersistence, err)
	}
	if art.Classifier == nil {
		return nil, errs.New(errs.StageInference, errs.KindNotFitted,
			"model artifact at "+modelPath+" has no classifier", nil)
	}

	c := &Context{Extractor: &ext, Model: &art}
	if fp, ok := store.(artifact.Fingerprinter); ok {
		digest, err := fingerprint(fp, extractorPath, modelPath)
		if err != nil {
			return nil, errs.Wrap(errs.StageInference, errs.KindPersistence, err)
		}
		c.Digest = digest
	}
	return c, nil
}

func fingerprint(fp artifact.Fingerprinter, paths ...string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		sum, err := fp.Fingerprint(p)
		if err != nil {
			return "", err
		}
		h.Write([]byte(sum))
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

// Predict classifies each text. Every text must contain a non-blank value.
func (c *Context) Predict(texts []string) ([]Prediction, error) {
	if len(texts) == 0 {
		return nil, errs.New(errs.StageInference, errs.KindInput, "no text to classify", nil)
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, errs.New(errs.StageInference, errs.KindInput,
				fmt.Sprintf("text %d is empty", i), nil)
		}
	}

	X, err := c.Extractor.Transform(texts)
	if err != nil {
		return nil, errs.Wrap(errs.StageInference, errs.KindNotFitted, err)
	}
	labels, err := c.Model.Classifier.Predict(X)
	if err != nil {
		return nil, errs.Wrap(errs.StageInference, errs.KindInput, err)
	}

	out := make([]Prediction, len(texts))
	for i, label := range labels {
		out[i] = Prediction{Text: texts[i], Label: label, Category: Category(label)}
	}
	return out, nil
}

// Version identifies the artifact pair, for cache keys and reporting. It is
// the training run ID when a manifest is present, otherwise derived from the
// artifact digest.
func (c *Context) Version() string {
	if c.Manifest != nil && c.Manifest.RunID != "" {
		return c.Manifest.RunID
	}
	family := strings.ReplaceAll(strings.ToLower(c.Model.Family), " ", "-")
	if c.Digest != "" {
		return family + "-" + c.Digest
	}
	return fmt.Sprintf("%s-%d", family, len(c.Extractor.Terms))
}

package model

import (
	"encoding/gob"
	"fmt"
	"sort"
	"strings"

	"github.com/fakenews-detector/backend/internal/errs"
	"github.com/fakenews-detector/backend/internal/sparse"
)

// Binary labels.
const (
	LabelFabricated = 0
	LabelGenuine    = 1
)

// Classifier is a binary estimator over sparse feature rows.
type Classifier interface {
	Fit(X *sparse.Matrix, y []int) error
	Predict(X *sparse.Matrix) ([]int, error)
}

// Params is one hyperparameter configuration.
type Params map[string]any

func (p Params) Float(name string, def float64) (float64, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("parameter %s: expected number, got %T", name, v)
	}
}

func (p Params) String(name, def string) (string, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %s: expected string, got %T", name, v)
	}
	return s, nil
}

// Format renders the parameters in name order, e.g. "C=0.1 penalty=l2".
func (p Params) Format() string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%v", k, p[k])
	}
	return strings.Join(parts, " ")
}

// Artifact is the persisted form of a selected classifier.
type Artifact struct {
	Family     string
	Params     Params
	Accuracy   float64
	Classifier Classifier
}

func init() {
	gob.Register(&LogisticRegression{})
	gob.Register(&MultinomialNB{})
	gob.Register(&LinearSVC{})
}

// Accuracy is the fraction of positions where yPred equals yTrue.
func Accuracy(yTrue, yPred []int) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, fmt.Errorf("label length mismatch: %d vs %d", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return 0, fmt.Errorf("no labels to score")
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

func checkTrainingData(X *sparse.Matrix, y []int) error {
	if X == nil || X.Rows == 0 {
		return fmt.Errorf("empty training matrix")
	}
	if len(y) != X.Rows {
		return fmt.Errorf("label count %d does not match rows %d", len(y), X.Rows)
	}
	var seen [2]bool
	for i, label := range y {
		if label != LabelFabricated && label != LabelGenuine {
			return fmt.Errorf("label %d at row %d is not binary", label, i)
		}
		seen[label] = true
	}
	if !seen[0] || !seen[1] {
		return fmt.Errorf("training labels contain a single class")
	}
	return nil
}

func notFitted(name string) error {
	return errs.New(errs.StageInference, errs.KindNotFitted, name+": predict called before fit", nil)
}

func checkDims(name string, X *sparse.Matrix, features int) error {
	if X.Cols != features {
		return errs.New(errs.StageInference, errs.KindInput,
			fmt.Sprintf("%s: got %d features, model expects %d", name, X.Cols, features), nil)
	}
	return nil
}

package search

import (
	"fmt"
	"sort"

	"github.com/fakenews-detector/backend/internal/errs"
	"github.com/fakenews-detector/backend/internal/model"
)

// Space maps each hyperparameter name to its candidate values.
type Space map[string][]any

// Candidate is one classifier family of the catalogue.
type Candidate struct {
	Name  string
	Build func(p model.Params) (model.Classifier, error)
}

// Catalogue is the ordered set of candidate families and their search spaces.
// Candidates are evaluated, and ties broken, in slice order.
type Catalogue struct {
	Candidates []Candidate
	Spaces     map[string]Space
}

const (
	LogisticRegression = "Logistic Regression"
	NaiveBayes         = "Naive Bayes"
	LinearSVM          = "Linear SVM"
)

// DefaultCatalogue returns the sparse-friendly families used for news
// classification. maxIter and tol bound the iterative solvers.
func DefaultCatalogue(maxIter int, tol float64) Catalogue {
	return Catalogue{
		Candidates: []Candidate{
			{
				Name: LogisticRegression,
				Build: func(p model.Params) (model.Classifier, error) {
					return model.NewLogisticRegression(p, maxIter, tol)
				},
			},
			{
				Name: NaiveBayes,
				Build: func(p model.Params) (model.Classifier, error) {
					return model.NewMultinomialNB(p)
				},
			},
			{
				Name: LinearSVM,
				Build: func(p model.Params) (model.Classifier, error) {
					return model.NewLinearSVC(p, maxIter, tol)
				},
			},
		},
		Spaces: map[string]Space{
			LogisticRegression: {
				"C":       {0.01, 0.1, 1.0, 10.0},
				"penalty": {"l1", "l2"},
			},
			NaiveBayes: {
				"alpha": {0.1, 0.5, 1.0},
			},
			LinearSVM: {
				"C": {0.01, 0.1, 1.0, 10.0},
			},
		},
	}
}

// Validate checks that candidate names are unique and non-empty, that the
// candidate names and the search-space keys are the same set, and that every
// space has at least one value per parameter.
func (c Catalogue) Validate() error {
	if len(c.Candidates) == 0 {
		return errs.New(errs.StageConfig, errs.KindConfig, "model catalogue is empty", nil)
	}

	names := make(map[string]struct{}, len(c.Candidates))
	for _, cand := range c.Candidates {
		if cand.Name == "" || cand.Build == nil {
			return errs.New(errs.StageConfig, errs.KindConfig, "catalogue entry without name or builder", nil)
		}
		if _, dup := names[cand.Name]; dup {
			return errs.New(errs.StageConfig, errs.KindConfig,
				fmt.Sprintf("duplicate catalogue entry %q", cand.Name), nil)
		}
		names[cand.Name] = struct{}{}
	}

	var missing, extra []string
	for name := range names {
		if _, ok := c.Spaces[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range c.Spaces {
		if _, ok := names[name]; !ok {
			extra = append(extra, name)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		sort.Strings(missing)
		sort.Strings(extra)
		return errs.New(errs.StageConfig, errs.KindConfig,
			fmt.Sprintf("models and search spaces mismatch: without space %v, space without model %v", missing, extra), nil)
	}

	for name, space := range c.Spaces {
		for param, values := range space {
			if len(values) == 0 {
				return errs.New(errs.StageConfig, errs.KindConfig,
					fmt.Sprintf("%s: parameter %q has no values", name, param), nil)
			}
		}
	}

	return nil
}

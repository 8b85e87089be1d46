package search

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fakenews-detector/backend/internal/errs"
	"github.com/fakenews-detector/backend/internal/metrics"
	"github.com/fakenews-detector/backend/internal/model"
	"github.com/fakenews-detector/backend/internal/sparse"
	"github.com/fakenews-detector/backend/pkg/logger"
)

// Config holds the search constants.
type Config struct {
	Iterations  int
	Folds       int
	Seed        int64
	Workers     int
	MinAccuracy float64
}

// Data is a feature matrix with its labels.
type Data struct {
	X *sparse.Matrix
	Y []int
}

// Result is the outcome of tuning one candidate. Err is set when the
// candidate failed and the remaining fields are then meaningless.
type Result struct {
	Name       string
	Params     model.Params
	CVScore    float64
	Accuracy   float64
	Classifier model.Classifier
	Duration   time.Duration
	Err        error
}

// Selection is the winning candidate together with every candidate result.
type Selection struct {
	Name       string
	Params     model.Params
	Accuracy   float64
	Classifier model.Classifier
	Results    []Result
}

// Tuning is the best configuration found for one candidate, refit on the
// full training data.
type Tuning struct {
	Params     model.Params
	CVScore    float64
	Classifier model.Classifier
	Evaluated  int
	Discarded  int
}

type Engine struct {
	cfg       Config
	catalogue Catalogue
	observe   func(Result)
}

type Option func(*Engine)

// WithObserver registers fn to receive every candidate result as soon as it
// is known, in catalogue order.
func WithObserver(fn func(Result)) Option {
	return func(e *Engine) {
		e.observe = fn
	}
}

func NewEngine(cfg Config, catalogue Catalogue, opts ...Option) (*Engine, error) {
	if err := catalogue.Validate(); err != nil {
		return nil, err
	}
	if cfg.Iterations < 1 {
		return nil, errs.New(errs.StageConfig, errs.KindConfig,
			fmt.Sprintf("search iterations must be at least 1, got %d", cfg.Iterations), nil)
	}
	if cfg.Folds < 2 {
		return nil, errs.New(errs.StageConfig, errs.KindConfig,
			fmt.Sprintf("search folds must be at least 2, got %d", cfg.Folds), nil)
	}
	if cfg.MinAccuracy < 0 || cfg.MinAccuracy > 1 {
		return nil, errs.New(errs.StageConfig, errs.KindConfig,
			fmt.Sprintf("minimum accuracy must be within [0,1], got %v", cfg.MinAccuracy), nil)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	e := &Engine{cfg: cfg, catalogue: catalogue}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Tune cross-validates sampled configurations of one candidate and refits
// the best one on all of train. Fits run on a bounded pool; every score lands
// in a fixed slot, so the outcome does not depend on the worker count.
func (e *Engine) Tune(ctx context.Context, cand Candidate, space Space, train Data) (*Tuning, error) {
	configs := SampleParams(space, e.cfg.Iterations, e.cfg.Seed)
	folds, err := StratifiedKFold(train.Y, e.cfg.Folds)
	if err != nil {
		return nil, errs.New(errs.StageSearch, errs.KindSearch, cand.Name+": cross-validation split failed", err)
	}

	splits := make([]foldData, len(folds))
	for f, fold := range folds {
		splits[f] = foldData{
			train: Data{X: train.X.SelectRows(fold.Train), Y: pick(train.Y, fold.Train)},
			test:  Data{X: train.X.SelectRows(fold.Test), Y: pick(train.Y, fold.Test)},
		}
	}

	scores := make([][]float64, len(configs))
	failures := make([][]error, len(configs))
	for c := range configs {
		scores[c] = make([]float64, len(splits))
		failures[c] = make([]error, len(splits))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for c := range configs {
		for f := range splits {
			c, f := c, f
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				scores[c][f], failures[c][f] = evaluate(cand, configs[c], splits[f])
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, errs.New(errs.StageSearch, errs.KindSearch, cand.Name+": search cancelled", err)
	}

	best := -1
	var bestScore float64
	var discarded []error
	for c, params := range configs {
		if err := errors.Join(failures[c]...); err != nil {
			metrics.SearchFitsTotal.WithLabelValues(cand.Name, "failed").Inc()
			logger.Warn("Discarding configuration",
				zap.String("candidate", cand.Name),
				zap.String("params", params.Format()),
				zap.Error(err),
			)
			discarded = append(discarded, fmt.Errorf("%s: %w", params.Format(), err))
			continue
		}
		metrics.SearchFitsTotal.WithLabelValues(cand.Name, "ok").Inc()

		var sum float64
		for _, s := range scores[c] {
			sum += s
		}
		mean := sum / float64(len(scores[c]))
		logger.Debug("Configuration scored",
			zap.String("candidate", cand.Name),
			zap.String("params", params.Format()),
			zap.Float64("cv_score", mean),
		)
		if best < 0 || mean > bestScore {
			best, bestScore = c, mean
		}
	}
	if best < 0 {
		return nil, errs.New(errs.StageSearch, errs.KindSearch,
			cand.Name+": every configuration failed", errors.Join(discarded...))
	}

	clf, err := cand.Build(configs[best])
	if err != nil {
		return nil, errs.New(errs.StageSearch, errs.KindSearch, cand.Name+": build failed", err)
	}
	if err := safeFit(clf, train); err != nil {
		return nil, errs.New(errs.StageSearch, errs.KindSearch, cand.Name+": refit failed", err)
	}

	return &Tuning{
		Params:     configs[best],
		CVScore:    bestScore,
		Classifier: clf,
		Evaluated:  len(configs),
		Discarded:  len(discarded),
	}, nil
}

// Run tunes every candidate in catalogue order, scores each on test and
// selects the winner. A failing candidate is recorded and skipped. The
// selection is rejected when no candidate reaches the minimum accuracy.
func (e *Engine) Run(ctx context.Context, train, test Data) (*Selection, error) {
	results := make([]Result, 0, len(e.catalogue.Candidates))

	for _, cand := range e.catalogue.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, errs.New(errs.StageSearch, errs.KindSearch, "search cancelled", err)
		}

		res := e.evaluateCandidate(ctx, cand, train, test)
		if res.Err != nil {
			logger.Error("Candidate failed",
				zap.String("candidate", cand.Name),
				zap.Error(res.Err),
			)
		} else {
			metrics.CandidateAccuracy.WithLabelValues(cand.Name).Set(res.Accuracy)
			metrics.CandidateCVScore.WithLabelValues(cand.Name).Set(res.CVScore)
			logger.Info("Candidate tuned",
				zap.String("candidate", cand.Name),
				zap.String("params", res.Params.Format()),
				zap.Float64("cv_score", res.CVScore),
				zap.Float64("accuracy", res.Accuracy),
				zap.Duration("duration", res.Duration),
			)
		}
		if e.observe != nil {
			e.observe(res)
		}
		results = append(results, res)
	}

	best, ok := Select(results)
	if !ok {
		causes := make([]error, len(results))
		for i, r := range results {
			causes[i] = r.Err
		}
		return nil, errs.New(errs.StageSearch, errs.KindSearch, "every candidate failed", errors.Join(causes...))
	}

	if best.Accuracy < e.cfg.MinAccuracy {
		return nil, errs.New(errs.StageSearch, errs.KindGate,
			fmt.Sprintf("no satisfactory model found: best %s scored %.4f, minimum is %.4f",
				best.Name, best.Accuracy, e.cfg.MinAccuracy), nil)
	}

	logger.Info("Best model selected",
		zap.String("candidate", best.Name),
		zap.String("params", best.Params.Format()),
		zap.Float64("accuracy", best.Accuracy),
	)

	return &Selection{
		Name:       best.Name,
		Params:     best.Params,
		Accuracy:   best.Accuracy,
		Classifier: best.Classifier,
		Results:    results,
	}, nil
}

func (e *Engine) evaluateCandidate(ctx context.Context, cand Candidate, train, test Data) Result {
	start := time.Now()
	res := Result{Name: cand.Name}

	tuning, err := e.Tune(ctx, cand, e.catalogue.Spaces[cand.Name], train)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}

	pred, err := tuning.Classifier.Predict(test.X)
	if err == nil {
		res.Accuracy, err = model.Accuracy(test.Y, pred)
	}
	if err != nil {
		res.Err = errs.New(errs.StageSearch, errs.KindSearch, cand.Name+": scoring failed", err)
		res.Duration = time.Since(start)
		return res
	}

	res.Params = tuning.Params
	res.CVScore = tuning.CVScore
	res.Classifier = tuning.Classifier
	res.Duration = time.Since(start)
	return res
}

// Select returns the result with the highest accuracy among those without
// an error. Only a strictly greater accuracy replaces the current best, so
// the earliest result wins a tie.
func Select(results []Result) (Result, bool) {
	var best Result
	found := false
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if !found || r.Accuracy > best.Accuracy {
			best, found = r, true
		}
	}
	return best, found
}

type foldData struct {
	train Data
	test  Data
}

func evaluate(cand Candidate, params model.Params, fd foldData) (float64, error) {
	clf, err := cand.Build(params)
	if err != nil {
		return 0, err
	}
	if err := safeFit(clf, fd.train); err != nil {
		return 0, err
	}
	pred, err := clf.Predict(fd.test.X)
	if err != nil {
		return 0, err
	}
	return model.Accuracy(fd.test.Y, pred)
}

// safeFit turns an estimator panic into an error.
func safeFit(clf model.Classifier, d Data) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fit panicked: %v", r)
		}
	}()
	return clf.Fit(d.X, d.Y)
}

func pick(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, r := range idx {
		out[i] = y[r]
	}
	return out
}

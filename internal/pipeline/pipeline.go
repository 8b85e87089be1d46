// Package pipeline runs a training job end to end: ingestion, feature
// extraction, model search and persistence, in that order. It is the only
// component that decides whether a run has failed.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fakenews-detector/backend/internal/artifact"
	"github.com/fakenews-detector/backend/internal/corpus"
	"github.com/fakenews-detector/backend/internal/errs"
	"github.com/fakenews-detector/backend/internal/evaluation"
	"github.com/fakenews-detector/backend/internal/features"
	"github.com/fakenews-detector/backend/internal/metrics"
	"github.com/fakenews-detector/backend/internal/model"
	"github.com/fakenews-detector/backend/internal/search"
	"github.com/fakenews-detector/backend/internal/sparse"
	"github.com/fakenews-detector/backend/internal/storage/models"
	"github.com/fakenews-detector/backend/pkg/config"
	"github.com/fakenews-detector/backend/pkg/logger"
)

// Recorder keeps a history of training runs. Recorder failures never fail
// a run.
type Recorder interface {
	StartRun(run *models.TrainingRun) error
	RecordCandidate(c *models.CandidateResult) error
	FinishRun(run *models.TrainingRun) error
}

// Summary describes a successful run.
type Summary struct {
	RunID         string
	Winner        string
	Accuracy      float64
	Params        model.Params
	Candidates    []search.Result
	Report        *evaluation.Report
	TrainRows     int
	TestRows      int
	Vocabulary    int
	ExtractorPath string
	ModelPath     string
	Duration      time.Duration
}

type Pipeline struct {
	cfg       *config.Config
	loader    corpus.Loader
	store     artifact.Store
	recorder  Recorder
	catalogue search.Catalogue
}

type Option func(*Pipeline)

func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

func WithCatalogue(c search.Catalogue) Option {
	return func(p *Pipeline) {
		p.catalogue = c
	}
}

func New(cfg *config.Config, loader corpus.Loader, store artifact.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		loader:    loader,
		store:     store,
		catalogue: search.DefaultCatalogue(cfg.Search.MaxIter, cfg.Search.Tol),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFileLoader builds the CSV corpus loader described by cfg.
func NewFileLoader(cfg *config.Config) *corpus.FileLoader {
	return corpus.NewFileLoader(corpus.Config{
		TruePath:     cfg.Corpus.TruePath,
		FakePath:     cfg.Corpus.FakePath,
		RawPath:      cfg.Corpus.RawPath,
		TrainPath:    cfg.Corpus.TrainPath,
		TestPath:     cfg.Corpus.TestPath,
		TextField:    cfg.Corpus.TextField,
		TestFraction: cfg.Corpus.TestFraction,
		Seed:         cfg.Corpus.Seed,
		StripHTML:    cfg.Corpus.StripHTML,
	})
}

// prepared is the output of the transformation stage.
type prepared struct {
	extractor *features.TFIDF
	train     search.Data
	test      search.Data
}

// Run executes one training run. On failure the returned error is an
// *errs.Error naming the failed stage, and no artifact from this run is
// left behind.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	run := &models.TrainingRun{
		ID:        uuid.NewString(),
		Status:    models.RunStatusRunning,
		StartedAt: start,
	}
	log := logger.GetLogger().With(zap.String("run_id", run.ID))
	log.Info("Training run started")

	summary, err := p.run(ctx, run, log)

	finished := time.Now()
	run.FinishedAt = &finished
	if err != nil {
		run.Status = models.RunStatusFailed
		run.Stage = errs.StageOf(err)
		run.Error = err.Error()
		metrics.TrainingRunsTotal.WithLabelValues(models.RunStatusFailed).Inc()
		log.Error("Training run failed", zap.String("stage", run.Stage), zap.Error(err))
	} else {
		run.Status = models.RunStatusSucceeded
		metrics.TrainingRunsTotal.WithLabelValues(models.RunStatusSucceeded).Inc()
		log.Info("Training run completed",
			zap.String("winner", summary.Winner),
			zap.Float64("accuracy", summary.Accuracy),
			zap.Duration("duration", summary.Duration),
		)
	}
	p.record(log, func(r Recorder) error { return r.FinishRun(run) })

	return summary, err
}

func (p *Pipeline) run(ctx context.Context, run *models.TrainingRun, log *zap.Logger) (*Summary, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, errs.New(errs.StageConfig, errs.KindConfig, "invalid configuration", err)
	}
	engine, err := search.NewEngine(search.Config{
		Iterations:  p.cfg.Search.Iterations,
		Folds:       p.cfg.Search.Folds,
		Seed:        p.cfg.Search.Seed,
		Workers:     p.cfg.Search.Workers,
		MinAccuracy: p.cfg.Search.MinAccuracy,
	}, p.catalogue, search.WithObserver(func(r search.Result) {
		p.record(log, func(rec Recorder) error { return rec.RecordCandidate(candidateRecord(run.ID, r)) })
	}))
	if err != nil {
		return nil, errs.Wrap(errs.StageConfig, errs.KindConfig, err)
	}

	p.record(log, func(r Recorder) error { return r.StartRun(run) })

	var trainPath, testPath string
	err = p.stage(errs.StageIngestion, func() error {
		var err error
		trainPath, testPath, err = p.loader.Load(ctx)
		return errs.Wrap(errs.StageIngestion, errs.KindInput, err)
	})
	if err != nil {
		return nil, err
	}

	var data *prepared
	err = p.stage(errs.StageTransformation, func() error {
		var err error
		data, err = p.transform(trainPath, testPath)
		return err
	})
	if err != nil {
		return nil, err
	}
	run.TrainRows = data.train.X.Rows
	run.TestRows = data.test.X.Rows
	run.Vocabulary = data.train.X.Cols

	var sel *search.Selection
	err = p.stage(errs.StageSearch, func() error {
		var err error
		sel, err = engine.Run(ctx, data.train, data.test)
		return errs.Wrap(errs.StageSearch, errs.KindSearch, err)
	})
	if err != nil {
		return nil, err
	}
	run.Winner = sel.Name
	run.Accuracy = sel.Accuracy
	run.Params = sel.Params.Format()

	report := p.evaluate(log, sel, data.test)

	err = p.stage(errs.StagePersistence, func() error {
		return p.persist(run.ID, data.extractor, sel, report)
	})
	if err != nil {
		return nil, err
	}

	return &Summary{
		RunID:         run.ID,
		Winner:        sel.Name,
		Accuracy:      sel.Accuracy,
		Params:        sel.Params,
		Candidates:    sel.Results,
		Report:        report,
		TrainRows:     run.TrainRows,
		TestRows:      run.TestRows,
		Vocabulary:    run.Vocabulary,
		ExtractorPath: p.cfg.Artifacts.ExtractorPath,
		ModelPath:     p.cfg.Artifacts.ModelPath,
		Duration:      time.Since(run.StartedAt),
	}, nil
}

// stage times fn and tags any error it returns with stage.
func (p *Pipeline) stage(stage string, fn func() error) error {
	start := time.Now()
	logger.Info("Stage started", zap.String("stage", stage))

	err := fn()
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	logger.Info("Stage completed", zap.String("stage", stage), zap.Duration("duration", time.Since(start)))
	return nil
}

func (p *Pipeline) transform(trainPath, testPath string) (*prepared, error) {
	field := p.cfg.Corpus.TextField
	train, err := corpus.ReadLabeled(trainPath, field)
	if err != nil {
		return nil, errs.Retag(errs.StageTransformation, errs.KindInput, err)
	}
	if err := train.Validate(); err != nil {
		return nil, errs.Retag(errs.StageTransformation, errs.KindInput, err)
	}
	test, err := corpus.ReadLabeled(testPath, field)
	if err != nil {
		return nil, errs.Retag(errs.StageTransformation, errs.KindInput, err)
	}

	stop, err := features.StopWords(p.cfg.Features.StopWords, p.cfg.Features.StopWordsFile)
	if err != nil {
		return nil, errs.New(errs.StageTransformation, errs.KindConfig, "failed to resolve stop words", err)
	}
	ext := features.New(features.Options{
		MaxDF:     p.cfg.Features.MaxDF,
		MinDF:     p.cfg.Features.MinDF,
		StopWords: stop,
		Tokenizer: p.cfg.Features.Tokenizer,
		Lowercase: p.cfg.Features.Lowercase,
	})

	var Xtrain, Xtest *sparse.Matrix
	if Xtrain, err = ext.FitTransform(train.Texts()); err != nil {
		return nil, err
	}
	if Xtest, err = ext.Transform(test.Texts()); err != nil {
		return nil, err
	}
	metrics.VocabularySize.Set(float64(Xtrain.Cols))

	logger.Info("Features extracted",
		zap.Int("train_rows", Xtrain.Rows),
		zap.Int("test_rows", Xtest.Rows),
		zap.Int("vocabulary", Xtrain.Cols),
		zap.String("text_field", field),
	)

	return &prepared{
		extractor: ext,
		train:     search.Data{X: Xtrain, Y: train.Labels()},
		test:      search.Data{X: Xtest, Y: test.Labels()},
	}, nil
}

// persist writes the extractor, then the model, then the manifest. A later
// write failing reverts the earlier ones when the store supports it, so the
// previous pair stays consistent.
func (p *Pipeline) persist(runID string, ext *features.TFIDF, sel *search.Selection, report *evaluation.Report) error {
	paths := p.cfg.Artifacts
	var saved []string
	fail := func(err error) error {
		p.revert(saved)
		return errs.Wrap(errs.StagePersistence, errs.KindPersistence, err)
	}

	if err := p.store.Save(paths.ExtractorPath, ext); err != nil {
		return fail(err)
	}
	saved = append(saved, paths.ExtractorPath)

	art := &model.Artifact{
		Family:     sel.Name,
		Params:     sel.Params,
		Accuracy:   sel.Accuracy,
		Classifier: sel.Classifier,
	}
	if err := p.store.Save(paths.ModelPath, art); err != nil {
		return fail(err)
	}
	saved = append(saved, paths.ModelPath)

	if paths.ManifestPath != "" {
		if err := artifact.WriteManifest(paths.ManifestPath, p.manifest(runID, ext, sel, report)); err != nil {
			return fail(err)
		}
	}

	logger.Info("Artifacts saved",
		zap.String("extractor", paths.ExtractorPath),
		zap.String("model", paths.ModelPath),
	)
	return nil
}

func (p *Pipeline) revert(paths []string) {
	rv, ok := p.store.(artifact.Reverter)
	if !ok {
		if len(paths) > 0 {
			logger.Warn("Store cannot revert; artifacts may be inconsistent", zap.Strings("paths", paths))
		}
		return
	}
	for i := len(paths) - 1; i >= 0; i-- {
		if err := rv.Revert(paths[i]); err != nil {
			logger.Error("Failed to revert artifact", zap.String("path", paths[i]), zap.Error(err))
		}
	}
}

// evaluate scores the selected classifier on the held-out rows. The report
// does not gate the run, so a failure only drops it.
func (p *Pipeline) evaluate(log *zap.Logger, sel *search.Selection, test search.Data) *evaluation.Report {
	predicted, err := sel.Classifier.Predict(test.X)
	if err == nil {
		var report *evaluation.Report
		if report, err = evaluation.Evaluate(test.Y, predicted); err == nil {
			log.Info("Selected model evaluated",
				zap.String("winner", sel.Name),
				zap.Float64("macro_f1", report.MacroF1),
				zap.Any("confusion", report.Matrix()),
			)
			return report
		}
	}
	log.Warn("Evaluation report unavailable", zap.String("winner", sel.Name), zap.Error(err))
	return nil
}

func (p *Pipeline) manifest(runID string, ext *features.TFIDF, sel *search.Selection, report *evaluation.Report) *artifact.Manifest {
	m := &artifact.Manifest{
		RunID:         runID,
		Family:        sel.Name,
		Accuracy:      sel.Accuracy,
		Params:        sel.Params,
		TextField:     p.cfg.Corpus.TextField,
		Tokenizer:     ext.Options.Tokenizer,
		Vocabulary:    len(ext.Terms),
		ExtractorPath: p.cfg.Artifacts.ExtractorPath,
		ModelPath:     p.cfg.Artifacts.ModelPath,
		CreatedAt:     time.Now().UTC(),
	}
	if report != nil {
		m.MacroF1 = report.MacroF1
		m.Confusion = report.Matrix()
	}
	for _, r := range sel.Results {
		cs := artifact.CandidateSummary{Name: r.Name, Params: r.Params.Format(), CVScore: r.CVScore, Accuracy: r.Accuracy}
		if r.Err != nil {
			cs.Error = r.Err.Error()
		}
		m.Candidates = append(m.Candidates, cs)
	}
	return m
}

func (p *Pipeline) record(log *zap.Logger, fn func(Recorder) error) {
	if p.recorder == nil {
		return
	}
	if err := fn(p.recorder); err != nil {
		log.Warn("Failed to record run history", zap.Error(err))
	}
}

func candidateRecord(runID string, r search.Result) *models.CandidateResult {
	c := &models.CandidateResult{
		RunID:      runID,
		Name:       r.Name,
		Params:     r.Params.Format(),
		CVScore:    r.CVScore,
		Accuracy:   r.Accuracy,
		DurationMS: r.Duration.Milliseconds(),
		CreatedAt:  time.Now(),
	}
	if r.Err != nil {
		c.Error = r.Err.Error()
	}
	return c
}

// Describe renders a one-line summary for CLI output.
func (s *Summary) Describe() string {
	return fmt.Sprintf("%s (%s) accuracy=%.4f train=%d test=%d vocabulary=%d",
		s.Winner, s.Params.Format(), s.Accuracy, s.TrainRows, s.TestRows, s.Vocabulary)
}

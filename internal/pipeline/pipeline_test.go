package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fakenews-detector/backend/internal/artifact"
	"github.com/fakenews-detector/backend/internal/corpus"
	"github.com/fakenews-detector/backend/internal/errs"
	"github.com/fakenews-detector/backend/internal/features"
	"github.com/fakenews-detector/backend/internal/model"
	"github.com/fakenews-detector/backend/internal/search"
	"github.com/fakenews-detector/backend/internal/sparse"
	"github.com/fakenews-detector/backend/internal/storage/models"
	"github.com/fakenews-detector/backend/pkg/config"
)

var (
	genuineWords    = []string{"senate", "budget", "committee", "officials", "minister", "treaty", "reuters", "parliament", "tariff", "ruling"}
	fabricatedWords = []string{"shocking", "video", "breaking", "watch", "destroys", "insane", "hilarious", "exposed", "meltdown", "epic"}
	sharedWords     = []string{"trump", "obama", "clinton", "russia"}
)

func headline(words []string, i int) string {
	return fmt.Sprintf("%s %s %s %s",
		sharedWords[i%len(sharedWords)],
		words[i%len(words)],
		words[(i*3+1)%len(words)],
		words[(i*7+2)%len(words)],
	)
}

func writeCorpus(t *testing.T, path string, words []string, n int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("title,text,subject,date\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%s,body %d,news,2017-12-%02d\n", headline(words, i), i, i%28+1)
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func testConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.Corpus.TruePath = filepath.Join(dir, "data", "True.csv")
	cfg.Corpus.FakePath = filepath.Join(dir, "data", "Fake.csv")
	cfg.Corpus.RawPath = filepath.Join(dir, "artifacts", "merged_data.csv")
	cfg.Corpus.TrainPath = filepath.Join(dir, "artifacts", "train.csv")
	cfg.Corpus.TestPath = filepath.Join(dir, "artifacts", "test.csv")
	cfg.Artifacts.ExtractorPath = filepath.Join(dir, "artifacts", "preprocessor.bin")
	cfg.Artifacts.ModelPath = filepath.Join(dir, "artifacts", "model.bin")
	cfg.Artifacts.ManifestPath = filepath.Join(dir, "artifacts", "manifest.yaml")
	cfg.Search.Workers = 2
	return cfg
}

func fileLoader(t *testing.T, cfg *config.Config) corpus.Loader {
	writeCorpus(t, cfg.Corpus.TruePath, genuineWords, 100)
	writeCorpus(t, cfg.Corpus.FakePath, fabricatedWords, 100)
	return NewFileLoader(cfg)
}

type memRecorder struct {
	mu         sync.Mutex
	started    []*models.TrainingRun
	candidates []*models.CandidateResult
	finished   []*models.TrainingRun
}

func (r *memRecorder) StartRun(run *models.TrainingRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.started = append(r.started, &cp)
	return nil
}

func (r *memRecorder) RecordCandidate(c *models.CandidateResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates = append(r.candidates, c)
	return nil
}

func (r *memRecorder) FinishRun(run *models.TrainingRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.finished = append(r.finished, &cp)
	return nil
}

// spyStore wraps a FileStore, counting calls and failing saves on demand.
type spyStore struct {
	inner    *artifact.FileStore
	failOn   string
	saves    []string
	reverted []string
}

func (s *spyStore) Save(path string, v any) error {
	if path == s.failOn {
		return errors.New("disk full")
	}
	s.saves = append(s.saves, path)
	return s.inner.Save(path, v)
}

func (s *spyStore) Load(path string, v any) error {
	return s.inner.Load(path, v)
}

func (s *spyStore) Revert(path string) error {
	s.reverted = append(s.reverted, path)
	return s.inner.Revert(path)
}

type failingLoader struct{ calls int }

func (l *failingLoader) Load(context.Context) (string, string, error) {
	l.calls++
	return "", "", errors.New("source data/True.csv is missing")
}

// constant always predicts the fabricated label.
type constant struct{}

func (constant) Fit(*sparse.Matrix, []int) error { return nil }

func (constant) Predict(X *sparse.Matrix) ([]int, error) {
	return make([]int, X.Rows), nil
}

func constantCatalogue() search.Catalogue {
	return search.Catalogue{
		Candidates: []search.Candidate{{
			Name:  "Constant",
			Build: func(model.Params) (model.Classifier, error) { return constant{}, nil },
		}},
		Spaces: map[string]search.Space{"Constant": {"unused": {1.0}}},
	}
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	rec := &memRecorder{}
	store := &spyStore{inner: artifact.NewFileStore()}

	summary, err := New(cfg, fileLoader(t, cfg), store, WithRecorder(rec)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 160, summary.TrainRows)
	assert.Equal(t, 40, summary.TestRows)
	assert.GreaterOrEqual(t, summary.Accuracy, 0.7)
	assert.LessOrEqual(t, summary.Accuracy, 1.0)
	require.Len(t, summary.Candidates, 3)
	assert.Equal(t, search.LogisticRegression, summary.Candidates[0].Name)
	assert.Equal(t, []string{cfg.Artifacts.ExtractorPath, cfg.Artifacts.ModelPath}, store.saves)

	for _, p := range []string{cfg.Artifacts.ExtractorPath, cfg.Artifacts.ModelPath, cfg.Artifacts.ManifestPath} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}

	var ext features.TFIDF
	require.NoError(t, store.Load(cfg.Artifacts.ExtractorPath, &ext))
	var art model.Artifact
	require.NoError(t, store.Load(cfg.Artifacts.ModelPath, &art))
	assert.Equal(t, summary.Winner, art.Family)

	X, err := ext.Transform([]string{"senate budget committee", "shocking video exposed"})
	require.NoError(t, err)
	pred, err := art.Classifier.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, []int{model.LabelGenuine, model.LabelFabricated}, pred)

	m, err := artifact.ReadManifest(cfg.Artifacts.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, m.RunID)
	assert.Equal(t, "title", m.TextField)
	assert.Len(t, m.Candidates, 3)

	require.NotNil(t, summary.Report)
	assert.InDelta(t, summary.Accuracy, summary.Report.Accuracy, 1e-12)
	assert.Equal(t, 20, summary.Report.Classes[model.LabelGenuine].Support)
	assert.Equal(t, summary.Report.Matrix(), m.Confusion)

	require.Len(t, rec.started, 1)
	assert.Len(t, rec.candidates, 3)
	require.Len(t, rec.finished, 1)
	assert.Equal(t, models.RunStatusSucceeded, rec.finished[0].Status)
	assert.Equal(t, summary.Winner, rec.finished[0].Winner)
	assert.Equal(t, 160, rec.finished[0].TrainRows)
}

func TestRunGateFailureWritesNoArtifacts(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	rec := &memRecorder{}
	store := &spyStore{inner: artifact.NewFileStore()}

	p := New(cfg, fileLoader(t, cfg), store, WithRecorder(rec), WithCatalogue(constantCatalogue()))
	summary, err := p.Run(context.Background())
	assert.Nil(t, summary)

	require.ErrorIs(t, err, errs.ErrGateFailure)
	assert.Equal(t, errs.StageSearch, errs.StageOf(err))
	assert.Empty(t, store.saves)
	_, statErr := os.Stat(cfg.Artifacts.ModelPath)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(cfg.Artifacts.ExtractorPath)
	assert.True(t, os.IsNotExist(statErr))

	require.Len(t, rec.finished, 1)
	assert.Equal(t, models.RunStatusFailed, rec.finished[0].Status)
	assert.Equal(t, errs.StageSearch, rec.finished[0].Stage)
}

func TestRunLoaderFailureIsFatalIngestionError(t *testing.T) {
	cfg := testConfig(t.TempDir())
	loader := &failingLoader{}
	store := &spyStore{inner: artifact.NewFileStore()}

	_, err := New(cfg, loader, store).Run(context.Background())
	require.ErrorIs(t, err, errs.ErrInput)
	assert.Equal(t, errs.StageIngestion, errs.StageOf(err))
	assert.Contains(t, err.Error(), "True.csv")
	assert.Equal(t, 1, loader.calls, "no retries")
	assert.Empty(t, store.saves)
}

func TestRunModelSaveFailureRevertsExtractor(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	store := &spyStore{inner: artifact.NewFileStore(), failOn: cfg.Artifacts.ModelPath}

	_, err := New(cfg, fileLoader(t, cfg), store).Run(context.Background())
	require.ErrorIs(t, err, errs.ErrPersistence)
	assert.Equal(t, errs.StagePersistence, errs.StageOf(err))
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, []string{cfg.Artifacts.ExtractorPath}, store.reverted)
	_, statErr := os.Stat(cfg.Artifacts.ExtractorPath)
	assert.True(t, os.IsNotExist(statErr), "extractor from the failed run must not remain")
}

func TestRunModelSaveFailureKeepsPreviousPair(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	loader := fileLoader(t, cfg)

	good := artifact.NewFileStore()
	_, err := New(cfg, loader, good).Run(context.Background())
	require.NoError(t, err)
	before, err := os.ReadFile(cfg.Artifacts.ExtractorPath)
	require.NoError(t, err)

	cfg.Features.MaxDF = 0.5
	store := &spyStore{inner: artifact.NewFileStore(), failOn: cfg.Artifacts.ModelPath}
	_, err = New(cfg, loader, store).Run(context.Background())
	require.ErrorIs(t, err, errs.ErrPersistence)

	after, err := os.ReadFile(cfg.Artifacts.ExtractorPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRunRejectsInvalidConfigurationBeforeIngestion(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Search.Folds = 1
	loader := &failingLoader{}

	_, err := New(cfg, loader, artifact.NewFileStore()).Run(context.Background())
	require.ErrorIs(t, err, errs.ErrConfig)
	assert.Equal(t, errs.StageConfig, errs.StageOf(err))
	assert.Zero(t, loader.calls)
}

func TestRunRejectsMismatchedCatalogueBeforeIngestion(t *testing.T) {
	cfg := testConfig(t.TempDir())
	loader := &failingLoader{}
	cat := search.DefaultCatalogue(100, 1e-4)
	delete(cat.Spaces, search.LinearSVM)

	_, err := New(cfg, loader, artifact.NewFileStore(), WithCatalogue(cat)).Run(context.Background())
	require.ErrorIs(t, err, errs.ErrConfig)
	assert.Zero(t, loader.calls)
}

// splitLoader hands back splits written by the test instead of a corpus.
type splitLoader struct{ train, test string }

func (l splitLoader) Load(context.Context) (string, string, error) {
	return l.train, l.test, nil
}

func TestRunSingleClassSplitIsTransformationError(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	rec := &memRecorder{}

	train := filepath.Join(dir, "train.csv")
	test := filepath.Join(dir, "test.csv")
	header := "title," + corpus.LabelColumn + "\n"
	require.NoError(t, os.WriteFile(train, []byte(header+"senate passes budget,1\nminister signs treaty,1\n"), 0o644))
	require.NoError(t, os.WriteFile(test, []byte(header+"shocking video,0\n"), 0o644))

	store := &spyStore{inner: artifact.NewFileStore()}
	_, err := New(cfg, splitLoader{train: train, test: test}, store, WithRecorder(rec)).Run(context.Background())
	require.ErrorIs(t, err, errs.ErrInput)
	assert.Equal(t, errs.StageTransformation, errs.StageOf(err))
	assert.Contains(t, err.Error(), "both labels")
	assert.Empty(t, store.saves)

	require.Len(t, rec.finished, 1)
	assert.Equal(t, errs.StageTransformation, rec.finished[0].Stage)
}

func TestRunMalformedSplitIsTransformationError(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	train := filepath.Join(dir, "train.csv")
	require.NoError(t, os.WriteFile(train, []byte("title,"+corpus.LabelColumn+"\nsenate passes budget,maybe\n"), 0o644))

	_, err := New(cfg, splitLoader{train: train, test: train}, artifact.NewFileStore()).Run(context.Background())
	require.ErrorIs(t, err, errs.ErrInput)
	assert.Equal(t, errs.StageTransformation, errs.StageOf(err))
}

// failingPredictor fits but never predicts.
type failingPredictor struct{}

func (failingPredictor) Fit(*sparse.Matrix, []int) error { return nil }

func (failingPredictor) Predict(*sparse.Matrix) ([]int, error) {
	return nil, errors.New("weights missing")
}

func TestEvaluateFailureDropsReportOnly(t *testing.T) {
	cfg := testConfig(t.TempDir())
	p := New(cfg, &failingLoader{}, artifact.NewFileStore())
	sel := &search.Selection{Name: "Broken", Classifier: failingPredictor{}}
	test := search.Data{X: sparse.FromDense([][]float64{{1, 0, 0}, {0, 1, 0}}), Y: []int{0, 1}}

	report := p.evaluate(zap.NewNop(), sel, test)
	assert.Nil(t, report)

	ext := features.New(features.Options{})
	m := p.manifest("run-1", ext, sel, report)
	assert.Equal(t, "Broken", m.Family)
	assert.Zero(t, m.MacroF1)
	assert.Nil(t, m.Confusion)
}

// Package features turns raw text into TF-IDF weighted sparse vectors.
//
// A TFIDF extractor learns its vocabulary and inverse document frequencies
// from training text once, in Fit. Transform only ever reads that state, so
// test and inference text are projected onto the training vocabulary and
// unseen terms contribute nothing.
package features

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fakenews-detector/backend/internal/errs"
	"github.com/fakenews-detector/backend/internal/sparse"
	"github.com/fakenews-detector/backend/pkg/logger"
)

// Options configure vocabulary construction.
type Options struct {
	// MaxDF drops terms present in more than this fraction of documents.
	MaxDF float64
	// MinDF drops terms present in fewer than this many documents.
	MinDF     int
	StopWords []string
	Tokenizer string
	Lowercase bool
}

func DefaultOptions() Options {
	return Options{
		MaxDF:     0.7,
		MinDF:     1,
		StopWords: EnglishStopWords(),
		Tokenizer: TokenizerRegex,
		Lowercase: true,
	}
}

func (o Options) validate() error {
	if o.MaxDF <= 0 || o.MaxDF > 1 {
		return fmt.Errorf("max_df must be in (0, 1], got %v", o.MaxDF)
	}
	if o.MinDF < 1 {
		return fmt.Errorf("min_df must be at least 1, got %d", o.MinDF)
	}
	if _, err := NewTokenizer(o.Tokenizer); err != nil {
		return err
	}
	return nil
}

// TFIDF is a fitted (or fittable) text vectorizer. The exported fields are
// its persisted state; they are written once by Fit and read-only afterwards.
type TFIDF struct {
	Options  Options
	Terms    []string
	Index    map[string]int
	IDF      []float64
	DocCount int
	IsFitted bool

	once      sync.Once
	tokenizer Tokenizer
	stop      map[string]struct{}
}

func New(opts Options) *TFIDF {
	return &TFIDF{Options: opts}
}

func (t *TFIDF) prepare() {
	t.once.Do(func() {
		tok, err := NewTokenizer(t.Options.Tokenizer)
		if err != nil {
			tok = regexTokenizer{}
		}
		t.tokenizer = tok
		t.stop = make(map[string]struct{}, len(t.Options.StopWords))
		for _, w := range t.Options.StopWords {
			t.stop[w] = struct{}{}
		}
	})
}

func (t *TFIDF) Fitted() bool {
	return t.IsFitted
}

// Vocabulary returns the learned terms in column order.
func (t *TFIDF) Vocabulary() []string {
	out := make([]string, len(t.Terms))
	copy(out, t.Terms)
	return out
}

func (t *TFIDF) terms(text string) []string {
	if t.Options.Lowercase {
		text = strings.ToLower(text)
	}
	tokens := t.tokenizer.Tokenize(text)
	out := tokens[:0]
	for _, tok := range tokens {
		if _, ok := t.stop[tok]; ok {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Fit learns the vocabulary and IDF weights from texts. An extractor can be
// fitted only once.
func (t *TFIDF) Fit(texts []string) error {
	if t.IsFitted {
		return errs.New(errs.StageTransformation, errs.KindInput, "extractor is already fitted", nil)
	}
	if err := t.Options.validate(); err != nil {
		return errs.New(errs.StageTransformation, errs.KindConfig, "invalid extractor options", err)
	}
	if len(texts) == 0 {
		return errs.New(errs.StageTransformation, errs.KindInput, "no training documents", nil)
	}
	t.prepare()

	df := make(map[string]int)
	for _, text := range texts {
		seen := make(map[string]struct{})
		for _, term := range t.terms(text) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	n := len(texts)
	maxDocs := t.Options.MaxDF * float64(n)
	terms := make([]string, 0, len(df))
	pruned := 0
	for term, count := range df {
		if float64(count) > maxDocs || count < t.Options.MinDF {
			pruned++
			continue
		}
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return errs.New(errs.StageTransformation, errs.KindInput,
			"empty vocabulary after pruning; documents may contain only stop words", nil)
	}
	sort.Strings(terms)

	index := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		index[term] = i
		idf[i] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}

	t.Terms = terms
	t.Index = index
	t.IDF = idf
	t.DocCount = n
	t.IsFitted = true

	logger.Info("TF-IDF vocabulary fitted",
		zap.Int("documents", n),
		zap.Int("vocabulary", len(terms)),
		zap.Int("pruned_terms", pruned),
		zap.Float64("max_df", t.Options.MaxDF),
	)

	return nil
}

// Transform projects texts onto the fitted vocabulary. Rows are L2
// normalised; a text with no known terms yields an empty row.
func (t *TFIDF) Transform(texts []string) (*sparse.Matrix, error) {
	if !t.IsFitted {
		return nil, errs.New(errs.StageTransformation, errs.KindNotFitted,
			"transform called before fit", nil)
	}
	t.prepare()

	b := sparse.NewBuilder(len(t.Terms))
	for _, text := range texts {
		counts := make(map[int]int)
		for _, term := range t.terms(text) {
			if j, ok := t.Index[term]; ok {
				counts[j]++
			}
		}

		cols := make([]int, 0, len(counts))
		for j := range counts {
			cols = append(cols, j)
		}
		sort.Ints(cols)

		vals := make([]float64, len(cols))
		var norm float64
		for k, j := range cols {
			v := float64(counts[j]) * t.IDF[j]
			vals[k] = v
			norm += v * v
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for k := range vals {
				vals[k] /= norm
			}
		}
		b.AppendRow(cols, vals)
	}

	return b.Build(), nil
}

func (t *TFIDF) FitTransform(texts []string) (*sparse.Matrix, error) {
	if err := t.Fit(texts); err != nil {
		return nil, err
	}
	return t.Transform(texts)
}

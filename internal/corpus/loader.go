package corpus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fakenews-detector/backend/internal/errs"
	"github.com/fakenews-detector/backend/pkg/logger"
)

// Loader produces the persisted train and test splits.
type Loader interface {
	Load(ctx context.Context) (trainPath, testPath string, err error)
}

type Config struct {
	TruePath     string
	FakePath     string
	RawPath      string
	TrainPath    string
	TestPath     string
	TextField    string
	TestFraction float64
	Seed         int64
	StripHTML    bool
}

// FileLoader reads a genuine and a fabricated CSV source, labels and merges
// them, and writes the merged table and its stratified split to disk.
type FileLoader struct {
	cfg Config
}

func NewFileLoader(cfg Config) *FileLoader {
	return &FileLoader{cfg: cfg}
}

func (l *FileLoader) Load(ctx context.Context) (string, string, error) {
	start := time.Now()
	logger.Info("Starting data ingestion",
		zap.String("genuine_source", l.cfg.TruePath),
		zap.String("fabricated_source", l.cfg.FakePath),
	)

	genuine, err := l.readSource(l.cfg.TruePath)
	if err != nil {
		return "", "", err
	}
	fabricated, err := l.readSource(l.cfg.FakePath)
	if err != nil {
		return "", "", err
	}
	if err := ctx.Err(); err != nil {
		return "", "", errs.New(errs.StageIngestion, errs.KindInput, "ingestion cancelled", err)
	}

	merged := merge(
		labeledTable{table: genuine, label: LabelGenuine},
		labeledTable{table: fabricated, label: LabelFabricated},
	)
	if l.cfg.StripHTML {
		col := merged.Column(l.cfg.TextField)
		for _, row := range merged.Rows {
			row[col] = CleanText(row[col])
		}
	}

	logger.Info("Merged sources",
		zap.Int("genuine", len(genuine.Rows)),
		zap.Int("fabricated", len(fabricated.Rows)),
		zap.Int("columns", len(merged.Header)),
	)

	if err := WriteTable(l.cfg.RawPath, merged); err != nil {
		return "", "", err
	}

	labelCol := merged.Column(LabelColumn)
	labels := make([]int, len(merged.Rows))
	for i, row := range merged.Rows {
		labels[i], _ = strconv.Atoi(row[labelCol])
	}

	trainIdx, testIdx, err := StratifiedSplit(labels, l.cfg.TestFraction, l.cfg.Seed)
	if err != nil {
		return "", "", errs.New(errs.StageIngestion, errs.KindInput, "failed to split dataset", err)
	}

	if err := WriteTable(l.cfg.TrainPath, merged.subset(trainIdx)); err != nil {
		return "", "", err
	}
	if err := WriteTable(l.cfg.TestPath, merged.subset(testIdx)); err != nil {
		return "", "", err
	}

	logger.Info("Data ingestion completed",
		zap.Int("train_rows", len(trainIdx)),
		zap.Int("test_rows", len(testIdx)),
		zap.Duration("duration", time.Since(start)),
	)

	return l.cfg.TrainPath, l.cfg.TestPath, nil
}

// readSource reads one source and checks that it carries the modeled text
// field with at least one non-blank value.
func (l *FileLoader) readSource(path string) (*Table, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	col := t.Column(l.cfg.TextField)
	if col < 0 {
		return nil, errs.New(errs.StageIngestion, errs.KindInput,
			fmt.Sprintf("source %s has no %q column", path, l.cfg.TextField), nil)
	}
	if t.Column(LabelColumn) >= 0 {
		return nil, errs.New(errs.StageIngestion, errs.KindInput,
			fmt.Sprintf("source %s already has a %q column", path, LabelColumn), nil)
	}

	for _, row := range t.Rows {
		if strings.TrimSpace(row[col]) != "" {
			return t, nil
		}
	}
	return nil, errs.New(errs.StageIngestion, errs.KindInput,
		fmt.Sprintf("source %s has no non-empty %q values", path, l.cfg.TextField), nil)
}

type labeledTable struct {
	table *Table
	label int
}

// merge concatenates the sources in order. The header is the union of the
// source headers in first-seen order followed by the label column.
func merge(sources ...labeledTable) *Table {
	var header []string
	pos := make(map[string]int)
	for _, src := range sources {
		for _, h := range src.table.Header {
			if _, ok := pos[h]; !ok {
				pos[h] = len(header)
				header = append(header, h)
			}
		}
	}
	header = append(header, LabelColumn)

	out := &Table{Header: header}
	for _, src := range sources {
		label := strconv.Itoa(src.label)
		for _, row := range src.table.Rows {
			merged := make([]string, len(header))
			for i, h := range src.table.Header {
				merged[pos[h]] = row[i]
			}
			merged[len(header)-1] = label
			out.Rows = append(out.Rows, merged)
		}
	}
	return out
}

func (t *Table) subset(idx []int) *Table {
	out := &Table{Header: t.Header, Rows: make([][]string, len(idx))}
	for i, r := range idx {
		out.Rows[i] = t.Rows[r]
	}
	return out
}

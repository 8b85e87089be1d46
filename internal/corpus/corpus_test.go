package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakenews-detector/backend/internal/errs"
)

func writeSource(t *testing.T, path string, header string, rows ...string) {
	t.Helper()
	content := header + "\n" + strings.Join(rows, "\n")
	if len(rows) > 0 {
		content += "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func headlines(prefix string, n int) []string {
	rows := make([]string, n)
	for i := range rows {
		rows[i] = fmt.Sprintf("%s headline number %d,\"body, with comma %d\",politics,2017-01-%02d", prefix, i, i, i%28+1)
	}
	return rows
}

func testConfig(dir string) Config {
	return Config{
		TruePath:     filepath.Join(dir, "data", "True.csv"),
		FakePath:     filepath.Join(dir, "data", "Fake.csv"),
		RawPath:      filepath.Join(dir, "artifacts", "merged_data.csv"),
		TrainPath:    filepath.Join(dir, "artifacts", "train.csv"),
		TestPath:     filepath.Join(dir, "artifacts", "test.csv"),
		TextField:    "title",
		TestFraction: 0.2,
		Seed:         42,
	}
}

func TestStratifiedSplitHundredPerClass(t *testing.T) {
	labels := make([]int, 200)
	for i := 0; i < 100; i++ {
		labels[i] = LabelGenuine
	}

	train, test, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, train, 160)
	assert.Len(t, test, 40)

	count := func(idx []int) map[int]int {
		out := map[int]int{}
		for _, i := range idx {
			out[labels[i]]++
		}
		return out
	}
	assert.Equal(t, map[int]int{0: 80, 1: 80}, count(train))
	assert.Equal(t, map[int]int{0: 20, 1: 20}, count(test))

	all := append(append([]int(nil), train...), test...)
	sort.Ints(all)
	for i, v := range all {
		require.Equal(t, i, v, "split must cover every row exactly once")
	}

	train2, test2, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestStratifiedSplitPreservesProportions(t *testing.T) {
	sizes := []struct{ genuine, fabricated int }{
		{1, 1}, {2, 1}, {7, 3}, {50, 13}, {33, 67}, {5, 200},
	}
	for _, sz := range sizes {
		t.Run(fmt.Sprintf("%d_%d", sz.genuine, sz.fabricated), func(t *testing.T) {
			var labels []int
			for i := 0; i < sz.genuine; i++ {
				labels = append(labels, LabelGenuine)
			}
			for i := 0; i < sz.fabricated; i++ {
				labels = append(labels, LabelFabricated)
			}

			train, test, err := StratifiedSplit(labels, 0.2, 7)
			require.NoError(t, err)
			assert.NotEmpty(t, train)
			assert.NotEmpty(t, test)
			assert.Equal(t, len(labels), len(train)+len(test))

			var testGenuine int
			for _, i := range test {
				testGenuine += labels[i]
			}
			want := 0.2 * float64(sz.genuine)
			assert.InDelta(t, want, float64(testGenuine), 1.0)
		})
	}
}

func TestStratifiedSplitRejectsBadInput(t *testing.T) {
	_, _, err := StratifiedSplit([]int{1}, 0.2, 1)
	assert.Error(t, err)
	_, _, err = StratifiedSplit([]int{1, 0}, 0, 1)
	assert.Error(t, err)
	_, _, err = StratifiedSplit([]int{1, 0}, 1, 1)
	assert.Error(t, err)
}

func TestFileLoaderEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.TruePath), 0o755))
	writeSource(t, cfg.TruePath, "title,text,subject,date", headlines("genuine", 100)...)
	writeSource(t, cfg.FakePath, "title,text,subject,date", headlines("fabricated", 100)...)

	trainPath, testPath, err := NewFileLoader(cfg).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cfg.TrainPath, trainPath)
	assert.Equal(t, cfg.TestPath, testPath)

	raw, err := ReadTable(cfg.RawPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "text", "subject", "date", "label"}, raw.Header)
	require.Len(t, raw.Rows, 200)
	assert.Equal(t, "genuine headline number 0", raw.Rows[0][0])
	assert.Equal(t, "1", raw.Rows[0][4])
	assert.Equal(t, "fabricated headline number 0", raw.Rows[100][0])
	assert.Equal(t, "0", raw.Rows[100][4])
	assert.Equal(t, "body, with comma 0", raw.Rows[0][1])

	train, err := ReadLabeled(trainPath, "title")
	require.NoError(t, err)
	test, err := ReadLabeled(testPath, "title")
	require.NoError(t, err)

	assert.Equal(t, map[int]int{0: 80, 1: 80}, train.Counts())
	assert.Equal(t, map[int]int{0: 20, 1: 20}, test.Counts())
	require.NoError(t, train.Validate())

	for _, r := range test {
		wantPrefix := "fabricated"
		if r.Label == LabelGenuine {
			wantPrefix = "genuine"
		}
		assert.True(t, strings.HasPrefix(r.Text, wantPrefix), r.Text)
	}
}

func TestFileLoaderMergesDifferingHeaders(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.TruePath), 0o755))
	writeSource(t, cfg.TruePath, "title,subject", "a real one,news", "another real,news")
	writeSource(t, cfg.FakePath, "date,title", "2017-01-01,a fake one", "2017-01-02,another fake")

	_, _, err := NewFileLoader(cfg).Load(context.Background())
	require.NoError(t, err)

	raw, err := ReadTable(cfg.RawPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "subject", "date", "label"}, raw.Header)
	assert.Equal(t, []string{"a fake one", "", "2017-01-01", "0"}, raw.Rows[2])
}

func TestFileLoaderSourceFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, cfg Config)
		want  string
	}{
		{
			name: "missing source",
			setup: func(t *testing.T, cfg Config) {
				writeSource(t, cfg.FakePath, "title", "fake")
			},
			want: "True.csv",
		},
		{
			name: "empty source",
			setup: func(t *testing.T, cfg Config) {
				require.NoError(t, os.WriteFile(cfg.TruePath, nil, 0o644))
				writeSource(t, cfg.FakePath, "title", "fake")
			},
			want: "empty",
		},
		{
			name: "header only",
			setup: func(t *testing.T, cfg Config) {
				writeSource(t, cfg.TruePath, "title,text,subject,date", headlines("genuine", 3)...)
				writeSource(t, cfg.FakePath, "title,text,subject,date")
			},
			want: "no records",
		},
		{
			name: "missing text field",
			setup: func(t *testing.T, cfg Config) {
				writeSource(t, cfg.TruePath, "headline", "real")
				writeSource(t, cfg.FakePath, "title", "fake")
			},
			want: `no "title" column`,
		},
		{
			name: "blank text field",
			setup: func(t *testing.T, cfg Config) {
				writeSource(t, cfg.TruePath, "title,subject", " ,news", ",news")
				writeSource(t, cfg.FakePath, "title", "fake")
			},
			want: "non-empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := testConfig(dir)
			require.NoError(t, os.MkdirAll(filepath.Dir(cfg.TruePath), 0o755))
			tt.setup(t, cfg)

			_, _, err := NewFileLoader(cfg).Load(context.Background())
			require.ErrorIs(t, err, errs.ErrInput)
			assert.Equal(t, errs.StageIngestion, errs.StageOf(err))
			assert.Contains(t, err.Error(), tt.want)

			_, statErr := os.Stat(cfg.TrainPath)
			assert.True(t, os.IsNotExist(statErr), "no split written on failure")
		})
	}
}

func TestReadLabeledRejectsInvalidLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	writeSource(t, path, "title,label", "ok,1", "bad,2")

	_, err := ReadLabeled(path, "title")
	assert.ErrorIs(t, err, errs.ErrInput)
	assert.Contains(t, err.Error(), "row 2")

	writeSource(t, path, "title", "no label")
	_, err = ReadLabeled(path, "title")
	assert.ErrorIs(t, err, errs.ErrInput)
}

func TestDatasetValidate(t *testing.T) {
	assert.ErrorIs(t, Dataset{}.Validate(), errs.ErrInput)
	assert.ErrorIs(t, Dataset{{Text: "a", Label: 1}}.Validate(), errs.ErrInput)
	assert.ErrorIs(t, Dataset{{Text: "a", Label: 1}, {Text: "b", Label: 3}}.Validate(), errs.ErrInput)
	assert.NoError(t, Dataset{{Text: "a", Label: 1}, {Text: "b", Label: 0}}.Validate())
}

func TestCleanText(t *testing.T) {
	tests := map[string]string{
		"  plain   headline \n":                            "plain headline",
		"<p>Breaking: <b>Senate</b> votes</p>":             "Breaking: Senate votes",
		"AT&amp;T merger <script>track()</script>blocked": "AT&T merger blocked",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanText(in), in)
	}
}

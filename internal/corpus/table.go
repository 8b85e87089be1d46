package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fakenews-detector/backend/internal/errs"
)

// Table is a CSV file held in memory. Every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// ReadTable reads a CSV file with a header row. Short rows are padded and
// long rows rejected. A missing file or a file without data rows is an
// input error.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.New(errs.StageIngestion, errs.KindInput, "failed to open source "+path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errs.New(errs.StageIngestion, errs.KindInput, "source "+path+" is empty", nil)
	}
	if err != nil {
		return nil, errs.New(errs.StageIngestion, errs.KindInput, "failed to read header of "+path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	t := &Table{Header: header}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errs.New(errs.StageIngestion, errs.KindInput, "malformed row in "+path, err)
		}
		if len(rec) > len(header) {
			line, _ := r.FieldPos(0)
			return nil, errs.New(errs.StageIngestion, errs.KindInput,
				fmt.Sprintf("%s:%d: %d fields, header has %d", path, line, len(rec), len(header)), nil)
		}
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		t.Rows = append(t.Rows, rec)
	}

	if len(t.Rows) == 0 {
		return nil, errs.New(errs.StageIngestion, errs.KindInput, "source "+path+" has no records", nil)
	}
	return t, nil
}

// WriteTable writes t to path, creating parent directories.
func WriteTable(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.New(errs.StageIngestion, errs.KindPersistence, "failed to create directory for "+path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errs.New(errs.StageIngestion, errs.KindPersistence, "failed to create "+path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		f.Close()
		return errs.New(errs.StageIngestion, errs.KindPersistence, "failed to write "+path, err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		f.Close()
		return errs.New(errs.StageIngestion, errs.KindPersistence, "failed to write "+path, err)
	}
	if err := f.Close(); err != nil {
		return errs.New(errs.StageIngestion, errs.KindPersistence, "failed to close "+path, err)
	}
	return nil
}

// ReadLabeled reads a persisted split back as text and label pairs.
func ReadLabeled(path, textField string) (Dataset, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	textCol, labelCol := t.Column(textField), t.Column(LabelColumn)
	if textCol < 0 {
		return nil, errs.New(errs.StageIngestion, errs.KindInput,
			fmt.Sprintf("%s has no %q column", path, textField), nil)
	}
	if labelCol < 0 {
		return nil, errs.New(errs.StageIngestion, errs.KindInput,
			fmt.Sprintf("%s has no %q column", path, LabelColumn), nil)
	}

	ds := make(Dataset, 0, len(t.Rows))
	for i, row := range t.Rows {
		label, err := strconv.Atoi(strings.TrimSpace(row[labelCol]))
		if err != nil || (label != LabelGenuine && label != LabelFabricated) {
			return nil, errs.New(errs.StageIngestion, errs.KindInput,
				fmt.Sprintf("%s: row %d has invalid label %q", path, i+1, row[labelCol]), err)
		}
		ds = append(ds, LabeledRecord{Text: row[textCol], Label: label})
	}
	return ds, nil
}

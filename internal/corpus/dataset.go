// Package corpus loads the labeled news sources, merges them and produces
// the persisted stratified train/test split the pipeline trains on.
package corpus

import (
	"fmt"

	"github.com/fakenews-detector/backend/internal/errs"
)

// Labels assigned per source.
const (
	LabelFabricated = 0
	LabelGenuine    = 1
)

// LabelColumn is the column added to every persisted table.
const LabelColumn = "label"

type LabeledRecord struct {
	Text  string
	Label int
}

type Dataset []LabeledRecord

// Counts returns the number of records per label.
func (d Dataset) Counts() map[int]int {
	out := make(map[int]int, 2)
	for _, r := range d {
		out[r.Label]++
	}
	return out
}

func (d Dataset) Texts() []string {
	out := make([]string, len(d))
	for i, r := range d {
		out[i] = r.Text
	}
	return out
}

func (d Dataset) Labels() []int {
	out := make([]int, len(d))
	for i, r := range d {
		out[i] = r.Label
	}
	return out
}

// Validate requires a non-empty binary dataset with both labels present.
func (d Dataset) Validate() error {
	if len(d) == 0 {
		return errs.New(errs.StageIngestion, errs.KindInput, "dataset is empty", nil)
	}
	for i, r := range d {
		if r.Label != LabelFabricated && r.Label != LabelGenuine {
			return errs.New(errs.StageIngestion, errs.KindInput,
				fmt.Sprintf("record %d has non-binary label %d", i, r.Label), nil)
		}
	}
	counts := d.Counts()
	if counts[LabelGenuine] == 0 || counts[LabelFabricated] == 0 {
		return errs.New(errs.StageIngestion, errs.KindInput,
			fmt.Sprintf("dataset must contain both labels, got %d genuine and %d fabricated",
				counts[LabelGenuine], counts[LabelFabricated]), nil)
	}
	return nil
}

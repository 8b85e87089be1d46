// Package evaluation scores a selected classifier on held-out rows beyond
// plain accuracy.
package evaluation

import (
	"fmt"
	"strings"

	"github.com/fakenews-detector/backend/internal/errs"
)

// ClassReport holds the one-vs-rest scores of a single label.
type ClassReport struct {
	Label     int
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report summarizes binary predictions. Confusion is indexed
// [actual][predicted].
type Report struct {
	Total     int
	Correct   int
	Accuracy  float64
	Confusion [2][2]int
	Classes   [2]ClassReport
	MacroF1   float64
}

// Evaluate compares predicted labels against actual ones. Both must be the
// same non-zero length and hold only 0 and 1.
func Evaluate(actual, predicted []int) (*Report, error) {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return nil, errs.New(errs.StageSearch, errs.KindInput,
			fmt.Sprintf("cannot evaluate %d predictions against %d labels", len(predicted), len(actual)), nil)
	}

	r := &Report{Total: len(actual)}
	for i, a := range actual {
		p := predicted[i]
		if !binary(a) || !binary(p) {
			return nil, errs.New(errs.StageSearch, errs.KindInput,
				fmt.Sprintf("row %d: labels must be 0 or 1, got actual=%d predicted=%d", i, a, p), nil)
		}
		r.Confusion[a][p]++
		if a == p {
			r.Correct++
		}
	}
	r.Accuracy = float64(r.Correct) / float64(r.Total)

	for label := 0; label < 2; label++ {
		tp := r.Confusion[label][label]
		fp := r.Confusion[1-label][label]
		fn := r.Confusion[label][1-label]

		c := ClassReport{Label: label, Support: tp + fn}
		c.Precision = ratio(tp, tp+fp)
		c.Recall = ratio(tp, tp+fn)
		if c.Precision+c.Recall > 0 {
			c.F1 = 2 * c.Precision * c.Recall / (c.Precision + c.Recall)
		}
		r.Classes[label] = c
		r.MacroF1 += c.F1 / 2
	}

	return r, nil
}

// Matrix returns Confusion as nested slices for serialization.
func (r *Report) Matrix() [][]int {
	return [][]int{
		{r.Confusion[0][0], r.Confusion[0][1]},
		{r.Confusion[1][0], r.Confusion[1][1]},
	}
}

// String renders the report as a small table, one row per label.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-7s %9s %9s %9s %9s\n", "label", "precision", "recall", "f1", "support")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%-7d %9.4f %9.4f %9.4f %9d\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Fprintf(&b, "accuracy %.4f (%d/%d) macro-f1 %.4f", r.Accuracy, r.Correct, r.Total, r.MacroF1)
	return b.String()
}

func binary(label int) bool {
	return label == 0 || label == 1
}

// ratio is num/den, or 0 when den is 0.
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

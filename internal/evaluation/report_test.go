package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakenews-detector/backend/internal/errs"
)

func TestEvaluate(t *testing.T) {
	actual := []int{1, 1, 1, 1, 0, 0, 0, 0, 0, 0}
	predicted := []int{1, 1, 1, 0, 0, 0, 0, 0, 1, 1}

	r, err := Evaluate(actual, predicted)
	require.NoError(t, err)

	assert.Equal(t, 10, r.Total)
	assert.Equal(t, 7, r.Correct)
	assert.InDelta(t, 0.7, r.Accuracy, 1e-12)
	assert.Equal(t, [][]int{{4, 2}, {1, 3}}, r.Matrix())

	genuine := r.Classes[1]
	assert.Equal(t, 4, genuine.Support)
	assert.InDelta(t, 0.6, genuine.Precision, 1e-12)
	assert.InDelta(t, 0.75, genuine.Recall, 1e-12)
	assert.InDelta(t, 2*0.6*0.75/1.35, genuine.F1, 1e-12)

	fabricated := r.Classes[0]
	assert.Equal(t, 6, fabricated.Support)
	assert.InDelta(t, 0.8, fabricated.Precision, 1e-12)
	assert.InDelta(t, 4.0/6.0, fabricated.Recall, 1e-12)

	assert.InDelta(t, (genuine.F1+fabricated.F1)/2, r.MacroF1, 1e-12)
	assert.Contains(t, r.String(), "accuracy 0.7000 (7/10)")
}

func TestEvaluateNeverPredictedClass(t *testing.T) {
	r, err := Evaluate([]int{0, 1, 1}, []int{1, 1, 1})
	require.NoError(t, err)

	assert.Zero(t, r.Classes[0].Precision)
	assert.Zero(t, r.Classes[0].Recall)
	assert.Zero(t, r.Classes[0].F1)
}

func TestEvaluateRejectsBadInput(t *testing.T) {
	tests := []struct {
		name      string
		actual    []int
		predicted []int
	}{
		{"empty", nil, nil},
		{"length mismatch", []int{0, 1}, []int{0}},
		{"non-binary", []int{0, 2}, []int{0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.actual, tt.predicted)
			assert.ErrorIs(t, err, errs.ErrInput)
		})
	}
}

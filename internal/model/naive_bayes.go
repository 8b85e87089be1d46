package model

import (
	"fmt"
	"math"

	"github.com/fakenews-detector/backend/internal/sparse"
)

// Smallest smoothing applied when Alpha is zero, so log probabilities stay finite.
const minAlpha = 1e-10

// MultinomialNB is a multinomial naive Bayes classifier with additive
// (Lidstone) smoothing.
type MultinomialNB struct {
	Alpha          float64
	ClassLogPrior  []float64
	FeatureLogProb [][]float64
}

func NewMultinomialNB(p Params) (*MultinomialNB, error) {
	alpha, err := p.Float("alpha", 1.0)
	if err != nil {
		return nil, err
	}
	return &MultinomialNB{Alpha: alpha}, nil
}

func (m *MultinomialNB) Fit(X *sparse.Matrix, y []int) error {
	if m.Alpha < 0 {
		return fmt.Errorf("naive bayes: alpha must be non-negative, got %v", m.Alpha)
	}
	if err := checkTrainingData(X, y); err != nil {
		return fmt.Errorf("naive bayes: %w", err)
	}
	alpha := math.Max(m.Alpha, minAlpha)

	classCount := make([]float64, 2)
	featureCount := [][]float64{make([]float64, X.Cols), make([]float64, X.Cols)}
	for i := 0; i < X.Rows; i++ {
		c := y[i]
		classCount[c]++
		idx, vals := X.Row(i)
		for k, j := range idx {
			if vals[k] < 0 {
				return fmt.Errorf("naive bayes: negative feature value at row %d", i)
			}
			featureCount[c][j] += vals[k]
		}
	}

	prior := make([]float64, 2)
	logProb := make([][]float64, 2)
	for c := 0; c < 2; c++ {
		prior[c] = math.Log(classCount[c] / float64(X.Rows))

		var total float64
		for _, v := range featureCount[c] {
			total += v
		}
		denom := math.Log(total + alpha*float64(X.Cols))
		logProb[c] = make([]float64, X.Cols)
		for j, v := range featureCount[c] {
			logProb[c][j] = math.Log(v+alpha) - denom
		}
	}

	m.ClassLogPrior = prior
	m.FeatureLogProb = logProb
	return nil
}

func (m *MultinomialNB) Predict(X *sparse.Matrix) ([]int, error) {
	if m.FeatureLogProb == nil {
		return nil, notFitted("naive bayes")
	}
	if err := checkDims("naive bayes", X, len(m.FeatureLogProb[0])); err != nil {
		return nil, err
	}

	out := make([]int, X.Rows)
	for i := 0; i < X.Rows; i++ {
		fabricated := m.ClassLogPrior[LabelFabricated] + X.RowDot(i, m.FeatureLogProb[LabelFabricated])
		genuine := m.ClassLogPrior[LabelGenuine] + X.RowDot(i, m.FeatureLogProb[LabelGenuine])
		if genuine > fabricated {
			out[i] = LabelGenuine
		} else {
			out[i] = LabelFabricated
		}
	}
	return out, nil
}

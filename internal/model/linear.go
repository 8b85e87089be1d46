package model

import (
	"fmt"
	"math"

	"github.com/fakenews-detector/backend/internal/sparse"
)

const (
	defaultMaxIter = 1000
	defaultTol     = 1e-4
)

// LogisticRegression is an L1 or L2 penalised logistic regression. C is the
// inverse regularisation strength.
type LogisticRegression struct {
	C         float64
	Penalty   string
	MaxIter   int
	Tol       float64
	Weights   []float64
	Intercept float64
	Iter      int
}

func NewLogisticRegression(p Params, maxIter int, tol float64) (*LogisticRegression, error) {
	c, err := p.Float("C", 1.0)
	if err != nil {
		return nil, err
	}
	penalty, err := p.String("penalty", "l2")
	if err != nil {
		return nil, err
	}
	return &LogisticRegression{C: c, Penalty: penalty, MaxIter: maxIter, Tol: tol}, nil
}

func (m *LogisticRegression) Fit(X *sparse.Matrix, y []int) error {
	if m.C <= 0 {
		return fmt.Errorf("logistic regression: C must be positive, got %v", m.C)
	}
	if m.Penalty != "l1" && m.Penalty != "l2" {
		return fmt.Errorf("logistic regression: unsupported penalty %q", m.Penalty)
	}
	if err := checkTrainingData(X, y); err != nil {
		return fmt.Errorf("logistic regression: %w", err)
	}

	s := linearSolver{
		deriv: func(z float64, label int) float64 {
			return sigmoid(z) - float64(label)
		},
		smoothness: 0.25,
		penalty:    m.Penalty,
		lambda:     1 / (m.C * float64(X.Rows)),
		maxIter:    orDefault(m.MaxIter, defaultMaxIter),
		tol:        orDefaultF(m.Tol, defaultTol),
	}
	m.Weights, m.Intercept, m.Iter = s.solve(X, y)
	return nil
}

func (m *LogisticRegression) Predict(X *sparse.Matrix) ([]int, error) {
	if m.Weights == nil {
		return nil, notFitted("logistic regression")
	}
	if err := checkDims("logistic regression", X, len(m.Weights)); err != nil {
		return nil, err
	}
	return linearPredict(X, m.Weights, m.Intercept), nil
}

// LinearSVC is a linear support vector classifier with the squared hinge
// loss and an L2 penalty.
type LinearSVC struct {
	C         float64
	MaxIter   int
	Tol       float64
	Weights   []float64
	Intercept float64
	Iter      int
}

func NewLinearSVC(p Params, maxIter int, tol float64) (*LinearSVC, error) {
	c, err := p.Float("C", 1.0)
	if err != nil {
		return nil, err
	}
	return &LinearSVC{C: c, MaxIter: maxIter, Tol: tol}, nil
}

func (m *LinearSVC) Fit(X *sparse.Matrix, y []int) error {
	if m.C <= 0 {
		return fmt.Errorf("linear svm: C must be positive, got %v", m.C)
	}
	if err := checkTrainingData(X, y); err != nil {
		return fmt.Errorf("linear svm: %w", err)
	}

	s := linearSolver{
		deriv: func(z float64, label int) float64 {
			sg := sign(label)
			slack := 1 - sg*z
			if slack <= 0 {
				return 0
			}
			return -2 * sg * slack
		},
		smoothness: 2,
		penalty:    "l2",
		lambda:     1 / (m.C * float64(X.Rows)),
		maxIter:    orDefault(m.MaxIter, defaultMaxIter),
		tol:        orDefaultF(m.Tol, defaultTol),
	}
	m.Weights, m.Intercept, m.Iter = s.solve(X, y)
	return nil
}

func (m *LinearSVC) Predict(X *sparse.Matrix) ([]int, error) {
	if m.Weights == nil {
		return nil, notFitted("linear svm")
	}
	if err := checkDims("linear svm", X, len(m.Weights)); err != nil {
		return nil, err
	}
	return linearPredict(X, m.Weights, m.Intercept), nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultF(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

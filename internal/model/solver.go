package model

import (
	"math"

	"github.com/fakenews-detector/backend/internal/sparse"
)

// loss returns dℓ/dz for margin z and a 0/1 label.
type lossDeriv func(z float64, label int) float64

// linearSolver minimises (1/n)·Σ ℓ(w·x_i + b, y_i) + λ·R(w) with FISTA.
// R is ½‖w‖² for "l2" and ‖w‖₁ for "l1"; the intercept is not penalised.
// smoothness is the Lipschitz constant of ℓ' in z.
type linearSolver struct {
	deriv      lossDeriv
	smoothness float64
	penalty    string
	lambda     float64
	maxIter    int
	tol        float64
}

func (s linearSolver) solve(X *sparse.Matrix, y []int) ([]float64, float64, int) {
	n, d := X.Rows, X.Cols

	maxNorm := 0.0
	for i := 0; i < n; i++ {
		_, vals := X.Row(i)
		var sq float64
		for _, v := range vals {
			sq += v * v
		}
		maxNorm = math.Max(maxNorm, sq)
	}
	lipschitz := s.smoothness * (maxNorm + 1)
	if s.penalty == "l2" {
		lipschitz += s.lambda
	}
	step := 1 / lipschitz

	w := make([]float64, d)
	var b float64
	zw := make([]float64, d)
	var zb float64
	grad := make([]float64, d)
	next := make([]float64, d)
	t := 1.0

	iter := 0
	for iter = 1; iter <= s.maxIter; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		var gb float64
		for i := 0; i < n; i++ {
			g := s.deriv(X.RowDot(i, zw)+zb, y[i]) / float64(n)
			idx, vals := X.Row(i)
			for k, j := range idx {
				grad[j] += g * vals[k]
			}
			gb += g
		}

		delta := 0.0
		for j := range next {
			v := zw[j] - step*grad[j]
			switch s.penalty {
			case "l1":
				v = softThreshold(v, step*s.lambda)
			case "l2":
				v -= step * s.lambda * zw[j]
			}
			next[j] = v
			delta = math.Max(delta, math.Abs(v-w[j]))
		}
		nb := zb - step*gb
		delta = math.Max(delta, math.Abs(nb-b))

		tNext := (1 + math.Sqrt(1+4*t*t)) / 2
		momentum := (t - 1) / tNext
		for j := range zw {
			zw[j] = next[j] + momentum*(next[j]-w[j])
			w[j] = next[j]
		}
		zb = nb + momentum*(nb-b)
		b = nb
		t = tNext

		if delta < s.tol {
			break
		}
	}
	if iter > s.maxIter {
		iter = s.maxIter
	}

	return w, b, iter
}

func softThreshold(v, threshold float64) float64 {
	switch {
	case v > threshold:
		return v - threshold
	case v < -threshold:
		return v + threshold
	default:
		return 0
	}
}

func sign(label int) float64 {
	if label == LabelGenuine {
		return 1
	}
	return -1
}

func linearPredict(X *sparse.Matrix, w []float64, b float64) []int {
	out := make([]int, X.Rows)
	for i := 0; i < X.Rows; i++ {
		if X.RowDot(i, w)+b > 0 {
			out[i] = LabelGenuine
		} else {
			out[i] = LabelFabricated
		}
	}
	return out
}

package drift

import (
	"math"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/position"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/tensor"
)

const (
	minRows     = 3
	minVariance = 1e-9
	convergeTol = 1e-10
)

// #region vectors

// StepVector maps a step to its window row, every component scaled to [0, 1].
func StepVector(s state.Step) Vector {
	return Vector{
		float64(s.Tensor.Character) / float64(tensor.Max),
		float64(s.Tensor.Logic) / float64(tensor.Max),
		float64(s.Tensor.Affect) / float64(tensor.Max),
		float64(s.Confidence),
		float64(s.Position) / float64(position.Max),
	}
}

// Window returns the rows of the (at most size) steps preceding idx. The
// evaluated step itself is never part of its own window.
func Window(steps []state.Step, idx, size int) []Vector {
	if idx > len(steps) {
		idx = len(steps)
	}
	start := idx - size
	if start < 0 {
		start = 0
	}
	rows := make([]Vector, 0, idx-start)
	for _, s := range steps[start:idx] {
		rows = append(rows, StepVector(s))
	}
	return rows
}

// #endregion vectors

// #region fit

// Fit mean-centers the rows and extracts the top-k variance directions by power
// iteration with deflation. Fewer than 3 rows or near-zero total variance yields a
// degenerate subspace with CapturedRatio 1.0.
func Fit(rows []Vector, k, iterations int) Subspace {
	sub := Subspace{Rows: len(rows)}
	if len(rows) == 0 {
		sub.Degenerate = true
		sub.CapturedRatio = 1
		return sub
	}
	sub.Mean = mean(rows)
	if len(rows) < minRows {
		sub.Degenerate = true
		sub.CapturedRatio = 1
		return sub
	}

	cov := covariance(rows, sub.Mean)
	var total float64
	for i := 0; i < Dim; i++ {
		total += cov[i][i]
	}
	if total < minVariance {
		sub.Degenerate = true
		sub.CapturedRatio = 1
		return sub
	}

	if k > Dim {
		k = Dim
	}
	if iterations <= 0 {
		iterations = 100
	}

	var captured float64
	for c := 0; c < k; c++ {
		v, lambda, ok := powerIterate(&cov, iterations)
		if !ok || lambda <= 0 {
			break
		}
		sub.Basis = append(sub.Basis, v)
		sub.Eigenvalues = append(sub.Eigenvalues, lambda)
		captured += lambda
		deflate(&cov, v, lambda)
	}

	sub.CapturedRatio = math.Min(1, math.Max(0, captured/total))
	return sub
}

// Project returns the component of x - mean lying in the subspace.
func (s Subspace) Project(x Vector) Vector {
	var d, out Vector
	for i := range d {
		d[i] = x[i] - s.Mean[i]
	}
	for _, b := range s.Basis {
		coef := dot(d, b)
		for i := range out {
			out[i] += coef * b[i]
		}
	}
	return out
}

// #endregion fit

// #region linear-algebra

type matrix [Dim][Dim]float64

func mean(rows []Vector) Vector {
	var m Vector
	for _, r := range rows {
		for i := range m {
			m[i] += r[i]
		}
	}
	n := float64(len(rows))
	for i := range m {
		m[i] /= n
	}
	return m
}

// covariance is the sample covariance (n-1 denominator).
func covariance(rows []Vector, m Vector) matrix {
	var c matrix
	for _, r := range rows {
		var d Vector
		for i := range d {
			d[i] = r[i] - m[i]
		}
		for i := 0; i < Dim; i++ {
			for j := 0; j < Dim; j++ {
				c[i][j] += d[i] * d[j]
			}
		}
	}
	n := float64(len(rows) - 1)
	for i := 0; i < Dim; i++ {
		for j := 0; j < Dim; j++ {
			c[i][j] /= n
		}
	}
	return c
}

// powerIterate finds the dominant eigenpair. It starts from the largest-norm
// column, which lies in the range of the matrix.
func powerIterate(c *matrix, iterations int) (Vector, float64, bool) {
	var v Vector
	best := 0.0
	for j := 0; j < Dim; j++ {
		var col Vector
		for i := 0; i < Dim; i++ {
			col[i] = c[i][j]
		}
		if n := norm(col); n > best {
			best = n
			v = col
		}
	}
	if best < minVariance {
		return v, 0, false
	}
	v = scale(v, 1/best)

	for it := 0; it < iterations; it++ {
		next := mulVec(c, v)
		n := norm(next)
		if n < minVariance {
			return v, 0, false
		}
		next = scale(next, 1/n)
		diff := 0.0
		for i := range next {
			diff += math.Abs(next[i] - v[i])
		}
		v = next
		if diff < convergeTol {
			break
		}
	}
	return v, dot(v, mulVec(c, v)), true
}

func deflate(c *matrix, v Vector, lambda float64) {
	for i := 0; i < Dim; i++ {
		for j := 0; j < Dim; j++ {
			c[i][j] -= lambda * v[i] * v[j]
		}
	}
}

func mulVec(c *matrix, v Vector) Vector {
	var out Vector
	for i := 0; i < Dim; i++ {
		for j := 0; j < Dim; j++ {
			out[i] += c[i][j] * v[j]
		}
	}
	return out
}

func dot(a, b Vector) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func norm(v Vector) float64 {
	return math.Sqrt(dot(v, v))
}

func scale(v Vector, f float64) Vector {
	for i := range v {
		v[i] *= f
	}
	return v
}

// #endregion linear-algebra

// Package sparse wraps the compressed sparse row matrix shared by the
// feature extractor and the estimators.
package sparse

import (
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"
	"github.com/james-bowman/sparse/blas"
)

// Matrix is an immutable CSR matrix. Row i occupies
// Ind[Indptr[i]:Indptr[i+1]] of the backing storage with strictly
// increasing column indices.
type Matrix struct {
	Rows int
	Cols int
	csr  *sparse.CSR
}

func newMatrix(rows, cols int, indptr, indices []int, data []float64) *Matrix {
	return &Matrix{
		Rows: rows,
		Cols: cols,
		csr:  sparse.NewCSR(rows, cols, indptr, indices, data),
	}
}

// CSR exposes the backing matrix, which implements gonum's mat.Matrix.
func (m *Matrix) CSR() *sparse.CSR {
	return m.csr
}

// Row returns the column indices and values of row i. The slices alias the
// matrix storage and must not be modified.
func (m *Matrix) Row(i int) ([]int, []float64) {
	raw := m.csr.RawMatrix()
	start, end := raw.Indptr[i], raw.Indptr[i+1]
	return raw.Ind[start:end], raw.Data[start:end]
}

func (m *Matrix) NNZ() int {
	return m.csr.NNZ()
}

// RowDot returns the dot product of row i with the dense vector w.
func (m *Matrix) RowDot(i int, w []float64) float64 {
	idx, val := m.Row(i)
	return blas.Dusdot(val, idx, w, 1)
}

// At returns the element at (i, j).
func (m *Matrix) At(i, j int) float64 {
	idx, val := m.Row(i)
	k := sort.SearchInts(idx, j)
	if k < len(idx) && idx[k] == j {
		return val[k]
	}
	return 0
}

// SelectRows returns a new matrix made of the given rows in the given order.
func (m *Matrix) SelectRows(rows []int) *Matrix {
	b := NewBuilder(m.Cols)
	for _, r := range rows {
		idx, val := m.Row(r)
		b.AppendRow(idx, val)
	}
	return b.Build()
}

// Dense expands the matrix; intended for tests and small inputs.
func (m *Matrix) Dense() [][]float64 {
	out := make([][]float64, m.Rows)
	for i := range out {
		out[i] = make([]float64, m.Cols)
		idx, val := m.Row(i)
		for k, j := range idx {
			out[i][j] = val[k]
		}
	}
	return out
}

func (m *Matrix) Validate() error {
	raw := m.csr.RawMatrix()
	if len(raw.Indptr) != m.Rows+1 {
		return fmt.Errorf("indptr length %d, expected %d", len(raw.Indptr), m.Rows+1)
	}
	if len(raw.Ind) != len(raw.Data) {
		return fmt.Errorf("indices/data length mismatch: %d vs %d", len(raw.Ind), len(raw.Data))
	}
	for i := 0; i < m.Rows; i++ {
		idx, _ := m.Row(i)
		for k, j := range idx {
			if j < 0 || j >= m.Cols {
				return fmt.Errorf("row %d: column %d out of range", i, j)
			}
			if k > 0 && idx[k-1] >= j {
				return fmt.Errorf("row %d: columns not strictly increasing", i)
			}
		}
	}
	return nil
}

// Builder assembles a Matrix row by row.
type Builder struct {
	cols    int
	indptr  []int
	indices []int
	data    []float64
}

func NewBuilder(cols int) *Builder {
	return &Builder{cols: cols, indptr: []int{0}}
}

// AddRow appends a row given as a column→value map. Zero values are dropped
// and columns are stored in increasing order.
func (b *Builder) AddRow(values map[int]float64) {
	cols := make([]int, 0, len(values))
	for j, v := range values {
		if v != 0 {
			cols = append(cols, j)
		}
	}
	sort.Ints(cols)
	for _, j := range cols {
		b.indices = append(b.indices, j)
		b.data = append(b.data, values[j])
	}
	b.indptr = append(b.indptr, len(b.indices))
}

// AppendRow appends a row whose column indices are already strictly
// increasing. The slices are copied.
func (b *Builder) AppendRow(idx []int, val []float64) {
	b.indices = append(b.indices, idx...)
	b.data = append(b.data, val...)
	b.indptr = append(b.indptr, len(b.indices))
}

func (b *Builder) Build() *Matrix {
	return newMatrix(len(b.indptr)-1, b.cols, b.indptr, b.indices, b.data)
}

// FromDense builds a matrix from a dense row-major slice.
func FromDense(rows [][]float64) *Matrix {
	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	b := NewBuilder(cols)
	for _, r := range rows {
		values := make(map[int]float64, len(r))
		for j, v := range r {
			values[j] = v
		}
		b.AddRow(values)
	}
	return b.Build()
}

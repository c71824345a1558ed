// Package similarity computes pairwise cosine similarity between the rows of two matrices,
// batching the first matrix so the working block stays bounded.
package similarity

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a row-major feature matrix. Rows are feature vectors sharing one dimensionality.
// Slice returns the contiguous row range [start, end) as a view over the same storage.
type Matrix interface {
	mat.Matrix
	Slice(start, end int) Matrix
}

// Dense is a dense Matrix backed by a gonum mat.Dense.
type Dense struct {
	*mat.Dense
}

// NewDense wraps data (row-major, rows*cols long) as a Dense matrix.
func NewDense(rows, cols int, data []float64) (*Dense, error) {
	if rows <= 0 || cols <= 0 {
		return nil, ErrEmptyMatrix
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: data length %d does not match %dx%d", ErrInvalidArgument, len(data), rows, cols)
	}
	return &Dense{Dense: mat.NewDense(rows, cols, data)}, nil
}

// DenseFromRows copies rows into a new Dense matrix. All rows must have the same length.
func DenseFromRows(rows [][]float64) (*Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptyMatrix
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, &DimensionError{What: fmt.Sprintf("row %d", i), Want: cols, Got: len(row)}
		}
		data = append(data, row...)
	}
	return &Dense{Dense: mat.NewDense(len(rows), cols, data)}, nil
}

// Slice returns rows [start, end) sharing the backing array.
func (d *Dense) Slice(start, end int) Matrix {
	_, c := d.Dims()
	return &Dense{Dense: d.Dense.Slice(start, end, 0, c).(*mat.Dense)}
}

// CSR is a compressed sparse row matrix. Column indices within a row are strictly increasing.
// indptr holds absolute offsets into indices/data so row slices share storage without copying.
type CSR struct {
	rows, cols int
	indptr     []int
	indices    []int
	data       []float64
}

// NewCSR builds a CSR matrix from its raw arrays. indptr must have rows+1 entries.
func NewCSR(rows, cols int, indptr, indices []int, data []float64) (*CSR, error) {
	if rows <= 0 || cols <= 0 {
		return nil, ErrEmptyMatrix
	}
	if len(indptr) != rows+1 {
		return nil, fmt.Errorf("%w: indptr has %d entries, want %d", ErrInvalidArgument, len(indptr), rows+1)
	}
	if len(indices) != len(data) {
		return nil, fmt.Errorf("%w: %d indices for %d values", ErrInvalidArgument, len(indices), len(data))
	}
	if indptr[0] != 0 || indptr[rows] != len(data) {
		return nil, fmt.Errorf("%w: indptr must span [0, %d]", ErrInvalidArgument, len(data))
	}
	for i := 0; i < rows; i++ {
		lo, hi := indptr[i], indptr[i+1]
		if lo > hi {
			return nil, fmt.Errorf("%w: indptr decreases at row %d", ErrInvalidArgument, i)
		}
		for k := lo; k < hi; k++ {
			if indices[k] < 0 || indices[k] >= cols {
				return nil, fmt.Errorf("%w: column %d out of range in row %d", ErrInvalidArgument, indices[k], i)
			}
			if k > lo && indices[k] <= indices[k-1] {
				return nil, fmt.Errorf("%w: columns not strictly increasing in row %d", ErrInvalidArgument, i)
			}
		}
	}
	return &CSR{rows: rows, cols: cols, indptr: indptr, indices: indices, data: data}, nil
}

// CSRFromRows compresses dense rows, dropping exact zeros.
func CSRFromRows(rows [][]float64) (*CSR, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptyMatrix
	}
	cols := len(rows[0])
	indptr := make([]int, 1, len(rows)+1)
	var indices []int
	var data []float64
	for i, row := range rows {
		if len(row) != cols {
			return nil, &DimensionError{What: fmt.Sprintf("row %d", i), Want: cols, Got: len(row)}
		}
		for j, v := range row {
			if v != 0 {
				indices = append(indices, j)
				data = append(data, v)
			}
		}
		indptr = append(indptr, len(data))
	}
	return &CSR{rows: len(rows), cols: cols, indptr: indptr, indices: indices, data: data}, nil
}

// Dims returns the number of rows and columns.
func (m *CSR) Dims() (r, c int) {
	return m.rows, m.cols
}

// At returns the element at row i, column j.
func (m *CSR) At(i, j int) float64 {
	if i < 0 || i >= m.rows {
		panic(mat.ErrRowAccess)
	}
	if j < 0 || j >= m.cols {
		panic(mat.ErrColAccess)
	}
	cols, vals := m.RowNonZeros(i)
	k := sort.SearchInts(cols, j)
	if k < len(cols) && cols[k] == j {
		return vals[k]
	}
	return 0
}

// T returns the implicit transpose.
func (m *CSR) T() mat.Matrix {
	return mat.Transpose{Matrix: m}
}

// NNZ returns the number of stored values.
func (m *CSR) NNZ() int {
	return m.indptr[m.rows] - m.indptr[0]
}

// RowNonZeros returns the column indices and values stored for row i.
// The returned slices alias the matrix storage and must not be modified.
func (m *CSR) RowNonZeros(i int) (cols []int, vals []float64) {
	lo, hi := m.indptr[i], m.indptr[i+1]
	return m.indices[lo:hi], m.data[lo:hi]
}

// Slice returns rows [start, end) sharing storage with m.
func (m *CSR) Slice(start, end int) Matrix {
	if start < 0 || end > m.rows || start > end {
		panic(mat.ErrIndexOutOfRange)
	}
	return &CSR{
		rows:    end - start,
		cols:    m.cols,
		indptr:  m.indptr[start : end+1],
		indices: m.indices,
		data:    m.data,
	}
}

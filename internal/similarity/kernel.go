package similarity

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

// Kernel computes the exact dense cosine-similarity block between every row of a and
// every row of b. It has no notion of batching.
type Kernel interface {
	Similarity(a, b Matrix) (*mat.Dense, error)
}

// CosineKernel is the default Kernel. Rows are scaled to unit length first, then dense
// pairs go through BLAS Gemm and sparse rows are dotted over their stored entries only.
//
// A pair where either row has zero L2 norm has similarity 0.
type CosineKernel struct{}

// Similarity returns the len(a) x len(b) cosine similarity block.
func (CosineKernel) Similarity(a, b Matrix) (*mat.Dense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != bc {
		return nil, &DimensionError{What: "second matrix", Want: ac, Got: bc}
	}
	if ar == 0 || br == 0 || ac == 0 {
		return nil, ErrEmptyMatrix
	}
	a, b = unitRows(a), unitRows(b)
	dots := mat.NewDense(ar, br, nil)
	switch {
	case isDense(a) && isDense(b):
		blas64.Gemm(blas.NoTrans, blas.Trans, 1, a.(*Dense).RawMatrix(), b.(*Dense).RawMatrix(), 0, dots.RawMatrix())
	case isCSR(a):
		sparseDots(a.(*CSR), b, dots, false)
	case isCSR(b):
		sparseDots(b.(*CSR), a, dots, true)
	default:
		dots.Mul(a, b.T())
	}
	clampCosine(dots)
	return dots, nil
}

func isDense(m Matrix) bool {
	_, ok := m.(*Dense)
	return ok
}

func isCSR(m Matrix) bool {
	_, ok := m.(*CSR)
	return ok
}

// sparseDots fills dots with s·otherᵀ, or other·sᵀ when transposed is set.
func sparseDots(s *CSR, other Matrix, dots *mat.Dense, transposed bool) {
	sr, _ := s.Dims()
	or, _ := other.Dims()
	set := func(i, j int, v float64) {
		if transposed {
			dots.Set(j, i, v)
			return
		}
		dots.Set(i, j, v)
	}
	switch o := other.(type) {
	case *CSR:
		for i := 0; i < sr; i++ {
			ci, vi := s.RowNonZeros(i)
			for j := 0; j < or; j++ {
				cj, vj := o.RowNonZeros(j)
				set(i, j, mergeDot(ci, vi, cj, vj))
			}
		}
	case *Dense:
		for i := 0; i < sr; i++ {
			ci, vi := s.RowNonZeros(i)
			for j := 0; j < or; j++ {
				set(i, j, gatherDot(ci, vi, o.RawRowView(j)))
			}
		}
	default:
		_, c := other.Dims()
		row := make([]float64, c)
		for j := 0; j < or; j++ {
			mat.Row(row, j, other)
			for i := 0; i < sr; i++ {
				ci, vi := s.RowNonZeros(i)
				set(i, j, gatherDot(ci, vi, row))
			}
		}
	}
}

func gatherDot(cols []int, vals []float64, dense []float64) float64 {
	var dot float64
	for k, c := range cols {
		dot += vals[k] * dense[c]
	}
	return dot
}

func mergeDot(ca []int, va []float64, cb []int, vb []float64) float64 {
	var dot float64
	i, j := 0, 0
	for i < len(ca) && j < len(cb) {
		switch {
		case ca[i] == cb[j]:
			dot += va[i] * vb[j]
			i++
			j++
		case ca[i] < cb[j]:
			i++
		default:
			j++
		}
	}
	return dot
}

// rowNorms returns the L2 norm of every row of m. Nrm2 scales internally, so finite rows
// never overflow or underflow to a wrong norm.
func rowNorms(m Matrix) []float64 {
	r, c := m.Dims()
	norms := make([]float64, r)
	switch t := m.(type) {
	case *Dense:
		for i := 0; i < r; i++ {
			norms[i] = nrm2(t.RawRowView(i))
		}
	case *CSR:
		for i := 0; i < r; i++ {
			_, vals := t.RowNonZeros(i)
			norms[i] = nrm2(vals)
		}
	default:
		row := make([]float64, c)
		for i := 0; i < r; i++ {
			mat.Row(row, i, m)
			norms[i] = nrm2(row)
		}
	}
	return norms
}

func nrm2(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return blas64.Nrm2(blas64.Vector{N: len(v), Inc: 1, Data: v})
}

// unitRows returns a copy of m with every nonzero row scaled to unit L2 norm. Zero rows
// stay zero, which makes every similarity involving them 0. Values are divided by the
// norm rather than multiplied by its reciprocal, which overflows for subnormal norms.
func unitRows(m Matrix) Matrix {
	r, c := m.Dims()
	norms := rowNorms(m)
	switch t := m.(type) {
	case *CSR:
		indptr := make([]int, 1, r+1)
		indices := make([]int, 0, t.NNZ())
		data := make([]float64, 0, t.NNZ())
		for i := 0; i < r; i++ {
			cols, vals := t.RowNonZeros(i)
			if n := norms[i]; n != 0 {
				indices = append(indices, cols...)
				for _, v := range vals {
					data = append(data, v/n)
				}
			}
			indptr = append(indptr, len(data))
		}
		return &CSR{rows: r, cols: c, indptr: indptr, indices: indices, data: data}
	default:
		out := mat.NewDense(r, c, nil)
		src := make([]float64, c)
		for i := 0; i < r; i++ {
			n := norms[i]
			if n == 0 {
				continue
			}
			mat.Row(src, i, m)
			dst := out.RawRowView(i)
			for k, v := range src {
				dst[k] = v / n
			}
		}
		return &Dense{Dense: out}
	}
}

// clampCosine pins every entry to [-1, 1] to absorb rounding in the unit-row products.
func clampCosine(dots *mat.Dense) {
	r, _ := dots.Dims()
	for i := 0; i < r; i++ {
		row := dots.RawRowView(i)
		for j, v := range row {
			row[j] = math.Max(-1, math.Min(1, v))
		}
	}
}

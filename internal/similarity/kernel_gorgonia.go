//go:build gorgonia
// +build gorgonia

package similarity

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// GorgoniaKernel computes the dot-product block with a gorgonia graph. Row scaling and the
// zero-norm convention are shared with CosineKernel so both kernels agree exactly on edge cases.
type GorgoniaKernel struct{}

// Similarity returns the len(a) x len(b) cosine similarity block.
func (GorgoniaKernel) Similarity(a, b Matrix) (*mat.Dense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != bc {
		return nil, &DimensionError{What: "second matrix", Want: ac, Got: bc}
	}
	if ar == 0 || br == 0 || ac == 0 {
		return nil, ErrEmptyMatrix
	}
	a, b = unitRows(a), unitRows(b)
	g := gorgonia.NewGraph()

	aNode := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(ar, ac),
		gorgonia.WithValue(tensor.New(tensor.WithShape(ar, ac), tensor.WithBacking(flatten(a)))),
		gorgonia.WithName("a"))
	bNode := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(br, bc),
		gorgonia.WithValue(tensor.New(tensor.WithShape(br, bc), tensor.WithBacking(flatten(b)))),
		gorgonia.WithName("b"))

	// dot: [ar, br]
	bT, err := gorgonia.Transpose(bNode, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("transpose: %w", err)
	}
	dot, err := gorgonia.Mul(aNode, bT)
	if err != nil {
		return nil, fmt.Errorf("matmul: %w", err)
	}

	machine := gorgonia.NewTapeMachine(g)
	defer machine.Close()
	if err := machine.RunAll(); err != nil {
		return nil, fmt.Errorf("run graph: %w", err)
	}

	raw := dot.Value().Data().([]float64)
	data := make([]float64, len(raw))
	copy(data, raw)
	dots := mat.NewDense(ar, br, data)
	clampCosine(dots)
	return dots, nil
}

// flatten copies m into a fresh row-major slice.
func flatten(m Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, r*c)
	for i := 0; i < r; i++ {
		mat.Row(out[i*c:(i+1)*c], i, m)
	}
	return out
}

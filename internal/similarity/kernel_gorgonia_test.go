//go:build gorgonia
// +build gorgonia

package similarity

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGorgoniaKernel_matchesCosineKernel(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	rows1 := randomRows(rng, 12, 7, 0.7)
	rows1[3] = make([]float64, 7)
	m1 := mustDense(t, rows1)
	m2 := mustDense(t, randomRows(rng, 5, 7, 0.7))

	want, err := Compute(m1, m2, 4)
	require.NoError(t, err)
	got, err := NewComputer(WithKernel(GorgoniaKernel{})).Compute(m1, m2, 4)
	require.NoError(t, err)
	assertMatrixEqual(t, want, got)
}

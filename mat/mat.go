// Package mat holds small helpers for building gonum dense matrices used as design
// matrices and covariance operators.
package mat

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrColMismatch = errors.New("column size mismatch")
	ErrEmpty       = errors.New("matrix has no rows or no columns")
	ErrNonFinite   = errors.New("matrix contains non-finite value")
)

// NewDenseFromArray converts a row major 2D slice into a dense matrix. Every row must
// have the same number of columns.
func NewDenseFromArray(x [][]float64) (*mat.Dense, error) {
	m := len(x)

	n := -1
	for i, row := range x {
		if n >= 0 && len(row) != n {
			return nil, fmt.Errorf("at row %d, %w", i, ErrColMismatch)
		}
		if n < 0 {
			n = len(row)
		}
	}
	if m == 0 || n <= 0 {
		return nil, ErrEmpty
	}

	// flatten to row order
	data := make([]float64, 0, m*n)
	for _, row := range x {
		data = append(data, row...)
	}
	return mat.NewDense(m, n, data), nil
}

// AddConstant returns a copy of x with a column of ones stacked in front of the
// existing columns.
func AddConstant(x mat.Matrix) *mat.Dense {
	m, _ := x.Dims()
	ones := make([]float64, m)
	floats.AddConst(1.0, ones)
	onesMx := mat.NewDense(1, m, ones)

	var xWithOnes mat.Dense
	xWithOnes.Stack(onesMx, x.T())
	return mat.DenseCopyOf(xWithOnes.T())
}

// Toeplitz builds the symmetric n x n matrix with entry (i, j) equal to r[|i-j|].
func Toeplitz(r []float64) *mat.SymDense {
	n := len(r)
	t := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			t.SetSym(i, j, r[j-i])
		}
	}
	return t
}

// CheckFinite returns the first row and column holding a NaN or infinite value.
func CheckFinite(x mat.Matrix) error {
	m, n := x.Dims()
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			v := x.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("at row %d column %d, %w", i, j, ErrNonFinite)
			}
		}
	}
	return nil
}

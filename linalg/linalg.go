// Package linalg adapts gonum matrix decompositions for least squares estimation. Every
// failure of a decomposition is reported as an error instead of a panic or a silent NaN.
package linalg

import (
	"errors"
	"fmt"
	"math"

	"github.com/aouyang1/go-regression/floatsunrolled"
	"gonum.org/v1/gonum/mat"
)

const machineEpsilon = 0x1p-52

var (
	ErrEmpty               = errors.New("matrix has no rows or no columns")
	ErrDimensionMismatch   = errors.New("dimension mismatch")
	ErrNonPositiveDefinite = errors.New("matrix is not positive definite")
	ErrNotSymmetric        = fmt.Errorf("matrix is not symmetric, %w", ErrNonPositiveDefinite)
	ErrFactorization       = errors.New("matrix factorization did not converge")
)

// Solution is the least squares solution of a linear system.
type Solution struct {
	Params []float64

	// NormalizedCov is (X'X)^-1, or the pseudo-inverse of X'X when X is rank deficient.
	NormalizedCov *mat.SymDense

	Rank           int
	SingularValues []float64

	// Pinv is set when the pseudo-inverse was used instead of the QR factorization.
	Pinv bool
}

// DefaultTolerance is the threshold below which a singular value is treated as zero.
func DefaultTolerance(s []float64, m, n int) float64 {
	if len(s) == 0 {
		return 0
	}
	return s[0] * float64(max(m, n)) * machineEpsilon
}

func rankOf(s []float64, tol float64) int {
	var rank int
	for _, v := range s {
		if v > tol {
			rank++
		}
	}
	return rank
}

// Rank returns the numerical rank of x along with its singular values in descending
// order. A non-positive tol selects DefaultTolerance.
func Rank(x mat.Matrix, tol float64) (int, []float64, error) {
	m, n := x.Dims()
	if m == 0 || n == 0 {
		return 0, nil, ErrEmpty
	}

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDNone); !ok {
		return 0, nil, fmt.Errorf("singular value decomposition, %w", ErrFactorization)
	}
	s := svd.Values(nil)
	if tol <= 0 {
		tol = DefaultTolerance(s, m, n)
	}
	return rankOf(s, tol), s, nil
}

// LeastSquares minimizes ||y - x b||. A full column rank x with at least as many rows as
// columns is solved with a QR factorization. Otherwise, or when pinv is requested, the
// minimum norm solution is taken from the singular value decomposition.
func LeastSquares(x mat.Matrix, y []float64, pinv bool, tol float64) (*Solution, error) {
	m, n := x.Dims()
	if m == 0 || n == 0 {
		return nil, ErrEmpty
	}
	if len(y) != m {
		return nil, fmt.Errorf("design has %d rows and target has %d rows, %w", m, len(y), ErrDimensionMismatch)
	}

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, fmt.Errorf("singular value decomposition, %w", ErrFactorization)
	}
	s := svd.Values(nil)
	if tol <= 0 {
		tol = DefaultTolerance(s, m, n)
	}
	rank := rankOf(s, tol)

	if pinv || rank < n || m < n {
		return pinvSolve(&svd, s, rank, y), nil
	}
	return qrSolve(x, y, s, rank)
}

func qrSolve(x mat.Matrix, y []float64, s []float64, rank int) (*Solution, error) {
	m, n := x.Dims()

	qr := new(mat.QR)
	qr.Factorize(x)

	q := new(mat.Dense)
	r := new(mat.Dense)
	qr.QTo(q)
	qr.RTo(r)

	yq := new(mat.Dense)
	yq.Mul(q.T(), mat.NewVecDense(m, y))

	c := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		c[i] = yq.At(i, 0)
		for j := i + 1; j < n; j++ {
			c[i] -= c[j] * r.At(i, j)
		}
		c[i] /= r.At(i, i)
	}

	rt := mat.NewTriDense(n, mat.Upper, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			rt.SetTri(i, j, r.At(i, j))
		}
	}

	// (X'X)^-1 = R^-1 R^-T
	var rinv mat.TriDense
	if err := rinv.InverseTri(rt); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("inverting triangular factor, %w", err)
		}
		// the rank check above already accepted this factor
	}
	var cov mat.SymDense
	cov.SymOuterK(1, &rinv)

	return &Solution{
		Params:         c,
		NormalizedCov:  &cov,
		Rank:           rank,
		SingularValues: s,
	}, nil
}

func pinvSolve(svd *mat.SVD, s []float64, rank int, y []float64) *Solution {
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	n, _ := v.Dims()
	params := make([]float64, n)
	cov := mat.NewSymDense(n, nil)
	vk := make([]float64, n)
	for k := 0; k < rank; k++ {
		uk := mat.Col(nil, k, &u)
		mat.Col(vk, k, &v)

		coef := floatsunrolled.Dot(uk, y) / s[k]
		inv2 := 1.0 / (s[k] * s[k])
		for a := 0; a < n; a++ {
			params[a] += vk[a] * coef
			for b := a; b < n; b++ {
				cov.SetSym(a, b, cov.At(a, b)+vk[a]*vk[b]*inv2)
			}
		}
	}

	return &Solution{
		Params:         params,
		NormalizedCov:  cov,
		Rank:           rank,
		SingularValues: s,
		Pinv:           true,
	}
}

// Cholesky factorizes a symmetric positive definite matrix. A factor that is
// numerically singular is rejected along with a failed factorization.
func Cholesky(a mat.Symmetric) (*mat.Cholesky, error) {
	n := a.SymmetricDim()
	if n == 0 {
		return nil, ErrEmpty
	}

	chol := new(mat.Cholesky)
	if ok := chol.Factorize(a); !ok {
		return nil, ErrNonPositiveDefinite
	}
	cond := chol.Cond()
	if math.IsNaN(cond) || cond > 1/(float64(n)*machineEpsilon) {
		return nil, fmt.Errorf("condition number %g, %w", cond, ErrNonPositiveDefinite)
	}
	return chol, nil
}

// InverseLower returns L^-1 for the lower triangular Cholesky factor L.
func InverseLower(chol *mat.Cholesky) (*mat.TriDense, error) {
	var l mat.TriDense
	chol.LTo(&l)

	linv := new(mat.TriDense)
	if err := linv.InverseTri(&l); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("inverting cholesky factor, %w", err)
		}
	}
	return linv, nil
}

// Symmetric copies a into a symmetric matrix. Entries (i, j) and (j, i) may differ by at
// most tol relative to their magnitude.
func Symmetric(a mat.Matrix, tol float64) (*mat.SymDense, error) {
	if s, ok := a.(mat.Symmetric); ok {
		sym := mat.NewSymDense(s.SymmetricDim(), nil)
		sym.CopySym(s)
		return sym, nil
	}

	r, c := a.Dims()
	if r != c {
		return nil, fmt.Errorf("got %d rows and %d columns, %w", r, c, ErrDimensionMismatch)
	}
	if r == 0 {
		return nil, ErrEmpty
	}

	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			aij, aji := a.At(i, j), a.At(j, i)
			scale := math.Max(1, math.Max(math.Abs(aij), math.Abs(aji)))
			if math.Abs(aij-aji) > tol*scale {
				return nil, fmt.Errorf("entries (%d, %d) and (%d, %d) differ, %w", i, j, j, i, ErrNotSymmetric)
			}
			sym.SetSym(i, j, (aij+aji)/2)
		}
	}
	return sym, nil
}

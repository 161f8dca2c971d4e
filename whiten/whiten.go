// Package whiten implements the covariance transforms that turn a generalized least
// squares problem into an ordinary one. A transform W satisfies W Sigma W^T = I for the
// error covariance Sigma it was built from.
package whiten

import (
	"errors"
	"fmt"
	"math"

	"github.com/aouyang1/go-regression/linalg"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidWeight = errors.New("weights must be strictly positive and finite")
	ErrNonStationary = errors.New("autoregressive coefficients are not stationary")
)

// Kind names the structure of a transform.
type Kind int

const (
	KindIdentity Kind = iota
	KindDiagonal
	KindFull
	KindAR
)

func (k Kind) String() string {
	switch k {
	case KindIdentity:
		return "identity"
	case KindDiagonal:
		return "diagonal"
	case KindFull:
		return "full"
	case KindAR:
		return "ar"
	default:
		return "unknown"
	}
}

// Transform whitens the rows of a matrix. Implementations are immutable once built and
// safe to share between fits.
type Transform interface {
	Kind() Kind

	// Whiten returns W x as a new matrix, leaving x untouched.
	Whiten(x mat.Matrix) (*mat.Dense, error)

	// LogDet returns log|det W| for n observations.
	LogDet(n int) float64
}

// WhitenVec applies t to a single column of observations.
func WhitenVec(t Transform, y []float64) ([]float64, error) {
	wy, err := t.Whiten(mat.NewVecDense(len(y), y))
	if err != nil {
		return nil, err
	}
	return mat.Col(nil, 0, wy), nil
}

func checkRows(want int, x mat.Matrix) error {
	m, _ := x.Dims()
	if m != want {
		return fmt.Errorf("transform has %d rows and data has %d rows, %w", want, m, linalg.ErrDimensionMismatch)
	}
	return nil
}

// Identity leaves the data unchanged. It is the OLS transform.
type Identity struct{}

func (Identity) Kind() Kind { return KindIdentity }

func (Identity) Whiten(x mat.Matrix) (*mat.Dense, error) {
	return mat.DenseCopyOf(x), nil
}

func (Identity) LogDet(int) float64 { return 0 }

// Diagonal scales each row by the square root of its precision weight. It is the WLS
// transform.
type Diagonal struct {
	weights []float64
	sqrtW   []float64
	logDet  float64
}

// NewDiagonal builds a diagonal transform from precision weights, i.e. the inverse of
// each observation's error variance up to a common scale.
func NewDiagonal(weights []float64) (*Diagonal, error) {
	if err := checkWeights(weights); err != nil {
		return nil, err
	}
	d := &Diagonal{
		weights: append([]float64(nil), weights...),
		sqrtW:   make([]float64, len(weights)),
	}
	for i, w := range weights {
		d.sqrtW[i] = math.Sqrt(w)
		d.logDet += 0.5 * math.Log(w)
	}
	return d, nil
}

// NewDiagonalFromVariance builds a diagonal transform from per observation variances.
func NewDiagonalFromVariance(variances []float64) (*Diagonal, error) {
	if err := checkWeights(variances); err != nil {
		return nil, err
	}
	d := &Diagonal{
		weights: make([]float64, len(variances)),
		sqrtW:   make([]float64, len(variances)),
	}
	for i, v := range variances {
		d.weights[i] = 1 / v
		d.sqrtW[i] = 1 / math.Sqrt(v)
		d.logDet -= 0.5 * math.Log(v)
	}
	return d, nil
}

func checkWeights(w []float64) error {
	if len(w) == 0 {
		return fmt.Errorf("no weights, %w", ErrInvalidWeight)
	}
	for i, v := range w {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("got %g at index %d, %w", v, i, ErrInvalidWeight)
		}
	}
	return nil
}

func (d *Diagonal) Kind() Kind { return KindDiagonal }

// Weights returns the precision weights the transform was built from.
func (d *Diagonal) Weights() []float64 {
	return append([]float64(nil), d.weights...)
}

func (d *Diagonal) Whiten(x mat.Matrix) (*mat.Dense, error) {
	if err := checkRows(len(d.sqrtW), x); err != nil {
		return nil, err
	}
	out := mat.DenseCopyOf(x)
	_, n := out.Dims()
	for i, s := range d.sqrtW {
		row := out.RawRowView(i)
		for j := 0; j < n; j++ {
			row[j] *= s
		}
	}
	return out, nil
}

func (d *Diagonal) LogDet(int) float64 { return d.logDet }

// Full whitens with the inverse Cholesky factor of a dense error covariance.
type Full struct {
	linv   *mat.TriDense
	logDet float64
}

// NewFull factorizes sigma = L L^T and keeps L^-1. The matrix must be symmetric positive
// definite.
func NewFull(sigma mat.Matrix) (*Full, error) {
	sym, err := linalg.Symmetric(sigma, 1e-10)
	if err != nil {
		return nil, err
	}
	chol, err := linalg.Cholesky(sym)
	if err != nil {
		return nil, err
	}
	linv, err := linalg.InverseLower(chol)
	if err != nil {
		return nil, err
	}
	return &Full{
		linv:   linv,
		logDet: -0.5 * chol.LogDet(),
	}, nil
}

func (f *Full) Kind() Kind { return KindFull }

func (f *Full) Whiten(x mat.Matrix) (*mat.Dense, error) {
	n, _ := f.linv.Dims()
	if err := checkRows(n, x); err != nil {
		return nil, err
	}
	var out mat.Dense
	out.Mul(f.linv, x)
	return &out, nil
}

func (f *Full) LogDet(int) float64 { return f.logDet }

package whiten

import (
	"fmt"
	"math"

	"github.com/aouyang1/go-regression/floatsunrolled"
	"github.com/aouyang1/go-regression/linalg"
	mat_ "github.com/aouyang1/go-regression/mat"
	"gonum.org/v1/gonum/mat"
)

// AR whitens errors following x_t = rho_1 x_{t-1} + ... + rho_p x_{t-p} + e_t. Rows from
// p onwards are differenced, the first p rows are scaled by the inverse Cholesky factor
// of the stationary covariance of p consecutive observations. For AR(1) the first row
// scale is sqrt(1 - rho^2).
type AR struct {
	rho  []float64
	head *mat.TriDense
}

// NewAR builds the transform for the given coefficients. An empty rho is the identity.
func NewAR(rho []float64) (*AR, error) {
	a := &AR{rho: append([]float64(nil), rho...)}
	p := len(rho)
	if p == 0 {
		return a, nil
	}
	for i, r := range rho {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("coefficient %d is %g, %w", i, r, ErrNonStationary)
		}
	}

	gamma, err := StationaryAutocovariance(rho, p-1)
	if err != nil {
		return nil, err
	}
	chol, err := linalg.Cholesky(mat_.Toeplitz(gamma))
	if err != nil {
		return nil, fmt.Errorf("stationary covariance is singular, %w", ErrNonStationary)
	}
	a.head, err = linalg.InverseLower(chol)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *AR) Kind() Kind { return KindAR }

// Rho returns a copy of the autoregressive coefficients.
func (a *AR) Rho() []float64 {
	return append([]float64(nil), a.rho...)
}

func (a *AR) Whiten(x mat.Matrix) (*mat.Dense, error) {
	xd := mat.DenseCopyOf(x)
	p := len(a.rho)
	if p == 0 {
		return xd, nil
	}

	m, n := xd.Dims()
	out := mat.NewDense(m, n, nil)
	for t := 0; t < min(p, m); t++ {
		row := out.RawRowView(t)
		for j := 0; j <= t; j++ {
			floatsunrolled.AddScaledTo(row, row, a.head.At(t, j), xd.RawRowView(j))
		}
	}
	for t := p; t < m; t++ {
		row := out.RawRowView(t)
		copy(row, xd.RawRowView(t))
		for i, r := range a.rho {
			floatsunrolled.AddScaledTo(row, row, -r, xd.RawRowView(t-i-1))
		}
	}
	return out, nil
}

// LogDet only depends on the leading block since differenced rows have a unit diagonal.
func (a *AR) LogDet(n int) float64 {
	var ld float64
	for t := 0; t < min(len(a.rho), n); t++ {
		ld += math.Log(a.head.At(t, t))
	}
	return ld
}

// StationaryAutocovariance returns gamma_0 through gamma_nlags of the AR process with
// unit innovation variance. It fails with ErrNonStationary when no stationary solution
// exists.
func StationaryAutocovariance(rho []float64, nlags int) ([]float64, error) {
	if nlags < 0 {
		return nil, fmt.Errorf("got %d lags, %w", nlags, linalg.ErrDimensionMismatch)
	}
	if !stationary(rho) {
		return nil, fmt.Errorf("rho %v, %w", rho, ErrNonStationary)
	}

	p := len(rho)
	gamma := make([]float64, max(nlags, p)+1)
	if p == 0 {
		gamma[0] = 1
		return gamma[:nlags+1], nil
	}

	// gamma_k - sum_i rho_i gamma_|k-i| = delta_k0 for k = 0..p
	sys := mat.NewDense(p+1, p+1, nil)
	for k := 0; k <= p; k++ {
		sys.Set(k, k, sys.At(k, k)+1)
		for i := 1; i <= p; i++ {
			lag := k - i
			if lag < 0 {
				lag = -lag
			}
			sys.Set(k, lag, sys.At(k, lag)-rho[i-1])
		}
	}
	rhs := mat.NewVecDense(p+1, nil)
	rhs.SetVec(0, 1)

	var sol mat.VecDense
	if err := sol.SolveVec(sys, rhs); err != nil {
		return nil, fmt.Errorf("solving for stationary autocovariance, %w", ErrNonStationary)
	}
	copy(gamma, sol.RawVector().Data)

	for k := p + 1; k <= nlags; k++ {
		for i := 1; i <= p; i++ {
			gamma[k] += rho[i-1] * gamma[k-i]
		}
	}
	return gamma[:nlags+1], nil
}

// stationary steps the Levinson-Durbin recursion down from order p. The process is
// stationary iff every partial autocorrelation has magnitude below one.
func stationary(rho []float64) bool {
	a := append([]float64(nil), rho...)
	for k := len(a); k > 0; k-- {
		kappa := a[k-1]
		if !(math.Abs(kappa) < 1) {
			return false
		}
		denom := 1 - kappa*kappa
		prev := make([]float64, k-1)
		for j := range prev {
			prev[j] = (a[j] + kappa*a[k-2-j]) / denom
		}
		a = prev
	}
	return true
}

package linearmodel

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/aouyang1/go-regression/floatsunrolled"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultAlpha                = 1.0
	DefaultL1Weight             = 1.0
	DefaultRegularizedMaxIter   = 1000
	DefaultRegularizedTolerance = 1e-8
)

var (
	ErrNegativeAlpha     = errors.New("negative alpha")
	ErrL1WeightRange     = errors.New("l1 weight must be in [0, 1]")
	ErrWarmStartBetaSize = errors.New("warm start beta does not have the same number of coefficients as the design")
)

// RegularizedOptions represents input options to fit an elastic net penalized model
type RegularizedOptions struct {
	// Alpha scales the penalty. 0.0 converges to the unpenalized fit.
	Alpha float64 `json:"alpha"`

	// L1Weight mixes the penalty between lasso (1.0) and ridge (0.0).
	L1Weight float64 `json:"l1_weight"`

	// MaxIterations is the maximum number of sweeps through all coefficients.
	MaxIterations int `json:"max_iterations"`

	// Tolerance is the largest coefficient change in a sweep, relative to the largest
	// coefficient, that stops the descent.
	Tolerance float64 `json:"tolerance"`

	// WarmStartBeta primes the descent, e.g. with the fit of a nearby alpha.
	WarmStartBeta []float64 `json:"warm_start_beta,omitempty"`
}

// NewDefaultRegularizedOptions returns a lasso configuration
func NewDefaultRegularizedOptions() *RegularizedOptions {
	return &RegularizedOptions{
		Alpha:         DefaultAlpha,
		L1Weight:      DefaultL1Weight,
		MaxIterations: DefaultRegularizedMaxIter,
		Tolerance:     DefaultRegularizedTolerance,
	}
}

// Validate runs basic validation on regularized fit options
func (r *RegularizedOptions) Validate() (*RegularizedOptions, error) {
	if r == nil {
		r = NewDefaultRegularizedOptions()
	}

	if r.Alpha < 0 {
		return nil, ErrNegativeAlpha
	}
	if r.L1Weight < 0 || r.L1Weight > 1 {
		return nil, ErrL1WeightRange
	}
	if r.MaxIterations < 0 {
		return nil, ErrNegativeIterations
	}
	if r.Tolerance < 0 {
		return nil, ErrNegativeTolerance
	}
	return r, nil
}

// RegularizedResults holds a penalized fit. Penalized estimates have no sampling
// distribution here, so only point estimates are reported.
type RegularizedResults struct {
	Params     []float64 `json:"params"`
	Iterations int       `json:"iterations"`
	Converged  bool      `json:"converged"`

	// Resid is y - X b on the original scale.
	Resid []float64 `json:"-"`
}

// SoftThreshold shrinks x towards zero by gamma, returning 0.0 inside [-gamma, gamma].
func SoftThreshold(x, gamma float64) float64 {
	res := math.Max(0, math.Abs(x)-gamma)
	if math.Signbit(x) {
		return -res
	}
	return res
}

// FitRegularized minimizes
//
//	||W y - W X b||^2 / 2n + alpha * ((1 - l1) ||b||^2 / 2 + l1 ||b||_1)
//
// by cyclic coordinate descent. The constant column is not penalized.
func (m *Model) FitRegularized(opt *RegularizedOptions) (*RegularizedResults, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}

	nobs, k := m.wx.Dims()
	if opt.WarmStartBeta != nil && len(opt.WarmStartBeta) != k {
		return nil, fmt.Errorf("warm start beta has %d coefficients instead of %d, %w", len(opt.WarmStartBeta), k, ErrWarmStartBetaSize)
	}

	// tracks current betas
	beta := make([]float64, k)
	if opt.WarmStartBeta != nil {
		copy(beta, opt.WarmStartBeta)
	}

	n := float64(nobs)
	constCol := m.design.ConstantColumn()
	l1 := make([]float64, k)
	l2 := make([]float64, k)
	xcols := make([][]float64, k)
	xdot := make([]float64, k)
	for j := 0; j < k; j++ {
		xcols[j] = mat.Col(nil, j, m.wx)
		xdot[j] = floatsunrolled.Dot(xcols[j], xcols[j]) / n
		if j != constCol {
			l1[j] = opt.Alpha * opt.L1Weight
			l2[j] = opt.Alpha * (1 - opt.L1Weight)
		}
	}

	// residual of the whitened problem at the current beta
	var betaXVec mat.VecDense
	betaXVec.MulVec(m.wx, mat.NewVecDense(k, beta))
	residual := floatsunrolled.SubTo(nil, m.wy, betaXVec.RawVector().Data)

	res := &RegularizedResults{}
	for i := 0; i < opt.MaxIterations; i++ {
		res.Iterations = i + 1
		maxCoef := 0.0
		maxUpdate := 0.0

		for j := 0; j < k; j++ {
			if xdot[j] == 0 {
				continue
			}
			betaCurr := beta[j]

			// correlation with the partial residual that excludes feature j
			num := floatsunrolled.Dot(xcols[j], residual)/n + xdot[j]*betaCurr
			betaNext := SoftThreshold(num, l1[j]) / (xdot[j] + l2[j])

			if diff := betaNext - betaCurr; diff != 0 {
				floatsunrolled.AddScaledTo(residual, residual, -diff, xcols[j])
			}
			maxCoef = math.Max(maxCoef, math.Abs(betaNext))
			maxUpdate = math.Max(maxUpdate, math.Abs(betaNext-betaCurr))
			beta[j] = betaNext
		}

		// break early if we've achieved the desired tolerance
		if maxUpdate <= opt.Tolerance*maxCoef {
			res.Converged = true
			break
		}
	}
	if !res.Converged {
		slog.Warn("regularized fit did not converge", "iterations", res.Iterations, "alpha", opt.Alpha)
	}

	var fitted mat.VecDense
	fitted.MulVec(m.x, mat.NewVecDense(k, beta))
	res.Params = beta
	res.Resid = floats.SubTo(make([]float64, nobs), m.y, fitted.RawVector().Data)
	return res, nil
}

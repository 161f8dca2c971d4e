// Package linearmodel fits generalized least squares models. OLS, WLS and GLS are one
// estimator parameterized by a whitening transform, and GLSAR iterates GLS with AR(p)
// errors estimated from the residuals.
package linearmodel

import (
	"fmt"
	"log/slog"

	"github.com/aouyang1/go-regression/design"
	"github.com/aouyang1/go-regression/floatsunrolled"
	"github.com/aouyang1/go-regression/linalg"
	"github.com/aouyang1/go-regression/whiten"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Model is a design paired with a whitening transform. The whitened data is computed
// once at construction and Fit may be called any number of times.
type Model struct {
	opt       *Options
	design    *design.Matrix
	transform whiten.Transform

	x  *mat.Dense
	y  []float64
	wx *mat.Dense
	wy []float64

	// whitened column of ones, used to center the total sum of squares
	wones []float64
}

// New whitens d with t. A nil transform is the identity.
func New(d *design.Matrix, t whiten.Transform, opt *Options) (*Model, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("no design matrix, %w", linalg.ErrDimensionMismatch)
	}
	if t == nil {
		t = whiten.Identity{}
	}

	wy, wx, err := d.Whiten(t)
	if err != nil {
		return nil, err
	}

	m, _ := d.Dims()
	ones := make([]float64, m)
	floats.AddConst(1.0, ones)
	wones, err := whiten.WhitenVec(t, ones)
	if err != nil {
		return nil, err
	}

	return &Model{
		opt:       opt,
		design:    d,
		transform: t,
		x:         d.Exog(),
		y:         d.Endog(),
		wx:        wx,
		wy:        wy,
		wones:     wones,
	}, nil
}

// NewOLS builds an ordinary least squares model.
func NewOLS(d *design.Matrix, opt *Options) (*Model, error) {
	return New(d, whiten.Identity{}, opt)
}

// NewWLS builds a weighted least squares model from precision weights.
func NewWLS(d *design.Matrix, weights []float64, opt *Options) (*Model, error) {
	t, err := whiten.NewDiagonal(weights)
	if err != nil {
		return nil, err
	}
	return New(d, t, opt)
}

// NewGLS builds a generalized least squares model from the error covariance sigma.
func NewGLS(d *design.Matrix, sigma mat.Matrix, opt *Options) (*Model, error) {
	t, err := whiten.NewFull(sigma)
	if err != nil {
		return nil, err
	}
	return New(d, t, opt)
}

func (m *Model) Design() *design.Matrix { return m.design }

func (m *Model) Transform() whiten.Transform { return m.transform }

// WExog returns a copy of the whitened regressors.
func (m *Model) WExog() *mat.Dense { return mat.DenseCopyOf(m.wx) }

// WEndog returns a copy of the whitened response.
func (m *Model) WEndog() []float64 { return append([]float64(nil), m.wy...) }

// Fit solves the whitened least squares problem. Fitted values and residuals are
// reported on the original scale, whitened residuals on the whitened scale.
func (m *Model) Fit() (*Results, error) {
	sol, err := linalg.LeastSquares(m.wx, m.wy, m.opt.Method == MethodPinv, m.opt.RankTolerance)
	if err != nil {
		return nil, fmt.Errorf("unable to solve whitened least squares, %w", err)
	}

	nobs, k := m.x.Dims()
	params := mat.NewVecDense(k, sol.Params)

	var fittedVec mat.VecDense
	fittedVec.MulVec(m.x, params)
	fitted := fittedVec.RawVector().Data
	resid := floatsunrolled.SubTo(nil, m.y, fitted)

	var wfittedVec mat.VecDense
	wfittedVec.MulVec(m.wx, params)
	wresid := floatsunrolled.SubTo(nil, m.wy, wfittedVec.RawVector().Data)

	var warnings []error
	if sol.Rank < k {
		rerr := m.design.RankError()
		if rerr == nil || rerr.Rank != sol.Rank {
			rerr = &design.RankDeficiencyError{Rank: sol.Rank, Columns: k}
		}
		slog.Warn("rank deficient design, using pseudo-inverse", "rank", sol.Rank, "columns", k, "transform", m.transform.Kind().String())
		warnings = append(warnings, rerr)
	}

	var kConstant int
	if m.design.HasConstant() {
		kConstant = 1
	}

	return &Results{
		model:          m,
		params:         sol.Params,
		normCov:        sol.NormalizedCov,
		rank:           sol.Rank,
		singularValues: sol.SingularValues,
		pinv:           sol.Pinv,
		fitted:         fitted,
		resid:          resid,
		wresid:         wresid,
		nobs:           nobs,
		ncols:          k,
		kConstant:      kConstant,
		dfModel:        float64(sol.Rank - kConstant),
		dfResid:        float64(nobs - sol.Rank),
		warnings:       warnings,
		cache:          newCache(),
	}, nil
}

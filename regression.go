// Package regression fits linear models by generalized least squares. OLS, WLS and GLS
// share one estimation engine parameterized by a whitening transform, and GLSAR refits
// GLS with AR(p) errors until the coefficients settle.
//
// The helpers here take plain slices. Use the design, whiten and linearmodel packages
// directly to reuse a design across fits or to supply a custom transform.
package regression

import (
	"fmt"

	"github.com/aouyang1/go-regression/design"
	"github.com/aouyang1/go-regression/linalg"
	"github.com/aouyang1/go-regression/linearmodel"
	mat_ "github.com/aouyang1/go-regression/mat"
	"github.com/aouyang1/go-regression/whiten"
)

var (
	ErrDimensionMismatch   = linalg.ErrDimensionMismatch
	ErrNonPositiveDefinite = linalg.ErrNonPositiveDefinite
	ErrRankDeficient       = design.ErrRankDeficient
	ErrNonFinite           = design.ErrNonFinite
	ErrInvalidWeight       = whiten.ErrInvalidWeight
	ErrNonStationary       = whiten.ErrNonStationary
	ErrInsufficientDF      = linearmodel.ErrInsufficientDF
	ErrNotConverged        = linearmodel.ErrNotConverged
)

// Options represents how the design is assembled and how each fit is solved
type Options struct {
	Design *design.Options      `json:"design"`
	Fit    *linearmodel.Options `json:"fit"`
}

// NewDefaultOptions adds an intercept and solves with QR
func NewDefaultOptions() *Options {
	return &Options{
		Design: design.NewDefaultOptions(),
		Fit:    linearmodel.NewDefaultOptions(),
	}
}

// Validate runs basic validation on regression options
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		o = NewDefaultOptions()
	}

	d, err := o.Design.Validate()
	if err != nil {
		return nil, err
	}
	f, err := o.Fit.Validate()
	if err != nil {
		return nil, err
	}
	return &Options{Design: d, Fit: f}, nil
}

func newDesign(y []float64, x [][]float64, opt *Options) (*design.Matrix, *Options, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, nil, err
	}
	d, err := design.NewFromRows(y, x, opt.Design)
	if err != nil {
		return nil, nil, err
	}
	return d, opt, nil
}

func fit(d *design.Matrix, t whiten.Transform, opt *Options) (*linearmodel.Results, error) {
	m, err := linearmodel.New(d, t, opt.Fit)
	if err != nil {
		return nil, err
	}
	return m.Fit()
}

// OLS fits ordinary least squares on row major regressors x.
func OLS(y []float64, x [][]float64, opt *Options) (*linearmodel.Results, error) {
	d, opt, err := newDesign(y, x, opt)
	if err != nil {
		return nil, err
	}
	return fit(d, whiten.Identity{}, opt)
}

// WLS fits weighted least squares with precision weights, one per observation.
func WLS(y []float64, x [][]float64, weights []float64, opt *Options) (*linearmodel.Results, error) {
	d, opt, err := newDesign(y, x, opt)
	if err != nil {
		return nil, err
	}
	t, err := whiten.NewDiagonal(weights)
	if err != nil {
		return nil, err
	}
	return fit(d, t, opt)
}

// GLS fits generalized least squares with the error covariance sigma.
func GLS(y []float64, x [][]float64, sigma [][]float64, opt *Options) (*linearmodel.Results, error) {
	d, opt, err := newDesign(y, x, opt)
	if err != nil {
		return nil, err
	}
	s, err := mat_.NewDenseFromArray(sigma)
	if err != nil {
		return nil, fmt.Errorf("covariance %w, %w", err, ErrDimensionMismatch)
	}
	t, err := whiten.NewFull(s)
	if err != nil {
		return nil, err
	}
	return fit(d, t, opt)
}

// GLSAR iteratively fits GLS with AR errors. A nil gopt runs the default AR(1)
// refinement with the fit options of opt, otherwise gopt.Fit applies.
func GLSAR(y []float64, x [][]float64, opt *Options, gopt *linearmodel.GLSAROptions) (*linearmodel.GLSARResults, error) {
	d, opt, err := newDesign(y, x, opt)
	if err != nil {
		return nil, err
	}
	if gopt == nil {
		gopt = linearmodel.NewDefaultGLSAROptions()
		gopt.Fit = opt.Fit
	}

	g, err := linearmodel.NewGLSAR(d, gopt)
	if err != nil {
		return nil, err
	}
	return g.Fit()
}

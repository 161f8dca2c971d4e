package linearmodel

import (
	"errors"
	"fmt"
)

const (
	MethodQR   = "qr"
	MethodPinv = "pinv"
)

var (
	ErrUnknownMethod      = errors.New("unknown fit method")
	ErrNegativeTolerance  = errors.New("negative tolerance")
	ErrNegativeIterations = errors.New("negative iterations")
)

// Options represents input options to fit a linear model
type Options struct {
	// Method selects the solver. qr uses a QR factorization and falls back to the
	// pseudo-inverse for rank deficient designs. pinv always uses the pseudo-inverse.
	Method string `json:"method"`

	// RankTolerance is the singular value threshold below which a direction of the
	// whitened design is dropped. 0 selects s_max * max(m, n) * eps.
	RankTolerance float64 `json:"rank_tolerance"`
}

// NewDefaultOptions returns a default set of fit options
func NewDefaultOptions() *Options {
	return &Options{
		Method: MethodQR,
	}
}

// Validate runs basic validation on fit options
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		o = NewDefaultOptions()
	}

	switch o.Method {
	case MethodQR, MethodPinv:
	default:
		return nil, fmt.Errorf("%q, %w", o.Method, ErrUnknownMethod)
	}
	if o.RankTolerance < 0 {
		return nil, ErrNegativeTolerance
	}
	return o, nil
}

package linearmodel

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrUnknownCovType = errors.New("unknown robust covariance type")
	ErrUnitLeverage   = errors.New("observation has unit leverage")
)

// observations with 1 - h_i at or below this are treated as having unit leverage
const leverageTolerance = 1e-10

// CovType selects a heteroscedasticity consistent covariance estimator.
type CovType string

const (
	HC0 CovType = "HC0"
	HC1 CovType = "HC1"
	HC2 CovType = "HC2"
	HC3 CovType = "HC3"
)

func (c CovType) key() string {
	switch c {
	case HC0:
		return "cov_hc0"
	case HC1:
		return "cov_hc1"
	case HC2:
		return "cov_hc2"
	case HC3:
		return "cov_hc3"
	}
	return ""
}

// residual weights of the sandwich meat for each estimator
func (r *Results) hcWeights(c CovType) ([]float64, error) {
	u := make([]float64, r.nobs)
	for i, e := range r.wresid {
		u[i] = e * e
	}

	switch c {
	case HC0:
	case HC2, HC3:
		h := r.hatDiag()
		for i := range u {
			d := 1 - h[i]
			if d <= leverageTolerance {
				return nil, fmt.Errorf("%s at observation %d with leverage %g, %w", c, i, h[i], ErrUnitLeverage)
			}
			if c == HC3 {
				d *= d
			}
			u[i] /= d
		}
	default:
		return nil, fmt.Errorf("%q, %w", c, ErrUnknownCovType)
	}
	return u, nil
}

func (r *Results) robustCov(c CovType) (*mat.SymDense, error) {
	if c.key() == "" {
		return nil, fmt.Errorf("%q, %w", c, ErrUnknownCovType)
	}
	return cached(r.cache, c.key(), func() (*mat.SymDense, error) {
		// HC1 is HC0 with a degrees of freedom correction
		if c == HC1 {
			if err := r.requireDFResid(string(c)); err != nil {
				return nil, err
			}
			hc0, err := r.robustCov(HC0)
			if err != nil {
				return nil, err
			}
			var cov mat.SymDense
			cov.ScaleSym(float64(r.nobs)/r.dfResid, hc0)
			return &cov, nil
		}

		u, err := r.hcWeights(c)
		if err != nil {
			return nil, err
		}

		_, k := r.model.wx.Dims()
		meat := mat.NewSymDense(k, nil)
		for i, ui := range u {
			meat.SymRankOne(meat, ui, mat.NewVecDense(k, r.model.wx.RawRowView(i)))
		}

		var tmp, sandwich mat.Dense
		tmp.Mul(r.normCov, meat)
		sandwich.Mul(&tmp, r.normCov)

		cov := mat.NewSymDense(k, nil)
		for i := 0; i < k; i++ {
			for j := i; j < k; j++ {
				cov.SetSym(i, j, (sandwich.At(i, j)+sandwich.At(j, i))/2)
			}
		}
		return cov, nil
	})
}

// RobustCovParams returns the sandwich covariance (X'X)^-1 X' diag(u) X (X'X)^-1 of
// the whitened design for the selected estimator.
func (r *Results) RobustCovParams(c CovType) (*mat.SymDense, error) {
	cov, err := r.robustCov(c)
	if err != nil {
		return nil, err
	}
	return mat.NewSymDense(cov.SymmetricDim(), slices.Clone(cov.RawSymmetric().Data)), nil
}

// RobustBSE returns heteroscedasticity consistent standard errors.
func (r *Results) RobustBSE(c CovType) ([]float64, error) {
	if c.key() == "" {
		return nil, fmt.Errorf("%q, %w", c, ErrUnknownCovType)
	}
	return cloneOrNil(cached(r.cache, c.key()+"_se", func() ([]float64, error) {
		cov, err := r.robustCov(c)
		if err != nil {
			return nil, err
		}
		se := make([]float64, cov.SymmetricDim())
		for i := range se {
			se[i] = math.Sqrt(cov.At(i, i))
		}
		return se, nil
	}))
}

package linearmodel

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/aouyang1/go-regression/floatsunrolled"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrInsufficientDF = errors.New("insufficient degrees of freedom")
	ErrInvalidAlpha   = errors.New("alpha must be in (0, 1)")
)

const (
	keyScale         = "scale"
	keyCovParams     = "cov_params"
	keyBSE           = "bse"
	keyTValues       = "tvalues"
	keyPValues       = "pvalues"
	keySSR           = "ssr"
	keyCenteredTSS   = "centered_tss"
	keyUncenteredTSS = "uncentered_tss"
	keyESS           = "ess"
	keyRSquared      = "rsquared"
	keyRSquaredAdj   = "rsquared_adj"
	keyFValue        = "fvalue"
	keyFPValue       = "f_pvalue"
	keyMSEModel      = "mse_model"
	keyMSEResid      = "mse_resid"
	keyMSETotal      = "mse_total"
	keyLLF           = "llf"
	keyAIC           = "aic"
	keyBIC           = "bic"
	keyHatDiag       = "hat_diag"
)

// Results holds a single fit. The fit itself is immutable and every derived statistic
// is computed on first request and then served from a per result cache. Errors from
// statistics that cannot be computed, e.g. with no residual degrees of freedom, are
// returned at request time and cached the same way.
type Results struct {
	model *Model

	params         []float64
	normCov        *mat.SymDense
	rank           int
	singularValues []float64
	pinv           bool

	fitted []float64
	resid  []float64
	wresid []float64

	nobs      int
	ncols     int
	kConstant int
	dfModel   float64
	dfResid   float64

	warnings []error
	cache    *cache
}

// Model returns the model that produced the fit.
func (r *Results) Model() *Model { return r.model }

func (r *Results) Params() []float64 { return slices.Clone(r.params) }

// Resid returns y - X b on the original scale.
func (r *Results) Resid() []float64 { return slices.Clone(r.resid) }

// WResid returns the residuals of the whitened problem.
func (r *Results) WResid() []float64 { return slices.Clone(r.wresid) }

func (r *Results) FittedValues() []float64 { return slices.Clone(r.fitted) }

// NormalizedCov returns (X'X)^-1 of the whitened design, or its pseudo-inverse.
func (r *Results) NormalizedCov() *mat.SymDense {
	return mat.NewSymDense(r.normCov.SymmetricDim(), slices.Clone(r.normCov.RawSymmetric().Data))
}

func (r *Results) Rank() int { return r.rank }

func (r *Results) SingularValues() []float64 { return slices.Clone(r.singularValues) }

// Pinv reports whether the pseudo-inverse was used to solve the fit.
func (r *Results) Pinv() bool { return r.pinv }

func (r *Results) NObs() int { return r.nobs }

// KConstant is 1 when the design carries a constant column.
func (r *Results) KConstant() int { return r.kConstant }

// DFModel is rank minus the constant.
func (r *Results) DFModel() float64 { return r.dfModel }

// DFResid is the number of observations minus rank.
func (r *Results) DFResid() float64 { return r.dfResid }

// Warnings lists the non-fatal conditions met while fitting.
func (r *Results) Warnings() []error { return slices.Clone(r.warnings) }

func (r *Results) requireDFResid(stat string) error {
	if r.ncols > r.nobs {
		return fmt.Errorf("%s needs at most %d columns, got %d, %w", stat, r.nobs, r.ncols, ErrInsufficientDF)
	}
	if r.dfResid <= 0 {
		return fmt.Errorf("%s needs positive residual degrees of freedom, got %g, %w", stat, r.dfResid, ErrInsufficientDF)
	}
	return nil
}

func (r *Results) requireDFModel(stat string) error {
	if r.ncols > r.nobs {
		return fmt.Errorf("%s needs at most %d columns, got %d, %w", stat, r.nobs, r.ncols, ErrInsufficientDF)
	}
	if r.dfModel <= 0 {
		return fmt.Errorf("%s needs positive model degrees of freedom, got %g, %w", stat, r.dfModel, ErrInsufficientDF)
	}
	return nil
}

func (r *Results) studentsT() distuv.StudentsT {
	return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: r.dfResid}
}

func cloneOrNil(v []float64, err error) ([]float64, error) {
	if err != nil {
		return nil, err
	}
	return slices.Clone(v), nil
}

// SSR is the sum of squared whitened residuals.
func (r *Results) SSR() float64 {
	v, _ := cached(r.cache, keySSR, func() (float64, error) {
		return floatsunrolled.Dot(r.wresid, r.wresid), nil
	})
	return v
}

// Scale is the residual variance estimate SSR / df_resid.
func (r *Results) Scale() (float64, error) {
	return cached(r.cache, keyScale, func() (float64, error) {
		if err := r.requireDFResid(keyScale); err != nil {
			return 0, err
		}
		return r.SSR() / r.dfResid, nil
	})
}

func (r *Results) covParams() (*mat.SymDense, error) {
	return cached(r.cache, keyCovParams, func() (*mat.SymDense, error) {
		scale, err := r.Scale()
		if err != nil {
			return nil, err
		}
		var cov mat.SymDense
		cov.ScaleSym(scale, r.normCov)
		return &cov, nil
	})
}

// CovParams returns the covariance of the parameter estimates, scale * (X'X)^-1.
func (r *Results) CovParams() (*mat.SymDense, error) {
	cov, err := r.covParams()
	if err != nil {
		return nil, err
	}
	return mat.NewSymDense(cov.SymmetricDim(), slices.Clone(cov.RawSymmetric().Data)), nil
}

func (r *Results) bse() ([]float64, error) {
	return cached(r.cache, keyBSE, func() ([]float64, error) {
		cov, err := r.covParams()
		if err != nil {
			return nil, err
		}
		n := cov.SymmetricDim()
		se := make([]float64, n)
		for i := range se {
			se[i] = math.Sqrt(cov.At(i, i))
		}
		return se, nil
	})
}

// BSE returns the standard errors of the parameters.
func (r *Results) BSE() ([]float64, error) {
	return cloneOrNil(r.bse())
}

func (r *Results) tvalues() ([]float64, error) {
	return cached(r.cache, keyTValues, func() ([]float64, error) {
		se, err := r.bse()
		if err != nil {
			return nil, err
		}
		t := make([]float64, len(se))
		for i := range t {
			t[i] = r.params[i] / se[i]
		}
		return t, nil
	})
}

func (r *Results) TValues() ([]float64, error) {
	return cloneOrNil(r.tvalues())
}

// PValues returns two-sided p-values of the t statistics.
func (r *Results) PValues() ([]float64, error) {
	return cloneOrNil(cached(r.cache, keyPValues, func() ([]float64, error) {
		tv, err := r.tvalues()
		if err != nil {
			return nil, err
		}
		dist := r.studentsT()
		p := make([]float64, len(tv))
		for i, t := range tv {
			p[i] = 2 * dist.CDF(-math.Abs(t))
		}
		return p, nil
	}))
}

// ConfInt returns the 100(1-alpha)% confidence interval of every parameter.
func (r *Results) ConfInt(alpha float64) ([][2]float64, error) {
	if !(alpha > 0 && alpha < 1) {
		return nil, fmt.Errorf("got %g, %w", alpha, ErrInvalidAlpha)
	}
	se, err := r.bse()
	if err != nil {
		return nil, err
	}
	q := r.studentsT().Quantile(1 - alpha/2)
	ci := make([][2]float64, len(se))
	for i := range ci {
		ci[i] = [2]float64{r.params[i] - q*se[i], r.params[i] + q*se[i]}
	}
	return ci, nil
}

// CenteredTSS is the total sum of squares of the whitened response around its weighted
// mean. For WLS this is the weighted total sum of squares.
func (r *Results) CenteredTSS() float64 {
	v, _ := cached(r.cache, keyCenteredTSS, func() (float64, error) {
		wy, wones := r.model.wy, r.model.wones
		mean := floatsunrolled.Dot(wy, wones) / floatsunrolled.Dot(wones, wones)
		centered := floatsunrolled.AddScaledTo(nil, wy, -mean, wones)
		return floatsunrolled.Dot(centered, centered), nil
	})
	return v
}

// UncenteredTSS is the sum of squares of the whitened response.
func (r *Results) UncenteredTSS() float64 {
	v, _ := cached(r.cache, keyUncenteredTSS, func() (float64, error) {
		return floatsunrolled.Dot(r.model.wy, r.model.wy), nil
	})
	return v
}

func (r *Results) tss() float64 {
	if r.kConstant > 0 {
		return r.CenteredTSS()
	}
	return r.UncenteredTSS()
}

// ESS is the explained sum of squares, centered when the model has a constant.
func (r *Results) ESS() float64 {
	v, _ := cached(r.cache, keyESS, func() (float64, error) {
		return r.tss() - r.SSR(), nil
	})
	return v
}

// RSquared is centered when the model has a constant and uncentered otherwise.
func (r *Results) RSquared() (float64, error) {
	return cached(r.cache, keyRSquared, func() (float64, error) {
		if err := r.requireDFResid(keyRSquared); err != nil {
			return 0, err
		}
		return 1 - r.SSR()/r.tss(), nil
	})
}

func (r *Results) RSquaredAdj() (float64, error) {
	return cached(r.cache, keyRSquaredAdj, func() (float64, error) {
		r2, err := r.RSquared()
		if err != nil {
			return 0, err
		}
		return 1 - float64(r.nobs-r.kConstant)/r.dfResid*(1-r2), nil
	})
}

// MSEModel is ESS / df_model.
func (r *Results) MSEModel() (float64, error) {
	return cached(r.cache, keyMSEModel, func() (float64, error) {
		if err := r.requireDFModel(keyMSEModel); err != nil {
			return 0, err
		}
		return r.ESS() / r.dfModel, nil
	})
}

// MSEResid is SSR / df_resid.
func (r *Results) MSEResid() (float64, error) {
	return cached(r.cache, keyMSEResid, func() (float64, error) {
		if err := r.requireDFResid(keyMSEResid); err != nil {
			return 0, err
		}
		return r.SSR() / r.dfResid, nil
	})
}

// MSETotal is the total sum of squares over df_resid + df_model.
func (r *Results) MSETotal() (float64, error) {
	return cached(r.cache, keyMSETotal, func() (float64, error) {
		df := r.dfResid + r.dfModel
		if df <= 0 || r.ncols > r.nobs {
			return 0, fmt.Errorf("%s needs positive total degrees of freedom, %w", keyMSETotal, ErrInsufficientDF)
		}
		return r.tss() / df, nil
	})
}

// FValue tests that every non-constant parameter is zero.
func (r *Results) FValue() (float64, error) {
	return cached(r.cache, keyFValue, func() (float64, error) {
		mseModel, err := r.MSEModel()
		if err != nil {
			return 0, err
		}
		mseResid, err := r.MSEResid()
		if err != nil {
			return 0, err
		}
		return mseModel / mseResid, nil
	})
}

func (r *Results) FPValue() (float64, error) {
	return cached(r.cache, keyFPValue, func() (float64, error) {
		f, err := r.FValue()
		if err != nil {
			return 0, err
		}
		return distuv.F{D1: r.dfModel, D2: r.dfResid}.Survival(f), nil
	})
}

// LLF is the Gaussian log-likelihood at the maximum likelihood scale SSR/n, including
// the log determinant of the whitening transform.
func (r *Results) LLF() float64 {
	v, _ := cached(r.cache, keyLLF, func() (float64, error) {
		n := float64(r.nobs)
		llf := -n / 2 * (math.Log(2*math.Pi) + math.Log(r.SSR()/n) + 1)
		return llf + r.model.transform.LogDet(r.nobs), nil
	})
	return v
}

func (r *Results) AIC() float64 {
	v, _ := cached(r.cache, keyAIC, func() (float64, error) {
		return -2*r.LLF() + 2*(r.dfModel+float64(r.kConstant)), nil
	})
	return v
}

func (r *Results) BIC() float64 {
	v, _ := cached(r.cache, keyBIC, func() (float64, error) {
		return -2*r.LLF() + math.Log(float64(r.nobs))*(r.dfModel+float64(r.kConstant)), nil
	})
	return v
}

func (r *Results) hatDiag() []float64 {
	v, _ := cached(r.cache, keyHatDiag, func() ([]float64, error) {
		_, k := r.model.wx.Dims()
		h := make([]float64, r.nobs)
		cx := make([]float64, k)
		cxVec := mat.NewVecDense(k, cx)
		for i := range h {
			xi := r.model.wx.RawRowView(i)
			cxVec.MulVec(r.normCov, mat.NewVecDense(k, xi))
			h[i] = floatsunrolled.Dot(xi, cxVec.RawVector().Data)
		}
		return h, nil
	})
	return v
}

// HatDiag returns the leverage of every observation in the whitened design.
func (r *Results) HatDiag() []float64 {
	return slices.Clone(r.hatDiag())
}

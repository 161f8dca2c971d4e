package linearmodel

import (
	"math"
)

// ParamReport describes one estimated parameter.
type ParamReport struct {
	Name    string   `json:"name"`
	Coef    float64  `json:"coef"`
	StdErr  *float64 `json:"std_err,omitempty"`
	T       *float64 `json:"t,omitempty"`
	PValue  *float64 `json:"p_value,omitempty"`
	CILower *float64 `json:"ci_lower,omitempty"`
	CIUpper *float64 `json:"ci_upper,omitempty"`
}

// Report is a snapshot of every statistic a fit can provide. Statistics that cannot be
// computed, or are not finite, are left out.
type Report struct {
	Transform string        `json:"transform"`
	NObs      int           `json:"nobs"`
	Rank      int           `json:"rank"`
	DFModel   float64       `json:"df_model"`
	DFResid   float64       `json:"df_resid"`
	Params    []ParamReport `json:"params"`

	SSR         *float64 `json:"ssr,omitempty"`
	CenteredTSS *float64 `json:"centered_tss,omitempty"`
	ESS         *float64 `json:"ess,omitempty"`
	Scale       *float64 `json:"scale,omitempty"`
	RSquared    *float64 `json:"rsquared,omitempty"`
	RSquaredAdj *float64 `json:"rsquared_adj,omitempty"`
	FValue      *float64 `json:"fvalue,omitempty"`
	FPValue     *float64 `json:"f_pvalue,omitempty"`
	LLF         *float64 `json:"llf,omitempty"`
	AIC         *float64 `json:"aic,omitempty"`
	BIC         *float64 `json:"bic,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

func finite(v float64, err error) *float64 {
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func finiteAt(v []float64, err error, i int) *float64 {
	if err != nil {
		return nil
	}
	return finite(v[i], nil)
}

// Report collects the available statistics with a 95% confidence interval.
func (r *Results) Report() *Report {
	rep := &Report{
		Transform: r.model.transform.Kind().String(),
		NObs:      r.nobs,
		Rank:      r.rank,
		DFModel:   r.dfModel,
		DFResid:   r.dfResid,

		SSR:         finite(r.SSR(), nil),
		CenteredTSS: finite(r.CenteredTSS(), nil),
		ESS:         finite(r.ESS(), nil),
		LLF:         finite(r.LLF(), nil),
		AIC:         finite(r.AIC(), nil),
		BIC:         finite(r.BIC(), nil),
	}
	rep.Scale = finite(r.Scale())
	rep.RSquared = finite(r.RSquared())
	rep.RSquaredAdj = finite(r.RSquaredAdj())
	rep.FValue = finite(r.FValue())
	rep.FPValue = finite(r.FPValue())

	bse, bseErr := r.bse()
	tv, tErr := r.tvalues()
	pv, pErr := r.PValues()
	ci, ciErr := r.ConfInt(0.05)

	names := r.model.design.Names()
	rep.Params = make([]ParamReport, len(r.params))
	for i, coef := range r.params {
		p := ParamReport{
			Name:   names[i],
			Coef:   coef,
			StdErr: finiteAt(bse, bseErr, i),
			T:      finiteAt(tv, tErr, i),
			PValue: finiteAt(pv, pErr, i),
		}
		if ciErr == nil {
			p.CILower = finite(ci[i][0], nil)
			p.CIUpper = finite(ci[i][1], nil)
		}
		rep.Params[i] = p
	}

	for _, w := range r.warnings {
		rep.Warnings = append(rep.Warnings, w.Error())
	}
	return rep
}

// GLSARReport extends the final fit's report with the refinement outcome.
type GLSARReport struct {
	*Report

	Rho        []float64 `json:"rho"`
	Iterations int       `json:"iterations"`
	State      State     `json:"state"`
}

func (g *GLSARResults) Report() *GLSARReport {
	rep := g.Results.Report()
	rep.Warnings = nil
	for _, w := range g.Warnings() {
		rep.Warnings = append(rep.Warnings, w.Error())
	}
	return &GLSARReport{
		Report:     rep,
		Rho:        append([]float64(nil), g.Rho...),
		Iterations: g.Iterations,
		State:      g.State,
	}
}

package linearmodel

import (
	"fmt"
	"math"

	"github.com/aouyang1/go-regression/floatsunrolled"
	"github.com/aouyang1/go-regression/linalg"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ContrastResult is the outcome of a test of linear restrictions R b = q.
type ContrastResult struct {
	// Effect is R b - q for every restriction.
	Effect []float64 `json:"effect"`

	// SD is the standard deviation of every restriction.
	SD []float64 `json:"sd"`

	// T is only set for a single restriction.
	T float64 `json:"t,omitempty"`
	F float64 `json:"f"`

	PValue  float64 `json:"p_value"`
	DFNum   float64 `json:"df_num"`
	DFDenom float64 `json:"df_denom"`
}

// TTest tests the single restriction r b = q against a two-sided alternative.
func (r *Results) TTest(restriction []float64, q float64) (*ContrastResult, error) {
	if len(restriction) != len(r.params) {
		return nil, fmt.Errorf("restriction has %d entries for %d parameters, %w", len(restriction), len(r.params), linalg.ErrDimensionMismatch)
	}
	cov, err := r.covParams()
	if err != nil {
		return nil, err
	}

	k := len(restriction)
	rv := mat.NewVecDense(k, restriction)
	variance := mat.Inner(rv, cov, rv)
	effect := floatsunrolled.Dot(restriction, r.params) - q
	sd := math.Sqrt(variance)
	t := effect / sd

	return &ContrastResult{
		Effect:  []float64{effect},
		SD:      []float64{sd},
		T:       t,
		F:       t * t,
		PValue:  2 * r.studentsT().CDF(-math.Abs(t)),
		DFNum:   1,
		DFDenom: r.dfResid,
	}, nil
}

// FTest jointly tests the rows of R b = q. A nil q tests against zero.
func (r *Results) FTest(restrictions mat.Matrix, q []float64) (*ContrastResult, error) {
	j, k := restrictions.Dims()
	if k != len(r.params) {
		return nil, fmt.Errorf("restrictions have %d columns for %d parameters, %w", k, len(r.params), linalg.ErrDimensionMismatch)
	}
	if q == nil {
		q = make([]float64, j)
	}
	if len(q) != j {
		return nil, fmt.Errorf("got %d restrictions and %d targets, %w", j, len(q), linalg.ErrDimensionMismatch)
	}
	cov, err := r.covParams()
	if err != nil {
		return nil, err
	}

	var effectVec mat.VecDense
	effectVec.MulVec(restrictions, mat.NewVecDense(k, r.params))
	effect := floatsunrolled.SubTo(nil, effectVec.RawVector().Data, q)

	var tmp, v mat.Dense
	tmp.Mul(restrictions, cov)
	v.Mul(&tmp, restrictions.T())

	sym, err := linalg.Symmetric(&v, 1e-8)
	if err != nil {
		return nil, err
	}
	chol, err := linalg.Cholesky(sym)
	if err != nil {
		return nil, fmt.Errorf("restriction covariance is singular, %w", err)
	}

	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, mat.NewVecDense(j, effect)); err != nil {
		return nil, fmt.Errorf("unable to solve restriction covariance, %w", err)
	}
	f := floatsunrolled.Dot(effect, sol.RawVector().Data) / float64(j)

	sd := make([]float64, j)
	for i := range sd {
		sd[i] = math.Sqrt(sym.At(i, i))
	}

	res := &ContrastResult{
		Effect:  effect,
		SD:      sd,
		F:       f,
		PValue:  distuv.F{D1: float64(j), D2: r.dfResid}.Survival(f),
		DFNum:   float64(j),
		DFDenom: r.dfResid,
	}
	if j == 1 {
		res.T = effect[0] / sd[0]
	}
	return res, nil
}

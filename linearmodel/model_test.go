package linearmodel

import (
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/aouyang1/go-regression/datasets"
	"github.com/aouyang1/go-regression/design"
	"github.com/aouyang1/go-regression/linalg"
	"github.com/aouyang1/go-regression/whiten"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func longleyResults(t testing.TB) (*Results, *datasets.Dataset) {
	ds, err := datasets.Longley()
	require.Nil(t, err)
	d, err := ds.Design(nil)
	require.Nil(t, err)
	m, err := NewOLS(d, nil)
	require.Nil(t, err)
	res, err := m.Fit()
	require.Nil(t, err)
	return res, ds
}

func assertInEpsilonSlice(t *testing.T, expected, actual []float64, eps float64, msg string) {
	t.Helper()
	require.Len(t, actual, len(expected), msg)
	for i := range expected {
		assert.InEpsilon(t, expected[i], actual[i], eps, "%s at %d", msg, i)
	}
}

// simulated regression with a constant and two regressors
func simulate(rng *rand.Rand, n int, noise func(i int) float64) ([]float64, [][]float64) {
	y := make([]float64, n)
	rows := make([][]float64, n)
	for i := range rows {
		x1 := rng.NormFloat64()
		x2 := float64(i) / float64(n)
		rows[i] = []float64{x1, x2}
		y[i] = 1.5 + 2*x1 - 3*x2 + noise(i)
	}
	return y, rows
}

func TestOptionsValidate(t *testing.T) {
	testData := map[string]struct {
		opt      *Options
		err      error
		expected *Options
	}{
		"nil":            {nil, nil, NewDefaultOptions()},
		"pinv":           {&Options{Method: MethodPinv}, nil, &Options{Method: MethodPinv}},
		"unknown method": {&Options{Method: "cholesky"}, ErrUnknownMethod, nil},
		"negative tol":   {&Options{Method: MethodQR, RankTolerance: -1}, ErrNegativeTolerance, nil},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			opt, err := td.opt.Validate()
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, td.expected, opt)
		})
	}
}

func TestLongleyCertified(t *testing.T) {
	res, ds := longleyResults(t)
	cert := ds.Certified

	assert.False(t, res.Pinv())
	assert.Empty(t, res.Warnings())
	assert.Equal(t, 16, res.NObs())
	assert.Equal(t, 7, res.Rank())
	assert.Equal(t, 6.0, res.DFModel())
	assert.Equal(t, 9.0, res.DFResid())

	assertInEpsilonSlice(t, cert.Params, res.Params(), 1e-6, "params")

	bse, err := res.BSE()
	require.Nil(t, err)
	assertInEpsilonSlice(t, cert.StdErrs, bse, 1e-6, "bse")

	scale, err := res.Scale()
	require.Nil(t, err)
	assert.InEpsilon(t, cert.ResidualSD, math.Sqrt(scale), 1e-7)

	r2, err := res.RSquared()
	require.Nil(t, err)
	assert.InDelta(t, cert.RSquared, r2, 1e-9)

	r2adj, err := res.RSquaredAdj()
	require.Nil(t, err)
	assert.InDelta(t, 0.992465007628827, r2adj, 1e-8)

	assert.InEpsilon(t, cert.ResidualSS, res.SSR(), 1e-7)
	assert.InEpsilon(t, cert.RegressionSS, res.ESS(), 1e-7)
	assert.InEpsilon(t, cert.RegressionSS+cert.ResidualSS, res.CenteredTSS(), 1e-10)

	mseModel, err := res.MSEModel()
	require.Nil(t, err)
	assert.InEpsilon(t, cert.RegressionMS, mseModel, 1e-7)

	mseResid, err := res.MSEResid()
	require.Nil(t, err)
	assert.InEpsilon(t, cert.ResidualMS, mseResid, 1e-7)

	mseTotal, err := res.MSETotal()
	require.Nil(t, err)
	assert.InEpsilon(t, (cert.RegressionSS+cert.ResidualSS)/15, mseTotal, 1e-10)

	f, err := res.FValue()
	require.Nil(t, err)
	assert.InEpsilon(t, cert.FValue, f, 1e-7)

	fp, err := res.FPValue()
	require.Nil(t, err)
	assert.InEpsilon(t, 4.98403096572e-10, fp, 1e-4)

	assert.InDelta(t, -109.6174, res.LLF(), 1e-3)
	assert.InDelta(t, 233.2349, res.AIC(), 1e-3)
	assert.InDelta(t, 238.6430, res.BIC(), 1e-3)

	tv, err := res.TValues()
	require.Nil(t, err)
	assertInEpsilonSlice(t, []float64{-3.91080292, 0.17737603, -1.06951632, -4.13642736, -4.82198531, -0.22605114, 4.01588981}, tv, 1e-6, "tvalues")

	pv, err := res.PValues()
	require.Nil(t, err)
	for i, p := range pv {
		assert.True(t, p > 0 && p < 1, "pvalue %d", i)
	}
	assert.InDelta(t, 0.8631, pv[1], 1e-4)

	ci, err := res.ConfInt(0.05)
	require.Nil(t, err)
	assert.InEpsilon(t, -5496529.48, ci[0][0], 1e-6)
	assert.InEpsilon(t, -1467987.79, ci[0][1], 1e-6)

	_, err = res.ConfInt(0)
	assert.ErrorIs(t, err, ErrInvalidAlpha)
}

func TestLongleyContrasts(t *testing.T) {
	res, _ := longleyResults(t)

	r := make([]float64, 7)
	r[5], r[6] = 1, -1
	tt, err := res.TTest(r, 0)
	require.Nil(t, err)
	assert.InEpsilon(t, -1829.2025687192481, tt.Effect[0], 1e-6)
	assert.InEpsilon(t, 455.39079425193762, tt.SD[0], 1e-6)
	assert.InEpsilon(t, -4.0167754636411717, tt.T, 1e-6)
	// two-sided, twice the published one-sided 0.0015163772380899498
	assert.InEpsilon(t, 0.0030327544761798996, tt.PValue, 1e-5)
	assert.Equal(t, 9.0, tt.DFDenom)
	assert.Equal(t, 1.0, tt.DFNum)

	pvalues, err := res.PValues()
	require.Nil(t, err)
	unit := make([]float64, 7)
	unit[1] = 1
	tt, err = res.TTest(unit, 0)
	require.Nil(t, err)
	assert.InEpsilon(t, pvalues[1], tt.PValue, 1e-9)

	restrictions := mat.NewDense(2, 7, []float64{
		0, 0, 1, -1, 0, 0, 0,
		0, 0, 0, 0, 0, 1, -1,
	})
	ft, err := res.FTest(restrictions, nil)
	require.Nil(t, err)
	assert.InEpsilon(t, 9.7404618732968196, ft.F, 1e-6)
	assert.InEpsilon(t, 0.0056052885317493459, ft.PValue, 1e-5)
	assert.Equal(t, 9.0, ft.DFDenom)
	assert.Equal(t, 2.0, ft.DFNum)

	// every slope jointly zero reproduces the regression F statistic
	all := mat.NewDense(6, 7, nil)
	for i := 0; i < 6; i++ {
		all.Set(i, i+1, 1)
	}
	ft, err = res.FTest(all, nil)
	require.Nil(t, err)
	fvalue, err := res.FValue()
	require.Nil(t, err)
	assert.InEpsilon(t, fvalue, ft.F, 1e-6)

	_, err = res.TTest([]float64{1}, 0)
	assert.ErrorIs(t, err, linalg.ErrDimensionMismatch)

	_, err = res.FTest(restrictions, []float64{0})
	assert.ErrorIs(t, err, linalg.ErrDimensionMismatch)

	_, err = res.FTest(mat.NewDense(2, 7, []float64{
		0, 1, 0, 0, 0, 0, 0,
		0, 2, 0, 0, 0, 0, 0,
	}), nil)
	assert.ErrorIs(t, err, linalg.ErrNonPositiveDefinite)
}

func TestIdentityMatchesNormalEquations(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	y, rows := simulate(rng, 50, func(int) float64 { return rng.NormFloat64() })
	d, err := design.NewFromRows(y, rows, nil)
	require.Nil(t, err)

	m, err := New(d, nil, nil)
	require.Nil(t, err)
	res, err := m.Fit()
	require.Nil(t, err)

	x := d.Exog()
	var xtx, xtxInv mat.Dense
	xtx.Mul(x.T(), x)
	require.Nil(t, xtxInv.Inverse(&xtx))
	var xty, beta mat.VecDense
	xty.MulVec(x.T(), mat.NewVecDense(len(y), y))
	beta.MulVec(&xtxInv, &xty)

	assert.InDeltaSlice(t, beta.RawVector().Data, res.Params(), 1e-10)
	assert.InDeltaSlice(t, res.Resid(), res.WResid(), 1e-12)

	fitted := res.FittedValues()
	resid := res.Resid()
	for i := range y {
		assert.InDelta(t, y[i], fitted[i]+resid[i], 1e-10)
	}
}

func TestWLSMatchesScaledOLS(t *testing.T) {
	rng := rand.New(rand.NewPCG(2, 3))
	n := 60
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 0.5 + 2*rng.Float64()
	}
	y, rows := simulate(rng, n, func(i int) float64 { return rng.NormFloat64() / math.Sqrt(weights[i]) })

	d, err := design.NewFromRows(y, rows, nil)
	require.Nil(t, err)
	wls, err := NewWLS(d, weights, nil)
	require.Nil(t, err)
	wres, err := wls.Fit()
	require.Nil(t, err)

	x := d.Exog()
	sy := make([]float64, n)
	srows := make([][]float64, n)
	for i := range sy {
		s := math.Sqrt(weights[i])
		sy[i] = s * y[i]
		srows[i] = []float64{s * x.At(i, 0), s * x.At(i, 1), s * x.At(i, 2)}
	}
	sd, err := design.NewFromRows(sy, srows, &design.Options{})
	require.Nil(t, err)
	ols, err := NewOLS(sd, nil)
	require.Nil(t, err)
	ores, err := ols.Fit()
	require.Nil(t, err)

	assert.InDeltaSlice(t, ores.Params(), wres.Params(), 1e-10)
	assert.InDeltaSlice(t, ores.Resid(), wres.WResid(), 1e-10)
	assert.InDelta(t, ores.SSR(), wres.SSR(), 1e-9)

	obse, err := ores.BSE()
	require.Nil(t, err)
	wbse, err := wres.BSE()
	require.Nil(t, err)
	assert.InDeltaSlice(t, obse, wbse, 1e-10)

	var halfLogW float64
	for _, w := range weights {
		halfLogW += 0.5 * math.Log(w)
	}
	assert.InDelta(t, ores.LLF()+halfLogW, wres.LLF(), 1e-8)

	// residuals on the original scale
	wparams := wres.Params()
	resid := wres.Resid()
	for i := range y {
		pred := wparams[0] + wparams[1]*rows[i][0] + wparams[2]*rows[i][1]
		assert.InDelta(t, y[i]-pred, resid[i], 1e-10)
	}

	// weighted centered total sum of squares
	var sw, swy float64
	for i := range y {
		sw += weights[i]
		swy += weights[i] * y[i]
	}
	mean := swy / sw
	var tss float64
	for i := range y {
		tss += weights[i] * (y[i] - mean) * (y[i] - mean)
	}
	assert.InEpsilon(t, tss, wres.CenteredTSS(), 1e-10)
}

func TestWLSUnitWeightsEqualsOLS(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 5))
	y, rows := simulate(rng, 30, func(int) float64 { return rng.NormFloat64() })
	d, err := design.NewFromRows(y, rows, nil)
	require.Nil(t, err)

	ones := make([]float64, len(y))
	for i := range ones {
		ones[i] = 1
	}
	wls, err := NewWLS(d, ones, nil)
	require.Nil(t, err)
	wres, err := wls.Fit()
	require.Nil(t, err)

	ols, err := NewOLS(d, nil)
	require.Nil(t, err)
	ores, err := ols.Fit()
	require.Nil(t, err)

	assert.InDeltaSlice(t, ores.Params(), wres.Params(), 1e-12)
	or2, err := ores.RSquared()
	require.Nil(t, err)
	wr2, err := wres.RSquared()
	require.Nil(t, err)
	assert.InDelta(t, or2, wr2, 1e-12)
	assert.InDelta(t, ores.LLF(), wres.LLF(), 1e-10)

	_, err = NewWLS(d, ones[1:], nil)
	assert.ErrorIs(t, err, linalg.ErrDimensionMismatch)

	ones[0] = 0
	_, err = NewWLS(d, ones, nil)
	assert.ErrorIs(t, err, whiten.ErrInvalidWeight)
}

func TestGLSFullMatchesAR(t *testing.T) {
	rng := rand.New(rand.NewPCG(6, 7))
	n := 40
	y, rows := simulate(rng, n, func(int) float64 { return rng.NormFloat64() })
	d, err := design.NewFromRows(y, rows, nil)
	require.Nil(t, err)

	rho := []float64{0.5}
	gamma, err := whiten.StationaryAutocovariance(rho, n-1)
	require.Nil(t, err)
	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sigma.SetSym(i, j, gamma[j-i])
		}
	}

	gls, err := NewGLS(d, sigma, nil)
	require.Nil(t, err)
	gres, err := gls.Fit()
	require.Nil(t, err)

	g, err := NewGLSAR(d, &GLSAROptions{Order: 1})
	require.Nil(t, err)
	ares, err := g.FitWithRho(rho)
	require.Nil(t, err)

	assert.InDeltaSlice(t, gres.Params(), ares.Params(), 1e-9)
	assert.InDeltaSlice(t, gres.WResid(), ares.WResid(), 1e-9)
	assert.InDelta(t, gres.LLF(), ares.LLF(), 1e-8)
	assert.Equal(t, "full", gres.Report().Transform)
	assert.Equal(t, "ar", ares.Report().Transform)
}

func TestGLSInvalidCovariance(t *testing.T) {
	d, err := design.NewFromRows([]float64{1, 2, 3}, [][]float64{{1}, {2}, {4}}, nil)
	require.Nil(t, err)

	singular := mat.NewSymDense(3, []float64{
		2, -1, -1,
		-1, 2, -1,
		-1, -1, 2,
	})
	_, err = NewGLS(d, singular, nil)
	assert.ErrorIs(t, err, linalg.ErrNonPositiveDefinite)

	_, err = NewGLS(d, mat.NewDense(3, 3, []float64{1, 0.5, 0, 0, 1, 0, 0, 0, 1}), nil)
	assert.ErrorIs(t, err, linalg.ErrNonPositiveDefinite)

	_, err = NewGLS(d, mat.NewSymDense(2, []float64{1, 0, 0, 1}), nil)
	assert.ErrorIs(t, err, linalg.ErrDimensionMismatch)
}

func TestInsufficientDegreesOfFreedom(t *testing.T) {
	testData := map[string]struct {
		y        []float64
		rows     [][]float64
		rankWarn bool
		dfResid  float64
	}{
		"more columns than rows": {
			y:        []float64{1, 2},
			rows:     [][]float64{{1, 5, 2}, {2, 3, 7}},
			rankWarn: true,
		},
		"more columns than rows with low rank": {
			y: []float64{1, 3, 2, 7},
			rows: [][]float64{
				{1, 1, 1, 1, 1, 1},
				{2, 2, 2, 2, 2, 2},
				{3, 3, 3, 3, 3, 3},
				{5, 5, 5, 5, 5, 5},
			},
			rankWarn: true,
			dfResid:  2,
		},
		"exactly determined": {
			y:    []float64{1, 3, 2},
			rows: [][]float64{{1, 0}, {2, 1}, {0, 5}},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			d, err := design.NewFromRows(td.y, td.rows, nil)
			require.Nil(t, err)
			m, err := NewOLS(d, nil)
			require.Nil(t, err)
			res, err := m.Fit()
			require.Nil(t, err)

			assert.Len(t, res.Params(), len(td.rows[0])+1)
			if td.dfResid > 0 {
				assert.Equal(t, td.dfResid, res.DFResid())
			} else {
				assert.LessOrEqual(t, res.DFResid(), 0.0)
				assert.InDelta(t, 0, res.SSR(), 1e-12)
			}

			_, err = res.Scale()
			assert.ErrorIs(t, err, ErrInsufficientDF)
			_, err = res.BSE()
			assert.ErrorIs(t, err, ErrInsufficientDF)
			_, err = res.PValues()
			assert.ErrorIs(t, err, ErrInsufficientDF)
			_, err = res.ConfInt(0.05)
			assert.ErrorIs(t, err, ErrInsufficientDF)
			_, err = res.RSquared()
			assert.ErrorIs(t, err, ErrInsufficientDF)
			_, err = res.RSquaredAdj()
			assert.ErrorIs(t, err, ErrInsufficientDF)
			_, err = res.FValue()
			assert.ErrorIs(t, err, ErrInsufficientDF)
			_, err = res.MSEResid()
			assert.ErrorIs(t, err, ErrInsufficientDF)
			_, err = res.RobustBSE(HC1)
			assert.ErrorIs(t, err, ErrInsufficientDF)
			_, err = res.TTest(make([]float64, len(res.Params())), 0)
			assert.ErrorIs(t, err, ErrInsufficientDF)

			if td.rankWarn {
				require.Len(t, res.Warnings(), 1)
				assert.ErrorIs(t, res.Warnings()[0], design.ErrRankDeficient)
				assert.True(t, res.Pinv())
			} else {
				assert.Empty(t, res.Warnings())
			}

			rep := res.Report()
			assert.Nil(t, rep.RSquared)
			assert.Nil(t, rep.FValue)
			assert.Nil(t, rep.Params[0].StdErr)
			_, err = json.Marshal(rep)
			assert.Nil(t, err)
		})
	}
}

func TestRankDeficientFallsBackToPinv(t *testing.T) {
	y := []float64{3, 5, 9, 15, 20}
	rows := [][]float64{{1, 1}, {2, 2}, {4, 4}, {7, 7}, {9, 9}}
	d, err := design.NewFromRows(y, rows, nil)
	require.Nil(t, err)
	require.NotNil(t, d.RankError())

	m, err := NewOLS(d, nil)
	require.Nil(t, err)
	res, err := m.Fit()
	require.Nil(t, err)

	assert.True(t, res.Pinv())
	assert.Equal(t, 2, res.Rank())
	assert.Equal(t, 1.0, res.DFModel())
	assert.Equal(t, 3.0, res.DFResid())

	// minimum norm splits the slope evenly between the duplicated columns
	params := res.Params()
	assert.InDelta(t, params[1], params[2], 1e-10)

	warnings := res.Warnings()
	require.Len(t, warnings, 1)
	var rerr *design.RankDeficiencyError
	require.ErrorAs(t, warnings[0], &rerr)
	assert.Equal(t, 2, rerr.Rank)
	assert.Equal(t, 3, rerr.Columns)

	_, err = res.BSE()
	assert.Nil(t, err)
}

func TestNoConstantUsesUncenteredTSS(t *testing.T) {
	y := []float64{1, 2.5, 2.9, 4.2}
	rows := [][]float64{{1}, {2}, {3}, {4}}
	d, err := design.NewFromRows(y, rows, &design.Options{})
	require.Nil(t, err)
	m, err := NewOLS(d, nil)
	require.Nil(t, err)
	res, err := m.Fit()
	require.Nil(t, err)

	assert.Equal(t, 0, res.KConstant())
	assert.Equal(t, 1.0, res.DFModel())
	r2, err := res.RSquared()
	require.Nil(t, err)
	assert.InDelta(t, 1-res.SSR()/res.UncenteredTSS(), r2, 1e-12)
	assert.InDelta(t, res.UncenteredTSS()-res.SSR(), res.ESS(), 1e-12)
}

func TestMethodPinvMatchesQR(t *testing.T) {
	res, ds := longleyResults(t)
	d, err := ds.Design(nil)
	require.Nil(t, err)
	m, err := NewOLS(d, &Options{Method: MethodPinv})
	require.Nil(t, err)
	pres, err := m.Fit()
	require.Nil(t, err)

	assert.True(t, pres.Pinv())
	assertInEpsilonSlice(t, res.Params(), pres.Params(), 1e-5, "params")
}

func TestResultsCache(t *testing.T) {
	res, _ := longleyResults(t)

	bse1, err := res.BSE()
	require.Nil(t, err)
	bse2, err := res.BSE()
	require.Nil(t, err)
	assert.Equal(t, bse1, bse2)
	assert.Equal(t, 1, res.cache.count(keyBSE))
	assert.Equal(t, 1, res.cache.count(keyCovParams))
	assert.Equal(t, 1, res.cache.count(keyScale))

	// callers get copies
	bse1[0] = 0
	bse3, err := res.BSE()
	require.Nil(t, err)
	assert.Equal(t, bse2, bse3)

	// confidence intervals reuse the cached standard errors
	_, err = res.ConfInt(0.1)
	require.Nil(t, err)
	assert.Equal(t, 1, res.cache.count(keyBSE))

	other, _ := longleyResults(t)
	assert.Equal(t, 0, other.cache.count(keyBSE))
	assert.NotSame(t, res.cache, other.cache)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = other.FValue()
			_ = other.LLF()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, other.cache.count(keyFValue))
	assert.Equal(t, 1, other.cache.count(keyLLF))
}

func TestResultsCacheErrors(t *testing.T) {
	d, err := design.NewFromRows([]float64{1, 2}, [][]float64{{1}, {3}}, nil)
	require.Nil(t, err)
	m, err := NewOLS(d, nil)
	require.Nil(t, err)
	res, err := m.Fit()
	require.Nil(t, err)

	_, err1 := res.Scale()
	_, err2 := res.Scale()
	assert.ErrorIs(t, err1, ErrInsufficientDF)
	assert.Equal(t, err1, err2)
	assert.Equal(t, 1, res.cache.count(keyScale))
}

func TestFitIsDeterministic(t *testing.T) {
	_, ds := longleyResults(t)
	d, err := ds.Design(nil)
	require.Nil(t, err)
	m, err := NewOLS(d, nil)
	require.Nil(t, err)

	first, err := m.Fit()
	require.Nil(t, err)
	second, err := m.Fit()
	require.Nil(t, err)

	assert.Equal(t, first.Params(), second.Params())
	assert.Equal(t, first.Resid(), second.Resid())
	assert.Equal(t, first.LLF(), second.LLF())
	assert.Equal(t, ds.Endog, d.Endog())
}

func TestRobustStandardErrors(t *testing.T) {
	res, _ := longleyResults(t)

	hc0, err := res.RobustBSE(HC0)
	require.Nil(t, err)
	hc1, err := res.RobustBSE(HC1)
	require.Nil(t, err)
	hc2, err := res.RobustBSE(HC2)
	require.Nil(t, err)
	hc3, err := res.RobustBSE(HC3)
	require.Nil(t, err)

	ratio := math.Sqrt(float64(res.NObs()) / res.DFResid())
	for i := range hc0 {
		assert.GreaterOrEqual(t, hc0[i], 0.0)
		assert.InEpsilon(t, hc0[i]*ratio, hc1[i], 1e-12)
		assert.GreaterOrEqual(t, hc2[i], hc0[i]*(1-1e-6))
		assert.GreaterOrEqual(t, hc3[i], hc2[i]*(1-1e-6))
	}

	cov, err := res.RobustCovParams(HC0)
	require.Nil(t, err)
	assert.InDelta(t, hc0[0]*hc0[0], cov.At(0, 0), 1e-6*cov.At(0, 0))

	_, err = res.RobustBSE(CovType("HC9"))
	assert.ErrorIs(t, err, ErrUnknownCovType)
	_, err = res.RobustCovParams(CovType("HAC"))
	assert.ErrorIs(t, err, ErrUnknownCovType)
}

func TestRobustUnitLeverage(t *testing.T) {
	y := []float64{1, 4, 2, 8, 5}
	rows := [][]float64{{0}, {0}, {0}, {0}, {1}}
	d, err := design.NewFromRows(y, rows, nil)
	require.Nil(t, err)
	m, err := NewOLS(d, nil)
	require.Nil(t, err)
	res, err := m.Fit()
	require.Nil(t, err)

	h := res.HatDiag()
	assert.InDelta(t, 1.0, h[4], 1e-12)

	testData := map[string]struct {
		cov CovType
		err error
	}{
		"hc0 ignores leverage": {cov: HC0},
		"hc1 ignores leverage": {cov: HC1},
		"hc2 unit leverage":    {cov: HC2, err: ErrUnitLeverage},
		"hc3 unit leverage":    {cov: HC3, err: ErrUnitLeverage},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			se, err := res.RobustBSE(td.cov)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			for _, v := range se {
				assert.False(t, math.IsInf(v, 0) || math.IsNaN(v))
			}
		})
	}
}

func TestRobustInterceptOnly(t *testing.T) {
	y := []float64{1, 4, 2, 8, 5}
	rows := [][]float64{{1}, {1}, {1}, {1}, {1}}
	d, err := design.NewFromRows(y, rows, &design.Options{Names: []string{"const"}})
	require.Nil(t, err)
	m, err := NewOLS(d, nil)
	require.Nil(t, err)
	res, err := m.Fit()
	require.Nil(t, err)

	assert.Equal(t, 0.0, res.DFModel())
	_, err = res.FValue()
	assert.ErrorIs(t, err, ErrInsufficientDF)

	var sse float64
	for _, e := range res.Resid() {
		sse += e * e
	}
	hc0, err := res.RobustBSE(HC0)
	require.Nil(t, err)
	assert.InDelta(t, math.Sqrt(sse)/5, hc0[0], 1e-12)

	h := res.HatDiag()
	assert.InDeltaSlice(t, []float64{0.2, 0.2, 0.2, 0.2, 0.2}, h, 1e-12)
}

func TestHatDiagSumsToRank(t *testing.T) {
	res, _ := longleyResults(t)
	var sum float64
	for _, h := range res.HatDiag() {
		assert.True(t, h > 0 && h < 1)
		sum += h
	}
	assert.InDelta(t, 7.0, sum, 1e-6)
}

func TestReport(t *testing.T) {
	res, _ := longleyResults(t)
	rep := res.Report()

	assert.Equal(t, "identity", rep.Transform)
	require.Len(t, rep.Params, 7)
	assert.Equal(t, "const", rep.Params[0].Name)
	assert.Equal(t, "x6", rep.Params[6].Name)
	require.NotNil(t, rep.RSquared)
	assert.InDelta(t, 0.995479004577296, *rep.RSquared, 1e-10)
	require.NotNil(t, rep.Params[1].CILower)
	assert.Less(t, *rep.Params[1].CILower, rep.Params[1].Coef)

	out, err := json.Marshal(rep)
	require.Nil(t, err)

	var decoded map[string]any
	require.Nil(t, json.Unmarshal(out, &decoded))
	assert.Contains(t, decoded, "fvalue")
	assert.Contains(t, decoded, "llf")
	assert.NotContains(t, decoded, "warnings")
}

// Package stats contains time series and collinearity helpers used while estimating
// regression error structures.
package stats

import (
	"errors"
	"fmt"

	"github.com/aouyang1/go-regression/floatsunrolled"
	"github.com/aouyang1/go-regression/linalg"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrMinimumFeatures    = errors.New("need at least 2 features to compute VIF")
	ErrFeatureLenMismatch = errors.New("some feature length is not consistent")
	ErrFeatureLen         = errors.New("must have at least 2 points per feature")
	ErrNegativeLag        = errors.New("negative lag")
	ErrLagTooLarge        = errors.New("lag must be smaller than the number of samples")
)

// Autocovariance returns the sample autocovariance of x for lags 0 through nlags. When
// unbiased is false each lag is divided by len(x), otherwise by len(x)-lag. The mean is
// removed first when demean is set.
func Autocovariance(x []float64, nlags int, unbiased, demean bool) ([]float64, error) {
	n := len(x)
	if nlags < 0 {
		return nil, ErrNegativeLag
	}
	if nlags >= n {
		return nil, fmt.Errorf("got lag %d with %d samples, %w", nlags, n, ErrLagTooLarge)
	}

	xc := make([]float64, n)
	copy(xc, x)
	if demean {
		floats.AddConst(-stat.Mean(xc, nil), xc)
	}

	acov := make([]float64, nlags+1)
	for k := 0; k <= nlags; k++ {
		denom := float64(n)
		if unbiased {
			denom = float64(n - k)
		}
		acov[k] = floatsunrolled.Dot(xc[:n-k], xc[k:]) / denom
	}
	return acov, nil
}

// VarianceInflationFactor regresses every feature on the remaining features plus an
// intercept and reports 1/(1-R^2). Collinear features blow up towards +Inf.
func VarianceInflationFactor(features map[string][]float64) (map[string]float64, error) {
	if len(features) < 2 {
		return nil, ErrMinimumFeatures
	}
	n := len(features)
	var m int
	for _, feature := range features {
		if len(feature) < 2 {
			return nil, ErrFeatureLen
		}
		if m == 0 {
			m = len(feature)
			continue
		}
		if m != len(feature) {
			return nil, ErrFeatureLenMismatch
		}
	}

	vif := make(map[string]float64)
	x := mat.NewDense(m, n, nil)

	ones := make([]float64, m)
	floats.AddConst(1.0, ones)
	x.SetCol(0, ones)

	predicted := make([]float64, m)
	for label, labelFeature := range features {
		c := 1
		for otherLabel, otherLabelFeature := range features {
			if otherLabel == label {
				continue
			}
			x.SetCol(c, otherLabelFeature)
			c++
		}
		sol, err := linalg.LeastSquares(x, labelFeature, false, 0)
		if err != nil {
			return nil, fmt.Errorf("unable to regress feature %s, %w", label, err)
		}

		var predictedVec mat.VecDense
		predictedVec.MulVec(x, mat.NewVecDense(n, sol.Params))
		mat.Col(predicted, 0, &predictedVec)

		r2 := stat.RSquaredFrom(predicted, labelFeature, nil)
		vif[label] = 1.0 / (1.0 - r2)
	}
	return vif, nil
}

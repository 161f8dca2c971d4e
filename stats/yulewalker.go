package stats

import (
	"errors"
	"fmt"
	"math"

	"github.com/aouyang1/go-regression/floatsunrolled"
	"github.com/aouyang1/go-regression/linalg"
	mat_ "github.com/aouyang1/go-regression/mat"
	"gonum.org/v1/gonum/mat"
)

const (
	YuleWalkerMLE      = "mle"
	YuleWalkerUnbiased = "unbiased"
)

var (
	ErrNegativeOrder           = errors.New("negative autoregressive order")
	ErrInsufficientSamples     = errors.New("insufficient samples for autoregressive order")
	ErrUnknownYuleWalkerMethod = errors.New("unknown yule-walker method")
)

// YuleWalkerOptions configures the autocovariance estimator behind YuleWalker.
type YuleWalkerOptions struct {
	// Method is either "mle", dividing every lag by n, or "unbiased", dividing lag k by n-k.
	// The mle estimator always produces a stationary AR process.
	Method string `json:"method"`

	// Demean subtracts the sample mean before estimating autocovariances.
	Demean bool `json:"demean"`
}

// NewDefaultYuleWalkerOptions returns the mle estimator on demeaned data
func NewDefaultYuleWalkerOptions() *YuleWalkerOptions {
	return &YuleWalkerOptions{
		Method: YuleWalkerMLE,
		Demean: true,
	}
}

// Validate runs basic validation on Yule-Walker options
func (y *YuleWalkerOptions) Validate() (*YuleWalkerOptions, error) {
	if y == nil {
		y = NewDefaultYuleWalkerOptions()
	}

	switch y.Method {
	case YuleWalkerMLE, YuleWalkerUnbiased:
	default:
		return nil, fmt.Errorf("%q, %w", y.Method, ErrUnknownYuleWalkerMethod)
	}
	return y, nil
}

// YuleWalker estimates AR(order) coefficients of x by solving the Toeplitz system of
// sample autocovariances. It also returns the estimated innovation standard deviation.
func YuleWalker(x []float64, order int, opt *YuleWalkerOptions) ([]float64, float64, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, 0, err
	}
	if order < 0 {
		return nil, 0, ErrNegativeOrder
	}
	if len(x) <= order {
		return nil, 0, fmt.Errorf("got %d samples for order %d, %w", len(x), order, ErrInsufficientSamples)
	}

	acov, err := Autocovariance(x, order, opt.Method == YuleWalkerUnbiased, opt.Demean)
	if err != nil {
		return nil, 0, err
	}

	rho := make([]float64, order)
	if order == 0 || acov[0] == 0 {
		return rho, math.Sqrt(acov[0]), nil
	}

	chol, err := linalg.Cholesky(mat_.Toeplitz(acov[:order]))
	if err != nil {
		return nil, 0, fmt.Errorf("unable to factorize autocovariance matrix, %w", err)
	}

	rhoVec := mat.NewVecDense(order, rho)
	if err := chol.SolveVecTo(rhoVec, mat.NewVecDense(order, acov[1:])); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, 0, fmt.Errorf("unable to solve yule-walker equations, %w", err)
		}
	}

	rho = rhoVec.RawVector().Data

	sigma2 := acov[0] - floatsunrolled.Dot(acov[1:], rho)
	return rho, math.Sqrt(math.Max(sigma2, 0)), nil
}

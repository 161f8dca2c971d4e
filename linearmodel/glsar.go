package linearmodel

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/aouyang1/go-regression/design"
	"github.com/aouyang1/go-regression/linalg"
	"github.com/aouyang1/go-regression/stats"
	"github.com/aouyang1/go-regression/whiten"
)

const (
	DefaultGLSAROrder    = 1
	DefaultMaxIterations = 50
	DefaultTolerance     = 1e-6
)

var ErrNotConverged = errors.New("autoregressive coefficients did not converge")

// ConvergenceWarning is attached to a GLSAR result that used up its iterations or could
// not continue refining rho. Cause is set in the latter case.
type ConvergenceWarning struct {
	Iterations int
	MaxDelta   float64
	Cause      error
}

func (c *ConvergenceWarning) Error() string {
	msg := fmt.Sprintf("stopped after %d iterations with rho change %g, %s", c.Iterations, c.MaxDelta, ErrNotConverged.Error())
	if c.Cause != nil {
		msg += ", " + c.Cause.Error()
	}
	return msg
}

func (c *ConvergenceWarning) Is(target error) bool {
	return target == ErrNotConverged
}

func (c *ConvergenceWarning) Unwrap() error { return c.Cause }

// State of the GLSAR refinement loop.
type State int

const (
	StateInitializing State = iota
	StateFitting
	StateEstimatingAR
	StateConverged
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateFitting:
		return "fitting"
	case StateEstimatingAR:
		return "estimating_ar"
	case StateConverged:
		return "converged"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// GLSAROptions represents input options to run feasible GLS with AR(p) errors
type GLSAROptions struct {
	// Order is the number of autoregressive lags p. 0 reduces to OLS.
	Order int `json:"order"`

	// MaxIterations caps the number of times rho is re-estimated and the model refit.
	// 0 fits once with rho = 0.
	MaxIterations int `json:"max_iterations"`

	// Tolerance is the largest change of any rho coefficient between passes that counts
	// as converged.
	Tolerance float64 `json:"tolerance"`

	YuleWalker *stats.YuleWalkerOptions `json:"yule_walker"`
	Fit        *Options                 `json:"fit"`
}

// NewDefaultGLSAROptions returns an AR(1) configuration
func NewDefaultGLSAROptions() *GLSAROptions {
	return &GLSAROptions{
		Order:         DefaultGLSAROrder,
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
		YuleWalker:    stats.NewDefaultYuleWalkerOptions(),
		Fit:           NewDefaultOptions(),
	}
}

// Validate runs basic validation on GLSAR options
func (g *GLSAROptions) Validate() (*GLSAROptions, error) {
	if g == nil {
		g = NewDefaultGLSAROptions()
	}

	if g.Order < 0 {
		return nil, stats.ErrNegativeOrder
	}
	if g.MaxIterations < 0 {
		return nil, ErrNegativeIterations
	}
	if g.Tolerance < 0 || math.IsNaN(g.Tolerance) {
		return nil, ErrNegativeTolerance
	}

	yw, err := g.YuleWalker.Validate()
	if err != nil {
		return nil, err
	}
	fit, err := g.Fit.Validate()
	if err != nil {
		return nil, err
	}

	out := *g
	out.YuleWalker = yw
	out.Fit = fit
	return &out, nil
}

// GLSAR iterates GLS fits with AR(p) errors, re-estimating rho from the residuals of
// each pass with Yule-Walker.
type GLSAR struct {
	design *design.Matrix
	opt    *GLSAROptions
}

// GLSARResults is the terminal state of a GLSAR fit.
type GLSARResults struct {
	*Results

	// Rho is the coefficient vector the final fit was made with.
	Rho []float64

	// Iterations counts the refits after the initial rho = 0 fit.
	Iterations int

	// RhoHistory holds every rho a fit was made with, starting with zeros.
	RhoHistory [][]float64

	State State

	warnings []error
}

// Warnings includes the warnings of the final fit along with a ConvergenceWarning when
// the loop was exhausted.
func (g *GLSARResults) Warnings() []error {
	return append(g.Results.Warnings(), g.warnings...)
}

func NewGLSAR(d *design.Matrix, opt *GLSAROptions) (*GLSAR, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("no design matrix, %w", linalg.ErrDimensionMismatch)
	}
	return &GLSAR{design: d, opt: opt}, nil
}

// FitWithRho runs a single GLS pass with fixed AR coefficients.
func (g *GLSAR) FitWithRho(rho []float64) (*Results, error) {
	if len(rho) != g.opt.Order {
		return nil, fmt.Errorf("got %d coefficients for order %d, %w", len(rho), g.opt.Order, linalg.ErrDimensionMismatch)
	}
	t, err := whiten.NewAR(rho)
	if err != nil {
		return nil, err
	}
	m, err := New(g.design, t, g.opt.Fit)
	if err != nil {
		return nil, err
	}
	return m.Fit()
}

// Fit runs the refinement loop until rho converges or the iterations run out. Either
// way the fit made with the final rho is returned. Only a failure of the initial fit is
// an error; when rho cannot be re-estimated or a refit is rejected, the last successful
// fit is returned as exhausted.
func (g *GLSAR) Fit() (*GLSARResults, error) {
	p := g.opt.Order
	rho := make([]float64, p)
	history := [][]float64{slices.Clone(rho)}

	var (
		res      *Results
		refits   int
		maxDelta float64
		cause    error
	)

	state := StateInitializing
	for {
		slog.Debug("glsar transition", "state", state.String(), "iteration", refits, "rho", rho)

		switch state {
		case StateInitializing:
			state = StateFitting

		case StateFitting:
			next, err := g.FitWithRho(rho)
			if err != nil {
				if res == nil {
					return nil, fmt.Errorf("glsar fit at iteration %d, %w", refits, err)
				}
				// fall back to the rho of the last successful fit
				cause = fmt.Errorf("glsar refit at iteration %d, %w", refits, err)
				history = history[:len(history)-1]
				rho = slices.Clone(history[len(history)-1])
				refits--
				state = StateExhausted
				continue
			}
			res = next
			if p == 0 || g.opt.MaxIterations == 0 {
				state = StateConverged
				continue
			}
			state = StateEstimatingAR

		case StateEstimatingAR:
			rhoNew, _, err := stats.YuleWalker(res.resid, p, g.opt.YuleWalker)
			if err != nil {
				cause = fmt.Errorf("glsar rho estimate at iteration %d, %w", refits, err)
				state = StateExhausted
				continue
			}
			maxDelta = 0
			for i := range rho {
				maxDelta = math.Max(maxDelta, math.Abs(rhoNew[i]-rho[i]))
			}

			switch {
			case maxDelta < g.opt.Tolerance:
				state = StateConverged
			case refits == g.opt.MaxIterations:
				state = StateExhausted
			default:
				rho = rhoNew
				refits++
				history = append(history, slices.Clone(rho))
				state = StateFitting
			}

		case StateConverged, StateExhausted:
			out := &GLSARResults{
				Results:    res,
				Rho:        slices.Clone(rho),
				Iterations: refits,
				RhoHistory: history,
				State:      state,
			}
			if state == StateExhausted {
				warning := &ConvergenceWarning{Iterations: refits, MaxDelta: maxDelta, Cause: cause}
				slog.Warn("glsar did not converge", "iterations", refits, "max_delta", maxDelta, "tolerance", g.opt.Tolerance, "cause", cause)
				out.warnings = append(out.warnings, warning)
			}
			return out, nil
		}
	}
}

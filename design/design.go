// Package design holds the validated response vector and regressor matrix of a
// regression problem.
package design

import (
	"errors"
	"fmt"
	"math"

	"github.com/aouyang1/go-regression/linalg"
	mat_ "github.com/aouyang1/go-regression/mat"
	"github.com/aouyang1/go-regression/stats"
	"github.com/aouyang1/go-regression/whiten"
	"gonum.org/v1/gonum/mat"
)

const ConstName = "const"

var (
	ErrRankDeficient = errors.New("design matrix is rank deficient")
	ErrNonFinite     = mat_.ErrNonFinite
)

// RankDeficiencyError reports a design whose numerical rank is below its column count.
// Hints carries the variance inflation factor of each non-constant column when it could
// be computed.
type RankDeficiencyError struct {
	Rank    int
	Columns int
	Hints   map[string]float64
}

func (r *RankDeficiencyError) Error() string {
	return fmt.Sprintf("rank %d with %d columns, %s", r.Rank, r.Columns, ErrRankDeficient.Error())
}

func (r *RankDeficiencyError) Is(target error) bool {
	return target == ErrRankDeficient
}

// Options configures how a design matrix is assembled.
type Options struct {
	// AddConstant prepends a column of ones named const unless a constant column is
	// already present.
	AddConstant bool `json:"add_constant"`

	// Names labels the columns of x. Defaults to x1..xk.
	Names []string `json:"names"`
}

// NewDefaultOptions returns options that add an intercept column
func NewDefaultOptions() *Options {
	return &Options{
		AddConstant: true,
	}
}

// Validate runs basic validation on design options
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		o = NewDefaultOptions()
	}
	return o, nil
}

// Matrix is an immutable observation set. Methods returning slices or matrices hand out
// copies.
type Matrix struct {
	y     []float64
	x     *mat.Dense
	names []string

	constCol int
	rank     int
	sv       []float64
	rankErr  *RankDeficiencyError
}

// NewFromRows builds a design from row major regressors.
func NewFromRows(y []float64, rows [][]float64, opt *Options) (*Matrix, error) {
	x, err := mat_.NewDenseFromArray(rows)
	if err != nil {
		return nil, fmt.Errorf("%w, %w", err, linalg.ErrDimensionMismatch)
	}
	return New(y, x, opt)
}

// New validates y and x and computes the rank of the regressors once.
func New(y []float64, x mat.Matrix, opt *Options) (*Matrix, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	if x == nil {
		return nil, fmt.Errorf("no regressors, %w", linalg.ErrDimensionMismatch)
	}

	m, n := x.Dims()
	if len(y) == 0 || m == 0 || n == 0 {
		return nil, fmt.Errorf("got %d observations and %dx%d regressors, %w", len(y), m, n, linalg.ErrDimensionMismatch)
	}
	if len(y) != m {
		return nil, fmt.Errorf("response has %d rows and regressors have %d rows, %w", len(y), m, linalg.ErrDimensionMismatch)
	}
	if opt.Names != nil && len(opt.Names) != n {
		return nil, fmt.Errorf("got %d names for %d columns, %w", len(opt.Names), n, linalg.ErrDimensionMismatch)
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("response at row %d, %w", i, ErrNonFinite)
		}
	}
	if err := mat_.CheckFinite(x); err != nil {
		return nil, fmt.Errorf("regressors %w", err)
	}

	names := make([]string, n)
	if opt.Names != nil {
		copy(names, opt.Names)
	} else {
		for j := range names {
			names[j] = fmt.Sprintf("x%d", j+1)
		}
	}

	d := &Matrix{
		y:     append([]float64(nil), y...),
		x:     mat.DenseCopyOf(x),
		names: names,
	}
	d.constCol = constantColumn(d.x)
	if opt.AddConstant && d.constCol < 0 {
		d.x = mat_.AddConstant(d.x)
		d.names = append([]string{ConstName}, d.names...)
		d.constCol = 0
	}

	d.rank, d.sv, err = linalg.Rank(d.x, 0)
	if err != nil {
		return nil, err
	}
	_, cols := d.x.Dims()
	if d.rank < cols {
		d.rankErr = &RankDeficiencyError{
			Rank:    d.rank,
			Columns: cols,
			Hints:   d.collinearityHints(),
		}
	}
	return d, nil
}

func constantColumn(x *mat.Dense) int {
	m, n := x.Dims()
	for j := 0; j < n; j++ {
		v := x.At(0, j)
		if v == 0 {
			continue
		}
		constant := true
		for i := 1; i < m; i++ {
			if x.At(i, j) != v {
				constant = false
				break
			}
		}
		if constant {
			return j
		}
	}
	return -1
}

func (d *Matrix) collinearityHints() map[string]float64 {
	m, n := d.x.Dims()
	features := make(map[string][]float64, n)
	for j := 0; j < n; j++ {
		if j == d.constCol {
			continue
		}
		features[d.names[j]] = mat.Col(make([]float64, m), j, d.x)
	}
	vif, err := stats.VarianceInflationFactor(features)
	if err != nil {
		return nil
	}
	return vif
}

// Dims returns the number of observations and columns, including an added constant.
func (d *Matrix) Dims() (int, int) {
	return d.x.Dims()
}

func (d *Matrix) Endog() []float64 {
	return append([]float64(nil), d.y...)
}

func (d *Matrix) Exog() *mat.Dense {
	return mat.DenseCopyOf(d.x)
}

func (d *Matrix) Names() []string {
	return append([]string(nil), d.names...)
}

// Rank is the numerical rank of the regressors using the default singular value
// tolerance.
func (d *Matrix) Rank() int {
	return d.rank
}

func (d *Matrix) SingularValues() []float64 {
	return append([]float64(nil), d.sv...)
}

// RankError returns nil for a full column rank design.
func (d *Matrix) RankError() *RankDeficiencyError {
	return d.rankErr
}

func (d *Matrix) HasConstant() bool {
	return d.constCol >= 0
}

// ConstantColumn is the index of the first constant non-zero column or -1.
func (d *Matrix) ConstantColumn() int {
	return d.constCol
}

// Whiten applies t to the response and the regressors without touching the design.
func (d *Matrix) Whiten(t whiten.Transform) ([]float64, *mat.Dense, error) {
	wy, err := whiten.WhitenVec(t, d.y)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to whiten response, %w", err)
	}
	wx, err := t.Whiten(d.x)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to whiten regressors, %w", err)
	}
	return wy, wx, nil
}

// Clone returns an independent copy of the design.
func (d *Matrix) Clone() *Matrix {
	c := &Matrix{
		y:        d.Endog(),
		x:        d.Exog(),
		names:    d.Names(),
		constCol: d.constCol,
		rank:     d.rank,
		sv:       d.SingularValues(),
	}
	if d.rankErr != nil {
		hints := make(map[string]float64, len(d.rankErr.Hints))
		for k, v := range d.rankErr.Hints {
			hints[k] = v
		}
		c.rankErr = &RankDeficiencyError{Rank: d.rankErr.Rank, Columns: d.rankErr.Columns, Hints: hints}
	}
	return c
}

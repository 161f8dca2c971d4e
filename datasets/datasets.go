// Package datasets parses regression reference datasets laid out like the NIST StRD
// linear regression files and keeps a registry of the bundled ones.
package datasets

import (
	"bufio"
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/aouyang1/go-regression/design"
)

var (
	ErrNoDataHeader   = errors.New("no data header found")
	ErrMalformedRow   = errors.New("malformed data row")
	ErrUnknownDataset = errors.New("unknown dataset")
	ErrDatasetExists  = errors.New("dataset already registered")
)

var (
	identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	paramLabel = regexp.MustCompile(`^B[0-9]+$`)
)

//go:embed data/Longley.dat
var longleyDat []byte

// Certified holds the published reference statistics of a dataset.
type Certified struct {
	Params  []float64 `json:"params"`
	StdErrs []float64 `json:"std_errs"`

	ResidualSD float64 `json:"residual_sd"`
	RSquared   float64 `json:"rsquared"`

	RegressionDF float64 `json:"regression_df"`
	RegressionSS float64 `json:"regression_ss"`
	RegressionMS float64 `json:"regression_ms"`
	FValue       float64 `json:"fvalue"`

	ResidualDF float64 `json:"residual_df"`
	ResidualSS float64 `json:"residual_ss"`
	ResidualMS float64 `json:"residual_ms"`
}

// Dataset is a response column followed by its regressors.
type Dataset struct {
	Name string `json:"name"`

	// Columns names the response first and the regressors after it.
	Columns []string `json:"columns"`

	Endog []float64   `json:"endog"`
	Exog  [][]float64 `json:"exog"`

	// Certified is nil when the file carries no reference statistics.
	Certified *Certified `json:"certified,omitempty"`
}

// Design builds a design matrix named after the regressor columns.
func (d *Dataset) Design(opt *design.Options) (*design.Matrix, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	named := *opt
	if named.Names == nil {
		named.Names = d.Columns[1:]
	}
	return design.NewFromRows(d.Endog, d.Exog, &named)
}

func parseFloats(fields []string) ([]float64, bool) {
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

func isDataHeader(fields []string) bool {
	if len(fields) < 2 || fields[0] != "Data:" {
		return false
	}
	for _, f := range fields[1:] {
		if !identifier.MatchString(f) {
			return false
		}
	}
	return true
}

// parseCertified picks up reference values from a header line. Lines it does not
// recognize are ignored.
func parseCertified(c *Certified, line string, fields []string) {
	trimmed := strings.TrimSpace(line)
	switch {
	case len(fields) >= 3 && paramLabel.MatchString(fields[0]):
		vals, ok := parseFloats(fields[1:3])
		if ok {
			c.Params = append(c.Params, vals[0])
			c.StdErrs = append(c.StdErrs, vals[1])
		}
	case strings.HasPrefix(trimmed, "Standard Deviation") || strings.HasPrefix(trimmed, "Residual Standard Deviation"):
		if vals, ok := parseFloats(fields[len(fields)-1:]); ok {
			c.ResidualSD = vals[0]
		}
	case strings.HasPrefix(trimmed, "R-Squared"):
		if vals, ok := parseFloats(fields[len(fields)-1:]); ok {
			c.RSquared = vals[0]
		}
	case fields[0] == "Regression" && len(fields) == 5:
		if vals, ok := parseFloats(fields[1:]); ok {
			c.RegressionDF, c.RegressionSS, c.RegressionMS, c.FValue = vals[0], vals[1], vals[2], vals[3]
		}
	case fields[0] == "Residual" && len(fields) == 4:
		if vals, ok := parseFloats(fields[1:]); ok {
			c.ResidualDF, c.ResidualSS, c.ResidualMS = vals[0], vals[1], vals[2]
		}
	}
}

// Parse reads a NIST StRD style file: free text, optional certified values, then a
// "Data:" line naming the columns followed by whitespace delimited rows.
func Parse(name string, r io.Reader) (*Dataset, error) {
	ds := &Dataset{Name: name}
	cert := new(Certified)

	scanner := bufio.NewScanner(r)
	var lineNum int
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if ds.Columns == nil {
			if isDataHeader(fields) {
				ds.Columns = fields[1:]
				continue
			}
			parseCertified(cert, line, fields)
			continue
		}

		if len(fields) != len(ds.Columns) {
			return nil, fmt.Errorf("line %d has %d values for %d columns, %w", lineNum, len(fields), len(ds.Columns), ErrMalformedRow)
		}
		vals, ok := parseFloats(fields)
		if !ok {
			return nil, fmt.Errorf("line %d is not numeric, %w", lineNum, ErrMalformedRow)
		}
		ds.Endog = append(ds.Endog, vals[0])
		ds.Exog = append(ds.Exog, vals[1:])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to read dataset %s, %w", name, err)
	}
	if ds.Columns == nil {
		return nil, ErrNoDataHeader
	}
	if len(cert.Params) > 0 {
		ds.Certified = cert
	}
	return ds, nil
}

// Load parses the dataset file at path. The dataset is named after the file.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := path
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".dat")
	return Parse(strings.ToLower(name), f)
}

// Longley returns the bundled Longley (1967) employment data with NIST certified values.
func Longley() (*Dataset, error) {
	return Parse("longley", bytes.NewReader(longleyDat))
}

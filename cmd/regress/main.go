// Command regress fits a reference dataset and prints the fit statistics as JSON.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aouyang1/go-regression/datasets"
	"github.com/aouyang1/go-regression/linearmodel"

	"github.com/goccy/go-json"
)

var ErrUnknownModel = errors.New("unknown model")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type config struct {
	dataset string
	file    string
	model   string
	config  string
	indent  bool
	verbose bool

	glsar *linearmodel.GLSAROptions
}

func parseFlags(args []string, stderr io.Writer) (*config, error) {
	fs := flag.NewFlagSet("regress", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfg := &config{}
	fs.StringVar(&cfg.dataset, "dataset", "longley", "Name of a bundled dataset")
	fs.StringVar(&cfg.file, "file", "", "Path to a NIST StRD formatted dataset, overrides -dataset")
	fs.StringVar(&cfg.model, "model", "ols", "Model to fit, ols or glsar")
	fs.StringVar(&cfg.config, "config", "", "Optional JSON file with GLSAR options")
	fs.BoolVar(&cfg.indent, "indent", false, "Indent the JSON output")
	fs.BoolVar(&cfg.verbose, "v", false, "Enable debug logging")

	defaults := linearmodel.NewDefaultGLSAROptions()
	order := fs.Int("order", defaults.Order, "Autoregressive order for glsar")
	maxIter := fs.Int("maxiter", defaults.MaxIterations, "Maximum rho refits for glsar")
	tol := fs.Float64("tol", defaults.Tolerance, "Convergence tolerance on rho for glsar")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.glsar = defaults
	if cfg.config != "" {
		data, err := os.ReadFile(cfg.config)
		if err != nil {
			return nil, fmt.Errorf("unable to read config, %w", err)
		}
		if err := json.Unmarshal(data, cfg.glsar); err != nil {
			return nil, fmt.Errorf("unable to parse config, %w", err)
		}
	}

	// explicit flags win over the config file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "order":
			cfg.glsar.Order = *order
		case "maxiter":
			cfg.glsar.MaxIterations = *maxIter
		case "tol":
			cfg.glsar.Tolerance = *tol
		}
	})
	return cfg, nil
}

func loadDataset(cfg *config) (*datasets.Dataset, error) {
	if cfg.file != "" {
		return datasets.Load(cfg.file)
	}
	return datasets.NewDefaultRegistry().Load(cfg.dataset)
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	ds, err := loadDataset(cfg)
	if err != nil {
		return err
	}
	d, err := ds.Design(nil)
	if err != nil {
		return err
	}

	var report any
	switch cfg.model {
	case "ols":
		m, err := linearmodel.NewOLS(d, cfg.glsar.Fit)
		if err != nil {
			return err
		}
		res, err := m.Fit()
		if err != nil {
			return err
		}
		report = res.Report()
	case "glsar":
		g, err := linearmodel.NewGLSAR(d, cfg.glsar)
		if err != nil {
			return err
		}
		res, err := g.Fit()
		if err != nil {
			return err
		}
		report = res.Report()
	default:
		return fmt.Errorf("%q, %w", cfg.model, ErrUnknownModel)
	}
	slog.Debug("fit complete", "dataset", ds.Name, "model", cfg.model)

	var out []byte
	if cfg.indent {
		out, err = json.MarshalIndent(report, "", "  ")
	} else {
		out, err = json.Marshal(report)
	}
	if err != nil {
		return fmt.Errorf("unable to encode report, %w", err)
	}
	_, err = fmt.Fprintln(stdout, string(out))
	return err
}

// Package main provides the lodimpute command: it loads a geochemical CSV,
// detects below-detection ("<value") cells, and runs one or more imputation
// methods, writing the imputed tables and diagnostics into a session
// directory for comparison.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/eutectik/lodimpute/internal/impute"
	"github.com/eutectik/lodimpute/internal/ingest"
	"github.com/eutectik/lodimpute/internal/monitoring"
	"github.com/eutectik/lodimpute/internal/session"
	"github.com/eutectik/lodimpute/internal/table"
	"github.com/eutectik/lodimpute/internal/version"
)

// Config holds the parsed command line.
type Config struct {
	Input      string
	Methods    []string
	OutputDir  string
	Session    string
	ParamsFile string
	Quiet      bool

	Simple impute.SimpleParams
	Beta   impute.BetaParams
	LrEM   impute.LrEMParams
	IDW    impute.IDWParams
}

// fileParams is the optional JSON parameter file. Sections omitted from the
// file keep their defaults, so partial files are safe.
type fileParams struct {
	Simple *impute.SimpleParams `json:"simple,omitempty"`
	LrEM   *impute.LrEMParams   `json:"lrem,omitempty"`
	IDW    *impute.IDWParams    `json:"idw,omitempty"`
}

func parseFlags() (*Config, error) {
	cfg := &Config{
		Simple: impute.DefaultSimpleParams(),
		Beta:   impute.DefaultBetaParams(),
		LrEM:   impute.DefaultLrEMParams(),
		IDW:    impute.DefaultIDWParams(),
	}

	var methods string
	flag.StringVar(&cfg.Input, "input", "", "input CSV file (required)")
	flag.StringVar(&methods, "method", "simple", "comma-separated methods: simple, beta, lrem, idw")
	flag.StringVar(&cfg.OutputDir, "out", "output", "base output directory")
	flag.StringVar(&cfg.Session, "session", "", "session name (default: timestamp)")
	flag.StringVar(&cfg.ParamsFile, "params", "", "JSON parameter file (partial sections allowed)")
	flag.BoolVar(&cfg.Quiet, "quiet", false, "suppress progress logging")
	showVersion := flag.Bool("version", false, "print version and exit")

	basis := flag.String("factor-basis", string(cfg.Simple.Basis), "simple: LOD divisor, sqrt2 or div2")
	seed := flag.Int64("seed", cfg.Simple.Seed, "simple/lrem: random seed")
	tolerance := flag.Float64("tolerance", cfg.LrEM.Tolerance, "lrem: convergence threshold")
	maxIter := flag.Int("max-iter", cfg.LrEM.MaxIter, "lrem: iteration cap")
	frac := flag.Float64("frac", cfg.LrEM.Frac, "lrem: initialization fraction of LOD")
	initMethod := flag.String("init", string(cfg.LrEM.Init), "lrem: multiplicative or complete_observations")
	power := flag.Float64("power", cfg.IDW.Power, "idw: distance decay exponent")
	maxDistance := flag.Float64("max-distance", cfg.IDW.MaxDistance, "idw: neighbor search radius (0 = unbounded)")
	minNeighbors := flag.Int("min-neighbors", cfg.IDW.MinNeighbors, "idw: minimum qualifying neighbors")
	methodC := flag.String("method-c", string(cfg.IDW.Cap), "idw: LOD capping rule, div2 or sqrt2")
	idwFallback := flag.String("idw-fallback", string(cfg.IDW.Fallback), "idw: fallback policy, simple or beta")
	flag.Parse()

	if *showVersion {
		fmt.Printf("lodimpute %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		os.Exit(0)
	}
	if cfg.Input == "" {
		return nil, fmt.Errorf("-input is required")
	}
	for _, m := range strings.Split(methods, ",") {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, err := impute.ParseMethod(m); err != nil {
			return nil, err
		}
		cfg.Methods = append(cfg.Methods, m)
	}
	if len(cfg.Methods) == 0 {
		return nil, fmt.Errorf("-method lists no methods")
	}

	if cfg.ParamsFile != "" {
		if err := cfg.loadParamsFile(); err != nil {
			return nil, err
		}
	}

	// Explicit flags override both defaults and the params file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "factor-basis":
			cfg.Simple.Basis = impute.FactorBasis(*basis)
		case "seed":
			cfg.Simple.Seed = *seed
			cfg.LrEM.Seed = *seed
		case "tolerance":
			cfg.LrEM.Tolerance = *tolerance
		case "max-iter":
			cfg.LrEM.MaxIter = *maxIter
		case "frac":
			cfg.LrEM.Frac = *frac
		case "init":
			cfg.LrEM.Init = impute.InitMethod(*initMethod)
		case "power":
			cfg.IDW.Power = *power
		case "max-distance":
			cfg.IDW.MaxDistance = *maxDistance
		case "min-neighbors":
			cfg.IDW.MinNeighbors = *minNeighbors
		case "method-c":
			cfg.IDW.Cap = impute.CapRule(*methodC)
		case "idw-fallback":
			cfg.IDW.Fallback = impute.IDWFallback(*idwFallback)
		}
	})
	return cfg, nil
}

// loadParamsFile merges a partial JSON parameter file over the defaults.
func (cfg *Config) loadParamsFile() error {
	data, err := os.ReadFile(cfg.ParamsFile)
	if err != nil {
		return fmt.Errorf("params file: %w", err)
	}
	var fp fileParams
	if err := json.Unmarshal(data, &fp); err != nil {
		return fmt.Errorf("params file %s: %w", cfg.ParamsFile, err)
	}
	if fp.Simple != nil {
		cfg.Simple = *fp.Simple
	}
	if fp.LrEM != nil {
		cfg.LrEM = *fp.LrEM
	}
	if fp.IDW != nil {
		cfg.IDW = *fp.IDW
	}
	return nil
}

// params returns the validated parameter variant for a method selector.
func (cfg *Config) params(method string) (impute.Params, error) {
	m, err := impute.ParseMethod(method)
	if err != nil {
		return nil, err
	}
	switch m {
	case impute.MethodSimple:
		return cfg.Simple, nil
	case impute.MethodBeta:
		return cfg.Beta, nil
	case impute.MethodLrEM:
		return cfg.LrEM, nil
	case impute.MethodIDW:
		return cfg.IDW, nil
	}
	return nil, fmt.Errorf("unhandled method %s", method)
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "lodimpute: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}
	if cfg.Quiet {
		monitoring.SetLogger(nil)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("lodimpute: %v", err)
	}
}

func run(cfg *Config) error {
	raw, err := ingest.LoadCSV(cfg.Input)
	if err != nil {
		return err
	}
	geo, coords, err := ingest.SplitCoordinates(raw)
	if err != nil {
		return err
	}
	tbl, reg, skipped, err := ingest.DetectLOD(geo)
	if err != nil {
		return err
	}

	monitoring.Logf("loaded %s: %d samples, %d variables", cfg.Input, tbl.NumRows(), tbl.NumCols())
	if len(skipped) > 0 {
		monitoring.Logf("excluded non-numeric columns: %s", strings.Join(skipped, ", "))
	}
	for _, name := range tbl.Columns() {
		if limits := reg.Limits(name); limits != nil {
			c, _ := tbl.ColumnIndex(name)
			monitoring.Logf("column %s: %d censored cells, detection limits %v", name, reg.CensoredCount(c), limits)
		}
	}
	if coords != nil {
		monitoring.Logf("coordinates: %d rows", coords.Len())
	}

	sess, err := session.New(cfg.OutputDir, cfg.Session)
	if err != nil {
		return err
	}
	monitoring.Logf("session %s (%s)", sess.Dir, sess.ID)

	for _, method := range cfg.Methods {
		if err := runMethod(cfg, sess, method, tbl, reg, coords); err != nil {
			return err
		}
	}
	return nil
}

func runMethod(cfg *Config, sess *session.Session, method string, tbl *table.Table, reg *table.Registry, coords *table.Coordinates) error {
	params, err := cfg.params(method)
	if err != nil {
		return err
	}
	monitoring.Logf("running %s imputation", method)

	result, diag, err := impute.Run(tbl, reg, coords, params)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	resultPath, err := sess.WriteResult(method, result)
	if err != nil {
		return err
	}
	monitoring.Logf("wrote %s", resultPath)

	logPath, err := sess.WriteDiagnostics(method, diag)
	if err != nil {
		return err
	}
	monitoring.Logf("wrote %s", logPath)
	if diag.Method == impute.MethodLrEM {
		monitoring.Logf("lrem: converged=%v iterations=%d relative change=%.3g",
			diag.Converged, diag.Iterations, diag.FinalChange)
	}
	return nil
}

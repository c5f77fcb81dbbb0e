package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"contractgen/internal/config"
	"contractgen/internal/logging"
	"contractgen/internal/metrics"
	"contractgen/internal/metrics/datadog"
	"contractgen/internal/metrics/prompush"
	"contractgen/internal/output"
	"contractgen/internal/schema"
)

var version = "dev"

// Hints printed under error messages.
const (
	hintFile        = "Check the file format and parameters"
	hintPath        = "Check the file path and try again"
	hintParams      = "Check the parameters"
	hintDatabase    = "Check your connection string and table name"
	hintSupabase    = "Check the project URL, API key, and table name"
	hintAPI         = "Check your OpenAPI schema file and endpoint path"
	hintContracts   = "Check the source and destination contract files"
	hintPermissions = "Check file permissions."
)

const (
	failedSource         = "Failed to generate source contract"
	failedDestination    = "Failed to generate destination contract"
	failedTransformation = "Failed to generate transformation contract"
)

// app holds what every command shares. A nil httpClient means the
// postgrest default.
type app struct {
	out        output.Printer
	log        *zap.Logger
	metrics    metrics.Backend
	httpClient *http.Client

	logLevel    string
	logFormat   string
	metricsKind string
	metricsJob  string

	cfg *config.Config
}

// cliError is printed as "✗ Error: msg", an optional hint and optional
// detail lines.
type cliError struct {
	msg     string
	hint    string
	details []string
}

func (e *cliError) Error() string { return e.msg }

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{
		out:     output.Printer{Stdout: stdout, Stderr: stderr},
		log:     zap.NewNop(),
		metrics: metrics.Nop{},
	}
	return a.execute(ctx, args)
}

func (a *app) execute(ctx context.Context, args []string) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(a.out.Stdout)
	root.SetErr(a.out.Stderr)

	err := root.ExecuteContext(ctx)
	a.shutdown()
	if err == nil {
		return 0
	}

	var ce *cliError
	if !errors.As(err, &ce) {
		ce = &cliError{msg: err.Error()}
	}
	a.out.Error(ce.msg, ce.hint)
	for _, d := range ce.details {
		a.out.Errorf("  - %s\n", d)
	}
	return 1
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "contract-gen",
		Short:         "Generate source, destination and transformation data contracts",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logging.New(a.logLevel, a.logFormat)
			if err != nil {
				return &cliError{msg: err.Error(), hint: "Use --log-level debug|info|warn|error and --log-format console|json"}
			}
			a.log = log
			a.metrics = a.newMetrics(cmd.Context())
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	pf.StringVar(&a.logFormat, "log-format", logging.FormatConsole, "Log format: console or json")
	pf.StringVar(&a.metricsKind, "metrics", "none", "Metrics backend: none, datadog or prometheus")
	pf.StringVar(&a.metricsJob, "metrics-job", "contract-gen", "Job name attached to metrics")

	root.AddCommand(
		newSourceCmd(a),
		newDestinationCmd(a),
		newTransformCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) newMetrics(ctx context.Context) metrics.Backend {
	switch strings.ToLower(strings.TrimSpace(a.metricsKind)) {
	case "", "none":
		return metrics.Nop{}
	case "datadog":
		tags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		b, err := datadog.New(ctx, datadog.Options{JobName: a.metricsJob, Tags: tags})
		if err != nil {
			a.log.Warn("metrics backend unavailable; using nop", zap.String("backend", "datadog"), logging.Error(err))
			return metrics.Nop{}
		}
		a.log.Debug("metrics enabled", zap.String("backend", "datadog"), zap.String("job", a.metricsJob), zap.Strings("tags", tags))
		return b
	case "prometheus", "pushgateway":
		url := os.Getenv("PUSHGATEWAY_URL")
		b, err := prompush.New(prompush.Options{URL: url, Job: a.metricsJob})
		if err != nil {
			a.log.Warn("metrics backend unavailable; using nop", zap.String("backend", "prometheus"), logging.Error(err))
			return metrics.Nop{}
		}
		a.log.Debug("metrics enabled", zap.String("backend", "prometheus"), zap.String("job", a.metricsJob), zap.String("url", url))
		return b
	default:
		a.log.Warn("unknown metrics backend; using nop", zap.String("backend", a.metricsKind))
		return metrics.Nop{}
	}
}

func (a *app) shutdown() {
	if err := a.metrics.Close(); err != nil {
		a.log.Warn("metrics flush failed", logging.Error(err))
	}
	_ = a.log.Sync()
}

// observe records one contract generation.
func (a *app) observe(source string, start time.Time, rows int, err error) {
	metrics.RecordAnalysis(a.metrics, metrics.Analysis{
		Source:   source,
		Rows:     rows,
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		a.log.Debug("contract generation failed", zap.String("source", source), logging.Error(err))
	}
}

// config loads the config file once per invocation.
func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

// resolveConnection expands "@name" arguments from the config file.
func (a *app) resolveConnection(value, hint string) (string, error) {
	if !strings.HasPrefix(value, "@") {
		return value, nil
	}
	cfg, err := a.config()
	if err != nil {
		return "", &cliError{msg: err.Error(), hint: hint}
	}
	dsn, err := cfg.ResolveConnection(value)
	if err != nil {
		return "", &cliError{msg: err.Error(), hint: "Add it under 'connections' in " + config.Path()}
	}
	return dsn, nil
}

// outputFlags are the --output, --format and --pretty flags of every
// contract command.
type outputFlags struct {
	path   string
	format string
	pretty bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.path, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVarP(&o.format, "format", "f", "", "Output format: json or yaml (default from config)")
	cmd.Flags().BoolVar(&o.pretty, "pretty", false, "Pretty-print JSON output (default from config)")
}

// emit writes a contract. Unset --format and --pretty fall back to the
// config defaults.
func (a *app) emit(cmd *cobra.Command, o outputFlags, v any) error {
	format, pretty := o.format, o.pretty
	if !cmd.Flags().Changed("format") || !cmd.Flags().Changed("pretty") {
		cfg, err := a.config()
		if err != nil {
			return &cliError{msg: err.Error()}
		}
		if !cmd.Flags().Changed("format") {
			format = cfg.Defaults.Output.Format
		}
		if !cmd.Flags().Changed("pretty") {
			pretty = cfg.Defaults.Output.Pretty
		}
	}

	path := o.path
	if path != "" {
		path = absPath(path)
	}
	err := a.out.Contract(v, path, format, pretty)
	var ufe *output.UnknownFormatError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ufe):
		return &cliError{msg: err.Error()}
	case errors.Is(err, fs.ErrPermission):
		return &cliError{msg: "Permission denied: " + path, hint: hintPermissions}
	default:
		return &cliError{msg: "Failed to write output: " + err.Error()}
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// requireFile reports a missing input file the same way for every
// command.
func requireFile(path string) error {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return &cliError{msg: "File not found: " + path, hint: hintPath}
	case errors.Is(err, fs.ErrPermission):
		return &cliError{msg: "Permission denied: " + path, hint: hintPermissions}
	default:
		return &cliError{msg: err.Error(), hint: hintPath}
	}
}

// generationError maps an analyzer error to the printed message. Errors
// about the input itself keep their text and get hint; anything else is
// reported under failed.
func generationError(err error, hint, failed string) error {
	var ce *cliError
	if errors.As(err, &ce) {
		return ce
	}
	if isInputError(err) {
		return &cliError{msg: err.Error(), hint: hint}
	}
	return &cliError{msg: failed + ": " + err.Error()}
}

func isInputError(err error) bool {
	return errors.Is(err, schema.ErrNotFound) ||
		errors.Is(err, schema.ErrMalformed) ||
		errors.Is(err, schema.ErrValidation)
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/ingest/pkg/formats"
	"github.com/ajitpratap0/ingest/pkg/logger"
	"github.com/ajitpratap0/ingest/pkg/metrics"
	"github.com/ajitpratap0/ingest/pkg/observability"
)

var version = "0.1.0"

// app carries what every command shares: the logger, the metrics registry
// and the tracing shutdown hook.
type app struct {
	out io.Writer

	logCfg      logger.Config
	envFile     string
	metricsFile string
	trace       bool

	log             *zap.Logger
	registry        *prometheus.Registry
	collector       *metrics.Collector
	shutdownTracing func(context.Context) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCmd(os.Stdout)
	err := root.ExecuteContext(ctx)
	if closeErr := a.close(context.Background()); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) (*cobra.Command, *app) {
	a := &app{out: out, logCfg: logger.DefaultConfig()}

	root := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest - flat-file ingestion engine",
		Long: `Ingest turns delimited text, JSON, Parquet, Excel workbooks and access-log
exports into schema-aligned artifacts ready for warehouse loading.

It is meant to be invoked by a scheduler, one file per run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.logCfg.Level, "log-level", a.logCfg.Level, "Log level (debug, info, warn, error)")
	pf.StringVar(&a.logCfg.Encoding, "log-encoding", a.logCfg.Encoding, "Log encoding (json or console)")
	pf.BoolVar(&a.logCfg.Development, "log-development", false, "Development logging with stack traces on errors")
	pf.StringVar(&a.envFile, "env-file", ".env", "Environment file loaded before running; missing files are ignored")
	pf.StringVar(&a.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file on exit")
	pf.BoolVar(&a.trace, "trace", false, "Export OpenTelemetry spans to stderr")

	root.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(a.out, "Ingest v%s\n", version)
				fmt.Fprintf(a.out, "Go version: %s\n", runtime.Version())
				fmt.Fprintf(a.out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			},
		},
		&cobra.Command{
			Use:   "formats",
			Short: "List supported input file types and output formats",
			Run: func(cmd *cobra.Command, _ []string) {
				a.printFormats()
			},
		},
		newTransformCmd(a),
		newRunCmd(a),
		newFetchCmd(a),
	)

	return root, a
}

func (a *app) setup() error {
	if err := godotenv.Load(a.envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load %s: %w", a.envFile, err)
	}

	log, err := logger.New(a.logCfg)
	if err != nil {
		return err
	}
	a.log = log

	a.registry = prometheus.NewRegistry()
	a.collector = metrics.NewCollector(a.registry)

	if a.trace {
		return a.enableTracing()
	}
	return nil
}

// useLogger replaces the logger, for commands whose run file carries its own
// log settings.
func (a *app) useLogger(cfg logger.Config) error {
	log, err := logger.New(cfg)
	if err != nil {
		return err
	}
	_ = a.log.Sync()
	a.log = log
	return nil
}

func (a *app) enableTracing() error {
	if a.shutdownTracing != nil {
		return nil
	}
	cfg := observability.DefaultTracingConfig()
	cfg.ServiceVersion = version
	tp, err := observability.NewTracerProvider(cfg)
	if err != nil {
		return err
	}
	a.shutdownTracing = observability.Install(tp)
	return nil
}

// close flushes tracing, writes the metrics textfile and syncs the logger. It
// runs whether or not the command failed, so failed runs are still counted.
func (a *app) close(ctx context.Context) error {
	var firstErr error
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			firstErr = err
		}
	}
	if a.metricsFile != "" && a.registry != nil {
		if err := metrics.WriteTextfile(a.metricsFile, a.registry); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return firstErr
}

func (a *app) printFormats() {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Input file types:")
	for _, ft := range formats.FileTypes() {
		fmt.Fprintf(w, "  %s\n", ft)
	}
	fmt.Fprintln(w, "\nOutput formats:")
	for _, of := range formats.OutputFormats() {
		fmt.Fprintf(w, "  %s\t%s\n", of, of.Extension())
	}
	_ = w.Flush()
}

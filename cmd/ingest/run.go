package main

import (
	"context"
	"fmt"
	"os"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/ingest/internal/pipeline"
	"github.com/ajitpratap0/ingest/pkg/compression"
	"github.com/ajitpratap0/ingest/pkg/config"
	"github.com/ajitpratap0/ingest/pkg/storage"
	"github.com/ajitpratap0/ingest/pkg/warehouse"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		configFile string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, transform, stage and load one file as described by a run file",
		Long: `Run executes a run file: the source object is fetched (and decompressed when
it is gzip, zstd, lz4 or snappy), transformed into an artifact, optionally
uploaded to a staging bucket and optionally loaded into a warehouse table.

A JSON summary of the run is printed on success.

Example:
  ingest run --config runs/badge-access.yaml --metrics-file /var/lib/node_exporter/ingest.prom`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadRunConfig(cmd, configFile)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			result, err := a.run(ctx, cfg)
			if err != nil {
				a.log.Error("run failed", zap.String("run", cfg.Name), zap.Error(err))
				return err
			}

			data, err := gojson.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to the run file (required)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Run timeout")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

// loadRunConfig loads and validates a run file, then applies its log and
// observability settings unless the matching flags were set.
func (a *app) loadRunConfig(cmd *cobra.Command, path string) (*config.RunConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if !changed("log-level") && !changed("log-encoding") && !changed("log-development") {
		if err := a.useLogger(cfg.Log); err != nil {
			return nil, err
		}
	}
	if !changed("metrics-file") && cfg.Observability.MetricsFile != "" {
		a.metricsFile = cfg.Observability.MetricsFile
	}
	if cfg.Observability.Trace {
		if err := a.enableTracing(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (a *app) run(ctx context.Context, cfg *config.RunConfig) (*pipeline.RunResult, error) {
	source, err := storage.New(ctx, cfg.Source.Store, a.log)
	if err != nil {
		return nil, err
	}

	opts := []pipeline.RunnerOption{pipeline.WithRunMetrics(a.collector)}
	if cfg.Staging.Enabled() {
		staging, err := storage.New(ctx, cfg.Staging.StoreConfig(cfg.Source.Store), a.log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithStaging(staging))
	}

	loader, err := warehouse.New(ctx, cfg.Warehouse, a.log)
	if err != nil {
		return nil, err
	}
	if loader != nil {
		defer func() {
			if err := loader.Close(); err != nil {
				a.log.Warn("failed to close warehouse loader", zap.Error(err))
			}
		}()
		opts = append(opts, pipeline.WithLoader(loader))
	}

	return pipeline.NewRunner(source, a.log, opts...).Run(ctx, cfg)
}

func newFetchCmd(a *app) *cobra.Command {
	var (
		configFile string
		bucket     string
		key        string
		out        string
		raw        bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the source object of a run file",
		Long: `Fetch downloads the source object named by a run file, decompresses it unless
--raw is set, and writes it to --out. Useful for reproducing a run locally
with the transform command.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if bucket != "" {
				cfg.Source.Bucket = bucket
			}
			if key != "" {
				cfg.Source.Key = key
			}
			if cfg.Source.Bucket == "" || cfg.Source.Key == "" {
				return fmt.Errorf("source bucket and key are required")
			}

			store, err := storage.New(cmd.Context(), cfg.Source.Store, a.log)
			if err != nil {
				return err
			}
			data, err := store.Fetch(cmd.Context(), cfg.Source.Bucket, cfg.Source.Key)
			if err != nil {
				return err
			}
			a.collector.AddBytesFetched(len(data))

			if !raw {
				var alg compression.Algorithm
				data, alg, err = compression.Decompress(data, cfg.Source.MaxSize)
				if err != nil {
					return fmt.Errorf("failed to decompress %s: %w", cfg.Source.Key, err)
				}
				a.log.Debug("object decompressed", zap.String("compression", string(alg)))
			}

			if err := os.WriteFile(out, data, 0o644); err != nil { //nolint:gosec
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Fprintln(a.out, out)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configFile, "config", "c", "", "Run file whose source section is used (required)")
	f.StringVar(&bucket, "bucket", "", "Override the source bucket")
	f.StringVar(&key, "key", "", "Override the source key")
	f.StringVarP(&out, "out", "o", "", "Output file (required)")
	f.BoolVar(&raw, "raw", false, "Write the object as stored, without decompressing")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

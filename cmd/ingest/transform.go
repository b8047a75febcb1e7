package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/ingest/internal/pipeline"
	"github.com/ajitpratap0/ingest/pkg/config"
	"github.com/ajitpratap0/ingest/pkg/formats/logblock"
	"github.com/ajitpratap0/ingest/pkg/schema"
)

func newTransformCmd(a *app) *cobra.Command {
	var (
		configFile string
		input      string
		columns    string
		skipSize   int
	)
	tc := config.Default().Transform

	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Transform a local file into a schema-aligned artifact",
		Long: `Transform decodes a local file, adds the filename, received_at and payload
columns, aligns the result with the target schema and writes the artifact to
--output-dir plus the output format's extension. The artifact path is printed
on success.

Settings come from flags, from the transform and schema sections of a run
file (--config), or both; flags win.`,
		Example: `  ingest transform --file visits.xlsx --file-type excel \
      --schema id!,name,sheet,filename,received_at,payload \
      --output-format parquet --output-dir out/visits`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings := tc
			var sch schema.Schema
			if configFile != "" {
				cfg, err := config.Load(configFile)
				if err != nil {
					return err
				}
				settings = overrideTransform(cmd, cfg.Transform, tc)
				sch = cfg.Schema
			}
			if cmd.Flags().Changed("skip-size") {
				settings.LogBlock.SkipSize = &skipSize
			}
			if cmd.Flags().Changed("schema") || configFile == "" {
				sch = parseSchema(columns)
			}
			if err := settings.Validate(); err != nil {
				return err
			}

			transformer := pipeline.NewTransformer(a.log,
				pipeline.WithDecodeOptions(settings.DecodeOptions()),
				pipeline.WithParquetConfig(settings.WriterConfig()),
				pipeline.WithMetrics(a.collector))

			path, err := transformer.Transform(cmd.Context(), pipeline.RunContext{
				FilePath:        input,
				FileType:        settings.FileType,
				Schema:          sch,
				OutputFormat:    settings.OutputFormat,
				OutputDirectory: settings.OutputDirectory,
				Filename:        settings.Filename,
				Validate:        settings.ValidateData,
			})
			if err != nil {
				a.log.Error("transform failed", zap.Error(err))
				return err
			}

			fmt.Fprintln(a.out, path)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&input, "file", "f", "", "Input file (required)")
	f.StringVar(&configFile, "config", "", "Run file supplying transform and schema settings")
	f.StringVar(&tc.FileType, "file-type", tc.FileType, "Input file type (txt, json, parquet, excel)")
	f.StringVar(&tc.OutputFormat, "output-format", tc.OutputFormat, "Output format (json, parquet, csv, excel)")
	f.StringVarP(&tc.OutputDirectory, "output-dir", "o", tc.OutputDirectory, "Artifact path without extension; the output format's extension is appended")
	f.StringVar(&tc.Filename, "filename", "", "Source name for the filename column (default: base name of --file)")
	f.StringVar(&tc.Delimiter, "delimiter", tc.Delimiter, "Field delimiter for delimited text")
	f.StringVar(&tc.TextLayout, "text-layout", tc.TextLayout, "Layout of txt input (delimited or logblock)")
	f.IntVar(&tc.LogBlock.BlockSize, "block-size", 0, "Lines kept per access-log block (0 selects the default)")
	f.IntVar(&skipSize, "skip-size", logblock.SkipSize, "Lines skipped after each access-log block")
	f.BoolVar(&tc.ValidateData, "validate", false, "Reject empty or null-containing decoded tables")
	f.StringVar(&columns, "schema", "", "Comma-separated target columns; suffix a name with ! to enforce NOT NULL")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// overrideTransform applies the flags the user set over the run file's
// transform section.
func overrideTransform(cmd *cobra.Command, base, flags config.TransformConfig) config.TransformConfig {
	changed := cmd.Flags().Changed
	if changed("file-type") {
		base.FileType = flags.FileType
	}
	if changed("output-format") {
		base.OutputFormat = flags.OutputFormat
	}
	if changed("output-dir") {
		base.OutputDirectory = flags.OutputDirectory
	}
	if changed("filename") {
		base.Filename = flags.Filename
	}
	if changed("delimiter") {
		base.Delimiter = flags.Delimiter
	}
	if changed("text-layout") {
		base.TextLayout = flags.TextLayout
	}
	if changed("block-size") {
		base.LogBlock.BlockSize = flags.LogBlock.BlockSize
	}
	if changed("validate") {
		base.ValidateData = flags.ValidateData
	}
	return base
}

// parseSchema reads "id!,name,value" as id NOT NULL followed by name and
// value. Blank entries are ignored.
func parseSchema(s string) schema.Schema {
	var cols []schema.Column
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		notNull := strings.HasSuffix(name, "!")
		cols = append(cols, schema.Column{
			Name:           strings.TrimSuffix(name, "!"),
			EnforceNotNull: notNull,
		})
	}
	return schema.New(cols...)
}

package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/ingest/pkg/errors"
)

// EnvPrefix prefixes environment overrides: transform.output_format is
// overridden by INGEST_TRANSFORM_OUTPUT_FORMAT.
const EnvPrefix = "INGEST"

// Load reads a YAML run file. ${VAR} references are substituted before
// parsing, then INGEST_* variables override individual keys. The result is
// not validated.
func Load(filePath string) (*RunConfig, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "config file not found").
				WithDetail("path", filePath)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", filePath)
	}
	return Parse(data)
}

// Parse is Load for in-memory YAML.
func Parse(data []byte) (*RunConfig, error) {
	v := newViper()
	content := substituteEnvVars(string(data))
	if err := v.ReadConfig(bytes.NewReader([]byte(content))); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML")
	}

	cfg := &RunConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode config")
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(filePath string, cfg *RunConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write config file").
			WithDetail("path", filePath)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults make every key known to viper, so env overrides apply even
	// when the file omits the key.
	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.encoding", d.Log.Encoding)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("source.store.provider", "")
	v.SetDefault("source.bucket", "")
	v.SetDefault("source.key", "")
	v.SetDefault("source.compression", d.Source.Compression)
	v.SetDefault("source.max_size", d.Source.MaxSize)
	v.SetDefault("transform.file_type", "")
	v.SetDefault("transform.delimiter", d.Transform.Delimiter)
	v.SetDefault("transform.text_layout", d.Transform.TextLayout)
	v.SetDefault("transform.output_format", d.Transform.OutputFormat)
	v.SetDefault("transform.output_directory", d.Transform.OutputDirectory)
	v.SetDefault("transform.filename", "")
	v.SetDefault("transform.validate", false)
	v.SetDefault("transform.parquet.compression", d.Transform.Parquet.Compression)
	v.SetDefault("transform.parquet.row_group_size", d.Transform.Parquet.RowGroupSize)
	v.SetDefault("staging.bucket", "")
	v.SetDefault("staging.key", "")
	v.SetDefault("staging.compression", "")
	v.SetDefault("warehouse.type", "")
	v.SetDefault("warehouse.dsn", "")
	v.SetDefault("observability.metrics_file", "")
	v.SetDefault("observability.trace", false)
	return v
}

// substituteEnvVars replaces ${VAR_NAME} with the variable's value, or with
// the text after ":-" in ${VAR_NAME:-default} when the variable is unset.
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		name := content[start+2 : end]
		value, fallback, hasFallback := strings.Cut(name, ":-")
		envValue, ok := os.LookupEnv(value)
		if !ok && hasFallback {
			envValue = fallback
		}

		b.WriteString(content[:start])
		b.WriteString(envValue)
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}

// Package config holds the settings shared by the awty commands.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

const (
	FormatBar  = "bar"
	FormatText = "text"
	FormatJSON = "json"
	FormatLog  = "log"

	OutputStderr = "stderr"
	OutputStdout = "stdout"
)

// Version is the awty version, set at build time with
// -ldflags "-X github.com/konveyor/awty/config.Version=...".
var Version = "devel"

// Config holds the settings for the awty commands. Values come from flags
// and, optionally, a YAML settings file. Flags given explicitly on the
// command line win over the file.
//
// Example usage with cobra:
//
//	cfg := config.Default()
//	cmd := &cobra.Command{
//	    Use: "awty",
//	    PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
//	        return cfg.Load(cmd)
//	    },
//	}
//	cfg.AddFlags(cmd)
type Config struct {
	// ConfigFile is the path to an optional YAML settings file.
	ConfigFile string `yaml:"-"`

	// ChunkSize is the minimum percent delta between two notifications.
	ChunkSize int `yaml:"chunkSize"`

	// ProgressOutput is where progress is rendered: stderr, stdout or a file path.
	ProgressOutput string `yaml:"progressOutput"`

	// ProgressFormat is one of bar, text, json or log.
	ProgressFormat string `yaml:"progressFormat"`

	// BufferSize is the per-reporter event buffer of the dispatcher.
	BufferSize int `yaml:"bufferSize"`

	Verbose int `yaml:"verbose"`

	EnableJaeger   bool   `yaml:"enableJaeger"`
	JaegerEndpoint string `yaml:"jaegerEndpoint"`

	// MetricsAddress enables the Prometheus endpoint when not empty.
	MetricsAddress string `yaml:"metricsAddress"`
}

// Default returns a Config with the default values of every flag.
func Default() *Config {
	return &Config{
		ChunkSize:      5,
		ProgressOutput: OutputStderr,
		ProgressFormat: FormatBar,
		BufferSize:     100,
		JaegerEndpoint: "http://localhost:14268/api/traces",
	}
}

// AddFlags adds the configuration flags to cmd as persistent flags so
// every subcommand shares them.
func (c *Config) AddFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&c.ConfigFile, "config", c.ConfigFile, "path to a YAML settings file")
	flags.IntVar(&c.ChunkSize, "chunk-size", c.ChunkSize, "minimum percent change between progress updates")
	flags.StringVar(&c.ProgressOutput, "progress-output", c.ProgressOutput, "where to write progress: stderr, stdout or a file path")
	flags.StringVar(&c.ProgressFormat, "progress-format", c.ProgressFormat, "progress format: bar, text, json or log")
	flags.IntVar(&c.BufferSize, "buffer-size", c.BufferSize, "number of progress events buffered per reporter")
	flags.IntVar(&c.Verbose, "verbose", c.Verbose, "level for logging output")
	flags.BoolVar(&c.EnableJaeger, "enable-jaeger", c.EnableJaeger, "enable tracer exports to jaeger endpoint")
	flags.StringVar(&c.JaegerEndpoint, "jaeger-endpoint", c.JaegerEndpoint, "jaeger endpoint to collect tracing data")
	flags.StringVar(&c.MetricsAddress, "metrics-address", c.MetricsAddress, "address to serve Prometheus metrics on, e.g. :9090")
}

// flagFields maps flag names to the field they set.
var flagFields = map[string]func(dst, src *Config){
	"chunk-size":      func(dst, src *Config) { dst.ChunkSize = src.ChunkSize },
	"progress-output": func(dst, src *Config) { dst.ProgressOutput = src.ProgressOutput },
	"progress-format": func(dst, src *Config) { dst.ProgressFormat = src.ProgressFormat },
	"buffer-size":     func(dst, src *Config) { dst.BufferSize = src.BufferSize },
	"verbose":         func(dst, src *Config) { dst.Verbose = src.Verbose },
	"enable-jaeger":   func(dst, src *Config) { dst.EnableJaeger = src.EnableJaeger },
	"jaeger-endpoint": func(dst, src *Config) { dst.JaegerEndpoint = src.JaegerEndpoint },
	"metrics-address": func(dst, src *Config) { dst.MetricsAddress = src.MetricsAddress },
}

// Load reads ConfigFile, if set, and then validates the result. Keys in
// the file override defaults but not flags that were set on cmd.
func (c *Config) Load(cmd *cobra.Command) error {
	if c.ConfigFile != "" {
		explicit := *c
		if err := c.readFile(c.ConfigFile); err != nil {
			return err
		}
		for name, restore := range flagFields {
			if cmd != nil && cmd.Flags().Changed(name) {
				restore(c, &explicit)
			}
		}
	}
	return c.Validate()
}

func (c *Config) readFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read settings file %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(content, c); err != nil {
		return fmt.Errorf("unable to parse settings file %s: %w", path, err)
	}
	return nil
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	if c.ChunkSize < 1 || c.ChunkSize > 100 {
		return fmt.Errorf("chunk size must be between 1 and 100, got %d", c.ChunkSize)
	}
	if c.BufferSize < 1 {
		return fmt.Errorf("buffer size must be greater than 0, got %d", c.BufferSize)
	}
	switch c.ProgressFormat {
	case FormatBar, FormatText, FormatJSON, FormatLog:
	default:
		return fmt.Errorf("unknown progress format %q, must be one of: bar, text, json, log", c.ProgressFormat)
	}
	if c.ProgressOutput == "" {
		return fmt.Errorf("progress output must not be empty")
	}
	if c.Verbose < 0 {
		return fmt.Errorf("verbose level must not be negative, got %d", c.Verbose)
	}
	return nil
}

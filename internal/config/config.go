// Package config loads secreview settings from defaults, an optional YAML
// file, SECREVIEW_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"secreview/internal/model"
)

// EnvPrefix namespaces environment overrides, e.g. SECREVIEW_SCAN_CONCURRENCY.
const EnvPrefix = "SECREVIEW"

// FileName is the config file looked up in the working directory.
const FileName = "secreview"

// Config is the root configuration.
type Config struct {
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
	Scan   ScanConfig   `mapstructure:"scan" yaml:"scan"`
	Tools  ToolsConfig  `mapstructure:"tools" yaml:"tools"`
}

// LoggerConfig configures the zap logger and its optional rotating file.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the terminal color per log level.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// ScanConfig controls one scan run.
type ScanConfig struct {
	// MaxDepth bounds the environment detector's directory walk.
	MaxDepth int `mapstructure:"max_depth" yaml:"max_depth"`
	// ToolTimeout is the per-tool deadline; zero disables it.
	ToolTimeout time.Duration `mapstructure:"tool_timeout" yaml:"tool_timeout"`
	// Concurrency is the number of tools run at once. 1 runs them in order.
	Concurrency   int    `mapstructure:"concurrency" yaml:"concurrency"`
	OutputDir     string `mapstructure:"output_dir" yaml:"output_dir"`
	ProjectName   string `mapstructure:"project_name" yaml:"project_name"`
	FailOn        string `mapstructure:"fail_on" yaml:"fail_on"`
	KeepArtifacts bool   `mapstructure:"keep_artifacts" yaml:"keep_artifacts"`
}

// ToolsConfig tunes tool selection.
type ToolsConfig struct {
	Disabled      []string `mapstructure:"disabled" yaml:"disabled"`
	SemgrepConfig string   `mapstructure:"semgrep_config" yaml:"semgrep_config"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "secreview")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Scan --
	v.SetDefault("scan.max_depth", 3)
	v.SetDefault("scan.tool_timeout", "10m")
	v.SetDefault("scan.concurrency", 1)
	v.SetDefault("scan.output_dir", "security-reports")
	v.SetDefault("scan.project_name", "")
	v.SetDefault("scan.fail_on", "")
	v.SetDefault("scan.keep_artifacts", false)

	// -- Tools --
	v.SetDefault("tools.disabled", []string{})
	v.SetDefault("tools.semgrep_config", "auto")
}

// NewDefaultConfig returns the configuration produced by the defaults alone.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewViper returns a viper instance with defaults and environment binding
// in place. When file is empty, ./secreview.yaml is used if present.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		// No SetConfigType: it would make viper accept an extensionless
		// "secreview" file, which is usually the built binary.
		v.SetConfigName(FileName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return v, nil
}

// NewConfigFromViper decodes and validates the settings held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	// Comma-separated env values arrive as a single element.
	cfg.Tools.Disabled = splitList(cfg.Tools.Disabled)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Scan.MaxDepth < 0 {
		return fmt.Errorf("scan.max_depth must not be negative")
	}
	if c.Scan.Concurrency <= 0 {
		return fmt.Errorf("scan.concurrency must be a positive integer")
	}
	if c.Scan.ToolTimeout < 0 {
		return fmt.Errorf("scan.tool_timeout must not be negative")
	}
	if c.Scan.FailOn != "" {
		if _, err := model.ParseSeverity(c.Scan.FailOn); err != nil {
			return fmt.Errorf("scan.fail_on: %w", err)
		}
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be \"console\" or \"json\", got %q", c.Logger.Format)
	}
	return nil
}

// FailOnSeverity returns the parsed fail-on threshold and whether it is set.
func (s ScanConfig) FailOnSeverity() (model.Severity, bool) {
	if s.FailOn == "" {
		return 0, false
	}
	sev, err := model.ParseSeverity(s.FailOn)
	if err != nil {
		return 0, false
	}
	return sev, true
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

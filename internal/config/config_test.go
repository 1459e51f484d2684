package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secreview/internal/model"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "secreview", cfg.Logger.ServiceName)
	assert.Equal(t, "green", cfg.Logger.Colors.Info)

	assert.Equal(t, 3, cfg.Scan.MaxDepth)
	assert.Equal(t, 10*time.Minute, cfg.Scan.ToolTimeout)
	assert.Equal(t, 1, cfg.Scan.Concurrency)
	assert.Equal(t, "security-reports", cfg.Scan.OutputDir)
	assert.False(t, cfg.Scan.KeepArtifacts)

	assert.Equal(t, "auto", cfg.Tools.SemgrepConfig)
	assert.Empty(t, cfg.Tools.Disabled)

	require.NoError(t, cfg.Validate())
}

func TestNewViper_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	content := `
scan:
  concurrency: 4
  tool_timeout: 90s
  fail_on: high
tools:
  disabled: [trivy, dotnet]
logger:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v, err := NewViper(path)
	require.NoError(t, err)
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Scan.Concurrency)
	assert.Equal(t, 90*time.Second, cfg.Scan.ToolTimeout)
	assert.Equal(t, []string{"trivy", "dotnet"}, cfg.Tools.Disabled)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, 3, cfg.Scan.MaxDepth, "unset keys keep their defaults")

	sev, ok := cfg.Scan.FailOnSeverity()
	assert.True(t, ok)
	assert.Equal(t, model.SeverityHigh, sev)
}

func TestNewViper_MissingExplicitFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestNewViper_NoFileInWorkingDir(t *testing.T) {
	t.Chdir(t.TempDir())

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Scan.Concurrency)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SECREVIEW_SCAN_CONCURRENCY", "3")
	t.Setenv("SECREVIEW_TOOLS_DISABLED", "semgrep, bandit")

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Scan.Concurrency)
	assert.Equal(t, []string{"semgrep", "bandit"}, cfg.Tools.Disabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero concurrency", func(c *Config) { c.Scan.Concurrency = 0 }, "scan.concurrency"},
		{"negative depth", func(c *Config) { c.Scan.MaxDepth = -1 }, "scan.max_depth"},
		{"negative timeout", func(c *Config) { c.Scan.ToolTimeout = -time.Second }, "scan.tool_timeout"},
		{"bad fail_on", func(c *Config) { c.Scan.FailOn = "severe" }, "scan.fail_on"},
		{"bad format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewConfigFromViper_Invalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("scan.concurrency", -2)

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestFailOnSeverity_Unset(t *testing.T) {
	_, ok := NewDefaultConfig().Scan.FailOnSeverity()
	assert.False(t, ok)
}

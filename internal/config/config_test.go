package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "*.tsv", cfg.Input.Pattern)
	assert.Equal(t, "auto", cfg.Input.Delimiter)
	assert.Equal(t, "protein_qvalues", cfg.Output.Table)
	assert.Nil(t, cfg.Filter.QValue)
	assert.False(t, cfg.Filter.Decoy)
	assert.Equal(t, 4, cfg.Augment.Concurrency)
	assert.False(t, cfg.Augment.KeepInputDecoys)
	assert.Equal(t, "keep", cfg.Adjust.UndefinedRatio)
	assert.Equal(t, 60, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.InDelta(t, 5.0, cfg.Fetch.RateLimit, 0.001)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
input:
  folder_path: ./datasets
  pattern: "*.csv"
output:
  file: merged.csv
filter:
  qvalue: 0.01
  decoy: true
augment:
  concurrency: 8
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./datasets", cfg.Input.FolderPath)
	assert.Equal(t, "*.csv", cfg.Input.Pattern)
	assert.Equal(t, "merged.csv", cfg.Output.File)
	require.NotNil(t, cfg.Filter.QValue)
	assert.InDelta(t, 0.01, *cfg.Filter.QValue, 1e-12)
	assert.True(t, cfg.Filter.Decoy)
	assert.Equal(t, 8, cfg.Augment.Concurrency)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, "auto", cfg.Input.Delimiter)
}

func TestLoadExplicitPath(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  file: out.tsv\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out.tsv", cfg.Output.File)
}

func TestLoadExplicitPathMissing(t *testing.T) {
	chdirTemp(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: debug\n"), 0o644))

	t.Setenv("MADDECOY_LOG_LEVEL", "warn")
	t.Setenv("MADDECOY_INPUT_FOLDER_PATH", "ftp://ftp.pride.ebi.ac.uk/pride/data/")
	t.Setenv("MADDECOY_FILTER_QVALUE", "0.05")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "ftp://ftp.pride.ebi.ac.uk/pride/data/", cfg.Input.FolderPath)
	require.NotNil(t, cfg.Filter.QValue)
	assert.InDelta(t, 0.05, *cfg.Filter.QValue, 1e-12)
}

func validConfig() *Config {
	return &Config{
		Input:   InputConfig{FolderPath: "data", Pattern: "*.tsv", Delimiter: "auto"},
		Output:  OutputConfig{File: "out.csv", Table: "protein_qvalues"},
		Augment: AugmentConfig{Concurrency: 4},
		Adjust:  AdjustConfig{UndefinedRatio: "keep"},
	}
}

func TestValidate(t *testing.T) {
	bad := 1.5
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing folder", mutate: func(c *Config) { c.Input.FolderPath = "" }, wantErr: "input.folder_path is required"},
		{name: "missing output", mutate: func(c *Config) { c.Output.File = "" }, wantErr: "output.file is required"},
		{name: "qvalue range", mutate: func(c *Config) { c.Filter.QValue = &bad }, wantErr: "filter.qvalue"},
		{name: "concurrency", mutate: func(c *Config) { c.Augment.Concurrency = 0 }, wantErr: "augment.concurrency"},
		{name: "delimiter", mutate: func(c *Config) { c.Input.Delimiter = "pipe" }, wantErr: "input.delimiter"},
		{name: "policy", mutate: func(c *Config) { c.Adjust.UndefinedRatio = "drop" }, wantErr: "adjust.undefined_ratio"},
		{name: "format", mutate: func(c *Config) { c.Output.Format = "parquet" }, wantErr: "output.format"},
		{name: "qvalue nan", mutate: func(c *Config) { nan := math.NaN(); c.Filter.QValue = &nan }, wantErr: "filter.qvalue"},
		{name: "table", mutate: func(c *Config) { c.Output.Table = "x; DROP TABLE y" }, wantErr: "output.table"},
		{name: "schema table", mutate: func(c *Config) { c.Output.Table = "results.protein_qvalues" }},
		{name: "three part table", mutate: func(c *Config) { c.Output.Table = "a.b.c" }, wantErr: "output.table"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

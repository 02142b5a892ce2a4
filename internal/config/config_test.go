package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RoGogDBD/leakcheck/internal/analyzer"
	models "github.com/RoGogDBD/leakcheck/internal/model"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvConfig, "")

	cfg, err := Load(nil, io.Discard)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, DefaultSampleCount, cfg.Samples)
	require.Equal(t, DefaultSampleInterval, cfg.Interval)
	require.Equal(t, analyzer.DefaultThresholds(), cfg.Thresholds())
	require.Equal(t, "runtime", cfg.MemorySource)
	require.Equal(t, "goroutines", cfg.ElementSource)
	require.Equal(t, "info", cfg.LogLevel)
	require.Empty(t, cfg.Address)
	require.False(t, cfg.PrintVersion)
}

func TestLoad_Priority(t *testing.T) {
	file := writeFile(t, "leakcheck.yaml", `
samples: 3
interval: 2s
mode: rate
leak_threshold: 100
memory_source: none
log_level: debug
`)

	tests := []struct {
		name         string
		args         []string
		env          map[string]string
		wantSamples  int
		wantInterval time.Duration
		wantLeak     int64
		wantMode     string
	}{
		{
			name:         "file only",
			args:         []string{"-c", file},
			wantSamples:  3,
			wantInterval: 2 * time.Second,
			wantLeak:     100,
			wantMode:     "rate",
		},
		{
			name:         "env over file",
			args:         []string{"-c", file},
			env:          map[string]string{EnvSampleCount: "9", EnvThresholdMode: "FIXED"},
			wantSamples:  9,
			wantInterval: 2 * time.Second,
			wantLeak:     100,
			wantMode:     "fixed",
		},
		{
			name:         "flags over env",
			args:         []string{"-c", file, "-n", "12", "-i", "250ms", "-leak-threshold", "2048"},
			env:          map[string]string{EnvSampleCount: "9", EnvSampleInterval: "7s"},
			wantSamples:  12,
			wantInterval: 250 * time.Millisecond,
			wantLeak:     2048,
			wantMode:     "rate",
		},
		{
			name:         "config path from env",
			env:          map[string]string{EnvConfig: file},
			wantSamples:  3,
			wantInterval: 2 * time.Second,
			wantLeak:     100,
			wantMode:     "rate",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfig, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load(tt.args, io.Discard)
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())
			require.Equal(t, tt.wantSamples, cfg.Samples)
			require.Equal(t, tt.wantInterval, cfg.Interval)
			require.Equal(t, tt.wantLeak, cfg.LeakThreshold)
			require.Equal(t, tt.wantMode, cfg.Mode)
			require.Equal(t, "none", cfg.MemorySource)
			require.Equal(t, file, cfg.ConfigFile)
		})
	}
}

func TestLoad_JSONFileAndFlags(t *testing.T) {
	t.Setenv(EnvConfig, "")
	file := writeFile(t, "leakcheck.json", `{"address":"example.com:9000","key":"secret","show_samples":true}`)

	t.Setenv(EnvTrustedSubnet, "127.0.0.0/8")
	cfg, err := Load([]string{"-c", file, "-elements", "fds", "-version"}, io.Discard)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, "example.com:9000", cfg.Address)
	require.Equal(t, "secret", cfg.Key)
	require.True(t, cfg.ShowSamples)
	require.Equal(t, "fds", cfg.ElementSource)
	require.True(t, cfg.PrintVersion)
	subnet, err := cfg.Subnet()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.0/8", subnet.String())
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv(EnvConfig, "")

	_, err := Load([]string{"-n", "abc"}, io.Discard)
	require.Error(t, err)

	_, err = Load([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")}, io.Discard)
	require.ErrorContains(t, err, "failed to read config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero samples", func(c *Config) { c.Samples = 0 }, true},
		{"zero interval", func(c *Config) { c.Interval = 0 }, true},
		{"bad mode", func(c *Config) { c.Mode = "median" }, true},
		{"negative threshold", func(c *Config) { c.LeakThreshold = -1 }, true},
		{"bad memory source", func(c *Config) { c.MemorySource = "cgroup" }, true},
		{"bad element source", func(c *Config) { c.ElementSource = "dom" }, true},
		{"bad address", func(c *Config) { c.Address = "host:port" }, true},
		{"remote and serve", func(c *Config) { c.Address = "a:1"; c.Serve = ":2" }, true},
		{"rate mode", func(c *Config) { c.Mode = string(models.ModeRate) }, false},
		{"trusted subnet", func(c *Config) { c.TrustedSubnet = "10.0.0.0/8" }, false},
		{"bad trusted subnet", func(c *Config) { c.TrustedSubnet = "10.0.0.0" }, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConfig_ValidateNormalizesAddress(t *testing.T) {
	cfg := Default()
	cfg.Serve = "localhost"
	require.NoError(t, cfg.Validate())
	require.Equal(t, "localhost:8080", cfg.Serve)
}

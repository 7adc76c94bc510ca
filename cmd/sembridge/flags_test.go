package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	return path
}

func TestValidateFlags(t *testing.T) {
	configPath := writeTempConfig(t)

	valid := func() *CLIConfig {
		return &CLIConfig{
			ConfigPath:      configPath,
			LogLevel:        "info",
			LogFormat:       "json",
			ShutdownTimeout: 30 * time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*CLIConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*CLIConfig) {}},
		{
			name:    "missing config file",
			mutate:  func(c *CLIConfig) { c.ConfigPath = filepath.Join(t.TempDir(), "absent.json") },
			wantErr: "config file not found",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *CLIConfig) { c.LogLevel = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *CLIConfig) { c.LogFormat = "yaml" },
			wantErr: "invalid log format",
		},
		{
			name:    "non-positive shutdown timeout",
			mutate:  func(c *CLIConfig) { c.ShutdownTimeout = 0 },
			wantErr: "invalid shutdown timeout",
		},
		{
			name: "version skips validation",
			mutate: func(c *CLIConfig) {
				c.ShowVersion = true
				c.ConfigPath = "does-not-exist.json"
			},
		},
		{
			name: "help skips validation",
			mutate: func(c *CLIConfig) {
				c.ShowHelp = true
				c.LogLevel = "verbose"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateFlags(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("SEMBRIDGE_TEST_STR", "from-env")
	assert.Equal(t, "from-env", getEnv("SEMBRIDGE_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", getEnv("SEMBRIDGE_TEST_STR_ABSENT", "fallback"))
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("SEMBRIDGE_TEST_BOOL", "true")
	assert.True(t, getEnvBool("SEMBRIDGE_TEST_BOOL", false))

	t.Setenv("SEMBRIDGE_TEST_BOOL", "not-a-bool")
	assert.False(t, getEnvBool("SEMBRIDGE_TEST_BOOL", false),
		"unparsable value should fall back to the default")

	assert.True(t, getEnvBool("SEMBRIDGE_TEST_BOOL_ABSENT", true))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("SEMBRIDGE_TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration("SEMBRIDGE_TEST_DUR", time.Minute))

	t.Setenv("SEMBRIDGE_TEST_DUR", "ninety")
	assert.Equal(t, time.Minute, getEnvDuration("SEMBRIDGE_TEST_DUR", time.Minute))

	assert.Equal(t, time.Minute, getEnvDuration("SEMBRIDGE_TEST_DUR_ABSENT", time.Minute))
}

func TestContains(t *testing.T) {
	levels := []string{"debug", "info", "warn", "error"}
	assert.True(t, contains(levels, "warn"))
	assert.False(t, contains(levels, "trace"))
	assert.False(t, contains(nil, "debug"))
}

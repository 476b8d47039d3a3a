package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "data/mandelareport.sqlite3", cfg.Store.DatabaseURL)
	assert.Equal(t, 15, cfg.Fetch.TimeoutSecs)
	assert.True(t, cfg.Fetch.ObeyRobots)
	assert.Equal(t, "https://web.archive.org/cdx/search/cdx", cfg.Wayback.CDXBaseURL)
	assert.Equal(t, 2000, cfg.Wayback.QueryLimit)
	assert.Equal(t, 3, cfg.Diff.DefaultSnapshots)
	assert.Equal(t, "auto", cfg.Summary.Provider)
	assert.Equal(t, "heuristic", cfg.Assistant.Provider)
	assert.True(t, cfg.Retention.Enabled)
	assert.Equal(t, 180, cfg.Retention.Days)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MANDELA_SERVER_PORT", "9999")
	t.Setenv("MANDELA_STORE_DRIVER", "postgres")
	t.Setenv("MANDELA_FETCH_OBEY_ROBOTS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.False(t, cfg.Fetch.ObeyRobots)
}

func TestDump_MasksSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Summary.AnthropicKey = "sk-ant-secret"
	cfg.Server.Port = 8080

	out, err := cfg.Dump()
	require.NoError(t, err)

	assert.NotContains(t, out, "sk-ant-secret")
	assert.Contains(t, out, "***")
	assert.Contains(t, out, "port: 8080")
}

func TestDump_EmptyKeyNotMasked(t *testing.T) {
	cfg := &Config{}

	out, err := cfg.Dump()
	require.NoError(t, err)

	assert.NotContains(t, out, "***")
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})

	assert.Error(t, err)
}

func TestInitLogger_OK(t *testing.T) {
	assert.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
}

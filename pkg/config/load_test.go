package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "energyview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvConfig, "")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, ';', cfg.DelimiterRune())
	require.Equal(t, []string{"topology/nodes", "operation/energy_balance"}, cfg.RequiredGroups)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
port: "9090"
cache_dir: /tmp/ev
cache_ttl: 2h
delimiter: ","
required_groups:
  - topology/nodes
max_cache_mb: 64
`)
	t.Setenv(EnvPort, "9191")
	t.Setenv(EnvCacheDisabled, "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "9191", cfg.Port)
	require.Equal(t, "/tmp/ev", cfg.CacheDir)
	require.Equal(t, 2*time.Hour, cfg.CacheTTL)
	require.True(t, cfg.CacheDisabled)
	require.Equal(t, int64(64), cfg.MaxCacheMB)
	require.Equal(t, ',', cfg.DelimiterRune())
	require.Equal(t, []string{"topology/nodes"}, cfg.RequiredGroups)
}

func TestLoad_PathFromEnv(t *testing.T) {
	path := writeConfig(t, "postgres_dsn: postgres://localhost/ev\n")
	t.Setenv(EnvConfig, path)
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "postgres://localhost/ev", cfg.PostgresDSN)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "bad yaml", body: "port: [\n"},
		{name: "bad port", body: "port: eighty\n"},
		{name: "long delimiter", body: "delimiter: ab\n"},
		{name: "negative ttl", body: "cache_ttl: -1h\n"},
		{name: "bad env ttl", env: map[string]string{EnvCacheTTL: "soon"}},
		{name: "bad env bool", env: map[string]string{EnvCacheDisabled: "maybe"}},
		{name: "bad env size", env: map[string]string{EnvMaxCacheMB: "lots"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfig, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.body != "" {
				path = writeConfig(t, tt.body)
			}
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

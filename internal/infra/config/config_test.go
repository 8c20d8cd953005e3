package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, `
port: "9090"
download:
  out_dir: /tmp/fetch
  use_memory_cache: true
http:
  timeout: 10s
progress:
  interval: 500ms
  window: 3s
store:
  driver: sqlite
  sqlite_path: /tmp/fetch.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "/tmp/fetch", cfg.Download.OutDir)
	require.True(t, cfg.Download.UseMemoryCache)
	require.Equal(t, 10*time.Second, cfg.HTTP.Timeout)
	require.Equal(t, 500*time.Millisecond, cfg.Progress.Interval)
	require.Equal(t, 3*time.Second, cfg.Progress.Window)

	// untouched keys keep their defaults
	require.Equal(t, ".partial", cfg.Download.StagingSuffix)
	require.Equal(t, 1024, cfg.Download.ChunkSize)
	require.Equal(t, "1.2", cfg.HTTP.MinTLSVersion)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeFile(t, "port: \"9090\"\n")
	t.Setenv("GOFETCH_PORT", "7070")
	t.Setenv("GOFETCH_DOWNLOAD_CHUNK_SIZE", "4096")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "7070", cfg.Port)
	require.Equal(t, 4096, cfg.Download.ChunkSize)
}

func TestLoadMissingExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "config file not found")
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"tls", "http:\n  min_tls_version: \"0.9\"\n", "min_tls_version"},
		{"driver", "store:\n  driver: mysql\n", "not supported"},
		{"postgres without dsn", "store:\n  driver: postgres\n", "postgres_dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "timeout: 30s")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	require.ErrorContains(t, WriteDefault(path), "refusing to overwrite")
}

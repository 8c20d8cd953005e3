package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, LevelWarn, ParseLevel("warn"))
	require.Equal(t, LevelError, ParseLevel("error"))
	require.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestLoggerFiltersByLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gofetch.log")

	l, err := New(path, LevelWarn, false)
	require.NoError(t, err)

	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)
	l.With("transfer", "abc").Error("boom")
	_, err = l.Write([]byte("from echo\n"))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	require.NotContains(t, out, "hidden")
	require.NotContains(t, out, "from echo")
	require.Contains(t, out, "WARN shown 2")
	require.Contains(t, out, "boom")
	require.Contains(t, out, "transfer")
	require.Contains(t, out, "abc")
}

func TestNopLogger(t *testing.T) {
	l := Nop()
	l.Info("nothing %s", "here")
	require.NoError(t, l.Close())
}

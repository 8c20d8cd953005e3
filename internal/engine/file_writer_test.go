package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiskSinkAppendsAtMatchingOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.bin.partial")
	require.NoError(t, os.WriteFile(path, []byte("hello "), 0644))

	sink, err := openDiskSink(path, 6)
	require.NoError(t, err)
	require.EqualValues(t, 6, sink.Offset())

	_, err = sink.Write([]byte("world"))
	require.NoError(t, err)
	require.NoError(t, sink.Close(true))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))
}

func TestDiskSinkTruncatesOnMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.bin.partial")
	require.NoError(t, os.WriteFile(path, []byte("stale data"), 0644))

	sink, err := openDiskSink(path, 3)
	require.NoError(t, err)
	require.Zero(t, sink.Offset())

	_, err = sink.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, sink.Close(false))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "new", string(got))
}

func TestMemorySinkWritesOnlyOnCommit(t *testing.T) {
	dir := t.TempDir()

	discarded := filepath.Join(dir, "discarded.partial")
	sink := newMemorySink(discarded, 5)
	_, err := sink.Write([]byte("bytes"))
	require.NoError(t, err)
	require.NoError(t, sink.Close(false))
	require.NoFileExists(t, discarded)

	committed := filepath.Join(dir, "committed.partial")
	require.NoError(t, os.WriteFile(committed, []byte("old content that is longer"), 0644))
	sink = newMemorySink(committed, -1)
	_, err = sink.Write([]byte("bytes"))
	require.NoError(t, err)
	require.NoError(t, sink.Close(true))

	got, err := os.ReadFile(committed)
	require.NoError(t, err)
	require.Equal(t, "bytes", string(got))
}

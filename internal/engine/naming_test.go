package engine

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextAvailablePath(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		want     string
	}{
		{"no collision", nil, "report.pdf"},
		{"one collision", []string{"report.pdf"}, "report (2).pdf"},
		{"three collisions", []string{"report.pdf", "report (2).pdf", "report (3).pdf"}, "report (4).pdf"},
		{"gap is reused", []string{"report.pdf", "report (3).pdf"}, "report (2).pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, name := range tt.existing {
				require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
			}

			got, err := NextAvailablePath(filepath.Join(dir, "report.pdf"))
			require.NoError(t, err)
			require.Equal(t, filepath.Join(dir, tt.want), got)
		})
	}
}

func TestNextAvailablePathWithoutExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), nil, 0644))

	got, err := NextAvailablePath(filepath.Join(dir, "README"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "README (2)"), got)
}

func TestNameFromURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://example.com/files/archive.tar.gz", "archive.tar.gz"},
		{"https://example.com/files/my%20file.iso?token=abc", "my file.iso"},
		{"https://example.com/", ""},
		{"https://example.com", ""},
		{"https://example.com/dir/", ""},
		{"https://example.com/a%2Fb.bin", "a_b.bin"},
		{"https://example.com/..", ""},
	}

	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		require.NoError(t, err)
		require.Equal(t, tt.want, NameFromURL(u), tt.raw)
	}
}

package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// fallbackName is used when the URL path carries no file name.
const fallbackName = "download"

// maxDisambiguation bounds the " (N)" search.
const maxDisambiguation = 10000

// NameFromURL returns the last path segment of u, unescaped. It returns ""
// when the path ends in a slash or is empty.
func NameFromURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	p := u.EscapedPath()
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}

	segment := p[strings.LastIndex(p, "/")+1:]
	name, err := url.PathUnescape(segment)
	if err != nil {
		name = segment
	}
	return sanitizeName(name)
}

// sanitizeName strips separators so a hostile server name cannot escape the
// target directory.
func sanitizeName(name string) string {
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	name = strings.TrimSpace(name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// NextAvailablePath returns p if nothing exists there, otherwise the first
// free "name (N).ext" with N starting at 2.
func NextAvailablePath(p string) (string, error) {
	free, err := isFree(p)
	if err != nil || free {
		return p, err
	}

	dir := filepath.Dir(p)
	ext := filepath.Ext(p)
	stem := strings.TrimSuffix(filepath.Base(p), ext)

	for n := 2; n < maxDisambiguation; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		free, err := isFree(candidate)
		if err != nil {
			return "", err
		}
		if free {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no free name for %s after %d attempts", p, maxDisambiguation)
}

func isFree(p string) (bool, error) {
	_, err := os.Stat(p)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	return false, err
}

package lsp

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

// FilePathToURI converts a filesystem path to a file:// URI.
func FilePathToURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	abs = filepath.ToSlash(abs)

	if runtime.GOOS == "windows" && !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}

	u := url.URL{Scheme: "file", Path: abs}
	return u.String()
}

// URIToFilePath converts a file:// URI back to a filesystem path.
// Non-file URIs are returned unchanged.
func URIToFilePath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}

	path := u.Path
	if runtime.GOOS == "windows" {
		path = strings.TrimPrefix(path, "/")
	}
	return filepath.FromSlash(path)
}

// Package urlkit resolves download locations against the configured base URL.
package urlkit

import (
	"net/url"
	"regexp"
	"strings"
)

var absoluteURL = regexp.MustCompile(`(?i)^https?://`)

// Normalize resolves raw into an absolute download URL. Already-absolute
// URLs pass through untouched; relative paths are joined onto base.
func Normalize(base, raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}
	if absoluteURL.MatchString(trimmed) {
		return trimmed
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	base = strings.TrimRight(base, "/")
	return base + trimmed
}

// DownloadURL builds the canonical download location for a package file.
func DownloadURL(base, filename string) string {
	return Normalize(base, "/download/"+url.PathEscape(filename))
}

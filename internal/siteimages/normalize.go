package siteimages

import (
	"regexp"
	"strings"
)

// DefaultOrigin is used when no page origin is known, e.g. for CLI runs.
const DefaultOrigin = "https://www.airtoolpro.com"

var absoluteURL = regexp.MustCompile(`(?i)^https?://`)

// NormalizePath rewrites a server-relative image path to an absolute URL on origin.
// Absolute paths are returned unchanged, so applying it twice is a no-op.
func NormalizePath(origin, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || absoluteURL.MatchString(path) {
		return path
	}
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		origin = DefaultOrigin
	}
	if strings.HasPrefix(path, "//") {
		scheme := "https:"
		if i := strings.Index(origin, "//"); i > 0 {
			scheme = origin[:i]
		}
		return scheme + path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return origin + path
}

package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// pathFilter narrows a crawl with glob patterns on the URL path.
// It is applied on top of the crawl policy and can only reject URLs.
type pathFilter struct {
	// ignore lists patterns whose matches are never crawled.
	ignore []string

	// follow, when non-empty, lists the only patterns that are crawled.
	follow []string
}

// allows reports whether u passes the filter.
//
// Logic:
//  1. If the path matches any ignore pattern, reject it
//  2. If follow patterns are set and the path matches none, reject it
//  3. Otherwise accept it
func (f pathFilter) allows(u *url.URL) bool {
	p := u.Path
	if p == "" {
		p = "/"
	}

	for _, pattern := range f.ignore {
		if matchPattern(pattern, p) {
			return false
		}
	}

	if len(f.follow) == 0 {
		return true
	}
	for _, pattern := range f.follow {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
//
// Examples:
//   - "/admin/*" matches "/admin", "/admin/users" and "/admin/a/b"
//   - "*.zip" matches "/downloads/file.zip"
//   - "/api/v?" matches "/api/v1"
func matchPattern(pattern, p string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") && !strings.ContainsAny(ext, "*?[/") {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, p); err == nil && matched {
		return true
	}

	// Patterns without a slash are tried against the last segment too.
	if !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(p)); err == nil && matched {
			return true
		}
	}

	return false
}

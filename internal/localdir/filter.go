package localdir

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultExtensions are the file suffixes included by DefaultFilter,
// grouped by category.
var DefaultExtensions = map[string][]string{
	"c_like":    {".c", ".h"},
	"web":       {".html", ".css", ".js", ".ts", ".tsx"},
	"data":      {".csv", ".json", ".jsonl", ".toml", ".yaml"},
	"python":    {".py", ".pyx", ".ipynb"},
	"scripting": {".sh", ".cjs"},
	"rust":      {".rs"},
	"markdown":  {".md"},
	"sql":       {".sql"},
	"config":    {".env", ".env.example", ".example"},
	"misc":      {".localhost", ".txt"},
}

// DefaultExcludedSuffixes are suffixes that are never included even when
// their extension is allowed. They match files this tool writes itself.
var DefaultExcludedSuffixes = []string{".output.txt", ".log.txt"}

// DefaultExcludedDirs are regular expressions for directories that are
// never descended into.
var DefaultExcludedDirs = []string{
	`.*pip.*`,
	`.*_internal.*`,
	`\.env|\.venv|venv`,
	`\.git|\.vscode|\.*cache.*|.*__pycache__.*|.*node_modules.*|.*dist.*|.*build.*|.*logs.*|.*tmp.*|.*temp`,
}

// Filter decides which files and directories take part in a walk.
// A Filter is immutable once built and safe to share.
type Filter struct {
	extensions       []string
	excludedSuffixes []string
	excludedDirs     []*regexp.Regexp
}

// NewFilter builds a Filter. Every pattern in excludedDirs must compile.
func NewFilter(extensions, excludedSuffixes, excludedDirs []string) (Filter, error) {
	f := Filter{
		extensions:       append([]string(nil), extensions...),
		excludedSuffixes: append([]string(nil), excludedSuffixes...),
		excludedDirs:     make([]*regexp.Regexp, 0, len(excludedDirs)),
	}
	for _, pattern := range excludedDirs {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid directory exclusion %q: %w", pattern, err)
		}
		f.excludedDirs = append(f.excludedDirs, re)
	}
	return f, nil
}

// DefaultFilter returns the Filter built from the Default* tables.
func DefaultFilter() Filter {
	exts := make([]string, 0)
	for _, list := range DefaultExtensions {
		exts = append(exts, list...)
	}
	f, err := NewFilter(exts, DefaultExcludedSuffixes, DefaultExcludedDirs)
	if err != nil {
		panic(err) // the default patterns are constants
	}
	return f
}

// AllowFile reports whether a file named name should be included.
func (f Filter) AllowFile(name string) bool {
	for _, suffix := range f.excludedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}
	for _, ext := range f.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// ExcludeDir reports whether the directory at relPath (relative to the walk
// root) should be skipped together with everything below it.
func (f Filter) ExcludeDir(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, re := range f.excludedDirs {
		if re.MatchString(relPath) {
			return true
		}
	}
	return false
}

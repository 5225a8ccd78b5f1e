package policy

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Policy is the crawl scope. It is safe for concurrent use because it is
// never modified after New returns.
type Policy struct {
	base        *url.URL
	maxDepth    int
	includePDFs bool
	ignoreEPUBs bool
}

// New builds a Policy for a crawl rooted at rawBase.
func New(rawBase string, maxDepth int, includePDFs, ignoreEPUBs bool) (Policy, error) {
	base, err := ParseBase(rawBase)
	if err != nil {
		return Policy{}, err
	}
	if maxDepth < 0 {
		return Policy{}, fmt.Errorf("%w: %d", ErrNegativeDepth, maxDepth)
	}

	return Policy{
		base:        base,
		maxDepth:    maxDepth,
		includePDFs: includePDFs,
		ignoreEPUBs: ignoreEPUBs,
	}, nil
}

// ParseBase parses and validates a crawl base URL. The fragment is dropped.
func ParseBase(rawBase string) (*url.URL, error) {
	base, err := url.Parse(strings.TrimSpace(rawBase))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	scheme := strings.ToLower(base.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q in %q", ErrInvalidBaseURL, base.Scheme, rawBase)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidBaseURL, rawBase)
	}
	base.Fragment = ""
	base.RawFragment = ""
	return base, nil
}

// Base returns a copy of the crawl base URL.
func (p Policy) Base() *url.URL {
	u := *p.base
	return &u
}

// MaxDepth returns the link depth limit.
func (p Policy) MaxDepth() int { return p.maxDepth }

// IncludePDFs reports whether PDF URLs may be fetched.
func (p Policy) IncludePDFs() bool { return p.includePDFs }

// IgnoreEPUBs reports whether EPUB URLs are rejected.
func (p Policy) IgnoreEPUBs() bool { return p.ignoreEPUBs }

// Allows reports whether candidate is in scope for this crawl.
func (p Policy) Allows(candidate *url.URL) bool {
	return SameOrigin(p.base, candidate) &&
		WithinDepth(p.base, candidate, p.maxDepth) &&
		ResourceAllowed(candidate, p.includePDFs, p.ignoreEPUBs)
}

// SameOrigin reports whether candidate has the same scheme and host
// (including port) as base. Both comparisons ignore case.
func SameOrigin(base, candidate *url.URL) bool {
	if base == nil || candidate == nil {
		return false
	}
	return strings.EqualFold(base.Scheme, candidate.Scheme) &&
		strings.EqualFold(base.Host, candidate.Host)
}

// WithinDepth reports whether candidate's path is at or below base's path
// and at most maxDepth segments deeper.
//
// Trailing slashes are ignored, so "/docs/" and "/docs" are the same
// location. A sibling such as "/docs2" is not below "/docs".
func WithinDepth(base, candidate *url.URL, maxDepth int) bool {
	if base == nil || candidate == nil {
		return false
	}

	baseParts := pathSegments(base.Path)
	candidateParts := pathSegments(candidate.Path)

	if len(candidateParts) < len(baseParts) {
		return false
	}
	for i, part := range baseParts {
		if candidateParts[i] != part {
			return false
		}
	}
	return len(candidateParts)-len(baseParts) <= maxDepth
}

// pathSegments splits p on "/" after trimming trailing slashes.
// The root path yields a single empty segment, as does the empty path.
func pathSegments(p string) []string {
	return strings.Split(strings.TrimRight(p, "/"), "/")
}

// Resource extensions gated by flags.
const (
	extPDF  = ".pdf"
	extEPUB = ".epub"
)

// ResourceAllowed reports whether the resource type of u may be fetched.
// Extensions are compared case-insensitively; anything that is neither a
// PDF nor an EPUB is allowed.
func ResourceAllowed(u *url.URL, includePDFs, ignoreEPUBs bool) bool {
	if u == nil {
		return false
	}
	switch Extension(u) {
	case extPDF:
		return includePDFs
	case extEPUB:
		return !ignoreEPUBs
	default:
		return true
	}
}

// Extension returns the lower-cased extension of the last path segment.
func Extension(u *url.URL) string {
	return strings.ToLower(path.Ext(u.Path))
}

// IsPDF reports whether u names a PDF by extension.
func IsPDF(u *url.URL) bool {
	return Extension(u) == extPDF
}

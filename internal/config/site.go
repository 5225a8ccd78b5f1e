package config

import "time"

// SiteConfig holds crawl overrides for one host. Unset fields keep the
// value from the layer below.
type SiteConfig struct {
	// Depth overrides the crawl depth. A pointer because 0 is a valid depth.
	Depth *int `yaml:"depth,omitempty"`

	// IncludePDFs overrides whether PDF links are fetched.
	IncludePDFs *bool `yaml:"includePDFs,omitempty"`

	// IgnoreEPUBs overrides whether EPUB links are skipped.
	IgnoreEPUBs *bool `yaml:"ignoreEPUBs,omitempty"`

	// Workers overrides the number of concurrent fetches. 0 means unset.
	Workers int `yaml:"workers,omitempty"`

	// Delay overrides the per-origin request interval, e.g. "500ms".
	Delay *time.Duration `yaml:"delay,omitempty"`

	// IgnorePatterns are URL path globs to skip.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns restrict the crawl to matching URL paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .sitecorpus configuration file.
type File struct {
	// Sites maps host names (e.g. "docs.example.com") to overrides.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every host unless the host's entry overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the defaults merged with the entry for host.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if site, ok := cf.Sites[host]; ok {
		result = result.merge(site)
	}
	return result
}

// Hosts returns the number of host entries.
func (cf *File) Hosts() int {
	return len(cf.Sites)
}

// merge returns sc with every field set in override replaced.
func (sc SiteConfig) merge(override SiteConfig) SiteConfig {
	if override.Depth != nil {
		sc.Depth = override.Depth
	}
	if override.IncludePDFs != nil {
		sc.IncludePDFs = override.IncludePDFs
	}
	if override.IgnoreEPUBs != nil {
		sc.IgnoreEPUBs = override.IgnoreEPUBs
	}
	if override.Workers > 0 {
		sc.Workers = override.Workers
	}
	if override.Delay != nil {
		sc.Delay = override.Delay
	}
	if len(override.IgnorePatterns) > 0 {
		sc.IgnorePatterns = override.IgnorePatterns
	}
	if len(override.FollowPatterns) > 0 {
		sc.FollowPatterns = override.FollowPatterns
	}
	return sc
}

// apply writes the fields set in sc onto s.
func (sc SiteConfig) apply(s *CrawlSettings) {
	if sc.Depth != nil {
		s.Depth = *sc.Depth
	}
	if sc.IncludePDFs != nil {
		s.IncludePDFs = *sc.IncludePDFs
	}
	if sc.IgnoreEPUBs != nil {
		s.IgnoreEPUBs = *sc.IgnoreEPUBs
	}
	if sc.Workers > 0 {
		s.Workers = sc.Workers
	}
	if sc.Delay != nil {
		s.CrawlDelay = *sc.Delay
	}
	s.IgnorePatterns = sc.IgnorePatterns
	s.FollowPatterns = sc.FollowPatterns
}

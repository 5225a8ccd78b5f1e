package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitecorpus/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitecorpus"

	// DefaultCrawlDepth follows links two levels below the base page.
	DefaultCrawlDepth = 2

	// DefaultIncludePDFs fetches PDF documents found while crawling.
	DefaultIncludePDFs = true

	// DefaultIgnoreEPUBs skips EPUB links.
	DefaultIgnoreEPUBs = true

	// DefaultWorkers of 1 crawls one page at a time in discovery order.
	DefaultWorkers = 1

	// DefaultPerOriginLimit of 0 leaves concurrency per origin bounded by
	// Workers only.
	DefaultPerOriginLimit = 0

	// DefaultCrawlDelay is the minimum interval between two requests to the
	// same origin.
	DefaultCrawlDelay = 0 * time.Second

	// DefaultRetries is the number of extra attempts after a transient
	// fetch error (5xx, 429, network failure).
	DefaultRetries = 2

	// DefaultTimeout bounds a single HTTP request including the body.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize limits how much of a response body is read.
	// PDFs are often several megabytes, so this is generous.
	DefaultMaxBodySize = 20 * 1024 * 1024 // 20MB

	// DefaultBatchSize is the number of base URLs crawled at the same time.
	DefaultBatchSize = 4

	// DefaultOutputDir is where corpus files are written.
	DefaultOutputDir = "output"

	// DefaultCompress writes compressed.output.txt next to the full corpus.
	DefaultCompress = true
)

// Config holds all configuration options for one sitecorpus run.
// It is populated from CLI flags and the optional config file and passed
// down explicitly; nothing reads it from global state.
//
// Design decision: We use a single flat struct instead of nested structs.
// Per-site settings live in SiteConfigs and are resolved with ForSite.
type Config struct {
	// Targets are the base URLs to crawl, or the directory for a local run.
	Targets []string

	// CrawlDepth is the maximum link depth below a base URL.
	// 0 fetches only the base page.
	CrawlDepth int

	// IncludePDFs fetches and extracts .pdf links.
	IncludePDFs bool

	// IgnoreEPUBs skips .epub links.
	IgnoreEPUBs bool

	// Workers is the number of pages fetched concurrently per crawl.
	Workers int

	// PerOriginLimit caps concurrent requests to one origin. 0 means no cap
	// beyond Workers.
	PerOriginLimit int

	// CrawlDelay is the minimum interval between request starts to one
	// origin.
	CrawlDelay time.Duration

	// OrderedOutput keeps documents in discovery order when Workers > 1.
	OrderedOutput bool

	// Retries is the number of retries after a transient fetch error.
	Retries int

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize is the largest response body read, in bytes.
	MaxBodySize int64

	// OutputDir receives the corpus files. Each crawl target gets its own
	// subdirectory.
	OutputDir string

	// Compress also writes the stopword-free corpus.
	Compress bool

	// BatchSize is the number of targets processed concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// JSONReport prints the run summary as JSON.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport prints the run summary as Markdown.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the run summary to a file instead of stdout.
	ReportFile string

	// ConfigFilePath is the explicit config file, if any.
	ConfigFilePath string

	// SiteConfigs holds the defaults and per-host overrides from the
	// config file.
	SiteConfigs *File

	// DBDir is the directory of the crawl history database.
	// Defaults to the XDG data directory (~/.local/share/sitecorpus on Linux).
	DBDir string

	// SaveToDB stores finished crawls in the history database.
	SaveToDB bool
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		CrawlDepth:     DefaultCrawlDepth,
		IncludePDFs:    DefaultIncludePDFs,
		IgnoreEPUBs:    DefaultIgnoreEPUBs,
		Workers:        DefaultWorkers,
		PerOriginLimit: DefaultPerOriginLimit,
		CrawlDelay:     DefaultCrawlDelay,
		Retries:        DefaultRetries,
		Timeout:        DefaultTimeout,
		MaxBodySize:    DefaultMaxBodySize,
		OutputDir:      DefaultOutputDir,
		Compress:       DefaultCompress,
		BatchSize:      DefaultBatchSize,
		DBDir:          XDGDataDir(),
		SaveToDB:       true,
	}
}

// XDGDataDir returns the XDG data directory for sitecorpus.
// On Linux: ~/.local/share/sitecorpus
// On macOS: ~/Library/Application Support/sitecorpus
// On Windows: %LOCALAPPDATA%\sitecorpus
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitecorpus.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.CrawlDepth < 0 {
		return ErrInvalidDepth
	}
	if c.Workers < 1 {
		return ErrInvalidWorkers
	}
	if c.PerOriginLimit < 0 {
		return ErrInvalidPerOriginLimit
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.Retries < 0 {
		return ErrInvalidRetries
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.OutputDir == "" {
		return ErrNoOutputDir
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return c.validateOutputNames()
}

// validateOutputNames rejects targets whose corpora would be written to the
// same output directory, such as one URL given twice or the same host and
// path over http and https.
func (c *Config) validateOutputNames() error {
	seen := make(map[string]string, len(c.Targets))
	for _, target := range c.Targets {
		name := model.OutputName(target)
		if name == "" {
			continue
		}
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("%w: %s and %s both write to %s", ErrDuplicateOutput, prev, target, name)
		}
		seen[name] = target
	}
	return nil
}

// CrawlSettings are the crawl parameters in effect for one host.
type CrawlSettings struct {
	Depth          int
	IncludePDFs    bool
	IgnoreEPUBs    bool
	Workers        int
	CrawlDelay     time.Duration
	IgnorePatterns []string
	FollowPatterns []string
}

// ForSite returns the crawl settings for host: the global values, then the
// config file defaults, then the host's own entry, each overriding the
// previous where it sets a value.
func (c *Config) ForSite(host string) CrawlSettings {
	s := CrawlSettings{
		Depth:       c.CrawlDepth,
		IncludePDFs: c.IncludePDFs,
		IgnoreEPUBs: c.IgnoreEPUBs,
		Workers:     c.Workers,
		CrawlDelay:  c.CrawlDelay,
	}
	if c.SiteConfigs == nil {
		return s
	}
	c.SiteConfigs.GetSiteConfig(host).apply(&s)
	return s
}

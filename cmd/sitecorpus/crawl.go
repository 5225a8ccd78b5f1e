package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecorpus/internal/config"
	"github.com/nao1215/sitecorpus/internal/crawler"
	"github.com/nao1215/sitecorpus/internal/database"
	"github.com/nao1215/sitecorpus/internal/model"
	"github.com/nao1215/sitecorpus/internal/pipeline"
	"github.com/nao1215/sitecorpus/internal/report"
)

// errTargetsFailed is returned when at least one target ended with an error.
var errTargetsFailed = errors.New("some targets failed")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url]...",
		Short: "Crawl websites into text corpora",
		Long: `Crawl fetches a website breadth-first, starting at the given base URL, and
collects the text of every HTML page and PDF document on the same host up to
the configured link depth.

For each base URL the following files are written to <output-dir>/<host>:
  uncompressed.output.txt  the corpus
  compressed.output.txt    the corpus without stopwords (unless --no-compress)
  processed_urls.txt       every processed URL, one per line
  summary.md               a Markdown summary of the crawl
  crawl.json               the crawl result as JSON

Interrupting a crawl with Ctrl+C stops it and still writes what was
collected so far.

Examples:
  # Crawl a site two links deep (the default)
  sitecorpus crawl https://docs.example.com/

  # Only the base page and the pages it links to, 8 concurrent fetches
  sitecorpus crawl --depth 1 --workers 8 https://docs.example.com/

  # Several sites at once, printing the summary as JSON
  sitecorpus crawl --json https://a.example.com/ https://b.example.com/

Configuration file (.sitecorpus) example:
  defaults:
    depth: 2
  sites:
    docs.example.com:
      depth: 3
      workers: 4
      ignorePatterns:
        - "/archive/*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl scope flags
	cmd.Flags().IntP("depth", "d", config.DefaultCrawlDepth,
		"Maximum link depth below the base URL (0 = base page only)")
	cmd.Flags().Bool("no-pdfs", false,
		"Do not fetch PDF documents")
	cmd.Flags().Bool("include-epubs", false,
		"Fetch EPUB links instead of skipping them")

	// Concurrency flags
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of pages fetched concurrently per site")
	cmd.Flags().Int("per-origin", config.DefaultPerOriginLimit,
		"Maximum concurrent requests to one origin (0 = no limit beyond --workers)")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Minimum interval between requests to one origin")
	cmd.Flags().Bool("ordered", false,
		"Keep documents in discovery order when --workers > 1")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of sites crawled concurrently")

	// HTTP flags
	cmd.Flags().Int("retries", config.DefaultRetries,
		"Retries after a transport error or 5xx response")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:9050)")
	cmd.Flags().String("user-agent", "",
		"User-Agent header (default: a desktop browser string)")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Largest response body read, in bytes")

	// Output flags
	cmd.Flags().StringP("output-dir", "o", config.DefaultOutputDir,
		"Directory that receives the corpus files")
	cmd.Flags().Bool("no-compress", false,
		"Do not write compressed.output.txt")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitecorpus in current or home directory)")

	// History database flags
	cmd.Flags().Bool("no-db", false,
		"Do not save the crawl to the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	addReportFlags(cmd)

	return cmd
}

// addReportFlags registers the flags that select the summary format.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Print the summary as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Print the summary as Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("report-file", "r", "",
		"Write the summary to a file instead of stdout (creates directories if needed)")
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// buildCrawlConfig creates a Config from cobra command flags.
func buildCrawlConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error

	if cfg.CrawlDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}

	noPDFs, err := flags.GetBool("no-pdfs")
	if err != nil {
		return nil, err
	}
	cfg.IncludePDFs = !noPDFs

	includeEPUBs, err := flags.GetBool("include-epubs")
	if err != nil {
		return nil, err
	}
	cfg.IgnoreEPUBs = !includeEPUBs

	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.PerOriginLimit, err = flags.GetInt("per-origin"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.OrderedOutput, err = flags.GetBool("ordered"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.Retries, err = flags.GetInt("retries"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
		return nil, err
	}

	noCompress, err := flags.GetBool("no-compress")
	if err != nil {
		return nil, err
	}
	cfg.Compress = !noCompress

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	if err := readReportFlags(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Targets = args

	return cfg, nil
}

// loadSiteConfigs loads the configuration file.
// If the user explicitly specified a path, a missing file is an error.
// Otherwise an empty configuration is used when no file is found.
func loadSiteConfigs(explicitPath string) (*config.File, error) {
	configPath := config.FindConfigFile(explicitPath)

	switch {
	case configPath != "":
		siteConfigs, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		return siteConfigs, nil
	case explicitPath != "":
		return nil, fmt.Errorf("configuration file not found: %s", explicitPath)
	default:
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}
}

// readReportFlags copies the summary format flags into cfg.
func readReportFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("report-file"); err != nil {
		return err
	}
	return nil
}

// runCrawl crawls every target and prints one summary per target.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	logger.Info("starting crawl",
		"targets", cfg.Targets,
		"depth", cfg.CrawlDepth,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	fetcher, err := newFetcher(cfg, logger)
	if err != nil {
		return err
	}

	bp := pipeline.NewBatchProcessor(
		func(target string) *pipeline.Pipeline {
			return createCrawlPipeline(cfg, fetcher, db, logger, target)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	fmt.Fprintf(stderr, "Crawling %d site(s)...\n", len(cfg.Targets))
	startTime := time.Now()

	reports, batchErr := bp.ProcessBatch(ctx, cfg.Targets)

	fmt.Fprintf(stderr, "Finished in %s\n\n", time.Since(startTime).Round(time.Millisecond))

	if err := outputReports(cfg, reports, stdout); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if batchErr != nil {
		return batchErr
	}
	return failedTargets(reports)
}

// newFetcher creates the HTTP fetcher shared by all targets.
func newFetcher(cfg *config.Config, logger *slog.Logger) (*crawler.HTTPFetcher, error) {
	client, err := crawler.NewHTTPClient(crawler.TransportOptions{
		Timeout:      cfg.Timeout,
		ProxyAddress: cfg.ProxyAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return crawler.NewHTTPFetcher(client,
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithRetries(uint64(cfg.Retries)), //nolint:gosec // Validate rejects negative values
		crawler.WithFetcherLogger(logger),
	), nil
}

// createCrawlPipeline creates the pipeline for one base URL.
// Host-specific settings from the configuration file override the flags.
func createCrawlPipeline(cfg *config.Config, fetcher crawler.Fetcher, db *database.CrawlDB, logger *slog.Logger, target string) *pipeline.Pipeline {
	site := cfg.ForSite(database.HostOf(target))

	p := pipeline.New(pipeline.WithLogger(logger))

	p.AddStep(pipeline.NewCrawlStep(fetcher,
		pipeline.WithCrawlMaxDepth(site.Depth),
		pipeline.WithCrawlIncludePDFs(site.IncludePDFs),
		pipeline.WithCrawlIgnoreEPUBs(site.IgnoreEPUBs),
		pipeline.WithCrawlWorkers(site.Workers),
		pipeline.WithCrawlPerOriginLimit(cfg.PerOriginLimit),
		pipeline.WithCrawlDelay(site.CrawlDelay),
		pipeline.WithCrawlIgnorePatterns(site.IgnorePatterns),
		pipeline.WithCrawlFollowPatterns(site.FollowPatterns),
		pipeline.WithCrawlOrderedOutput(cfg.OrderedOutput),
		pipeline.WithCrawlLogger(logger),
	))
	if db != nil {
		p.AddStep(pipeline.NewPersistStep(db, pipeline.WithPersistLogger(logger)))
	}

	// Output is written even after an interruption.
	p.AddFinalSteps(
		pipeline.NewCompressStep(cfg.Compress),
		pipeline.NewWriteStep(cfg.OutputDir, pipeline.WithWriteLogger(logger)),
	)

	return p
}

// failedTargets returns errTargetsFailed if any report carries an error.
func failedTargets(reports []*model.CorpusReport) error {
	failed := 0
	for _, r := range reports {
		if r != nil && r.Error != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errTargetsFailed, failed, len(reports))
	}
	return nil
}

// outputReports prints the summaries in the requested format.
func outputReports(cfg *config.Config, reports []*model.CorpusReport, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		output = f
	}

	_, err := report.WriteAll(newReportWriter(cfg, output), reports)
	return err
}

// newReportWriter selects the summary writer for cfg.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

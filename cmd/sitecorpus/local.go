package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecorpus/internal/config"
	"github.com/nao1215/sitecorpus/internal/localdir"
	"github.com/nao1215/sitecorpus/internal/model"
	"github.com/nao1215/sitecorpus/internal/pipeline"
)

// NewLocalCmd creates the local command.
func NewLocalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local [dir]",
		Short: "Collect the text files of a directory into a corpus",
		Long: `Local walks a directory tree and concatenates every source and text file
into one corpus, each file preceded by a header naming its path.

Dependency, cache, build and VCS directories (node_modules, .git, dist,
__pycache__, ...) are skipped, as are files this tool writes itself.

The corpus is written to <output-dir>/uncompressed.output.txt, with the
processed file list in processed_urls.txt.

Examples:
  # Collect the current project
  sitecorpus local .

  # Also include Go files and skip the testdata directory
  sitecorpus local --ext .go --exclude-dir '^testdata$' ./myproject`,
		Args: cobra.ExactArgs(1),
		RunE: runLocalCmd,
	}

	cmd.Flags().StringSlice("ext", nil,
		"Additional file extensions to include (e.g., .go,.java)")
	cmd.Flags().StringSlice("exclude-dir", nil,
		"Additional directory exclusion regexes, matched against the path relative to dir")
	cmd.Flags().StringP("output-dir", "o", config.DefaultOutputDir,
		"Directory that receives the corpus files")
	cmd.Flags().Bool("no-compress", false,
		"Do not write compressed.output.txt")

	addReportFlags(cmd)

	return cmd
}

// runLocalCmd executes the local command.
func runLocalCmd(cmd *cobra.Command, args []string) error {
	cfg := config.NewConfig()
	cfg.Targets = args
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	if cfg.OutputDir, err = cmd.Flags().GetString("output-dir"); err != nil {
		return err
	}
	noCompress, err := cmd.Flags().GetBool("no-compress")
	if err != nil {
		return err
	}
	cfg.Compress = !noCompress

	if err := readReportFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	extraExts, err := cmd.Flags().GetStringSlice("ext")
	if err != nil {
		return err
	}
	extraDirs, err := cmd.Flags().GetStringSlice("exclude-dir")
	if err != nil {
		return err
	}
	filter, err := buildFilter(args[0], cfg.OutputDir, extraExts, extraDirs)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Verbose)

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	return runLocal(ctx, cfg, filter, logger, cmd.OutOrStdout())
}

// buildFilter extends the default file filter. The output directory is
// excluded when it lies inside root.
func buildFilter(root, outputDir string, extraExts, extraDirs []string) (localdir.Filter, error) {
	exts := slices.Clone(extraExts)
	for _, list := range localdir.DefaultExtensions {
		exts = append(exts, list...)
	}

	dirs := append(slices.Clone(localdir.DefaultExcludedDirs), extraDirs...)
	if rel, ok := relativeDir(root, outputDir); ok {
		dirs = append(dirs, "^"+regexp.QuoteMeta(filepath.ToSlash(rel))+"$")
	}

	filter, err := localdir.NewFilter(exts, localdir.DefaultExcludedSuffixes, dirs)
	if err != nil {
		return localdir.Filter{}, fmt.Errorf("configuration error: %w", err)
	}
	return filter, nil
}

// relativeDir returns dir relative to root if dir is strictly below root.
func relativeDir(root, dir string) (string, bool) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absRoot, absDir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// runLocal builds the corpus of the directory in cfg.Targets[0].
func runLocal(ctx context.Context, cfg *config.Config, filter localdir.Filter, logger *slog.Logger, stdout io.Writer) error {
	walker := localdir.NewWalker(
		localdir.WithFilter(filter),
		localdir.WithLogger(logger),
	)

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddStep(pipeline.NewLocalStep(walker))
	p.AddFinalSteps(
		pipeline.NewCompressStep(cfg.Compress),
		pipeline.NewWriteStep(cfg.OutputDir, pipeline.WithWriteLogger(logger)),
	)

	corpus := model.NewLocalCorpusReport(cfg.Targets[0])
	runErr := p.Execute(ctx, corpus)

	if err := outputReports(cfg, []*model.CorpusReport{corpus}, stdout); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return runErr
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	applog "github.com/nao1215/sitecorpus/internal/log"
)

// NewRootCmd creates the root command for sitecorpus.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitecorpus",
		Short: "Turn a website or a source tree into one text corpus",
		Long: `sitecorpus crawls a website breadth-first up to a link depth, extracts the
text of every HTML page and PDF document on the same host, and writes it as a
single corpus file together with the list of processed URLs.

It can also walk a local directory and concatenate its source and text files
in the same way. Finished crawls are kept in a local history database so that
later crawls of the same host can be compared.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewLocalCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the process logger and installs it as the slog
// default. Credentials in URLs and headers are masked before output.
func setupLogger(verbose bool) *slog.Logger {
	logger := applog.NewSecureLogger(os.Stderr, verbose)
	slog.SetDefault(logger)
	return logger
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
// Work in progress is stopped and partial results are still written.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

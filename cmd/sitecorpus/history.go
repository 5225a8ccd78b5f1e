package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitecorpus/internal/config"
	"github.com/nao1215/sitecorpus/internal/database"
)

// historyTimeFormat is the timestamp layout of history listings.
const historyTimeFormat = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [host]",
		Short: "List stored crawls",
		Long: `History lists the crawls kept in the history database.

Without an argument it lists every host that has been crawled. With a host
it lists the crawls of that host, newest first, with the IDs accepted by
'sitecorpus compare --with-crawl-id'.

Examples:
  # List crawled hosts
  sitecorpus history

  # List the crawls of one host
  sitecorpus history docs.example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		return listHosts(ctx, db, out)
	}
	return listCrawls(ctx, db, database.HostOf(args[0]), out)
}

// openHistoryDB opens the database selected by the --db-dir flag.
func openHistoryDB(cmd *cobra.Command) (*database.CrawlDB, error) {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// listHosts prints every host with stored crawls.
func listHosts(ctx context.Context, db *database.CrawlDB, out io.Writer) error {
	hosts, err := db.ListHosts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list hosts: %w", err)
	}

	if len(hosts) == 0 {
		fmt.Fprintln(out, "No crawls found in the database.")
		fmt.Fprintln(out, "\nUse 'sitecorpus crawl <url>' to crawl a site.")
		return nil
	}

	t := newTable(out)
	t.AppendHeader(table.Row{"Host"})
	for _, host := range hosts {
		t.AppendRow(table.Row{host})
	}
	t.Render()

	fmt.Fprintln(out, "\nUse 'sitecorpus history <host>' to see the crawls of a host.")
	return nil
}

// listCrawls prints the crawl history of host.
func listCrawls(ctx context.Context, db *database.CrawlDB, host string, out io.Writer) error {
	records, err := db.GetHistory(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintf(out, "No crawls found for %s\n", host)
		return nil
	}

	fmt.Fprintf(out, "Crawl history for %s (%d crawls):\n\n", host, len(records))

	t := newTable(out)
	t.AppendHeader(table.Row{"ID", "Started", "Duration", "Depth", "Pages", "Failures", "Base URL"})
	for _, r := range records {
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.Local().Format(historyTimeFormat),
			r.Duration().Round(time.Millisecond),
			r.MaxDepth,
			r.Pages,
			r.Failures,
			r.BaseURL,
		})
	}
	t.Render()

	return nil
}

// newTable creates a table writer that renders to out.
func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	return t
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecorpus/internal/database"
)

// errNotEnoughCrawls is returned when a host has fewer than two crawls.
var errNotEnoughCrawls = errors.New("at least 2 crawls are required for comparison")

// NewCompareCmd creates the compare command.
// This command compares crawl results stored in the history database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [host]",
		Short: "Compare two crawls of a host",
		Long: `Compare shows how a site changed between two stored crawls:
- Pages that appeared since the older crawl
- Pages that are no longer reachable
- Pages whose extracted text changed

By default the two most recent crawls of the host are compared. Use
'sitecorpus history <host>' to list the available crawl IDs.

Examples:
  # Compare the latest two crawls
  sitecorpus compare docs.example.com

  # Compare the latest crawl with crawl 5
  sitecorpus compare --with-crawl-id 5 docs.example.com

  # Output the comparison as JSON
  sitecorpus compare --json docs.example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().Int64P("with-crawl-id", "i", 0,
		"Compare the latest crawl with this older crawl")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	withID, err := cmd.Flags().GetInt64("with-crawl-id")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := compareHost(cmd.Context(), db, database.HostOf(args[0]), withID)
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputComparisonJSON(cmd.OutOrStdout(), result)
	}
	return outputComparisonText(cmd.OutOrStdout(), result)
}

// ComparisonResult holds the result of comparing two crawls of a host.
type ComparisonResult struct {
	Host      string       `json:"host"`
	Older     CrawlSummary `json:"older"`
	Newer     CrawlSummary `json:"newer"`
	Added     []PageDelta  `json:"added,omitempty"`
	Removed   []PageDelta  `json:"removed,omitempty"`
	Changed   []PageDelta  `json:"changed,omitempty"`
	Unchanged int          `json:"unchanged"`
}

// CrawlSummary identifies one side of a comparison.
type CrawlSummary struct {
	ID        int64     `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Pages     int       `json:"pages"`
}

// PageDelta is one page that differs between the crawls.
type PageDelta struct {
	URL       string `json:"url"`
	OldLength int    `json:"old_length,omitempty"`
	NewLength int    `json:"new_length,omitempty"`
}

// compareHost compares the latest crawl of host with the one before it,
// or with the crawl withID when it is non-zero.
func compareHost(ctx context.Context, db *database.CrawlDB, host string, withID int64) (*ComparisonResult, error) {
	records, err := db.GetHistory(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no crawl history found for %s", host)
	}

	newer := records[0]
	var older database.CrawlRecord

	if withID != 0 {
		found := false
		for _, r := range records {
			if r.ID == withID {
				older, found = r, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("crawl %d of %s: %w", withID, host, database.ErrCrawlNotFound)
		}
		if older.ID == newer.ID {
			return nil, fmt.Errorf("crawl %d is the latest crawl of %s; choose an older one", withID, host)
		}
	} else {
		if len(records) < 2 {
			return nil, fmt.Errorf("%w (found %d for %s)", errNotEnoughCrawls, len(records), host)
		}
		older = records[1]
	}

	diff, err := db.CompareCrawls(ctx, older.ID, newer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to compare crawls: %w", err)
	}

	return &ComparisonResult{
		Host:      host,
		Older:     summarize(older),
		Newer:     summarize(newer),
		Added:     toPageDeltas(diff.Added),
		Removed:   toPageDeltas(diff.Removed),
		Changed:   toPageDeltas(diff.Changed),
		Unchanged: diff.Unchanged,
	}, nil
}

func summarize(r database.CrawlRecord) CrawlSummary {
	return CrawlSummary{ID: r.ID, StartedAt: r.StartedAt, Pages: r.Pages}
}

func toPageDeltas(changes []database.PageChange) []PageDelta {
	if len(changes) == 0 {
		return nil
	}
	deltas := make([]PageDelta, 0, len(changes))
	for _, c := range changes {
		deltas = append(deltas, PageDelta{URL: c.URL, OldLength: c.OldLength, NewLength: c.NewLength})
	}
	return deltas
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(out, "Crawl Comparison: %s\n", result.Host)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nOlder crawl: #%-5d %s  (%d pages)\n",
		result.Older.ID, result.Older.StartedAt.Local().Format(historyTimeFormat), result.Older.Pages)
	fmt.Fprintf(out, "Newer crawl: #%-5d %s  (%d pages)\n",
		result.Newer.ID, result.Newer.StartedAt.Local().Format(historyTimeFormat), result.Newer.Pages)

	if len(result.Added)+len(result.Removed)+len(result.Changed) == 0 {
		fmt.Fprintf(out, "\nNo changes (%d pages unchanged)\n", result.Unchanged)
		return nil
	}

	if len(result.Added) > 0 {
		fmt.Fprintf(out, "\nAdded Pages (%d):\n", len(result.Added))
		for _, p := range result.Added {
			fmt.Fprintf(out, "  [+] %s (%d bytes)\n", p.URL, p.NewLength)
		}
	}

	if len(result.Removed) > 0 {
		fmt.Fprintf(out, "\nRemoved Pages (%d):\n", len(result.Removed))
		for _, p := range result.Removed {
			fmt.Fprintf(out, "  [-] %s\n", p.URL)
		}
	}

	if len(result.Changed) > 0 {
		fmt.Fprintf(out, "\nChanged Pages (%d):\n", len(result.Changed))
		for _, p := range result.Changed {
			fmt.Fprintf(out, "  [~] %s (%d -> %d bytes)\n", p.URL, p.OldLength, p.NewLength)
		}
	}

	if result.Unchanged > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d pages\n", result.Unchanged)
	}

	return nil
}

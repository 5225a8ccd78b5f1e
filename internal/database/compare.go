package database

import (
	"context"
	"fmt"
)

// PageChange describes one page that differs between two crawls.
type PageChange struct {
	URL string

	// OldLength and NewLength are the text lengths in the two crawls.
	// One of them is 0 for added and removed pages.
	OldLength int
	NewLength int
}

// CrawlDiff is the difference between an older and a newer crawl of one host.
type CrawlDiff struct {
	OldID     int64
	NewID     int64
	Added     []PageChange
	Removed   []PageChange
	Changed   []PageChange
	Unchanged int
}

// HasChanges reports whether any page was added, removed or changed.
func (d CrawlDiff) HasChanges() bool {
	return len(d.Added)+len(d.Removed)+len(d.Changed) > 0
}

// DiffPages compares two sets of page summaries by URL and text hash.
// Added and Changed follow the order of newer, Removed the order of older.
func DiffPages(older, newer []PageRecord) CrawlDiff {
	oldByURL := make(map[string]PageRecord, len(older))
	for _, p := range older {
		oldByURL[p.URL] = p
	}
	newURLs := make(map[string]struct{}, len(newer))

	var diff CrawlDiff
	for _, p := range newer {
		newURLs[p.URL] = struct{}{}
		prev, ok := oldByURL[p.URL]
		switch {
		case !ok:
			diff.Added = append(diff.Added, PageChange{URL: p.URL, NewLength: p.TextLength})
		case prev.TextHash != p.TextHash:
			diff.Changed = append(diff.Changed, PageChange{
				URL:       p.URL,
				OldLength: prev.TextLength,
				NewLength: p.TextLength,
			})
		default:
			diff.Unchanged++
		}
	}
	for _, p := range older {
		if _, ok := newURLs[p.URL]; !ok {
			diff.Removed = append(diff.Removed, PageChange{URL: p.URL, OldLength: p.TextLength})
		}
	}
	return diff
}

// CompareCrawls diffs the stored pages of two crawls.
func (cdb *CrawlDB) CompareCrawls(ctx context.Context, olderID, newerID int64) (CrawlDiff, error) {
	for _, id := range []int64{olderID, newerID} {
		if err := cdb.crawlExists(ctx, id); err != nil {
			return CrawlDiff{}, fmt.Errorf("crawl %d: %w", id, err)
		}
	}

	older, err := cdb.GetPages(ctx, olderID)
	if err != nil {
		return CrawlDiff{}, err
	}
	newer, err := cdb.GetPages(ctx, newerID)
	if err != nil {
		return CrawlDiff{}, err
	}

	diff := DiffPages(older, newer)
	diff.OldID = olderID
	diff.NewID = newerID
	return diff, nil
}

func (cdb *CrawlDB) crawlExists(ctx context.Context, id int64) error {
	var count int
	if err := cdb.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM crawls WHERE id = ?`, id).Scan(&count); err != nil {
		return fmt.Errorf("failed to look up crawl: %w", err)
	}
	if count == 0 {
		return ErrCrawlNotFound
	}
	return nil
}

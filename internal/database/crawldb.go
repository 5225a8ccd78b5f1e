package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitecorpus/internal/model"
)

// FileName is the database file created inside the database directory.
const FileName = "sitecorpus.db"

// ErrCrawlNotFound is returned when no stored crawl matches a lookup.
var ErrCrawlNotFound = errors.New("crawl not found")

// CrawlDB provides SQLite-based storage for finished crawls.
//
// Design decision: We store the whole CrawlResult as JSON in the crawls
// table and a per-page summary (URL, depth, kind, text hash) in the pages
// table. The summary is enough to compare two crawls without decoding the
// stored text.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a new file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per finished crawl
	CREATE TABLE IF NOT EXISTS crawls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL,
		base_url TEXT NOT NULL,
		host TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		pages INTEGER NOT NULL,
		failures INTEGER NOT NULL,
		result_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_crawls_host ON crawls(host);
	CREATE INDEX IF NOT EXISTS idx_crawls_started ON crawls(started_at);

	-- One row per document of a crawl
	CREATE TABLE IF NOT EXISTS pages (
		crawl_id INTEGER NOT NULL REFERENCES crawls(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		kind TEXT NOT NULL,
		text_hash TEXT NOT NULL,
		text_length INTEGER NOT NULL,
		PRIMARY KEY (crawl_id, url)
	);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// CrawlRecord is the summary of a stored crawl, used for history listings.
type CrawlRecord struct {
	ID         int64
	UUID       string
	BaseURL    string
	Host       string
	MaxDepth   int
	StartedAt  time.Time
	FinishedAt time.Time
	Pages      int
	Failures   int
}

// Duration returns how long the crawl took.
func (r CrawlRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// PageRecord is the stored summary of one document.
type PageRecord struct {
	Seq        uint64
	URL        string
	Depth      int
	Kind       model.DocumentKind
	TextHash   string
	TextLength int
}

// HashText returns the hex SHA-256 of text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// HostOf returns the host name of a base URL, or the URL itself if it
// cannot be parsed.
func HostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return baseURL
	}
	return u.Hostname()
}

// SaveCrawl stores result and its pages in one transaction and returns the
// new crawl ID.
func (cdb *CrawlDB) SaveCrawl(ctx context.Context, result *model.CrawlResult) (int64, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize crawl result: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO crawls (uuid, base_url, host, max_depth, started_at, finished_at, pages, failures, result_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.ID,
		result.BaseURL,
		HostOf(result.BaseURL),
		result.MaxDepth,
		formatTimestamp(result.StartedAt),
		formatTimestamp(result.FinishedAt),
		len(result.Documents),
		len(result.Failures),
		string(resultJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crawl: %w", err)
	}

	crawlID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get crawl id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR IGNORE INTO pages (crawl_id, seq, url, depth, kind, text_hash, text_length)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range result.Documents {
		if _, err := stmt.ExecContext(ctx,
			crawlID,
			int64(doc.Seq), //nolint:gosec // sequence numbers stay far below MaxInt64
			doc.URL,
			doc.Depth,
			string(doc.Kind),
			HashText(doc.Text),
			len(doc.Text),
		); err != nil {
			return 0, fmt.Errorf("failed to insert page %s: %w", doc.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl: %w", err)
	}
	return crawlID, nil
}

// ListHosts returns every host with at least one stored crawl, sorted.
func (cdb *CrawlDB) ListHosts(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT host FROM crawls ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, host)
	}
	return hosts, rows.Err()
}

// GetHistory returns the crawls of host, newest first.
func (cdb *CrawlDB) GetHistory(ctx context.Context, host string) ([]CrawlRecord, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT id, uuid, base_url, host, max_depth, started_at, finished_at, pages, failures
	FROM crawls
	WHERE host = ?
	ORDER BY started_at DESC, id DESC
	`, host)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var records []CrawlRecord
	for rows.Next() {
		var rec CrawlRecord
		var startedAt, finishedAt string
		if err := rows.Scan(
			&rec.ID,
			&rec.UUID,
			&rec.BaseURL,
			&rec.Host,
			&rec.MaxDepth,
			&startedAt,
			&finishedAt,
			&rec.Pages,
			&rec.Failures,
		); err != nil {
			return nil, fmt.Errorf("failed to scan crawl: %w", err)
		}
		rec.StartedAt = parseTimestamp(startedAt)
		rec.FinishedAt = parseTimestamp(finishedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetCrawlByID returns the stored result of crawl id.
func (cdb *CrawlDB) GetCrawlByID(ctx context.Context, id int64) (*model.CrawlResult, error) {
	return cdb.loadResult(ctx, `SELECT result_json FROM crawls WHERE id = ?`, id)
}

// GetLatestCrawl returns the most recent stored crawl of host.
func (cdb *CrawlDB) GetLatestCrawl(ctx context.Context, host string) (*model.CrawlResult, error) {
	return cdb.loadResult(ctx, `
	SELECT result_json FROM crawls
	WHERE host = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`, host)
}

func (cdb *CrawlDB) loadResult(ctx context.Context, query string, arg any) (*model.CrawlResult, error) {
	var resultJSON string
	err := cdb.db.QueryRowContext(ctx, query, arg).Scan(&resultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCrawlNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl: %w", err)
	}

	var result model.CrawlResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to parse crawl result: %w", err)
	}
	result.Text = model.RenderCorpus(result.BaseURL, result.MaxDepth, result.Documents)
	return &result, nil
}

// GetPages returns the page summaries of crawl id in discovery order.
func (cdb *CrawlDB) GetPages(ctx context.Context, crawlID int64) ([]PageRecord, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT seq, url, depth, kind, text_hash, text_length
	FROM pages
	WHERE crawl_id = ?
	ORDER BY seq
	`, crawlID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer rows.Close()

	var pages []PageRecord
	for rows.Next() {
		var p PageRecord
		var seq int64
		var kind string
		if err := rows.Scan(&seq, &p.URL, &p.Depth, &kind, &p.TextHash, &p.TextLength); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.Seq = uint64(seq) //nolint:gosec // stored from a uint64
		p.Kind = model.DocumentKind(kind)
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// timestampLayout is fixed width so that stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp parses s with the first matching format and returns the
// zero time if none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Package database provides SQLite-based crawl history for sitecorpus.
//
// CrawlDB stores every finished crawl together with a per-page summary
// (URL, depth, document kind, SHA-256 of the extracted text). The history
// and compare commands read it to list past crawls of a host and to show
// which pages appeared, disappeared or changed between two crawls.
//
// The database is a single SQLite file (modernc.org/sqlite, no cgo) under
// the XDG data directory.
package database

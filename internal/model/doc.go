// Package model defines the core data structures used throughout sitecorpus.
//
// This package contains the following main types:
//   - CrawlTarget: A URL waiting in the frontier, with its discovery depth
//   - FetchResult: The outcome of a single network retrieval
//   - ExtractedDocument: Plain text and outbound links pulled from a body
//   - CrawlResult: The ordered document set produced by one crawl
//   - CorpusReport: The accumulated state of one pipeline run
//
// Everything here is serializable to JSON for report output and database
// storage.
package model

// Package pipeline runs a corpus job as a sequence of steps over one
// model.CorpusReport: collect (crawl a site or walk a directory), persist
// the crawl to the history database, compute statistics and the compressed
// text, and write the output files.
//
// Commands assemble only the steps they need; local runs have no persist
// step. Final steps run even after an interruption and write whatever was
// collected.
//
// BatchProcessor runs several pipelines concurrently using errgroup.
package pipeline

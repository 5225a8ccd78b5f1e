// Package main provides the entry point for the sitecorpus CLI.
//
// sitecorpus crawls a website, or walks a local directory, and writes the
// collected text as a single corpus file for language model tooling.
//
// Usage:
//
//	sitecorpus crawl <url>...
//	sitecorpus local <dir>
//
// See --help for all available options.
package main

// main is the entry point for sitecorpus.
func main() {
	Execute()
}

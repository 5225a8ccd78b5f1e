// Package crawler collects the text of a website.
//
// # Architecture
//
// The crawl is split into small parts that can be tested on their own:
//
//   - Fetcher: retrieves one URL and reports success or a failure reason
//   - Extractor: turns an HTML or PDF body into text and outbound links
//   - Tracker: remembers canonical (fragment-free) URLs already accepted
//   - Frontier: FIFO queue of targets, gated by the Tracker and the policy
//   - Aggregator: collects documents and failures in completion order
//   - Spider: drives the loop and owns the crawl lifecycle
//
// The frontier is FIFO, so pages are visited breadth-first and every URL
// keeps the depth at which it was first discovered.
//
// # Concurrency
//
// By default the Spider processes one target at a time. WithWorkers(n)
// starts n goroutines that share the Frontier; documents then arrive in
// completion order and carry their discovery sequence number so that
// CrawlResult.SortBySeq can restore the breadth-first order. Per-origin
// request caps and delays are available via WithPerOriginLimit and WithDelay.
//
// # Usage
//
//	client, _ := crawler.NewHTTPClient(crawler.TransportOptions{Timeout: 30 * time.Second})
//	spider := crawler.NewSpider(crawler.NewHTTPFetcher(client), crawler.WithMaxDepth(2))
//	result, err := spider.Crawl(ctx, "https://example.com/docs/")
package crawler

package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// CrawlAndWrite crawls from baseURL, writes the corpus text to textDst and
// the processed URL list to urlsDst, and returns the corpus text.
//
// When the crawl is cancelled the partial corpus is still written and
// returned together with the context error.
func CrawlAndWrite(ctx context.Context, spider *Spider, baseURL string, textDst, urlsDst io.Writer) (string, error) {
	result, crawlErr := spider.Crawl(ctx, baseURL)
	if result == nil {
		return "", crawlErr
	}

	if _, err := io.WriteString(textDst, result.Text); err != nil {
		return result.Text, errors.Join(crawlErr, fmt.Errorf("write corpus: %w", err))
	}
	if _, err := io.WriteString(urlsDst, result.URLList()); err != nil {
		return result.Text, errors.Join(crawlErr, fmt.Errorf("write url list: %w", err))
	}

	return result.Text, crawlErr
}

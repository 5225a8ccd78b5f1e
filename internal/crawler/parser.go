package crawler

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// removedElements are dropped before text is collected. Their content is
// markup plumbing rather than page text.
const removedElements = "script, style, head, title, meta"

// Parser extracts readable text and outbound links from an HTML page.
//
// goquery does the element removal and anchor selection. The text walk runs
// over the underlying golang.org/x/net/html nodes so that each text node is
// trimmed on its own and separated by a newline, which Selection.Text does
// not do.
type Parser struct {
	// pageURL is the URL of the page being parsed, used for resolving relative URLs.
	pageURL *url.URL
}

// ParseResult contains the text and links extracted from one HTML page.
type ParseResult struct {
	// Text is every non-empty trimmed text node joined with "\n".
	Text string

	// Links are absolute, fragment-free URLs from <a href> in document order.
	Links []string
}

// NewParser creates a new HTML parser for the page at pageURL.
func NewParser(pageURL string) (*Parser, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	return &Parser{pageURL: u}, nil
}

// ParseBytes decodes body using the charset declared in contentType or in
// the document itself, then parses it.
func (p *Parser) ParseBytes(body []byte, contentType string) (*ParseResult, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	return p.Parse(r)
}

// Parse parses UTF-8 HTML content.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := goquery.NewDocumentFromReader(content)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc.Find(removedElements).Remove()

	result := &ParseResult{
		Links: make([]string, 0),
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if resolved := p.resolveURL(href); resolved != "" {
			result.Links = append(result.Links, resolved)
		}
	})

	parts := make([]string, 0)
	for _, n := range doc.Nodes {
		parts = collectText(n, parts)
	}
	result.Text = strings.Join(parts, "\n")

	return result, nil
}

// collectText appends the trimmed, non-empty text nodes under n.
// Comment subtrees are skipped.
func collectText(n *html.Node, parts []string) []string {
	switch n.Type {
	case html.CommentNode, html.DoctypeNode:
		return parts
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			parts = append(parts, text)
		}
		return parts
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		parts = collectText(c, parts)
	}
	return parts
}

// nonNavigablePrefixes are href schemes that never lead to a page.
var nonNavigablePrefixes = []string{"javascript:", "mailto:", "tel:", "data:"}

// resolveURL resolves href against the page URL and strips the fragment.
// It returns "" for links that cannot be crawled.
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}

	lower := strings.ToLower(href)
	for _, prefix := range nonNavigablePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := p.pageURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String()
}

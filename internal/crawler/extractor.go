package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/nao1215/sitecorpus/internal/model"
	"github.com/nao1215/sitecorpus/internal/policy"
)

// Extractor turns a fetched body into text and outbound links.
// Implementations must be safe for concurrent use.
type Extractor interface {
	Extract(fetched model.FetchResult) model.ExtractedDocument
}

// ContentExtractor picks the HTML or PDF variant for each body.
// It is stateless.
type ContentExtractor struct{}

// NewExtractor returns the default Extractor.
func NewExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

// Extract implements Extractor. A body that cannot be decoded yields a
// document with empty text and Err set. A body of any other type than HTML,
// text or PDF yields no text and an Err wrapping ErrUnsupportedContent.
func (e *ContentExtractor) Extract(fetched model.FetchResult) model.ExtractedDocument {
	kind, err := Classify(fetched)
	switch {
	case err != nil:
		return model.ExtractedDocument{URL: fetched.URL, OutboundLinks: []string{}, Err: err}
	case kind == model.KindPDF:
		return e.extractPDF(fetched)
	default:
		return e.extractHTML(fetched)
	}
}

// Classify picks the extractor variant for a fetched body from its media
// type:
//   - application/pdf is a PDF
//   - text/html, application/xhtml+xml and other text/* types are HTML
//   - a missing or generic binary type falls back to the URL: a ".pdf"
//     path is a PDF, anything else with no type is HTML
//
// Every other type, images and archives and EPUBs among them, returns an
// error wrapping ErrUnsupportedContent.
func Classify(fetched model.FetchResult) (model.DocumentKind, error) {
	mediaType := fetched.MediaType()
	switch {
	case mediaType == "application/pdf":
		return model.KindPDF, nil
	case mediaType == "text/html", mediaType == "application/xhtml+xml",
		strings.HasPrefix(mediaType, "text/"):
		return model.KindHTML, nil
	case mediaType == "", mediaType == "application/octet-stream", mediaType == "binary/octet-stream":
		if pathIsPDF(fetched.URL) {
			return model.KindPDF, nil
		}
		if mediaType == "" {
			return model.KindHTML, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedContent, mediaType)
}

func pathIsPDF(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return policy.IsPDF(u)
}

func (e *ContentExtractor) extractHTML(fetched model.FetchResult) model.ExtractedDocument {
	doc := model.ExtractedDocument{
		URL:           fetched.URL,
		Kind:          model.KindHTML,
		OutboundLinks: []string{},
	}

	parser, err := NewParser(fetched.PageURL())
	if err != nil {
		doc.Err = fmt.Errorf("parse page url: %w", err)
		return doc
	}

	result, err := parser.ParseBytes(fetched.Body, fetched.ContentType)
	if err != nil {
		doc.Err = err
		return doc
	}

	doc.Text = result.Text
	doc.OutboundLinks = result.Links
	return doc
}

func (e *ContentExtractor) extractPDF(fetched model.FetchResult) (doc model.ExtractedDocument) {
	doc = model.ExtractedDocument{
		URL:           fetched.URL,
		Kind:          model.KindPDF,
		OutboundLinks: []string{},
	}

	defer func() {
		if r := recover(); r != nil {
			doc.Text = ""
			doc.Err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	src, err := openPDF(fetched.Body)
	if err != nil {
		doc.Err = err
		return doc
	}

	doc.Text = extractPDFText(src)
	return doc
}

package crawler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pageSource is the part of a PDF reader that text extraction needs.
// Pages are numbered from 1.
type pageSource interface {
	NumPage() int
	PageText(page int) (string, error)
}

// pdfReader adapts *pdf.Reader to pageSource.
type pdfReader struct {
	r *pdf.Reader
}

func (p pdfReader) NumPage() int {
	return p.r.NumPage()
}

func (p pdfReader) PageText(page int) (string, error) {
	pg := p.r.Page(page)
	if pg.V.IsNull() {
		return "", nil
	}
	return pg.GetPlainText(nil)
}

// openPDF parses body as a PDF document.
func openPDF(body []byte) (pageSource, error) {
	r, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return pdfReader{r: r}, nil
}

// extractPDFText returns the text of every page in order, joined by a
// single space. Pages that are empty, fail, or panic contribute nothing.
func extractPDFText(src pageSource) string {
	pages := make([]string, 0, src.NumPage())
	for i := 1; i <= src.NumPage(); i++ {
		text := safePageText(src, i)
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, " ")
}

// safePageText extracts one page. The PDF library panics on some malformed
// content streams, so a panic is treated like an error.
func safePageText(src pageSource, page int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	t, err := src.PageText(page)
	if err != nil {
		return ""
	}
	return t
}

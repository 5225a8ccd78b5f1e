package crawler

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nao1215/sitecorpus/internal/model"
)

// fakePDF is a pageSource backed by a slice of page texts.
// A page text of "!panic" panics and "!error" returns an error.
type fakePDF []string

func (f fakePDF) NumPage() int { return len(f) }

func (f fakePDF) PageText(page int) (string, error) {
	switch text := f[page-1]; text {
	case "!panic":
		panic("malformed content stream")
	case "!error":
		return "", errors.New("cannot decode page")
	default:
		return text, nil
	}
}

// buildPDF returns a minimal PDF with one page per text. An empty text
// produces a page with an empty content stream.
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()

	n := len(pages)
	fontID := 3 + 2*n
	objects := make([]string, 0, fontID)
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, 0, n)
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+2*i))
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))

	for i, text := range pages {
		var content string
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
				"/Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontID, 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestOpenPDF(t *testing.T) {
	t.Parallel()

	t.Run("reads pages in order and skips empty ones", func(t *testing.T) {
		t.Parallel()

		src, err := openPDF(buildPDF(t, "p1", "", "p3"))
		if err != nil {
			t.Fatalf("openPDF() error: %v", err)
		}
		if src.NumPage() != 3 {
			t.Fatalf("NumPage() = %d, want 3", src.NumPage())
		}
		if got := extractPDFText(src); got != "p1 p3" {
			t.Errorf("extractPDFText() = %q, want %q", got, "p1 p3")
		}
	})

	t.Run("rejects non pdf data", func(t *testing.T) {
		t.Parallel()

		if _, err := openPDF([]byte("<html>not a pdf</html>")); err == nil {
			t.Error("expected error for non pdf body")
		}
	})

	t.Run("through the content extractor", func(t *testing.T) {
		t.Parallel()

		doc := NewExtractor().Extract(model.FetchResult{
			URL:         "https://example.com/report.pdf",
			Status:      model.FetchOK,
			ContentType: "application/pdf",
			Body:        buildPDF(t, "first", "second"),
		})
		if doc.Err != nil {
			t.Fatalf("unexpected error: %v", doc.Err)
		}
		if doc.Kind != model.KindPDF || doc.Text != "first second" {
			t.Errorf("got kind %q text %q", doc.Kind, doc.Text)
		}
	})
}

func TestExtractPDFText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		pages fakePDF
		want  string
	}{
		{name: "empty page skipped", pages: fakePDF{"p1", "", "p3"}, want: "p1 p3"},
		{name: "whitespace page skipped", pages: fakePDF{"p1", " \n ", "p3"}, want: "p1 p3"},
		{name: "single page", pages: fakePDF{"only"}, want: "only"},
		{name: "no pages", pages: fakePDF{}, want: ""},
		{name: "failing page contributes nothing", pages: fakePDF{"p1", "!error", "p3"}, want: "p1 p3"},
		{name: "panicking page contributes nothing", pages: fakePDF{"!panic", "p2"}, want: "p2"},
		{name: "all pages empty", pages: fakePDF{"", ""}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := extractPDFText(tt.pages); got != tt.want {
				t.Errorf("extractPDFText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContentExtractor(t *testing.T) {
	t.Parallel()

	e := NewExtractor()

	t.Run("html by default", func(t *testing.T) {
		t.Parallel()

		doc := e.Extract(model.FetchResult{
			URL:         "https://example.com/a",
			Status:      model.FetchOK,
			ContentType: "text/html",
			Body:        []byte(`<p>text</p><a href="b#x">b</a>`),
		})
		if doc.Kind != model.KindHTML {
			t.Errorf("got kind %q, expected html", doc.Kind)
		}
		if doc.Err != nil {
			t.Errorf("unexpected error: %v", doc.Err)
		}
		if doc.Text != "text\nb" {
			t.Errorf("got text %q", doc.Text)
		}
		if len(doc.OutboundLinks) != 1 || doc.OutboundLinks[0] != "https://example.com/b" {
			t.Errorf("got links %v", doc.OutboundLinks)
		}
	})

	t.Run("pdf selected by content type", func(t *testing.T) {
		t.Parallel()

		doc := e.Extract(model.FetchResult{
			URL:         "https://example.com/download?id=1",
			Status:      model.FetchOK,
			ContentType: "application/pdf",
			Body:        []byte("not a pdf"),
		})
		if doc.Kind != model.KindPDF {
			t.Errorf("got kind %q, expected pdf", doc.Kind)
		}
	})

	t.Run("corrupt pdf yields empty text and error", func(t *testing.T) {
		t.Parallel()

		doc := e.Extract(model.FetchResult{
			URL:         "https://example.com/manual.pdf",
			Status:      model.FetchOK,
			ContentType: "application/octet-stream",
			Body:        []byte("definitely not a pdf"),
		})
		if doc.Kind != model.KindPDF {
			t.Errorf("got kind %q, expected pdf", doc.Kind)
		}
		if doc.Err == nil {
			t.Error("expected extraction error for corrupt pdf")
		}
		if doc.Text != "" {
			t.Errorf("expected empty text, got %q", doc.Text)
		}
		if len(doc.OutboundLinks) != 0 {
			t.Errorf("pdf documents must not have links, got %v", doc.OutboundLinks)
		}
	})
	t.Run("unsupported media type", func(t *testing.T) {
		t.Parallel()

		doc := e.Extract(model.FetchResult{
			URL:         "https://example.com/logo",
			Status:      model.FetchOK,
			ContentType: "image/png",
			Body:        []byte("\x89PNG\r\n\x1a\n"),
		})
		if !errors.Is(doc.Err, ErrUnsupportedContent) {
			t.Errorf("expected ErrUnsupportedContent, got %v", doc.Err)
		}
		if doc.Text != "" {
			t.Errorf("expected no text, got %q", doc.Text)
		}
	})

	t.Run("links resolve against the final url", func(t *testing.T) {
		t.Parallel()

		doc := e.Extract(model.FetchResult{
			URL:         "https://example.com/docs",
			FinalURL:    "https://example.com/docs/",
			Status:      model.FetchOK,
			ContentType: "text/html",
			Body:        []byte(`<a href="intro">intro</a>`),
		})
		if doc.URL != "https://example.com/docs" {
			t.Errorf("document URL = %q, want the requested URL", doc.URL)
		}
		if len(doc.OutboundLinks) != 1 || doc.OutboundLinks[0] != "https://example.com/docs/intro" {
			t.Errorf("got links %v", doc.OutboundLinks)
		}
	})
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		url         string
		contentType string
		want        model.DocumentKind
		wantErr     bool
	}{
		{name: "html", url: "https://example.com/", contentType: "text/html; charset=utf-8", want: model.KindHTML},
		{name: "xhtml", url: "https://example.com/", contentType: "application/xhtml+xml", want: model.KindHTML},
		{name: "plain text", url: "https://example.com/a.txt", contentType: "text/plain", want: model.KindHTML},
		{name: "no type", url: "https://example.com/a", contentType: "", want: model.KindHTML},
		{name: "pdf", url: "https://example.com/dl?id=1", contentType: "application/pdf", want: model.KindPDF},
		{name: "no type pdf path", url: "https://example.com/a.PDF", contentType: "", want: model.KindPDF},
		{name: "octet stream pdf path", url: "https://example.com/a.pdf", contentType: "application/octet-stream", want: model.KindPDF},
		{name: "octet stream", url: "https://example.com/blob", contentType: "application/octet-stream", wantErr: true},
		{name: "image", url: "https://example.com/logo.png", contentType: "image/png", wantErr: true},
		{name: "zip", url: "https://example.com/a.zip", contentType: "application/zip", wantErr: true},
		{name: "epub", url: "https://example.com/book", contentType: "application/epub+zip", wantErr: true},
		{name: "json", url: "https://example.com/api", contentType: "application/json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Classify(model.FetchResult{URL: tt.url, ContentType: tt.contentType})
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedContent) {
					t.Errorf("expected ErrUnsupportedContent, got kind %q err %v", got, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("Classify() = (%q, %v), want %q", got, err, tt.want)
			}
		})
	}
}

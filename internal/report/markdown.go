package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitecorpus/internal/model"
)

// MarkdownWriter outputs reports in Markdown format. The crawl step also
// uses it to write summary.md next to the corpus files.
type MarkdownWriter struct {
	baseWriter

	// maxRows limits the document table. 0 means no limit.
	maxRows int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMaxRows limits the number of rows in the document table.
func WithMaxRows(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		if n >= 0 {
			w.maxRows = n
		}
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CorpusReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeStatistics(md, report)
	if report.Result != nil {
		w.writeDocuments(md, report.Result)
		w.writeFailures(md, report.Result)
	} else {
		w.writeFiles(md, report.Files)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CorpusReport) {
	md.H1("Corpus Report")
	md.PlainText("")

	rows := [][]string{
		{"Source", "`" + report.Source + "`"},
		{"Kind", string(report.Kind)},
		{"Date", report.DateStarted.Format("2006-01-02 15:04:05 MST")},
	}
	if report.Result != nil {
		rows = append(rows,
			[]string{"Max Depth", strconv.Itoa(report.Result.MaxDepth)},
			[]string{"Crawl ID", "`" + report.Result.ID + "`"},
		)
	}
	rows = append(rows, []string{"Status", statusText(report)})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeStatistics(md *markdown.Markdown, report *model.CorpusReport) {
	md.H2("Statistics")
	md.PlainText("")

	rows := [][]string{
		{"Documents", strconv.Itoa(report.DocumentCount())},
		{"Words", strconv.Itoa(report.WordCount)},
		{"Estimated tokens", strconv.Itoa(report.TokenEstimate)},
	}
	if report.CompressedTokenEstimate > 0 {
		rows = append(rows, []string{"Estimated tokens (compressed)", strconv.Itoa(report.CompressedTokenEstimate)})
	}
	if report.Kind == model.SourceWeb {
		rows = append(rows, []string{"Failures", strconv.Itoa(report.FailureCount())})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.Result != nil && len(report.Result.Documents)+len(report.Result.Failures) > 0 {
		w.writePieChart(md, report.Result)
	}
	w.writeAlert(md, report)
}

// writePieChart writes the split of documents by kind and failed targets.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, result *model.CrawlResult) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Crawl Targets"),
		piechart.WithShowData(true),
	)

	var htmlDocs, pdfDocs uint64
	for _, doc := range result.Documents {
		if doc.Kind == model.KindPDF {
			pdfDocs++
		} else {
			htmlDocs++
		}
	}
	if htmlDocs > 0 {
		chart.LabelAndIntValue("HTML", htmlDocs)
	}
	if pdfDocs > 0 {
		chart.LabelAndIntValue("PDF", pdfDocs)
	}
	if n := len(result.Failures); n > 0 {
		chart.LabelAndIntValue("Failed", uint64(n))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CorpusReport) {
	switch {
	case report.ErrorMessage != "" && !report.TimedOut:
		md.Cautionf("The run stopped with an error: %s", report.ErrorMessage)
	case report.TimedOut:
		md.Warningf("The run was interrupted. %d document(s) were collected before it stopped.",
			report.DocumentCount())
	case report.FailureCount() > 0:
		md.Importantf("%d target(s) could not be fetched or extracted. See Failures below.",
			report.FailureCount())
	case report.DocumentCount() == 0:
		md.Note("No documents were collected.")
	default:
		md.Tip("All targets were collected.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeDocuments(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Documents")
	md.PlainText("")

	if len(result.Documents) == 0 {
		md.PlainText("No documents collected.")
		md.PlainText("")
		return
	}

	docs := result.Documents
	if w.maxRows > 0 && len(docs) > w.maxRows {
		docs = docs[:w.maxRows]
	}

	rows := make([][]string, len(docs))
	for i, doc := range docs {
		rows[i] = []string{
			truncateString(doc.URL, 80),
			strconv.Itoa(doc.Depth),
			string(doc.Kind),
			strconv.Itoa(len([]rune(doc.Text))),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Kind", "Characters"},
		Rows:   rows,
	})
	md.PlainText("")

	if hidden := len(result.Documents) - len(docs); hidden > 0 {
		md.PlainTextf("*%d more document(s) not shown.*", hidden)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, result *model.CrawlResult) {
	if len(result.Failures) == 0 {
		return
	}

	md.H2("Failures")
	md.PlainText("")

	rows := make([][]string, len(result.Failures))
	for i, f := range result.Failures {
		reason := f.Reason
		if reason == "" {
			reason = "-"
		}
		rows[i] = []string{
			truncateString(f.URL, 80),
			strconv.Itoa(f.Depth),
			string(f.Stage),
			truncateString(reason, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Stage", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFiles(md *markdown.Markdown, files []string) {
	md.H2("Files")
	md.PlainText("")

	if len(files) == 0 {
		md.PlainText("No files collected.")
		md.PlainText("")
		return
	}
	md.BulletList(files...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by sitecorpus*")
}

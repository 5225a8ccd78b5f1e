package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitecorpus/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to list are shown.
	showEmpty bool

	// verbose adds the processed URL list and failure reasons.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CorpusReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeStatistics(&sb, report)
	w.writeOutputFiles(&sb, report)
	w.writeDocuments(&sb, report)
	w.writeFailures(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CorpusReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         SITECORPUS REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Source:         %s\n", report.Source)
	fmt.Fprintf(sb, "Kind:           %s\n", report.Kind)
	fmt.Fprintf(sb, "Date:           %s\n", report.DateStarted.Format("2006-01-02 15:04:05 MST"))
	if report.Result != nil {
		fmt.Fprintf(sb, "Max Depth:      %d\n", report.Result.MaxDepth)
	}
	fmt.Fprintf(sb, "Status:         %s\n", statusText(report))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeStatistics(sb *strings.Builder, report *model.CorpusReport) {
	writeSection(sb, "STATISTICS")

	fmt.Fprintf(sb, "  DOCUMENTS:  %d\n", report.DocumentCount())
	if report.Kind == model.SourceWeb {
		fmt.Fprintf(sb, "  FAILURES:   %d\n", report.FailureCount())
	}
	fmt.Fprintf(sb, "  WORDS:      %d\n", report.WordCount)
	fmt.Fprintf(sb, "  TOKENS:     ~%d\n", report.TokenEstimate)
	if report.CompressedTokenEstimate > 0 {
		fmt.Fprintf(sb, "  COMPRESSED: ~%d tokens\n", report.CompressedTokenEstimate)
	}
	if report.Result != nil && report.Result.Duration() > 0 {
		fmt.Fprintf(sb, "  ELAPSED:    %s\n", report.Result.Duration().Round(time.Millisecond))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeOutputFiles(sb *strings.Builder, report *model.CorpusReport) {
	if len(report.OutputFiles) == 0 && !w.showEmpty {
		return
	}
	writeSection(sb, "OUTPUT FILES")

	if len(report.OutputFiles) == 0 {
		sb.WriteString("  No files written\n")
	}
	for _, path := range report.OutputFiles {
		fmt.Fprintf(sb, "  [+] %s\n", path)
	}
	sb.WriteString("\n")
}

// writeDocuments lists processed URLs or files in verbose mode only.
func (w *SimpleWriter) writeDocuments(sb *strings.Builder, report *model.CorpusReport) {
	if !w.verbose {
		return
	}

	var items []string
	if report.Result != nil {
		items = report.Result.ProcessedURLs
	} else {
		items = report.Files
	}
	if len(items) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "PROCESSED")
	for _, item := range items {
		fmt.Fprintf(sb, "  * %s\n", item)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.CorpusReport) {
	if report.FailureCount() == 0 && !w.showEmpty {
		return
	}
	writeSection(sb, "FAILURES")

	if report.FailureCount() == 0 {
		sb.WriteString("  No failures\n\n")
		return
	}
	for _, f := range report.Result.Failures {
		fmt.Fprintf(sb, "  [!] %s (%s, depth %d)\n", f.URL, f.Stage, f.Depth)
		if w.verbose && f.Reason != "" {
			fmt.Fprintf(sb, "      Reason: %s\n", f.Reason)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by sitecorpus\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

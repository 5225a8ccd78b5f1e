package report

import (
	"io"

	"github.com/nao1215/sitecorpus/internal/model"
)

// Writer defines the interface for report output.
// Implementations write the summary of a corpus run in various formats.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.CorpusReport) (int, error)
}

// MultiWriter writes a report to several Writers, each in its own format.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.CorpusReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteAll writes each report in turn with w.
func WriteAll(w Writer, reports []*model.CorpusReport) (int, error) {
	var total int
	for _, r := range reports {
		n, err := w.Write(r)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText returns a one-line run status.
func statusText(report *model.CorpusReport) string {
	switch {
	case report.TimedOut:
		return "Interrupted (partial results)"
	case report.ErrorMessage != "":
		return "Error - " + report.ErrorMessage
	default:
		return "Complete"
	}
}

// truncateString shortens s to maxLen runes, ending in "..." when cut.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

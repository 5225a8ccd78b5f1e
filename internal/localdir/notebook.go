package localdir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// notebook is the subset of the Jupyter notebook format we read.
type notebook struct {
	Cells []notebookCell `json:"cells"`
}

type notebookCell struct {
	CellType string          `json:"cell_type"` //nolint:tagliatelle // notebook format
	Source   json.RawMessage `json:"source"`
}

// source returns the cell source, which notebooks store either as one
// string or as a list of lines.
func (c notebookCell) source() string {
	var lines []string
	if err := json.Unmarshal(c.Source, &lines); err == nil {
		return strings.Join(lines, "")
	}
	var s string
	if err := json.Unmarshal(c.Source, &s); err == nil {
		return s
	}
	return ""
}

// renderNotebook converts a notebook into a Python script: code cells
// become code, markdown cells become comments.
func renderNotebook(data []byte) (string, error) {
	var nb notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return "", fmt.Errorf("parse notebook: %w", err)
	}

	var b strings.Builder
	b.WriteString("#!/usr/bin/env python\n# coding: utf-8\n")
	for _, cell := range nb.Cells {
		src := strings.TrimRight(cell.source(), "\n")
		switch cell.CellType {
		case "code":
			b.WriteString("\n# In[ ]:\n\n\n")
			b.WriteString(src)
			b.WriteString("\n\n")
		case "markdown":
			b.WriteString("\n")
			for _, line := range strings.Split(src, "\n") {
				b.WriteString("# ")
				b.WriteString(line)
				b.WriteString("\n")
			}
		}
	}
	return b.String(), nil
}

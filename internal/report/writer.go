package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/appscout/internal/model"
)

// Writer defines the interface for run output.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or both with
// the same API.
type Writer interface {
	// Write outputs the summary of a finished run.
	// Returns the number of bytes written and any error encountered.
	Write(run *model.Run) (int, error)

	// WriteHistory outputs the stored history of one application.
	WriteHistory(h *HistoryReport) (int, error)
}

// Format selects a Writer implementation.
type Format string

const (
	// FormatText is the styled terminal format.
	FormatText Format = "text"
	// FormatMarkdown is GitHub-flavored Markdown.
	FormatMarkdown Format = "markdown"
	// FormatJSON is indented JSON.
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat parses a format name. "md" is accepted for markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q (want text, markdown or json)", ErrUnknownFormat, s)
	}
}

// NewWriter creates the Writer for a format.
func NewWriter(format Format, output io.Writer) Writer {
	switch format {
	case FormatMarkdown:
		return NewMarkdownWriter(output)
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint())
	default:
		return NewSimpleWriter(output)
	}
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer - we write runs, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the run to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(run *model.Run) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteHistory outputs the history to all configured Writers.
func (m *MultiWriter) WriteHistory(h *HistoryReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteHistory(h)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// RunCounts are the numbers printed in every run summary.
type RunCounts struct {
	Version   string `json:"version,omitempty"`
	Pages     int    `json:"pages"`
	Forms     int    `json:"forms"`
	Flows     int    `json:"flows"`
	Scenarios int    `json:"scenarios"`
	Visited   int    `json:"visited"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// CountsOf collects the summary counts of a run. Knowledge counts fall
// back to the exploration when no knowledge was produced.
func CountsOf(run *model.Run) RunCounts {
	var c RunCounts
	switch {
	case run.Knowledge != nil && !run.Skipped:
		c.Version = run.Knowledge.Version
		c.Pages = run.Knowledge.Pages.Len()
		c.Forms = len(run.Knowledge.Forms)
		c.Flows = len(run.Knowledge.UserFlows)
		c.Scenarios = len(run.Knowledge.TestScenarios)
	case run.Analysis != nil:
		c.Pages = run.Analysis.Pages.Len()
		c.Forms = len(run.Analysis.Forms)
		c.Flows = len(run.Analysis.Flows)
		c.Scenarios = len(run.Analysis.Scenarios)
	}
	if run.Skipped && run.Existing != nil {
		c.Version = run.Existing.Version
	}
	if run.Exploration != nil {
		c.Visited = len(run.Exploration.Visits)
		c.Failed = run.Exploration.FailedVisits()
		for _, v := range run.Exploration.Visits {
			if v.Status == model.VisitSkipped {
				c.Skipped++
			}
		}
	}
	return c
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len([]rune(s)) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return model.TruncateRunes(s, maxLen)
	}
	return model.TruncateRunes(s, maxLen-3) + "..."
}

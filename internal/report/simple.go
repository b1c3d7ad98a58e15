package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nao1215/appscout/internal/model"
)

// SimpleWriter outputs human-readable summaries for terminal display.
//
// Design decision: Styles come from a lipgloss renderer bound to the output,
// so colors appear on a terminal and vanish when the output is piped to a
// file or another tool.
type SimpleWriter struct {
	baseWriter

	// verbose lists every failed visit instead of a count.
	verbose bool

	styles styles
}

type styles struct {
	title   lipgloss.Style
	key     lipgloss.Style
	good    lipgloss.Style
	bad     lipgloss.Style
	warn    lipgloss.Style
	muted   lipgloss.Style
	section lipgloss.Style
	box     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A")),
		key:     r.NewStyle().Width(12).Foreground(lipgloss.Color("8")),
		good:    r.NewStyle().Foreground(lipgloss.Color("10")),
		bad:     r.NewStyle().Foreground(lipgloss.Color("9")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("11")),
		muted:   r.NewStyle().Faint(true),
		section: r.NewStyle().Bold(true).Underline(true),
		box:     r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

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
		styles:     newStyles(lipgloss.NewRenderer(output)),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run summary.
func (w *SimpleWriter) Write(run *model.Run) (int, error) {
	var sb strings.Builder
	s := w.styles
	c := CountsOf(run)

	sb.WriteString(s.title.Render(fmt.Sprintf("appscout %s: %s", run.Mode, run.AppName)))
	sb.WriteString("\n")

	rows := [][2]string{
		{"Target", run.BaseURL},
		{"Version", w.versionText(run, c)},
		{"Pages", strconv.Itoa(c.Pages)},
		{"Forms", strconv.Itoa(c.Forms)},
		{"Flows", strconv.Itoa(c.Flows)},
		{"Scenarios", strconv.Itoa(c.Scenarios)},
		{"Visited", strconv.Itoa(c.Visited)},
		{"Failed", w.failedText(c.Failed)},
	}
	if c.Skipped > 0 {
		rows = append(rows, [2]string{"Redirected", strconv.Itoa(c.Skipped)})
	}
	if run.Knowledge != nil && !run.Skipped {
		rows = append(rows, [2]string{"Framework", run.Knowledge.Framework})
	}
	if run.ArtifactDir != "" {
		rows = append(rows, [2]string{"Artifacts", run.ArtifactDir})
	}
	if run.BackupDir != "" {
		rows = append(rows, [2]string{"Backup", run.BackupDir})
	}
	if !run.FinishedAt.IsZero() {
		rows = append(rows, [2]string{"Duration", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()})
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, s.key.Render(r[0])+r[1])
	}
	sb.WriteString(s.box.Render(strings.Join(lines, "\n")))
	sb.WriteString("\n")

	if run.Change != nil {
		w.writeChange(&sb, run.Change)
	}
	if w.verbose && run.Exploration != nil {
		w.writeFailures(&sb, run.Exploration.Visits)
	}
	if run.ErrorMessage != "" {
		sb.WriteString("\n")
		sb.WriteString(s.bad.Render("Error: " + run.ErrorMessage))
		sb.WriteString("\n")
	}
	if len(run.Warnings) > 0 {
		sb.WriteString("\n")
		sb.WriteString(s.section.Render("Warnings"))
		sb.WriteString("\n")
		for _, msg := range run.Warnings {
			sb.WriteString(s.warn.Render("  ! " + msg))
			sb.WriteString("\n")
		}
	}

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) versionText(run *model.Run, c RunCounts) string {
	switch {
	case run.Skipped:
		return c.Version + w.styles.muted.Render(" (unchanged)")
	case run.Change != nil:
		return run.Change.PreviousVersion + " -> " + c.Version
	case c.Version == "":
		return "-"
	default:
		return c.Version
	}
}

func (w *SimpleWriter) failedText(failed int) string {
	if failed == 0 {
		return w.styles.good.Render("0")
	}
	return w.styles.bad.Render(strconv.Itoa(failed))
}

func (w *SimpleWriter) writeChange(sb *strings.Builder, c *model.ChangeSummary) {
	s := w.styles
	sb.WriteString("\n")
	sb.WriteString(s.section.Render("Changes since " + c.PreviousVersion))
	sb.WriteString("\n")
	if !c.HasChanges() {
		sb.WriteString(s.muted.Render("  no pages, forms or flows changed"))
		sb.WriteString("\n")
		return
	}
	w.writeList(sb, "+", "pages", c.PagesAdded, s.good)
	w.writeList(sb, "-", "pages", c.PagesRemoved, s.bad)
	w.writeList(sb, "+", "forms", c.FormsAdded, s.good)
	w.writeList(sb, "-", "forms", c.FormsRemoved, s.bad)
	w.writeList(sb, "+", "flows", c.FlowsAdded, s.good)
	w.writeList(sb, "-", "flows", c.FlowsRemoved, s.bad)
}

func (w *SimpleWriter) writeList(sb *strings.Builder, sign, what string, items []string, style lipgloss.Style) {
	if len(items) == 0 {
		return
	}
	line := fmt.Sprintf("  %s%d %s: %s", sign, len(items), what, strings.Join(items, ", "))
	sb.WriteString(style.Render(line))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, visits []model.Visit) {
	var failed []model.Visit
	for _, v := range visits {
		if v.Status == model.VisitFailed {
			failed = append(failed, v)
		}
	}
	if len(failed) == 0 {
		return
	}
	sb.WriteString("\n")
	sb.WriteString(w.styles.section.Render("Failed visits"))
	sb.WriteString("\n")
	for _, v := range failed {
		sb.WriteString(fmt.Sprintf("  %s %s\n", v.URL, w.styles.muted.Render(truncateString(v.Error, 80))))
	}
}

// WriteHistory outputs the history as text.
func (w *SimpleWriter) WriteHistory(h *HistoryReport) (int, error) {
	var sb strings.Builder
	s := w.styles

	sb.WriteString(s.title.Render("History: " + h.AppName))
	sb.WriteString("\n")
	if h.Current != "" {
		sb.WriteString(s.key.Render("Current") + h.Current + "\n")
	}

	sb.WriteString("\n")
	sb.WriteString(s.section.Render("Runs"))
	sb.WriteString("\n")
	if len(h.Runs) == 0 {
		sb.WriteString(s.muted.Render("  no runs recorded"))
		sb.WriteString("\n")
	}
	for _, r := range h.Runs {
		version := r.Version
		if r.Skipped {
			version = "skipped"
		}
		sb.WriteString(fmt.Sprintf("  %s  %-6s  %-8s  pages=%d forms=%d flows=%d visited=%d failed=%d\n",
			r.StartedAt.UTC().Format(timeLayout), r.Mode, version, r.Pages, r.Forms, r.Flows, r.Visited, r.Failed))
	}

	if len(h.Updates) > 0 {
		sb.WriteString("\n")
		sb.WriteString(s.section.Render("Updates"))
		sb.WriteString("\n")
		for _, u := range h.Updates {
			sb.WriteString(fmt.Sprintf("  %s  %s -> %s  pages +%d/-%d  forms +%d/-%d  flows +%d\n",
				u.Timestamp.UTC().Format(timeLayout), u.PreviousVersion, u.NewVersion,
				u.PagesAdded, u.PagesRemoved, u.FormsAdded, u.FormsRemoved, u.FlowsAdded))
		}
	}

	if h.Compare != nil {
		w.writeChange(&sb, h.Compare)
	}

	return io.WriteString(w.output, sb.String())
}

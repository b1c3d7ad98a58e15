package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/appscout/internal/model"
)

// MarkdownWriter outputs run summaries and history in Markdown format.
// This format is designed for documentation and sharing, for example as a
// pull request comment after an update.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run summary in Markdown format.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)
	c := CountsOf(run)

	md.H1("appscout " + string(run.Mode) + ": " + run.AppName)
	md.PlainText("")

	version := c.Version
	if run.Change != nil {
		version = run.Change.PreviousVersion + " → " + c.Version
	}
	if version == "" {
		version = "-"
	}
	rows := [][]string{
		{"Target", "`" + run.BaseURL + "`"},
		{"Version", version},
		{"Pages", strconv.Itoa(c.Pages)},
		{"Forms", strconv.Itoa(c.Forms)},
		{"Flows", strconv.Itoa(c.Flows)},
		{"Scenarios", strconv.Itoa(c.Scenarios)},
		{"Visited", strconv.Itoa(c.Visited)},
		{"Failed", strconv.Itoa(c.Failed)},
	}
	if run.ArtifactDir != "" {
		rows = append(rows, []string{"Artifacts", "`" + run.ArtifactDir + "`"})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if run.Skipped {
		md.Warningf("No pages were found. Stored knowledge %s was left untouched.", c.Version)
		md.PlainText("")
	}
	if run.Change != nil {
		w.writeChange(md, run.Change)
	}
	if len(run.Warnings) > 0 {
		md.H2("Warnings")
		md.PlainText("")
		md.BulletList(run.Warnings...)
		md.PlainText("")
	}

	return len(md.String()), md.Build()
}

// WriteHistory outputs the history in Markdown format.
func (w *MarkdownWriter) WriteHistory(h *HistoryReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("History: " + h.AppName)
	md.PlainText("")
	if h.Current != "" {
		md.PlainTextf("Current version: **%s**", h.Current)
		md.PlainText("")
	}

	md.H2("Runs")
	md.PlainText("")
	if len(h.Runs) == 0 {
		md.PlainText("No runs recorded.")
	} else {
		rows := make([][]string, 0, len(h.Runs))
		for _, r := range h.Runs {
			version := r.Version
			if r.Skipped {
				version = "skipped"
			}
			rows = append(rows, []string{
				r.StartedAt.UTC().Format(timeLayout),
				string(r.Mode),
				version,
				strconv.Itoa(r.Pages),
				strconv.Itoa(r.Forms),
				strconv.Itoa(r.Flows),
				strconv.Itoa(r.Visited),
				strconv.Itoa(r.Failed),
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Started", "Mode", "Version", "Pages", "Forms", "Flows", "Visited", "Failed"},
			Rows:   rows,
		})
	}
	md.PlainText("")

	if len(h.Updates) > 0 {
		md.H2("Updates")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Timestamp", "From", "To", "Pages +/-", "Forms +/-", "Flows +"},
			Rows:   updateRows(h.Updates),
		})
		md.PlainText("")
	}

	if h.Compare != nil {
		w.writeChange(md, h.Compare)
	}

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeChange(md *markdown.Markdown, c *model.ChangeSummary) {
	md.H2("Changes since " + c.PreviousVersion)
	md.PlainText("")
	if !c.HasChanges() {
		md.Note("No pages, forms or flows changed.")
		md.PlainText("")
		return
	}

	lists := []struct {
		label string
		items []string
	}{
		{"Pages added", c.PagesAdded},
		{"Pages removed", c.PagesRemoved},
		{"Forms added", c.FormsAdded},
		{"Forms removed", c.FormsRemoved},
		{"Flows added", c.FlowsAdded},
		{"Flows removed", c.FlowsRemoved},
	}
	for _, l := range lists {
		if len(l.items) == 0 {
			continue
		}
		md.PlainText("**" + l.label + "**")
		md.PlainText("")
		md.BulletList(codeAll(l.items)...)
		md.PlainText("")
	}
	if len(c.PagesRemoved)+len(c.FormsRemoved) > 0 {
		md.Importantf("%d page(s) and %d form(s) were dropped because the latest exploration no longer found them.",
			len(c.PagesRemoved), len(c.FormsRemoved))
		md.PlainText("")
	}
}

func updateRows(updates []model.UpdateEntry) [][]string {
	rows := make([][]string, 0, len(updates))
	for _, u := range updates {
		rows = append(rows, []string{
			u.Timestamp.UTC().Format(timeLayout),
			u.PreviousVersion,
			u.NewVersion,
			"+" + strconv.Itoa(u.PagesAdded) + " / -" + strconv.Itoa(u.PagesRemoved),
			"+" + strconv.Itoa(u.FormsAdded) + " / -" + strconv.Itoa(u.FormsRemoved),
			"+" + strconv.Itoa(u.FlowsAdded),
		})
	}
	return rows
}

// pageTypeChart renders a mermaid pie chart of pages by type.
func pageTypeChart(stats model.Statistics, order []model.PageType) string {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pages by type"),
		piechart.WithShowData(true),
	)
	for _, t := range order {
		if n := stats.PagesByType[string(t)]; n > 0 {
			chart.LabelAndIntValue(string(t), uint64(n))
		}
	}
	return chart.String()
}

// code wraps s in backticks for inline code.
func code(s string) string {
	if s == "" {
		return "-"
	}
	return "`" + strings.ReplaceAll(s, "`", "'") + "`"
}

func codeAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		out = append(out, code(s))
	}
	return out
}

// cell makes s safe for a table cell.
func cell(s string) string {
	if s == "" {
		return "-"
	}
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/appscout/internal/model"
)

// JSONWriter outputs runs and history in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because:
// 1. It's part of the standard library (no extra dependencies)
// 2. It's sufficient for our needs
// 3. knowledge.json is written with the same encoder, so both agree
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// RunSummary is the JSON form of a finished run. The full exploration is
// left out; knowledge.json already carries the pages.
type RunSummary struct {
	ID          string               `json:"id"`
	AppName     string               `json:"appName"`
	BaseURL     string               `json:"baseUrl"`
	Mode        model.RunMode        `json:"mode"`
	StartedAt   string               `json:"startedAt"`
	FinishedAt  string               `json:"finishedAt"`
	Counts      RunCounts            `json:"counts"`
	Framework   string               `json:"framework,omitempty"`
	Change      *model.ChangeSummary `json:"change,omitempty"`
	ArtifactDir string               `json:"artifactDir,omitempty"`
	BackupDir   string               `json:"backupDir,omitempty"`
	Skipped     bool                 `json:"skipped,omitempty"`
	Error       string               `json:"error,omitempty"`
	Failures    []model.Visit        `json:"failures,omitempty"`
	Warnings    []string             `json:"warnings,omitempty"`
	Steps       []string             `json:"performedSteps"`
}

// NewRunSummary builds the JSON summary of a run.
func NewRunSummary(run *model.Run) *RunSummary {
	s := &RunSummary{
		ID:          run.ID,
		AppName:     run.AppName,
		BaseURL:     run.BaseURL,
		Mode:        run.Mode,
		StartedAt:   run.StartedAt.UTC().Format(timeLayout),
		FinishedAt:  run.FinishedAt.UTC().Format(timeLayout),
		Counts:      CountsOf(run),
		Change:      run.Change,
		ArtifactDir: run.ArtifactDir,
		BackupDir:   run.BackupDir,
		Skipped:     run.Skipped,
		Error:       run.ErrorMessage,
		Warnings:    run.Warnings,
		Steps:       run.PerformedSteps,
	}
	if run.Knowledge != nil {
		s.Framework = run.Knowledge.Framework
	}
	if run.Exploration != nil {
		for _, v := range run.Exploration.Visits {
			if v.Status == model.VisitFailed {
				s.Failures = append(s.Failures, v)
			}
		}
	}
	if s.Steps == nil {
		s.Steps = []string{}
	}
	return s
}

// Write outputs the run summary in JSON format.
func (w *JSONWriter) Write(run *model.Run) (int, error) {
	return w.writeJSON(NewRunSummary(run))
}

// WriteHistory outputs the history in JSON format.
func (w *JSONWriter) WriteHistory(h *HistoryReport) (int, error) {
	return w.writeJSON(h)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

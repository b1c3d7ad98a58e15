package model

import (
	"time"

	"github.com/nao1215/appscout/internal/seed"
)

// RunMode selects between creating knowledge and updating it.
type RunMode string

const (
	// ModeCreate builds knowledge from scratch.
	ModeCreate RunMode = "create"
	// ModeUpdate merges a fresh exploration into stored knowledge.
	ModeUpdate RunMode = "update"
)

// Run carries the state of one appscout run through the pipeline steps.
// Each step reads what earlier steps produced and fills in its own part.
//
// Design decision: A single carrier struct keeps the step interface small
// (every step receives the same *Run) and makes the run easy to persist as
// history once the pipeline completes.
type Run struct {
	// ID uniquely identifies the run in the history database.
	ID string `json:"id"`

	AppName string  `json:"appName"`
	BaseURL string  `json:"baseUrl"`
	Mode    RunMode `json:"mode"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	// Seed is set by the load step.
	Seed *seed.Seed `json:"-"`

	// Exploration is set by the explore step.
	Exploration *Exploration `json:"exploration,omitempty"`

	// Analysis is set by the analyze step.
	Analysis *Analysis `json:"analysis,omitempty"`

	// Existing is the stored knowledge loaded in update mode.
	Existing *AppKnowledge `json:"-"`

	// Knowledge is the knowledge produced by this run.
	Knowledge *AppKnowledge `json:"knowledge,omitempty"`

	// Change is set when a merge ran.
	Change *ChangeSummary `json:"change,omitempty"`

	// ArtifactDir is where the artifacts were written.
	ArtifactDir string `json:"artifactDir,omitempty"`

	// BackupDir is the backup taken before overwriting, if any.
	BackupDir string `json:"backupDir,omitempty"`

	// Skipped is true when persistence was skipped (an update that found
	// no pages leaves stored knowledge untouched).
	Skipped bool `json:"skipped,omitempty"`

	// Err is the error of the step that stopped the run, if any.
	Err          error  `json:"-"`
	ErrorMessage string `json:"error,omitempty"`

	Warnings       []string `json:"warnings,omitempty"`
	PerformedSteps []string `json:"performedSteps"`
}

// NewRun creates a run for the given application.
func NewRun(id, appName, baseURL string, mode RunMode) *Run {
	return &Run{
		ID:        id,
		AppName:   appName,
		BaseURL:   baseURL,
		Mode:      mode,
		StartedAt: time.Now(),
	}
}

// AddWarning records a non-fatal problem surfaced in the final report.
func (r *Run) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

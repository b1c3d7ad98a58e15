package report

import (
	"github.com/nao1215/appscout/internal/database"
	"github.com/nao1215/appscout/internal/model"
)

// timeLayout is used for every timestamp a writer prints.
const timeLayout = "2006-01-02 15:04:05 MST"

// HistoryReport is the stored history of one application.
type HistoryReport struct {
	AppName string `json:"appName"`

	// Current is the version in the artifact directory, "" when none.
	Current string `json:"currentVersion,omitempty"`

	// Runs are newest first.
	Runs []database.RunRecord `json:"runs"`

	// Snapshots are newest first.
	Snapshots []database.SnapshotMeta `json:"snapshots"`

	// Updates is the update history of the current knowledge, oldest first.
	Updates []model.UpdateEntry `json:"updateHistory"`

	// Compare is set when the latest two snapshots were compared.
	Compare *model.ChangeSummary `json:"compare,omitempty"`
}

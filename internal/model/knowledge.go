package model

import "time"

// CurrentSchemaVersion is the schema version written by this release.
// Documents without a schemaVersion are version 0.
const CurrentSchemaVersion = 1

// AppKnowledge is the persisted, versioned knowledge of one application.
// It is created on the first exploration and superseded by every update.
type AppKnowledge struct {
	SchemaVersion int       `json:"schemaVersion"`
	AppName       string    `json:"appName"`
	BaseURL       string    `json:"baseUrl"`
	Version       string    `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	Pages         PageGroups     `json:"pages"`
	Forms         []FormRecord   `json:"forms"`
	Navigation    []NavEntry     `json:"navigation"`
	UserFlows     []Flow         `json:"userFlows"`
	TestScenarios []TestScenario `json:"testScenarios"`
	Framework     string         `json:"framework"`
	Statistics    Statistics     `json:"statistics"`

	// UpdateHistory has one entry per update, oldest first.
	UpdateHistory []UpdateEntry `json:"updateHistory"`

	// RemovedPages and RemovedForms list the paths the latest update
	// dropped because the fresh exploration no longer found them.
	RemovedPages []string `json:"removedPages,omitempty"`
	RemovedForms []string `json:"removedForms,omitempty"`
}

// Statistics summarizes the knowledge snapshot.
type Statistics struct {
	TotalPages      int            `json:"totalPages"`
	TotalForms      int            `json:"totalForms"`
	TotalFlows      int            `json:"totalFlows"`
	TotalScenarios  int            `json:"totalScenarios"`
	TotalElements   int            `json:"totalElements"`
	PagesByType     map[string]int `json:"pagesByType"`
	FormsByPattern  map[string]int `json:"formsByPattern"`
	PagesVisited    int            `json:"pagesVisited"`
	PagesFailed     int            `json:"pagesFailed"`
	MaxDepthReached int            `json:"maxDepthReached"`
}

// UpdateEntry records one update. Counts are relative to the previous
// snapshot.
type UpdateEntry struct {
	Timestamp       time.Time `json:"timestamp"`
	PreviousVersion string    `json:"previousVersion"`
	NewVersion      string    `json:"newVersion"`
	PagesAdded      int       `json:"pagesAdded"`
	PagesRemoved    int       `json:"pagesRemoved"`
	FormsAdded      int       `json:"formsAdded"`
	FormsRemoved    int       `json:"formsRemoved"`
	FlowsAdded      int       `json:"flowsAdded"`
}

// ChangeSummary lists what a merge changed, by path or flow name.
type ChangeSummary struct {
	PreviousVersion string   `json:"previousVersion"`
	NewVersion      string   `json:"newVersion"`
	PagesAdded      []string `json:"pagesAdded"`
	PagesRemoved    []string `json:"pagesRemoved"`
	FormsAdded      []string `json:"formsAdded"`
	FormsRemoved    []string `json:"formsRemoved"`
	FlowsAdded      []string `json:"flowsAdded"`
	FlowsRemoved    []string `json:"flowsRemoved"`
}

// HasChanges reports whether anything was added or removed.
func (c *ChangeSummary) HasChanges() bool {
	return len(c.PagesAdded)+len(c.PagesRemoved)+len(c.FormsAdded)+
		len(c.FormsRemoved)+len(c.FlowsAdded)+len(c.FlowsRemoved) > 0
}

// FindPage returns the page stored at the given path.
func (k *AppKnowledge) FindPage(path string) (PageRecord, bool) {
	for _, p := range k.Pages.All() {
		if p.Path == path {
			return p, true
		}
	}
	return PageRecord{}, false
}

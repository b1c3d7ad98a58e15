package model

import "time"

// VisitStatus is the outcome of one frontier entry.
type VisitStatus string

const (
	// VisitOK means the page loaded and was extracted.
	VisitOK VisitStatus = "ok"
	// VisitFailed means navigation or extraction failed. The URL still
	// consumed one slot of the page budget.
	VisitFailed VisitStatus = "failed"
	// VisitSkipped means the page loaded but was not recorded because it
	// redirected off the target host or onto an already visited page.
	VisitSkipped VisitStatus = "skipped"
)

// Visit records the outcome of visiting one URL.
type Visit struct {
	URL      string        `json:"url"`
	Depth    int           `json:"depth"`
	Status   VisitStatus   `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Exploration is the accumulated result of one crawl session.
type Exploration struct {
	SessionID  string    `json:"sessionId"`
	StartURL   string    `json:"startUrl"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	// Pages are in visit order, which is breadth-first.
	Pages    []PageRecord    `json:"pages"`
	Forms    []FormRecord    `json:"forms"`
	Elements []ElementRecord `json:"elements"`

	// Links maps a visited page path to the paths it links to.
	Links map[string][]string `json:"links"`

	Visits []Visit `json:"visits"`
}

// NewExploration returns an empty exploration for the given session.
func NewExploration(sessionID, startURL string) *Exploration {
	return &Exploration{
		SessionID: sessionID,
		StartURL:  startURL,
		Links:     make(map[string][]string),
	}
}

// FailedVisits returns the number of visits that failed.
func (e *Exploration) FailedVisits() int {
	n := 0
	for _, v := range e.Visits {
		if v.Status == VisitFailed {
			n++
		}
	}
	return n
}

// MaxDepth returns the greatest depth among the recorded pages.
func (e *Exploration) MaxDepth() int {
	depth := 0
	for _, p := range e.Pages {
		if p.Depth > depth {
			depth = p.Depth
		}
	}
	return depth
}

// Analysis is the classified and synthesized result of one exploration.
type Analysis struct {
	AppName    string         `json:"appName"`
	BaseURL    string         `json:"baseUrl"`
	Pages      PageGroups     `json:"pages"`
	Forms      []FormRecord   `json:"forms"`
	Navigation []NavEntry     `json:"navigation"`
	Flows      []Flow         `json:"userFlows"`
	Scenarios  []TestScenario `json:"testScenarios"`
	Framework  string         `json:"framework"`
	Statistics Statistics     `json:"statistics"`
}

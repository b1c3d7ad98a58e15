package model

// Flow is a named user journey synthesized from detected page and form
// patterns.
type Flow struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Steps       []FlowStep `json:"steps"`

	// Custom marks an operator-written flow that merges keep even when no
	// synthesized flow has the same name.
	Custom bool `json:"custom,omitempty"`
}

// FlowStep is one action of a flow. Navigation steps carry a URL, the rest
// a selector.
type FlowStep struct {
	Action   string `json:"action" yaml:"action"`
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
	Value    string `json:"value,omitempty" yaml:"value,omitempty"`
}

// Flow step actions.
const (
	ActionNavigate = "navigate"
	ActionFill     = "fill"
	ActionClick    = "click"
	ActionVerify   = "verify"
)

// TestScenario is a human-readable test outline.
type TestScenario struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
	Custom      bool     `json:"custom,omitempty"`
}

// NavEntry is one node of the site map: a visited page and the visited
// pages it links to.
type NavEntry struct {
	Path  string   `json:"path"`
	Name  string   `json:"name"`
	Depth int      `json:"depth"`
	Links []string `json:"links,omitempty"`
}

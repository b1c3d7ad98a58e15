package analyzer

import (
	"regexp"
	"strings"

	"github.com/nao1215/appscout/internal/model"
)

// PageSignals are the inputs of page classification.
type PageSignals struct {
	Title   string
	Heading string
	Path    string

	// Body is a prefix of the visible body text.
	Body string
}

// SignalsOf returns the classification signals of a page. Stored pages have
// no BodyText, so the content preview stands in for it.
func SignalsOf(p model.PageRecord) PageSignals {
	body := p.BodyText
	if body == "" {
		body = p.ContentPreview
	}
	return PageSignals{Title: p.Title, Heading: p.Heading, Path: p.Path, Body: body}
}

// text is the lowercased title, heading and path joined by spaces.
func (s PageSignals) text() string {
	return strings.ToLower(s.Title + " " + s.Heading + " " + s.Path)
}

// numericTail matches a path ending in a numeric or UUID-like segment.
var numericTail = regexp.MustCompile(`/(?:\d+|[0-9a-fA-F]{8}-[0-9a-fA-F-]{27})/?$`)

var pageRules = NewRuleSet(model.PageTypeGeneric,
	Rule[PageSignals, model.PageType]{
		Name:   "login",
		Match:  func(s PageSignals) bool { return containsAny(s.text(), "login", "log-in", "log in", "sign-in", "signin", "sign in") },
		Result: model.PageTypeLogin,
	},
	Rule[PageSignals, model.PageType]{
		Name:   "signup",
		Match:  func(s PageSignals) bool { return containsAny(s.text(), "signup", "sign-up", "sign up", "register") },
		Result: model.PageTypeSignup,
	},
	Rule[PageSignals, model.PageType]{
		Name:   "dashboard",
		Match:  func(s PageSignals) bool { return strings.Contains(s.text(), "dashboard") },
		Result: model.PageTypeDashboard,
	},
	Rule[PageSignals, model.PageType]{
		Name:   "profile",
		Match:  func(s PageSignals) bool { return containsAny(s.text(), "profile", "account") },
		Result: model.PageTypeProfile,
	},
	Rule[PageSignals, model.PageType]{
		Name:   "contact",
		Match:  func(s PageSignals) bool { return strings.Contains(s.text(), "contact") },
		Result: model.PageTypeContact,
	},
	Rule[PageSignals, model.PageType]{
		Name:   "about",
		Match:  func(s PageSignals) bool { return strings.Contains(s.text(), "about") },
		Result: model.PageTypeAbout,
	},
	Rule[PageSignals, model.PageType]{
		Name:   "homepage",
		Match:  func(s PageSignals) bool { return s.Path == "/" || s.Path == "" },
		Result: model.PageTypeHomepage,
	},
	Rule[PageSignals, model.PageType]{
		Name: "detail",
		Match: func(s PageSignals) bool {
			return numericTail.MatchString(s.Path) || strings.Contains(s.text(), "detail")
		},
		Result: model.PageTypeDetail,
	},
	Rule[PageSignals, model.PageType]{
		Name: "list",
		Match: func(s PageSignals) bool {
			return strings.Contains(strings.ToLower(s.Path), "list") ||
				containsAny(strings.ToLower(s.Body), "showing", "results")
		},
		Result: model.PageTypeList,
	},
)

// ClassifyPage returns the page type of the first matching rule.
func ClassifyPage(s PageSignals) model.PageType {
	t, _ := pageRules.Evaluate(s)
	return t
}

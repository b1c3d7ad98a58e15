package model

import (
	"net/url"
	"strings"
)

// FormPattern is the semantic purpose assigned to a form by the classifier.
type FormPattern string

const (
	// PatternLogin is a sign-in form.
	PatternLogin FormPattern = "login"
	// PatternSignup is a registration form.
	PatternSignup FormPattern = "signup"
	// PatternSearch is a search form.
	PatternSearch FormPattern = "search"
	// PatternContact is a contact or message form.
	PatternContact FormPattern = "contact"
	// PatternCheckout is a checkout or payment form.
	PatternCheckout FormPattern = "checkout"
	// PatternGeneric is any form no rule matched.
	PatternGeneric FormPattern = "generic"
)

// FormRecord describes one form found on a page.
type FormRecord struct {
	// FormIndex is the position of the form within its page.
	FormIndex int `json:"formIndex"`

	// PageURL is the URL of the page the form was found on.
	PageURL string `json:"pageUrl"`

	// ActionURL is the absolute form action. An empty action in the markup
	// resolves to the page URL.
	ActionURL string `json:"actionUrl"`

	// Method is the upper-cased HTTP method, GET when absent.
	Method string `json:"method"`

	Fields  []FieldRecord  `json:"fields"`
	Buttons []ButtonRecord `json:"buttons"`

	// FieldCount counts the fields a user fills in (not hidden, not submit).
	FieldCount int `json:"fieldCount"`

	Pattern FormPattern `json:"pattern"`

	// GeneratedTestData maps a field identifier to a synthesized value.
	GeneratedTestData map[string]string `json:"generatedTestData"`

	// CustomTestData is operator-supplied test data preserved across merges.
	CustomTestData map[string]string `json:"customTestData,omitempty"`
}

// ActionPath returns the path of the form action, which is how forms are
// associated with pages and matched across runs.
func (f *FormRecord) ActionPath() string {
	raw := f.ActionURL
	if raw == "" {
		raw = f.PageURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

// Signature identifies a form by action path, method and field identifiers.
// Identical forms repeated across pages (a header search box) share it.
func (f *FormRecord) Signature() string {
	var sb strings.Builder
	sb.WriteString(f.Method)
	sb.WriteByte(' ')
	sb.WriteString(f.ActionPath())
	for _, field := range f.Fields {
		sb.WriteByte('|')
		sb.WriteString(field.Identifier())
	}
	return sb.String()
}

// FieldRecord describes one input, select or textarea of a form.
type FieldRecord struct {
	Type        string `json:"type"`
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Required    bool   `json:"required"`
	Label       string `json:"label,omitempty"`
}

// Identifier returns the name, else the id, of the field.
// An empty identifier means the field is not addressable.
func (f FieldRecord) Identifier() string {
	if f.Name != "" {
		return f.Name
	}
	return f.ID
}

// Selector returns a CSS selector addressing the field, or "" when the
// field has no identifier.
func (f FieldRecord) Selector() string {
	switch {
	case f.ID != "":
		return "#" + f.ID
	case f.Name != "":
		return `[name="` + f.Name + `"]`
	default:
		return ""
	}
}

// IsFillable reports whether a user types into the field.
func (f FieldRecord) IsFillable() bool {
	switch strings.ToLower(f.Type) {
	case "hidden", "submit", "button", "reset", "image":
		return false
	default:
		return true
	}
}

// ButtonRecord describes a button or submit control.
type ButtonRecord struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

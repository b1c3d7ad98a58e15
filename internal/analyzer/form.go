package analyzer

import (
	"strings"

	"github.com/nao1215/appscout/internal/model"
)

// maxLoginFields is the largest field count a login form may have.
const maxLoginFields = 3

// formSignals are the inputs of form classification.
type formSignals struct {
	// blob is every field's identifier, label and type, lowercased.
	blob string

	emailish   int
	usernames  int
	passwords  int
	confirm    bool
	fieldCount int
}

func signalsOfForm(f model.FormRecord) formSignals {
	s := formSignals{fieldCount: f.FieldCount}
	parts := make([]string, 0, len(f.Fields)*3)
	for _, field := range f.Fields {
		id := strings.ToLower(field.Identifier())
		label := strings.ToLower(field.Label)
		typ := strings.ToLower(field.Type)
		parts = append(parts, id, label, typ)

		text := id + " " + label
		switch {
		case typ == "password" || strings.Contains(text, "password"):
			s.passwords++
			if containsAny(text, "confirm", "repeat", "again", "verify") {
				s.confirm = true
			}
		case typ == "email" || containsAny(text, "email", "e-mail"):
			s.emailish++
		case containsAny(text, "user", "login"):
			s.usernames++
		}
	}
	if s.passwords > 1 {
		s.confirm = true
	}
	s.blob = strings.Join(parts, " ")
	return s
}

var searchTerms = words("search", "query", "q", "keyword", "keywords")

var formRules = NewRuleSet(model.PatternGeneric,
	Rule[formSignals, model.FormPattern]{
		Name: "login",
		Match: func(s formSignals) bool {
			return s.emailish+s.usernames == 1 && s.passwords == 1 && s.fieldCount <= maxLoginFields
		},
		Result: model.PatternLogin,
	},
	Rule[formSignals, model.FormPattern]{
		Name: "signup",
		Match: func(s formSignals) bool {
			return s.emailish+s.usernames > 0 && s.passwords > 0 && (s.confirm || s.fieldCount > maxLoginFields)
		},
		Result: model.PatternSignup,
	},
	Rule[formSignals, model.FormPattern]{
		Name:   "search",
		Match:  func(s formSignals) bool { return searchTerms.MatchString(s.blob) },
		Result: model.PatternSearch,
	},
	Rule[formSignals, model.FormPattern]{
		Name:   "contact",
		Match:  func(s formSignals) bool { return containsAny(s.blob, "contact", "message", "inquiry", "enquiry") },
		Result: model.PatternContact,
	},
	Rule[formSignals, model.FormPattern]{
		Name: "checkout",
		Match: func(s formSignals) bool {
			return containsAny(s.blob, "checkout", "payment", "card", "cvv", "cvc", "billing")
		},
		Result: model.PatternCheckout,
	},
)

// ClassifyForm returns the form pattern of the first matching rule.
func ClassifyForm(f model.FormRecord) model.FormPattern {
	p, _ := formRules.Evaluate(signalsOfForm(f))
	return p
}

package analyzer

import (
	"strings"

	"github.com/nao1215/appscout/internal/model"
)

// PasswordPlaceholder is the value synthesized for every password field.
const PasswordPlaceholder = "[TEST_PASSWORD]"

// fieldSignals are the inputs of test data synthesis for one field.
type fieldSignals struct {
	id   string
	typ  string
	text string
}

func signalsOfField(f model.FieldRecord) fieldSignals {
	id := strings.ToLower(f.Identifier())
	return fieldSignals{
		id:   id,
		typ:  strings.ToLower(f.Type),
		text: strings.Join([]string{id, strings.ToLower(f.Label), strings.ToLower(f.Placeholder)}, " "),
	}
}

func (s fieldSignals) has(subs ...string) bool {
	return containsAny(s.text, subs...)
}

type valueRule = Rule[fieldSignals, string]

var testDataRules = NewRuleSet("",
	valueRule{
		Name:   "password",
		Match:  func(s fieldSignals) bool { return s.typ == "password" || s.has("password", "passwd") },
		Result: PasswordPlaceholder,
	},
	valueRule{
		Name:   "email",
		Match:  func(s fieldSignals) bool { return s.typ == "email" || s.has("email", "e-mail") },
		Result: "test@example.com",
	},
	valueRule{
		Name:   "phone",
		Match:  func(s fieldSignals) bool { return s.typ == "tel" || s.has("phone", "tel", "mobile") },
		Result: "+1-555-0100",
	},
	valueRule{
		Name:   "first name",
		Match:  func(s fieldSignals) bool { return s.has("first", "given", "fname") },
		Result: "Test",
	},
	valueRule{
		Name:   "last name",
		Match:  func(s fieldSignals) bool { return s.has("last", "surname", "family", "lname") },
		Result: "User",
	},
	valueRule{
		Name:   "username",
		Match:  func(s fieldSignals) bool { return s.has("user", "login", "handle", "nickname") },
		Result: "testuser",
	},
	valueRule{
		Name:   "full name",
		Match:  func(s fieldSignals) bool { return s.has("name") },
		Result: "Test User",
	},
	valueRule{
		Name:   "address",
		Match:  func(s fieldSignals) bool { return s.has("address", "street") },
		Result: "123 Test Street",
	},
	valueRule{
		Name:   "city",
		Match:  func(s fieldSignals) bool { return s.has("city", "town") },
		Result: "Testville",
	},
	valueRule{
		Name:   "postal code",
		Match:  func(s fieldSignals) bool { return s.has("zip", "postal", "postcode") },
		Result: "12345",
	},
	valueRule{
		Name:   "url",
		Match:  func(s fieldSignals) bool { return s.typ == "url" || s.has("website", "url", "homepage") },
		Result: "https://example.com",
	},
	valueRule{
		Name:   "date",
		Match:  func(s fieldSignals) bool { return s.typ == "date" || s.has("date", "birthday", "dob") },
		Result: "2024-01-01",
	},
	valueRule{
		Name:   "search",
		Match:  func(s fieldSignals) bool { return s.typ == "search" || s.id == "q" || s.has("search", "query") },
		Result: "test",
	},
	valueRule{
		Name: "message",
		Match: func(s fieldSignals) bool {
			return s.typ == "textarea" || s.has("message", "comment", "description", "body", "feedback")
		},
		Result: "This is a test message.",
	},
	valueRule{
		Name:   "number",
		Match:  func(s fieldSignals) bool { return s.typ == "number" || s.typ == "range" || s.id == "age" || s.has("quantity", "amount") },
		Result: "42",
	},
	valueRule{
		Name:   "checkbox",
		Match:  func(s fieldSignals) bool { return s.typ == "checkbox" },
		Result: "true",
	},
)

// SynthesizeTestData returns a plausible value for every fillable field,
// keyed by field identifier. Fields without an identifier are skipped.
func SynthesizeTestData(f model.FormRecord) map[string]string {
	data := make(map[string]string, len(f.Fields))
	for _, field := range f.Fields {
		id := field.Identifier()
		if id == "" || !field.IsFillable() {
			continue
		}
		data[id] = TestValue(field)
	}
	return data
}

// TestValue returns the synthesized value of one field. Fields no rule
// matches get "test_<identifier>".
func TestValue(field model.FieldRecord) string {
	v, _ := testDataRules.Evaluate(signalsOfField(field))
	if v == "" {
		return "test_" + field.Identifier()
	}
	return v
}

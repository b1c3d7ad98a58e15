package analyzer

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/appscout/internal/model"
)

// categoryInput is a page plus the forms of the whole exploration.
type categoryInput struct {
	page  model.PageRecord
	forms []model.FormRecord
}

func (in categoryInput) ownsForm() bool {
	for i := range in.forms {
		if in.forms[i].ActionPath() == in.page.Path {
			return true
		}
	}
	return false
}

func typeIn(types ...model.PageType) func(categoryInput) bool {
	return func(in categoryInput) bool {
		for _, t := range types {
			if in.page.PageType == t {
				return true
			}
		}
		return false
	}
}

var categoryRules = NewRuleSet(model.CategoryOther,
	Rule[categoryInput, model.PageCategory]{
		Name:   "auth",
		Match:  typeIn(model.PageTypeLogin, model.PageTypeSignup),
		Result: model.CategoryAuth,
	},
	Rule[categoryInput, model.PageCategory]{
		Name:   "list",
		Match:  typeIn(model.PageTypeList),
		Result: model.CategoryList,
	},
	Rule[categoryInput, model.PageCategory]{
		Name:   "detail",
		Match:  typeIn(model.PageTypeDetail),
		Result: model.CategoryDetail,
	},
	Rule[categoryInput, model.PageCategory]{
		Name:   "content",
		Match:  typeIn(model.PageTypeAbout, model.PageTypeGeneric),
		Result: model.CategoryContent,
	},
	Rule[categoryInput, model.PageCategory]{
		Name:   "forms",
		Match:  categoryInput.ownsForm,
		Result: model.CategoryForms,
	},
)

// Categorize returns the category a classified page is stored under.
// A page owns a form when the form's action path equals the page path.
func Categorize(page model.PageRecord, forms []model.FormRecord) model.PageCategory {
	c, _ := categoryRules.Evaluate(categoryInput{page: page, forms: forms})
	return c
}

// PageName derives a readable name from the last meaningful path segment,
// falling back to the title. "/" is "Home".
func PageName(path, title string) string {
	if strings.Trim(path, "/") == "" {
		return "Home"
	}

	segments := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	last := segments[len(segments)-1]
	if numericTail.MatchString("/"+last) && len(segments) > 1 {
		last = segments[len(segments)-2] + " " + last
	}
	if i := strings.LastIndexByte(last, '.'); i > 0 {
		last = last[:i]
	}
	name := strings.Join(strings.FieldsFunc(last, func(r rune) bool {
		return r == '-' || r == '_' || r == '+' || r == ' '
	}), " ")
	if name == "" {
		if title = model.CollapseSpace(title); title != "" {
			return title
		}
		return "Page"
	}
	// A Caser is stateful, so each call gets its own.
	return cases.Title(language.English).String(name)
}

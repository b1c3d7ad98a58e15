package analyzer

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/appscout/internal/model"
)

// navigationScenarioThreshold is the page count above which a navigation
// scenario is emitted.
const navigationScenarioThreshold = 3

const submitSelector = `[type="submit"]`

// SynthesizeFlows emits one flow per known pattern whose required pages and
// forms all exist. Partial flows are never emitted.
func SynthesizeFlows(pages []model.PageRecord, forms []model.FormRecord) []model.Flow {
	flows := make([]model.Flow, 0, 4)

	login, hasLogin := firstPage(pages, model.PageTypeLogin)
	signup, hasSignup := firstPage(pages, model.PageTypeSignup)
	dashboard, hasDashboard := firstPage(pages, model.PageTypeDashboard)
	list, hasList := firstPage(pages, model.PageTypeList)
	detail, hasDetail := firstPage(pages, model.PageTypeDetail)

	if hasLogin && hasDashboard {
		flows = append(flows, loginFlow(login, dashboard, formFor(forms, login, model.PatternLogin)))
	}
	if hasSignup && hasDashboard {
		flows = append(flows, signupFlow(signup, dashboard, formFor(forms, signup, model.PatternSignup)))
	}
	if search, ok := firstForm(forms, model.PatternSearch); ok {
		flows = append(flows, searchFlow(search))
	}
	if hasList && hasDetail {
		flows = append(flows, model.Flow{
			Name:        "Browse Flow",
			Description: "Open a list and drill down into one item",
			Steps: []model.FlowStep{
				{Action: model.ActionNavigate, URL: list.URL},
				{Action: model.ActionClick, Selector: fmt.Sprintf(`a[href*=%q]`, detail.Path)},
				{Action: model.ActionVerify, URL: detail.URL},
			},
		})
	}
	return flows
}

func loginFlow(login, dashboard model.PageRecord, form *model.FormRecord) model.Flow {
	steps := []model.FlowStep{{Action: model.ActionNavigate, URL: login.URL}}
	if form != nil {
		steps = append(steps, fillSteps(*form)...)
	} else {
		steps = append(steps,
			model.FlowStep{Action: model.ActionFill, Selector: `input[type="email"]`, Value: "test@example.com"},
			model.FlowStep{Action: model.ActionFill, Selector: `input[type="password"]`, Value: PasswordPlaceholder},
		)
	}
	steps = append(steps,
		model.FlowStep{Action: model.ActionClick, Selector: submitSelector},
		model.FlowStep{Action: model.ActionVerify, URL: dashboard.URL},
	)
	return model.Flow{
		Name:        "Login Flow",
		Description: "Sign in with test credentials and land on the dashboard",
		Steps:       steps,
	}
}

func signupFlow(signup, dashboard model.PageRecord, form *model.FormRecord) model.Flow {
	steps := []model.FlowStep{{Action: model.ActionNavigate, URL: signup.URL}}
	if form != nil {
		steps = append(steps, fillSteps(*form)...)
	}
	steps = append(steps,
		model.FlowStep{Action: model.ActionClick, Selector: submitSelector},
		model.FlowStep{Action: model.ActionVerify, URL: dashboard.URL},
	)
	return model.Flow{
		Name:        "Signup Flow",
		Description: "Register a new account and land on the dashboard",
		Steps:       steps,
	}
}

func searchFlow(form model.FormRecord) model.Flow {
	steps := []model.FlowStep{{Action: model.ActionNavigate, URL: form.PageURL}}
	steps = append(steps, fillSteps(form)...)
	steps = append(steps,
		model.FlowStep{Action: model.ActionClick, Selector: submitSelector},
		model.FlowStep{Action: model.ActionVerify, URL: form.ActionURL},
	)
	return model.Flow{
		Name:        "Search Flow",
		Description: "Submit a search query and check the results page",
		Steps:       steps,
	}
}

// fillSteps fills every addressable field that has test data, in field order.
func fillSteps(form model.FormRecord) []model.FlowStep {
	steps := make([]model.FlowStep, 0, len(form.Fields))
	for _, field := range form.Fields {
		selector := field.Selector()
		value, ok := form.GeneratedTestData[field.Identifier()]
		if selector == "" || !ok {
			continue
		}
		if custom, ok := form.CustomTestData[field.Identifier()]; ok {
			value = custom
		}
		steps = append(steps, model.FlowStep{Action: model.ActionFill, Selector: selector, Value: value})
	}
	return steps
}

// SynthesizeScenarios emits the test scenarios the pages and forms support.
func SynthesizeScenarios(pages []model.PageRecord, forms []model.FormRecord) []model.TestScenario {
	scenarios := []model.TestScenario{{
		Name:        "Responsive Design",
		Description: "The application is usable on mobile, tablet and desktop screens",
		Steps: []string{
			"Open the application at 375px width",
			"Check that navigation and content are reachable without horizontal scrolling",
			"Repeat at 768px and 1280px widths",
		},
	}}

	if home, ok := firstPage(pages, model.PageTypeHomepage); ok {
		scenarios = append(scenarios, model.TestScenario{
			Name:        "Homepage Load",
			Description: "The homepage loads and shows its main content",
			Steps: []string{
				"Navigate to " + home.URL,
				fmt.Sprintf("Verify the page title is %q", home.Title),
				"Verify no console errors are reported",
			},
		})
	}

	caser := cases.Title(language.English)
	seen := make(map[model.FormPattern]bool)
	for _, form := range forms {
		if form.Pattern == model.PatternGeneric || form.Pattern == "" || seen[form.Pattern] {
			continue
		}
		seen[form.Pattern] = true
		scenarios = append(scenarios, model.TestScenario{
			Name:        caser.String(string(form.Pattern)) + " Form Submission",
			Description: fmt.Sprintf("The %s form accepts valid input and rejects empty required fields", form.Pattern),
			Steps: []string{
				"Navigate to " + form.PageURL,
				"Submit the form with every required field empty and verify validation messages",
				"Fill the fields with the generated test data",
				"Submit the form and verify the expected result",
			},
		})
	}

	if len(pages) > navigationScenarioThreshold {
		scenarios = append(scenarios, model.TestScenario{
			Name:        "Navigation",
			Description: "Every discovered page is reachable through the site's links",
			Steps: []string{
				"Start at the homepage",
				fmt.Sprintf("Follow links to each of the %d discovered pages", len(pages)),
				"Verify each page loads without errors",
			},
		})
	}
	return scenarios
}

func firstPage(pages []model.PageRecord, t model.PageType) (model.PageRecord, bool) {
	for _, p := range pages {
		if p.PageType == t {
			return p, true
		}
	}
	return model.PageRecord{}, false
}

func firstForm(forms []model.FormRecord, pattern model.FormPattern) (model.FormRecord, bool) {
	for _, f := range forms {
		if f.Pattern == pattern {
			return f, true
		}
	}
	return model.FormRecord{}, false
}

// formFor returns the form with the pattern found on the page, else any
// form with the pattern, else nil.
func formFor(forms []model.FormRecord, page model.PageRecord, pattern model.FormPattern) *model.FormRecord {
	var fallback *model.FormRecord
	for i := range forms {
		if forms[i].Pattern != pattern {
			continue
		}
		if forms[i].PageURL == page.URL {
			return &forms[i]
		}
		if fallback == nil {
			fallback = &forms[i]
		}
	}
	return fallback
}

package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/nao1215/appscout/internal/analyzer"
	"github.com/nao1215/appscout/internal/knowledge"
	"github.com/nao1215/appscout/internal/model"
)

// pageTypeOrder is the display order of page types.
var pageTypeOrder = []model.PageType{
	model.PageTypeHomepage,
	model.PageTypeLogin,
	model.PageTypeSignup,
	model.PageTypeDashboard,
	model.PageTypeProfile,
	model.PageTypeList,
	model.PageTypeDetail,
	model.PageTypeContact,
	model.PageTypeAbout,
	model.PageTypeGeneric,
}

// skillFrontMatter is the YAML header agents read to decide whether the
// document is relevant.
type skillFrontMatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
}

// RenderSkill renders SKILL.md: what an automated tester needs to know to
// drive the application.
func RenderSkill(k *model.AppKnowledge) ([]byte, error) {
	var buf bytes.Buffer

	front, err := yaml.Marshal(skillFrontMatter{
		Name:        knowledge.Slug(k.AppName),
		Description: fmt.Sprintf("Pages, forms and user flows of %s (%s) for end-to-end testing.", k.AppName, k.BaseURL),
		Version:     k.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode front matter: %w", err)
	}
	buf.WriteString("---\n")
	buf.Write(front)
	buf.WriteString("---\n\n")

	md := markdown.NewMarkdown(&buf)
	md.H1(k.AppName)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Base URL", code(k.BaseURL)},
			{"Knowledge version", k.Version},
			{"Framework", k.Framework},
			{"Last updated", k.UpdatedAt.UTC().Format(timeLayout)},
			{"Pages", strconv.Itoa(k.Pages.Len())},
			{"Forms", strconv.Itoa(len(k.Forms))},
			{"User flows", strconv.Itoa(len(k.UserFlows))},
		},
	})
	md.PlainText("")

	if k.Pages.Len() == 0 {
		md.Warningf("The last exploration of %s found no pages. Check that the application is running and reachable.", k.BaseURL)
		md.PlainText("")
	}

	writeSkillPages(md, k)
	writeSkillForms(md, k.Forms)
	writeSkillFlows(md, k.UserFlows)
	writeSkillNavigation(md, k.Navigation)

	if len(k.RemovedPages)+len(k.RemovedForms) > 0 {
		md.H2("Removed in this version")
		md.PlainText("")
		md.Importantf("The last update no longer found %d page(s) and %d form(s). Tests that rely on them will fail.",
			len(k.RemovedPages), len(k.RemovedForms))
		md.PlainText("")
		md.BulletList(codeAll(append(append([]string{}, k.RemovedPages...), k.RemovedForms...))...)
		md.PlainText("")
	}

	if len(k.UpdateHistory) > 0 {
		md.H2("Update history")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Timestamp", "From", "To", "Pages +/-", "Forms +/-", "Flows +"},
			Rows:   updateRows(k.UpdateHistory),
		})
		md.PlainText("")
	}

	if err := md.Build(); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", "SKILL.md", err)
	}
	return buf.Bytes(), nil
}

func writeSkillPages(md *markdown.Markdown, k *model.AppKnowledge) {
	md.H2("Pages")
	md.PlainText("")
	if k.Pages.Len() == 0 {
		md.PlainText("No pages recorded.")
		md.PlainText("")
		return
	}

	title := cases.Title(language.English)
	for _, c := range model.Categories() {
		pages := k.Pages.Get(c)
		if len(pages) == 0 {
			continue
		}
		md.H3(title.String(string(c)))
		md.PlainText("")
		rows := make([][]string, 0, len(pages))
		for _, p := range pages {
			rows = append(rows, []string{code(p.Path), cell(p.PageName), string(p.PageType), cell(p.Title)})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Path", "Name", "Type", "Title"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(k.Statistics.PagesByType) > 1 {
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, pageTypeChart(k.Statistics, pageTypeOrder))
		md.PlainText("")
	}
}

func writeSkillForms(md *markdown.Markdown, forms []model.FormRecord) {
	md.H2("Forms")
	md.PlainText("")
	if len(forms) == 0 {
		md.PlainText("No forms recorded.")
		md.PlainText("")
		return
	}

	for i := range forms {
		f := &forms[i]
		md.H3(fmt.Sprintf("%s form: %s %s", f.Pattern, f.Method, f.ActionPath()))
		md.PlainText("")
		md.PlainTextf("Found on %s.", code(f.PageURL))
		md.PlainText("")

		data := TestData(f)
		rows := make([][]string, 0, len(f.Fields))
		for _, field := range f.Fields {
			if !field.IsFillable() {
				continue
			}
			required := ""
			if field.Required {
				required = "yes"
			}
			rows = append(rows, []string{
				code(field.Selector()),
				field.Type,
				cell(required),
				cell(firstNonEmpty(field.Label, field.Placeholder)),
				code(data[field.Identifier()]),
			})
		}
		if len(rows) > 0 {
			md.Table(markdown.TableSet{
				Header: []string{"Selector", "Type", "Required", "Label", "Test value"},
				Rows:   rows,
			})
			md.PlainText("")
		}
		if hasPasswordPlaceholder(data) {
			md.Tip("Replace " + code(analyzer.PasswordPlaceholder) + " with a real test password at run time.")
			md.PlainText("")
		}
	}
}

func writeSkillFlows(md *markdown.Markdown, flows []model.Flow) {
	md.H2("User flows")
	md.PlainText("")
	if len(flows) == 0 {
		md.PlainText("No user flows could be synthesized.")
		md.PlainText("")
		return
	}

	for _, f := range flows {
		name := f.Name
		if f.Custom {
			name += " (custom)"
		}
		md.H3(name)
		md.PlainText("")
		if f.Description != "" {
			md.PlainText(f.Description)
			md.PlainText("")
		}
		steps := make([]string, 0, len(f.Steps))
		for _, s := range f.Steps {
			steps = append(steps, StepText(s))
		}
		md.OrderedList(steps...)
		md.PlainText("")
	}
}

func writeSkillNavigation(md *markdown.Markdown, nav []model.NavEntry) {
	if len(nav) == 0 {
		return
	}
	md.H2("Navigation")
	md.PlainText("")
	items := make([]string, 0, len(nav))
	for _, n := range nav {
		item := code(n.Path)
		if len(n.Links) > 0 {
			item += " → " + strings.Join(codeAll(n.Links), ", ")
		}
		items = append(items, item)
	}
	md.BulletList(items...)
	md.PlainText("")
}

// RenderScenarios renders test-scenarios.md.
func RenderScenarios(k *model.AppKnowledge) ([]byte, error) {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	md.H1(k.AppName + " test scenarios")
	md.PlainText("")
	md.PlainTextf("Knowledge version %s, base URL %s.", k.Version, code(k.BaseURL))
	md.PlainText("")

	if len(k.TestScenarios) == 0 {
		md.Note("No test scenarios were synthesized.")
		md.PlainText("")
	}
	for i, s := range k.TestScenarios {
		name := fmt.Sprintf("%d. %s", i+1, s.Name)
		if s.Custom {
			name += " (custom)"
		}
		md.H2(name)
		md.PlainText("")
		if s.Description != "" {
			md.PlainText(s.Description)
			md.PlainText("")
		}
		if len(s.Steps) > 0 {
			md.OrderedList(s.Steps...)
			md.PlainText("")
		}
	}

	if err := md.Build(); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", "test-scenarios.md", err)
	}
	return buf.Bytes(), nil
}

// TestData returns the test values of a form: generated values overlaid
// with operator-supplied ones.
func TestData(f *model.FormRecord) map[string]string {
	data := make(map[string]string, len(f.GeneratedTestData)+len(f.CustomTestData))
	for k, v := range f.GeneratedTestData {
		data[k] = v
	}
	for k, v := range f.CustomTestData {
		data[k] = v
	}
	return data
}

func hasPasswordPlaceholder(data map[string]string) bool {
	for _, v := range data {
		if v == analyzer.PasswordPlaceholder {
			return true
		}
	}
	return false
}

// StepText describes a flow step in one line.
func StepText(s model.FlowStep) string {
	switch s.Action {
	case model.ActionNavigate:
		return "Navigate to " + code(s.URL)
	case model.ActionFill:
		return "Fill " + code(s.Selector) + " with " + code(s.Value)
	case model.ActionClick:
		return "Click " + code(s.Selector)
	case model.ActionVerify:
		if s.URL != "" {
			return "Verify the browser is at " + code(s.URL)
		}
		return "Verify " + code(s.Selector) + " is visible"
	default:
		return s.Action + " " + code(firstNonEmpty(s.Selector, s.URL))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

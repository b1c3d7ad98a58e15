package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/nao1215/appscout/internal/analyzer"
	"github.com/nao1215/appscout/internal/database"
	"github.com/nao1215/appscout/internal/knowledge"
	"github.com/nao1215/appscout/internal/model"
)

var testNow = time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC)

// createTestRun creates an update run over a home page, a login page and a
// dashboard, with one failed visit.
func createTestRun() *model.Run {
	e := model.NewExploration("session-1", "http://app.test/")
	e.Pages = []model.PageRecord{
		{URL: "http://app.test/", Path: "/", Title: "Acme", Heading: "Welcome to Acme"},
		{URL: "http://app.test/login", Path: "/login", Title: "Sign in", Depth: 1},
		{URL: "http://app.test/dashboard", Path: "/dashboard", Title: "Dashboard", Depth: 1},
	}
	e.Forms = []model.FormRecord{{
		PageURL:   "http://app.test/login",
		ActionURL: "http://app.test/login",
		Method:    "POST",
		Fields: []model.FieldRecord{
			{Type: "email", Name: "email", Required: true, Label: "Email"},
			{Type: "password", Name: "password", Required: true},
		},
		Buttons:    []model.ButtonRecord{{Text: "Log in", Type: "submit"}},
		FieldCount: 2,
	}}
	e.Links = map[string][]string{"/": {"/login", "/dashboard"}}
	for _, p := range e.Pages {
		e.Visits = append(e.Visits, model.Visit{URL: p.URL, Depth: p.Depth, Status: model.VisitOK})
	}
	e.Visits = append(e.Visits, model.Visit{URL: "http://app.test/broken", Depth: 1, Status: model.VisitFailed, Error: "HTTP 500"})

	run := model.NewRun("run-1", "Acme", "http://app.test/", model.ModeUpdate)
	run.StartedAt = testNow
	run.FinishedAt = testNow.Add(2 * time.Second)
	run.Exploration = e
	run.Analysis = analyzer.Analyze("Acme", e)

	previous := knowledge.New(run.Analysis, testNow.Add(-time.Hour))
	k, change, err := knowledge.Merge(previous, run.Analysis, testNow)
	if err != nil {
		panic(err)
	}
	run.Existing = previous
	run.Knowledge = k
	run.Change = change
	run.ArtifactDir = "/data/apps/acme"
	run.AddWarning("login failed: invalid credentials")
	run.PerformedSteps = []string{"load", "explore", "analyze", "merge", "persist"}
	return run
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "", want: FormatText},
		{input: "TEXT", want: FormatText},
		{input: "md", want: FormatMarkdown},
		{input: "markdown", want: FormatMarkdown},
		{input: "json", want: FormatJSON},
		{input: "xml", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownFormat) {
				t.Errorf("ParseFormat(%q): expected ErrUnknownFormat, got %v", tt.input, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
		}
	}
}

func TestCountsOf(t *testing.T) {
	t.Parallel()

	t.Run("counts knowledge and visits", func(t *testing.T) {
		t.Parallel()

		run := createTestRun()
		got := CountsOf(run)
		want := RunCounts{
			Version:   "1.1.0",
			Pages:     3,
			Forms:     1,
			Flows:     len(run.Knowledge.UserFlows),
			Scenarios: len(run.Knowledge.TestScenarios),
			Visited:   4,
			Failed:    1,
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("counts mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("skipped update reports the stored version", func(t *testing.T) {
		t.Parallel()

		run := createTestRun()
		run.Skipped = true
		run.Knowledge = nil
		run.Analysis = &model.Analysis{}

		got := CountsOf(run)
		if got.Version != "1.0.0" || got.Pages != 0 {
			t.Errorf("unexpected counts %+v", got)
		}
	})
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes the run summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"appscout update: Acme",
			"1.0.0 -> 1.1.0",
			"/data/apps/acme",
			"Changes since 1.0.0",
			"http://app.test/broken",
			"login failed: invalid credentials",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
	})

	t.Run("writes history", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		h := &HistoryReport{
			AppName: "Acme",
			Current: "1.1.0",
			Runs: []database.RunRecord{
				{ID: "r2", Mode: model.ModeUpdate, Version: "1.1.0", StartedAt: testNow, Pages: 4},
				{ID: "r1", Mode: model.ModeCreate, Version: "1.0.0", StartedAt: testNow.Add(-time.Hour), Pages: 3},
			},
			Updates: []model.UpdateEntry{{Timestamp: testNow, PreviousVersion: "1.0.0", NewVersion: "1.1.0", PagesAdded: 1}},
			Compare: &model.ChangeSummary{PreviousVersion: "1.0.0", NewVersion: "1.1.0", PagesAdded: []string{"/calendar"}},
		}
		if _, err := NewSimpleWriter(&buf).WriteHistory(h); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"History: Acme", "1.0.0 -> 1.1.0", "pages=4", "+1 pages: /calendar"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestRun()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got RunSummary
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if got.AppName != "Acme" || got.Counts.Version != "1.1.0" || got.Counts.Failed != 1 {
		t.Errorf("unexpected summary %+v", got)
	}
	if len(got.Failures) != 1 || got.Failures[0].Error != "HTTP 500" {
		t.Errorf("unexpected failures %+v", got.Failures)
	}
	if !strings.HasSuffix(buf.String(), "}\n") {
		t.Error("expected trailing newline")
	}
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewMarkdownWriter(&buf).Write(createTestRun()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"# appscout update: Acme", "| Property", "## Changes since 1.0.0", "## Warnings"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q\n%s", want, output)
		}
	}
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var a, b bytes.Buffer
	m := NewMultiWriter(NewSimpleWriter(&a), NewJSONWriter(&b))

	n, err := m.Write(createTestRun())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != a.Len()+b.Len() {
		t.Errorf("expected %d bytes, got %d", a.Len()+b.Len(), n)
	}
}

func TestArtifacts(t *testing.T) {
	t.Parallel()

	k := createTestRun().Knowledge
	k.UserFlows = append(k.UserFlows, model.Flow{
		Name:   "Export Report",
		Custom: true,
		Steps:  []model.FlowStep{{Action: model.ActionClick, Selector: "#export"}},
	})
	k.Forms[0].CustomTestData = map[string]string{"email": "qa@acme.test"}

	artifacts, err := Artifacts(k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	files := make(map[string]string, len(artifacts))
	names := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		files[a.Name] = string(a.Data)
		names = append(names, a.Name)
	}
	if diff := cmp.Diff(knowledge.ArtifactNames(), names); diff != "" {
		t.Fatalf("artifact names mismatch (-want +got):\n%s", diff)
	}

	t.Run("knowledge.json decodes back", func(t *testing.T) {
		t.Parallel()

		got, err := knowledge.Migrate([]byte(files[knowledge.FileKnowledge]))
		if err != nil {
			t.Fatal(err)
		}
		if got.Version != k.Version || got.Pages.Len() != k.Pages.Len() {
			t.Errorf("unexpected knowledge %s with %d pages", got.Version, got.Pages.Len())
		}
	})

	t.Run("SKILL.md", func(t *testing.T) {
		t.Parallel()

		skill := files[knowledge.FileSkill]
		if !strings.HasPrefix(skill, "---\nname: acme\n") {
			t.Errorf("expected front matter, got %q", skill[:min(len(skill), 40)])
		}
		for _, want := range []string{
			"# Acme",
			"## Pages",
			"`/login`",
			"## Forms",
			"`qa@acme.test`",
			analyzer.PasswordPlaceholder,
			"### Login Flow",
			"### Export Report (custom)",
			"Click `#export`",
			"## Update history",
		} {
			if !strings.Contains(skill, want) {
				t.Errorf("expected SKILL.md to contain %q", want)
			}
		}
	})

	t.Run("test-scenarios.md", func(t *testing.T) {
		t.Parallel()

		scenarios := files[knowledge.FileScenarios]
		for _, s := range k.TestScenarios {
			if !strings.Contains(scenarios, s.Name) {
				t.Errorf("expected scenario %q", s.Name)
			}
		}
	})

	t.Run("flows.yaml", func(t *testing.T) {
		t.Parallel()

		var doc struct {
			App   string `yaml:"app"`
			Flows []struct {
				Name   string           `yaml:"name"`
				Custom bool             `yaml:"custom"`
				Steps  []model.FlowStep `yaml:"steps"`
			} `yaml:"flows"`
			TestData []struct {
				Action string            `yaml:"action"`
				Values map[string]string `yaml:"values"`
			} `yaml:"testData"`
		}
		if err := yaml.Unmarshal([]byte(files[knowledge.FileFlows]), &doc); err != nil {
			t.Fatalf("flows.yaml is not valid YAML: %v", err)
		}
		if doc.App != "Acme" || len(doc.Flows) != len(k.UserFlows) {
			t.Errorf("unexpected document %+v", doc)
		}
		last := doc.Flows[len(doc.Flows)-1]
		if !last.Custom || last.Steps[0].Selector != "#export" {
			t.Errorf("unexpected custom flow %+v", last)
		}
		if len(doc.TestData) != 1 || doc.TestData[0].Values["email"] != "qa@acme.test" {
			t.Errorf("unexpected test data %+v", doc.TestData)
		}
		if strings.Contains(files[knowledge.FileFlows], `selector: ""`) {
			t.Error("empty selectors must be omitted")
		}
	})
}

func TestArtifactsEmptyKnowledge(t *testing.T) {
	t.Parallel()

	k := knowledge.New(&model.Analysis{AppName: "Empty", BaseURL: "http://empty.test/"}, testNow)

	artifacts, err := Artifacts(k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(artifacts) != 4 {
		t.Fatalf("expected 4 artifacts, got %d", len(artifacts))
	}
	if !strings.Contains(string(artifacts[1].Data), "found no pages") {
		t.Error("expected SKILL.md to warn about the empty exploration")
	}
}

func TestStepText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		step model.FlowStep
		want string
	}{
		{model.FlowStep{Action: model.ActionNavigate, URL: "http://app.test/login"}, "Navigate to `http://app.test/login`"},
		{model.FlowStep{Action: model.ActionFill, Selector: "#email", Value: "a@b.test"}, "Fill `#email` with `a@b.test`"},
		{model.FlowStep{Action: model.ActionClick, Selector: `[type="submit"]`}, "Click `[type=\"submit\"]`"},
		{model.FlowStep{Action: model.ActionVerify, URL: "http://app.test/dashboard"}, "Verify the browser is at `http://app.test/dashboard`"},
		{model.FlowStep{Action: model.ActionVerify, Selector: ".toast"}, "Verify `.toast` is visible"},
	}
	for _, tt := range tests {
		if got := StepText(tt.step); got != tt.want {
			t.Errorf("StepText(%+v) = %q, want %q", tt.step, got, tt.want)
		}
	}
}

func TestProgress(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewProgress(&buf)
	p.Update(1, 4, "http://app.test/")
	p.Update(4, 4, "http://app.test/dashboard")
	p.Finish()
	p.Update(5, 4, "ignored")

	output := buf.String()
	if !strings.Contains(output, "1/4") || !strings.Contains(output, "4/4") {
		t.Errorf("expected counters in %q", output)
	}
	if strings.Contains(output, "ignored") {
		t.Error("updates after Finish must be ignored")
	}
	if !strings.HasSuffix(output, "\n") {
		t.Error("expected Finish to end the line")
	}
}

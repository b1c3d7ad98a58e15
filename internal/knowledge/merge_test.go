package knowledge

import (
	"errors"
	"math"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/appscout/internal/analyzer"
	"github.com/nao1215/appscout/internal/model"
)

var (
	created = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	updated = time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC)
)

// exploration builds a crawl of a home page, a login page with a login
// form, a dashboard and any extra paths.
func exploration(extra ...string) *model.Exploration {
	e := model.NewExploration("session", "http://app.test/")
	e.Pages = []model.PageRecord{
		{URL: "http://app.test/", Path: "/", Title: "Acme", Heading: "Welcome to Acme"},
		{URL: "http://app.test/login", Path: "/login", Title: "Sign in", Depth: 1},
		{URL: "http://app.test/dashboard", Path: "/dashboard", Title: "Dashboard", Depth: 1},
	}
	for _, p := range extra {
		e.Pages = append(e.Pages, model.PageRecord{URL: "http://app.test" + p, Path: p, Title: "Extra", Depth: 1})
	}
	e.Forms = []model.FormRecord{{
		PageURL:   "http://app.test/login",
		ActionURL: "http://app.test/login",
		Method:    "POST",
		Fields: []model.FieldRecord{
			{Type: "email", Name: "email", Required: true},
			{Type: "password", Name: "password", Required: true},
		},
		Buttons:    []model.ButtonRecord{{Text: "Log in", Type: "submit"}},
		FieldCount: 2,
	}}
	e.Links = map[string][]string{"/": {"/login", "/dashboard"}}
	for _, p := range e.Pages {
		e.Visits = append(e.Visits, model.Visit{URL: p.URL, Depth: p.Depth, Status: model.VisitOK})
	}
	return e
}

func TestNew(t *testing.T) {
	t.Parallel()

	k := New(analyzer.Analyze("Acme", exploration()), created)

	if k.Version != InitialVersion {
		t.Errorf("expected version %s, got %s", InitialVersion, k.Version)
	}
	if k.SchemaVersion != model.CurrentSchemaVersion {
		t.Errorf("expected schema %d, got %d", model.CurrentSchemaVersion, k.SchemaVersion)
	}
	if len(k.UpdateHistory) != 0 {
		t.Errorf("creation must not add history, got %d entries", len(k.UpdateHistory))
	}
	if !k.CreatedAt.Equal(created) || !k.UpdatedAt.Equal(created) {
		t.Errorf("unexpected timestamps %v / %v", k.CreatedAt, k.UpdatedAt)
	}
	if k.Pages.Len() != 3 {
		t.Errorf("expected 3 pages, got %d", k.Pages.Len())
	}
	if k.RemovedPages != nil || k.RemovedForms != nil {
		t.Error("new knowledge must not list removals")
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	t.Run("adds a page and bumps the minor version", func(t *testing.T) {
		t.Parallel()

		existing := New(analyzer.Analyze("Acme", exploration()), created)
		fresh := analyzer.Analyze("Acme", exploration("/calendar"))

		k, change, err := Merge(existing, fresh, updated)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if k.Version != "1.1.0" {
			t.Errorf("expected version 1.1.0, got %s", k.Version)
		}
		if !k.CreatedAt.Equal(created) || !k.UpdatedAt.Equal(updated) {
			t.Errorf("unexpected timestamps %v / %v", k.CreatedAt, k.UpdatedAt)
		}
		if diff := cmp.Diff([]string{"/calendar"}, change.PagesAdded); diff != "" {
			t.Errorf("pages added mismatch (-want +got):\n%s", diff)
		}
		if len(change.FormsAdded) != 0 {
			t.Errorf("expected no forms added, got %v", change.FormsAdded)
		}

		want := []model.UpdateEntry{{
			Timestamp:       updated,
			PreviousVersion: "1.0.0",
			NewVersion:      "1.1.0",
			PagesAdded:      1,
		}}
		if diff := cmp.Diff(want, k.UpdateHistory); diff != "" {
			t.Errorf("history mismatch (-want +got):\n%s", diff)
		}
		if k.Statistics.TotalPages != 4 {
			t.Errorf("expected 4 pages, got %d", k.Statistics.TotalPages)
		}
		if existing.Version != "1.0.0" || len(existing.UpdateHistory) != 0 {
			t.Error("existing knowledge was modified")
		}
	})

	t.Run("appends to history on every update", func(t *testing.T) {
		t.Parallel()

		k := New(analyzer.Analyze("Acme", exploration()), created)
		var err error
		for range 3 {
			k, _, err = Merge(k, analyzer.Analyze("Acme", exploration()), updated)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		if k.Version != "1.3.0" {
			t.Errorf("expected 1.3.0, got %s", k.Version)
		}
		if len(k.UpdateHistory) != 3 {
			t.Fatalf("expected 3 history entries, got %d", len(k.UpdateHistory))
		}
		if k.UpdateHistory[2].PreviousVersion != "1.2.0" {
			t.Errorf("unexpected last entry %+v", k.UpdateHistory[2])
		}
	})

	t.Run("carries operator data forward", func(t *testing.T) {
		t.Parallel()

		existing := New(analyzer.Analyze("Acme", exploration()), created)
		for i, p := range existing.Pages.Auth {
			if p.Path == "/login" {
				existing.Pages.Auth[i].CustomData = map[string]any{"owner": "team-auth"}
			}
		}
		existing.Forms[0].CustomTestData = map[string]string{"email": "qa@acme.test"}
		existing.UserFlows = append(existing.UserFlows, model.Flow{Name: "Password Reset", Custom: true})
		existing.TestScenarios = append(existing.TestScenarios, model.TestScenario{Name: "Audit Log", Custom: true})

		k, change, err := Merge(existing, analyzer.Analyze("Acme", exploration()), updated)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		login, ok := k.FindPage("/login")
		if !ok {
			t.Fatal("login page missing")
		}
		if diff := cmp.Diff(map[string]any{"owner": "team-auth"}, login.CustomData); diff != "" {
			t.Errorf("custom data mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(map[string]string{"email": "qa@acme.test"}, k.Forms[0].CustomTestData); diff != "" {
			t.Errorf("custom test data mismatch (-want +got):\n%s", diff)
		}
		if !hasFlow(k.UserFlows, "Password Reset") {
			t.Error("custom flow was dropped")
		}
		if !hasScenario(k.TestScenarios, "Audit Log") {
			t.Error("custom scenario was dropped")
		}
		if len(change.FlowsRemoved) != 0 {
			t.Errorf("custom flows must not count as removed, got %v", change.FlowsRemoved)
		}
	})

	t.Run("drops and lists missing pages and forms", func(t *testing.T) {
		t.Parallel()

		existing := New(analyzer.Analyze("Acme", exploration("/calendar")), created)
		fresh := exploration()
		fresh.Pages = fresh.Pages[:1]
		fresh.Forms = nil

		k, change, err := Merge(existing, analyzer.Analyze("Acme", fresh), updated)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if diff := cmp.Diff([]string{"/calendar", "/dashboard", "/login"}, slices.Sorted(slices.Values(change.PagesRemoved))); diff != "" {
			t.Errorf("pages removed mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"/login"}, k.RemovedForms); diff != "" {
			t.Errorf("removed forms mismatch (-want +got):\n%s", diff)
		}
		if _, ok := k.FindPage("/calendar"); ok {
			t.Error("removed page is still stored")
		}
		if got := k.UpdateHistory[0]; got.PagesRemoved != 3 || got.FormsRemoved != 1 {
			t.Errorf("unexpected history counts %+v", got)
		}
		if !slices.Contains(change.FlowsRemoved, "Login Flow") {
			t.Errorf("expected Login Flow to be removed, got %v", change.FlowsRemoved)
		}
	})

	t.Run("rejects an invalid stored version", func(t *testing.T) {
		t.Parallel()

		for _, version := range []string{"latest", "1." + strconv.Itoa(math.MaxInt) + ".0"} {
			existing := New(analyzer.Analyze("Acme", exploration()), created)
			existing.Version = version

			merged, _, err := Merge(existing, analyzer.Analyze("Acme", exploration()), updated)
			if !errors.Is(err, ErrInvalidVersion) {
				t.Errorf("version %q: expected ErrInvalidVersion, got %v", version, err)
			}
			if merged != nil {
				t.Errorf("version %q: expected no merged knowledge, got %s", version, merged.Version)
			}
		}
	})
}

func hasFlow(flows []model.Flow, name string) bool {
	for _, f := range flows {
		if f.Name == name {
			return true
		}
	}
	return false
}

func hasScenario(scenarios []model.TestScenario, name string) bool {
	for _, s := range scenarios {
		if s.Name == name {
			return true
		}
	}
	return false
}


func TestDiff(t *testing.T) {
	t.Parallel()

	older := New(analyzer.Analyze("Acme", exploration("/calendar")), created)
	fresh := exploration("/reports")
	fresh.Forms = append(fresh.Forms, fresh.Forms[0])
	fresh.Forms[1].Fields = append([]model.FieldRecord(nil), fresh.Forms[1].Fields...)
	fresh.Forms[1].Fields = append(fresh.Forms[1].Fields, model.FieldRecord{Type: "checkbox", Name: "remember"})
	newer, _, err := Merge(older, analyzer.Analyze("Acme", fresh), updated)
	if err != nil {
		t.Fatal(err)
	}

	got := Diff(older, newer)
	want := &model.ChangeSummary{
		PreviousVersion: "1.0.0",
		NewVersion:      "1.1.0",
		PagesAdded:      []string{"/reports"},
		PagesRemoved:    []string{"/calendar"},
		FormsAdded:      []string{"/login"},
		FormsRemoved:    []string{},
		FlowsAdded:      []string{},
		FlowsRemoved:    []string{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diff mismatch (-want +got):\n%s", diff)
	}
}

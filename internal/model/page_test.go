package model

import (
	"encoding/json"
	"strings"
	"testing"
)

// TestPageGroups tests adding and reading grouped pages.
func TestPageGroups(t *testing.T) {
	t.Parallel()

	t.Run("all returns pages in category order", func(t *testing.T) {
		t.Parallel()

		var g PageGroups
		g.Add(CategoryOther, PageRecord{Path: "/"})
		g.Add(CategoryAuth, PageRecord{Path: "/login"})
		g.Add(CategoryList, PageRecord{Path: "/items"})

		all := g.All()
		if len(all) != 3 {
			t.Fatalf("expected 3 pages, got %d", len(all))
		}
		want := []string{"/login", "/items", "/"}
		for i, p := range all {
			if p.Path != want[i] {
				t.Errorf("page %d: got %q, expected %q", i, p.Path, want[i])
			}
		}
		if g.Len() != 3 {
			t.Errorf("expected Len 3, got %d", g.Len())
		}
	})

	t.Run("unknown category falls back to other", func(t *testing.T) {
		t.Parallel()

		var g PageGroups
		g.Add(PageCategory("bogus"), PageRecord{Path: "/x"})

		if len(g.Other) != 1 {
			t.Errorf("expected page under other, got %+v", g)
		}
		if g.Get(PageCategory("bogus")) != nil {
			t.Error("expected nil for unknown category")
		}
	})

	t.Run("normalize emits every category as an array", func(t *testing.T) {
		t.Parallel()

		var g PageGroups
		g.Normalize()

		data, err := json.Marshal(g)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if strings.Contains(string(data), "null") {
			t.Errorf("expected no null categories, got %s", data)
		}
	})
}

// TestFormRecordActionPath tests form to page association by path.
func TestFormRecordActionPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		form     FormRecord
		expected string
	}{
		{"absolute action", FormRecord{ActionURL: "https://app.test/login?next=/"}, "/login"},
		{"empty action uses page", FormRecord{PageURL: "https://app.test/contact"}, "/contact"},
		{"host only action", FormRecord{ActionURL: "https://app.test"}, "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.form.ActionPath(); got != tt.expected {
				t.Errorf("got %q, expected %q", got, tt.expected)
			}
		})
	}
}

// TestFieldRecord tests field identifiers and selectors.
func TestFieldRecord(t *testing.T) {
	t.Parallel()

	t.Run("name wins over id", func(t *testing.T) {
		t.Parallel()
		f := FieldRecord{Name: "email", ID: "user-email"}
		if f.Identifier() != "email" {
			t.Errorf("got %q", f.Identifier())
		}
		if f.Selector() != "#user-email" {
			t.Errorf("got selector %q", f.Selector())
		}
	})

	t.Run("no identifier", func(t *testing.T) {
		t.Parallel()
		f := FieldRecord{Type: "text"}
		if f.Identifier() != "" || f.Selector() != "" {
			t.Errorf("expected empty identifier and selector, got %q %q", f.Identifier(), f.Selector())
		}
	})

	t.Run("hidden and submit are not fillable", func(t *testing.T) {
		t.Parallel()
		for _, typ := range []string{"hidden", "submit", "SUBMIT", "button"} {
			if (FieldRecord{Type: typ}).IsFillable() {
				t.Errorf("expected %q not fillable", typ)
			}
		}
		if !(FieldRecord{Type: "email"}).IsFillable() {
			t.Error("expected email fillable")
		}
	})
}

// TestTruncateRunes tests rune-safe truncation.
func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		n        int
		expected string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "hé"},
		{"hello", 0, ""},
	}

	for _, tt := range tests {
		if got := TruncateRunes(tt.in, tt.n); got != tt.expected {
			t.Errorf("TruncateRunes(%q, %d) = %q, expected %q", tt.in, tt.n, got, tt.expected)
		}
	}

	if got := CollapseSpace("  a \n\t b  "); got != "a b" {
		t.Errorf("CollapseSpace got %q", got)
	}
}

// TestExplorationCounters tests the exploration helpers.
func TestExplorationCounters(t *testing.T) {
	t.Parallel()

	e := NewExploration("s1", "https://app.test/")
	e.Pages = []PageRecord{{Depth: 0}, {Depth: 2}, {Depth: 1}}
	e.Visits = []Visit{{Status: VisitOK}, {Status: VisitFailed}, {Status: VisitFailed}}

	if e.MaxDepth() != 2 {
		t.Errorf("expected max depth 2, got %d", e.MaxDepth())
	}
	if e.FailedVisits() != 2 {
		t.Errorf("expected 2 failed visits, got %d", e.FailedVisits())
	}
}

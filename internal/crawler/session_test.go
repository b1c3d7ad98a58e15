package crawler

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/appscout/internal/model"
)

func TestSession(t *testing.T) {
	t.Parallel()

	s, err := NewSession("HTTP://App.test")
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if s.ID == "" || s.StartURL != "http://app.test/" {
		t.Fatalf("unexpected session %+v", s)
	}

	other, err := NewSession("http://app.test/")
	if err != nil {
		t.Fatal(err)
	}
	if other.ID == s.ID {
		t.Error("sessions must have distinct ids")
	}

	s.RecordPage(Entry{URL: "http://app.test/", Depth: 0}, &PageResult{
		Page:  model.PageRecord{URL: "http://app.test/", Path: "/"},
		Links: []string{"http://app.test/a?x=1", "http://app.test/a", "http://other.test/b", "http://app.test"},
	}, time.Millisecond)
	s.RecordFailure(Entry{URL: "http://app.test/b", Depth: 1}, model.VisitFailed, errors.New("boom"), time.Millisecond)

	e := s.Exploration()
	if diff := cmp.Diff([]string{"/a", "/"}, e.Links["/"]); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
	if len(e.Visits) != 2 || e.Visits[1].Error != "boom" || e.FailedVisits() != 1 {
		t.Errorf("unexpected visits %+v", e.Visits)
	}
	if e.FinishedAt.IsZero() {
		t.Error("FinishedAt must be set")
	}
}

package crawler

import (
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/appscout/internal/model"
)

// Session is the state of one crawl: the frontier and the exploration it
// accumulates. A session is created per run and never shared between runs.
type Session struct {
	// ID identifies the session in logs and history.
	ID string

	StartURL string
	Frontier *Frontier

	mu          sync.Mutex
	exploration *model.Exploration
}

// NewSession creates a session rooted at startURL.
func NewSession(startURL string, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newSession(startURL, o)
}

func newSession(startURL string, o options) (*Session, error) {
	frontier, err := newFrontier(startURL, o)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	exploration := model.NewExploration(id, NormalizeURL(startURL))
	exploration.StartedAt = time.Now()
	return &Session{
		ID:          id,
		StartURL:    exploration.StartURL,
		Frontier:    frontier,
		exploration: exploration,
	}, nil
}

// RecordPage appends a successful visit and its extracted content.
func (s *Session) RecordPage(entry Entry, result *PageResult, took time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.exploration
	e.Pages = append(e.Pages, result.Page)
	e.Forms = append(e.Forms, result.Forms...)
	e.Elements = append(e.Elements, result.Elements...)
	e.Links[result.Page.Path] = linkPaths(s.Frontier.host, result.Links)
	e.Visits = append(e.Visits, model.Visit{
		URL:      entry.URL,
		Depth:    entry.Depth,
		Status:   model.VisitOK,
		Duration: took,
	})
}

// RecordFailure appends a visit that produced no page.
func (s *Session) RecordFailure(entry Entry, status model.VisitStatus, err error, took time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := model.Visit{
		URL:      entry.URL,
		Depth:    entry.Depth,
		Status:   status,
		Duration: took,
	}
	if err != nil {
		v.Error = err.Error()
	}
	s.exploration.Visits = append(s.exploration.Visits, v)
}

// Exploration finishes the session and returns the accumulated result.
func (s *Session) Exploration() *model.Exploration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exploration.FinishedAt.IsZero() {
		s.exploration.FinishedAt = time.Now()
	}
	return s.exploration
}

// linkPaths converts the same-host links to unique paths, preserving order.
func linkPaths(host string, links []string) []string {
	paths := make([]string, 0, len(links))
	seen := make(map[string]bool, len(links))
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil || canonicalHost(u) != host {
			continue
		}
		p := u.Path
		if p == "" {
			p = "/"
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths
}

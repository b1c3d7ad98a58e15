package seed

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoTarget is returned when neither the config nor the documentation
// yields a target URL.
var ErrNoTarget = errors.New("no target URL: set a URL or a documentation file that contains one")

// Credentials are login hints. Username may be an email address.
type Credentials struct {
	Username string
	Password string

	// LoginPath is the path of the login page. Empty means "/login".
	LoginPath string
}

// IsSet reports whether both username and password are present.
func (c Credentials) IsSet() bool {
	return c.Username != "" && c.Password != ""
}

// Seed is the starting configuration of one exploration.
type Seed struct {
	// TargetURL is the absolute URL exploration starts from.
	TargetURL string

	// HintPages are extra URLs or paths enqueued at depth 0.
	HintPages []string

	Credentials Credentials

	// Features are free-text feature names from the documentation.
	Features []string
}

// DefaultLoginPath is used when credentials carry no login path.
const DefaultLoginPath = "/login"

// LoginURL returns the absolute URL of the login page.
func (s *Seed) LoginURL() string {
	path := s.Credentials.LoginPath
	if path == "" {
		path = DefaultLoginPath
	}
	resolved, err := resolve(s.TargetURL, path)
	if err != nil {
		return s.TargetURL
	}
	return resolved
}

// HintURLs returns the hint pages resolved against the target URL.
// Hints that cannot be resolved are dropped.
func (s *Seed) HintURLs() []string {
	urls := make([]string, 0, len(s.HintPages))
	seen := make(map[string]bool)
	for _, hint := range s.HintPages {
		resolved, err := resolve(s.TargetURL, hint)
		if err != nil || seen[resolved] {
			continue
		}
		seen[resolved] = true
		urls = append(urls, resolved)
	}
	return urls
}

// Merge fills empty fields of s from other. Values already in s win, and
// hint pages and features are unioned in order.
func (s *Seed) Merge(other *Seed) {
	if other == nil {
		return
	}
	if s.TargetURL == "" {
		s.TargetURL = other.TargetURL
	}
	if s.Credentials.Username == "" && s.Credentials.Password == "" {
		s.Credentials = other.Credentials
	}
	s.HintPages = union(s.HintPages, other.HintPages)
	s.Features = union(s.Features, other.Features)
}

// Validate checks that the seed can start an exploration.
func (s *Seed) Validate() error {
	if s.TargetURL == "" {
		return ErrNoTarget
	}
	u, err := url.Parse(s.TargetURL)
	if err != nil {
		return fmt.Errorf("invalid target URL %q: %w", s.TargetURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid target URL %q: must be an absolute http(s) URL", s.TargetURL)
	}
	return nil
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

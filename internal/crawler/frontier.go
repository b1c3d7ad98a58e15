package crawler

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// nonPageExtensions are path extensions that never hold an HTML page.
var nonPageExtensions = map[string]struct{}{
	// documents
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {},
	".pptx": {}, ".odt": {}, ".ods": {}, ".csv": {}, ".txt": {}, ".rtf": {},
	// images
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".svg": {},
	".ico": {}, ".bmp": {}, ".tif": {}, ".tiff": {}, ".avif": {},
	// archives
	".zip": {}, ".tar": {}, ".gz": {}, ".tgz": {}, ".bz2": {}, ".xz": {},
	".7z": {}, ".rar": {},
	// executables and packages
	".exe": {}, ".msi": {}, ".dmg": {}, ".pkg": {}, ".deb": {}, ".rpm": {},
	".apk": {}, ".bin": {}, ".iso": {},
	// media
	".mp3": {}, ".mp4": {}, ".wav": {}, ".ogg": {}, ".webm": {}, ".avi": {},
	".mov": {}, ".mkv": {}, ".flac": {},
	// fonts, styles and scripts
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
	".css": {}, ".js": {}, ".mjs": {}, ".map": {}, ".json": {}, ".xml": {},
}

// Entry is one URL waiting in the frontier.
type Entry struct {
	URL   string
	Depth int
}

// Frontier is the breadth-first URL queue of one crawl session.
// It owns the visited set and enforces scope, depth and the page budget.
// All methods are safe for concurrent use.
//
// Design decision: A URL enters the visited set when it is claimed by
// DequeueNext, not when it is enqueued. Pending and visited are tracked
// separately so a URL is never claimed twice, even when several visits of
// the same level discover it at once. A URL reached by redirect becomes an
// alias of the visit that reached it and does not take a budget slot.
type Frontier struct {
	host     string
	maxDepth int
	maxPages int
	ignore   []matcher
	follow   []matcher

	mu      sync.Mutex
	queue   []Entry
	pending map[string]bool
	visited map[string]bool
	aliases map[string]bool
}

// NewFrontier creates a frontier scoped to the host of startURL.
// The start URL itself is not enqueued.
func NewFrontier(startURL string, opts ...Option) (*Frontier, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newFrontier(startURL, o)
}

func newFrontier(startURL string, o options) (*Frontier, error) {
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		return nil, fmt.Errorf("invalid start URL %q: scheme must be http or https", startURL)
	}
	if start.Host == "" {
		return nil, fmt.Errorf("invalid start URL %q: missing host", startURL)
	}

	ignore, err := compilePatterns(o.ignorePatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid ignore pattern: %w", err)
	}
	follow, err := compilePatterns(o.followPatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid follow pattern: %w", err)
	}

	return &Frontier{
		host:     canonicalHost(start),
		maxDepth: o.maxDepth,
		maxPages: o.maxPages,
		ignore:   ignore,
		follow:   follow,
		pending:  make(map[string]bool),
		visited:  make(map[string]bool),
		aliases:  make(map[string]bool),
	}, nil
}

// Enqueue adds a URL at the given depth. It reports whether the URL was
// accepted. Out-of-scope, duplicate and too-deep URLs are silently rejected.
func (f *Frontier) Enqueue(rawURL string, depth int) bool {
	if strings.HasPrefix(strings.TrimSpace(rawURL), "#") {
		return false
	}
	u, ok := f.admit(rawURL, depth)
	if !ok {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen(u) || f.pending[u] {
		return false
	}
	f.pending[u] = true
	f.queue = append(f.queue, Entry{URL: u, Depth: depth})
	return true
}

// Discover enqueues the links found on fromURL at the given depth and
// returns how many were accepted. Links that differ from fromURL only by a
// fragment are same-page anchors and are skipped.
func (f *Frontier) Discover(fromURL string, links []string, depth int) int {
	from := NormalizeURL(fromURL)
	accepted := 0
	for _, link := range links {
		if NormalizeURL(link) == from {
			continue
		}
		if f.Enqueue(link, depth) {
			accepted++
		}
	}
	return accepted
}

// DequeueNext claims the oldest pending entry and marks it visited.
// It returns false when the queue is empty or the page budget is spent.
func (f *Frontier) DequeueNext() (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 || len(f.visited) >= f.maxPages {
		return Entry{}, false
	}
	e := f.queue[0]
	f.queue = f.queue[1:]
	delete(f.pending, e.URL)
	f.visited[e.URL] = true
	return e, true
}

// Claim records a URL reached by redirect as an alias of the visit that
// reached it. Aliases are never visited again but do not count toward the
// page budget. It reports false when the URL was already visited; a pending
// copy is removed from the queue.
func (f *Frontier) Claim(rawURL string) bool {
	u := NormalizeURL(rawURL)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen(u) {
		return false
	}
	if f.pending[u] {
		delete(f.pending, u)
		queue := f.queue[:0]
		for _, e := range f.queue {
			if e.URL != u {
				queue = append(queue, e)
			}
		}
		f.queue = queue
	}
	f.aliases[u] = true
	return true
}

// seen reports whether u was claimed or aliased. Callers hold mu.
func (f *Frontier) seen(u string) bool {
	return f.visited[u] || f.aliases[u]
}

// InScope reports whether the URL is on the frontier's host.
func (f *Frontier) InScope(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return canonicalHost(u) == f.host
}

// IsExhausted reports whether DequeueNext would return false.
func (f *Frontier) IsExhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) == 0 || len(f.visited) >= f.maxPages
}

// Visited returns the number of claimed URLs, failed visits included.
func (f *Frontier) Visited() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Pending returns the number of queued URLs.
func (f *Frontier) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// IsVisited reports whether the URL has been claimed or reached by redirect.
func (f *Frontier) IsVisited(rawURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen(NormalizeURL(rawURL))
}

// MaxDepth returns the configured maximum depth.
func (f *Frontier) MaxDepth() int {
	return f.maxDepth
}

// admit applies the stateless checks and returns the normalized URL.
func (f *Frontier) admit(rawURL string, depth int) (string, bool) {
	if depth < 0 || depth > f.maxDepth {
		return "", false
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	normalize(u)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if canonicalHost(u) != f.host {
		return "", false
	}
	if _, skip := nonPageExtensions[strings.ToLower(path.Ext(u.Path))]; skip {
		return "", false
	}
	if !f.allowPath(u.Path) {
		return "", false
	}
	return u.String(), true
}

// allowPath applies ignore patterns first, then follow patterns.
func (f *Frontier) allowPath(p string) bool {
	for _, m := range f.ignore {
		if m.match(p) {
			return false
		}
	}
	if len(f.follow) == 0 {
		return true
	}
	for _, m := range f.follow {
		if m.match(p) {
			return true
		}
	}
	return false
}

// NormalizeURL normalizes a URL for deduplication: the fragment is dropped,
// scheme and host are lowercased, default ports are stripped and an empty
// path becomes "/". Unparseable input is returned unchanged.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	normalize(u)
	return u.String()
}

func normalize(u *url.URL) {
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = canonicalHost(u)
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
}

// canonicalHost returns the lowercased host with a default port removed.
func canonicalHost(u *url.URL) string {
	host := strings.ToLower(u.Host)
	h, port, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		if strings.Contains(h, ":") {
			return "[" + h + "]"
		}
		return h
	}
	return host
}

// matcher matches a URL path against one glob pattern.
type matcher struct {
	g        glob.Glob
	baseOnly bool
}

func (m matcher) match(p string) bool {
	if m.baseOnly {
		return m.g.Match(path.Base(p))
	}
	if m.g.Match(p) {
		return true
	}
	// "/admin/**" also covers "/admin" itself.
	return !strings.HasSuffix(p, "/") && m.g.Match(p+"/")
}

func compilePatterns(patterns []string) ([]matcher, error) {
	matchers := make([]matcher, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("%q: %w", pattern, err)
		}
		matchers = append(matchers, matcher{g: g, baseOnly: !strings.Contains(pattern, "/")})
	}
	return matchers, nil
}

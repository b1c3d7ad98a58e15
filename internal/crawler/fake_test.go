package crawler

import (
	"context"
	"sync"

	"github.com/nao1215/appscout/internal/browser"
)

// fakeSite is an in-memory web application keyed by normalized URL.
type fakeSite map[string]*browser.DOMFacts

// fakeBrowser serves a fakeSite. Unknown URLs return 404.
type fakeBrowser struct {
	site      fakeSite
	redirects map[string]string
	screenPNG []byte
	loginErr  error

	mu          sync.Mutex
	navigations []string
	logins      []string
	closed      bool
}

func newFakeBrowser(site fakeSite) *fakeBrowser {
	return &fakeBrowser{site: site, redirects: map[string]string{}}
}

func (b *fakeBrowser) Navigate(ctx context.Context, url string, _ browser.NavigateOptions) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.navigations = append(b.navigations, url)
	b.mu.Unlock()

	final := url
	if to, ok := b.redirects[url]; ok {
		final = to
	}
	facts, ok := b.site[final]
	if !ok {
		return nil, &browser.NavigationError{URL: url, StatusCode: 404}
	}
	return &fakePage{url: final, facts: facts, png: b.screenPNG}, nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBrowser) Navigations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.navigations...)
}

// fakeAuthBrowser adds form login to fakeBrowser.
type fakeAuthBrowser struct {
	*fakeBrowser
}

func (b fakeAuthBrowser) Login(_ context.Context, loginURL string, _ browser.Credentials) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logins = append(b.logins, loginURL)
	return b.loginErr
}

type fakePage struct {
	url   string
	facts *browser.DOMFacts
	png   []byte
}

func (p *fakePage) URL() string     { return p.url }
func (p *fakePage) StatusCode() int { return 200 }
func (p *fakePage) Close() error    { return nil }

func (p *fakePage) QueryDOM(ctx context.Context) (*browser.DOMFacts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.facts, nil
}

func (p *fakePage) Screenshot(_ context.Context) ([]byte, error) {
	if p.png == nil {
		return nil, browser.ErrScreenshotUnsupported
	}
	return p.png, nil
}

// threePageSite is a home page linking to a login page and a dashboard,
// plus links that must never be followed.
func threePageSite() fakeSite {
	return fakeSite{
		"http://app.test/": {
			Title:   "Acme",
			Heading: "Welcome to Acme",
			Links: []string{
				"http://app.test/login",
				"http://app.test/dashboard",
				"http://app.test/report.pdf",
				"http://app.test/#top",
				"https://elsewhere.test/",
			},
		},
		"http://app.test/login": {
			Title:   "Sign in",
			Heading: "Sign in",
			Forms: []browser.FormFacts{{
				Action: "http://app.test/session",
				Method: "post",
				Fields: []browser.FieldFacts{
					{Tag: "input", Type: "email", Name: "email", Required: true},
					{Tag: "input", Type: "password", Name: "password", Required: true},
					{Tag: "input", Type: "hidden", Name: "csrf"},
				},
				Buttons: []browser.ButtonFacts{{Text: "Log in", Type: "submit"}},
			}},
			Links: []string{"http://app.test/"},
		},
		"http://app.test/dashboard": {
			Title:   "Dashboard",
			Heading: "Your dashboard",
			Links:   []string{"http://app.test/login"},
		},
	}
}

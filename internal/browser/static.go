package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultMaxBodySize limits the response body read per page.
const DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

// defaultStaticTimeout bounds a request when the caller gave no timeout.
const defaultStaticTimeout = 30 * time.Second

// DefaultUserAgent identifies appscout in HTTP requests.
const DefaultUserAgent = "appscout/1.0 (+https://github.com/nao1215/appscout)"

// StaticBrowser fetches pages over HTTP and parses them without running
// scripts. Cookies persist across navigations, so a form login carries over.
type StaticBrowser struct {
	client      *http.Client
	headers     map[string]string
	userAgent   string
	maxBodySize int64
}

// StaticOption configures a StaticBrowser.
type StaticOption func(*StaticBrowser)

// WithHTTPClient sets the HTTP client. A cookie jar is added when it has none.
func WithHTTPClient(client *http.Client) StaticOption {
	return func(b *StaticBrowser) {
		b.client = client
	}
}

// WithHeaders sets extra headers sent with every request.
func WithHeaders(headers map[string]string) StaticOption {
	return func(b *StaticBrowser) {
		b.headers = headers
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) StaticOption {
	return func(b *StaticBrowser) {
		b.userAgent = ua
	}
}

// WithMaxBodySize limits the bytes read per response.
func WithMaxBodySize(size int64) StaticOption {
	return func(b *StaticBrowser) {
		if size > 0 {
			b.maxBodySize = size
		}
	}
}

// NewStaticBrowser creates a StaticBrowser.
func NewStaticBrowser(opts ...StaticOption) (*StaticBrowser, error) {
	b := &StaticBrowser{
		client:      &http.Client{Timeout: defaultStaticTimeout},
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.client.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		b.client.Jar = jar
	}

	return b, nil
}

// Navigate fetches url. The wait strategy is ignored since nothing renders.
func (b *StaticBrowser) Navigate(ctx context.Context, rawURL string, opts NavigateOptions) (Page, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	b.setHeaders(req)

	return b.do(req)
}

// do sends req and wraps the response as a page.
func (b *StaticBrowser) do(req *http.Request) (*staticPage, error) {
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, b.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	finalURL := req.URL.String()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if !IsSuccess(resp.StatusCode) {
		return nil, &NavigationError{URL: finalURL, StatusCode: resp.StatusCode}
	}

	return &staticPage{
		url:         finalURL,
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        body,
	}, nil
}

func (b *StaticBrowser) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", b.userAgent)
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}
}

// Login fetches loginURL, fills its login form and submits it.
// The session cookie lands in the jar and is used by later navigations.
func (b *StaticBrowser) Login(ctx context.Context, loginURL string, creds Credentials) error {
	page, err := b.Navigate(ctx, loginURL, NavigateOptions{})
	if err != nil {
		return fmt.Errorf("failed to load login page: %w", err)
	}

	facts, err := page.QueryDOM(ctx)
	if errors.Is(err, ErrNotHTML) {
		return fmt.Errorf("%w: %w", ErrNoLoginForm, err)
	}
	if err != nil {
		return err
	}

	form, ok := FindLoginForm(facts.Forms)
	if !ok {
		return ErrNoLoginForm
	}

	values := url.Values{}
	for _, f := range form.Fields {
		if f.Name == "" {
			continue
		}
		switch {
		case f.Type == "password":
			values.Set(f.Name, creds.Password)
		case IsUsernameField(f):
			values.Set(f.Name, creds.Username)
		case f.Type == "checkbox" || f.Type == "radio":
			continue
		default:
			values.Set(f.Name, f.Value)
		}
	}

	action := form.Action
	if action == "" {
		action = page.URL()
	}

	method := strings.ToUpper(form.Method)
	var req *http.Request
	if method == http.MethodGet {
		u, err := url.Parse(action)
		if err != nil {
			return fmt.Errorf("invalid login action: %w", err)
		}
		u.RawQuery = values.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, action, strings.NewReader(values.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	b.setHeaders(req)

	if _, err := b.do(req); err != nil {
		return fmt.Errorf("login submission failed: %w", err)
	}
	return nil
}

// Close releases idle connections.
func (b *StaticBrowser) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

// staticPage is a fetched document.
type staticPage struct {
	url         string
	status      int
	contentType string
	body        []byte
}

func (p *staticPage) URL() string     { return p.url }
func (p *staticPage) StatusCode() int { return p.status }
func (p *staticPage) Close() error    { return nil }

// QueryDOM parses the fetched body. It returns ErrNotHTML for documents
// served with a non-HTML content type.
func (p *staticPage) QueryDOM(_ context.Context) (*DOMFacts, error) {
	if p.contentType != "" && !isHTML(p.contentType) {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, p.contentType)
	}
	return ParseDOM(bytes.NewReader(p.body), p.url)
}

// Screenshot is not supported without a rendering engine.
func (p *staticPage) Screenshot(_ context.Context) ([]byte, error) {
	return nil, ErrScreenshotUnsupported
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

// FindLoginForm returns the first form with exactly one password field.
func FindLoginForm(forms []FormFacts) (FormFacts, bool) {
	for _, form := range forms {
		passwords := 0
		for _, f := range form.Fields {
			if f.Type == "password" {
				passwords++
			}
		}
		if passwords == 1 {
			return form, true
		}
	}
	return FormFacts{}, false
}

// IsUsernameField reports whether f takes the login identifier.
func IsUsernameField(f FieldFacts) bool {
	if f.Type == "email" {
		return true
	}
	if f.Type != "text" && f.Type != "" {
		return false
	}
	text := strings.ToLower(f.Name + " " + f.ID + " " + f.Label + " " + f.Placeholder)
	for _, kw := range []string{"email", "user", "login", "account"} {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

var _ Browser = (*StaticBrowser)(nil)
var _ Authenticator = (*StaticBrowser)(nil)

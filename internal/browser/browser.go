package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WaitStrategy selects what Navigate waits for before returning.
type WaitStrategy string

const (
	// WaitLoad waits for the load event.
	WaitLoad WaitStrategy = "load"
	// WaitDOMContentLoaded waits for DOMContentLoaded.
	WaitDOMContentLoaded WaitStrategy = "domcontentloaded"
	// WaitNetworkIdle waits until no requests are in flight for a short while.
	WaitNetworkIdle WaitStrategy = "networkidle"
)

// NavigateOptions controls one navigation.
type NavigateOptions struct {
	// Timeout bounds the navigation. Zero means no extra bound beyond ctx.
	Timeout time.Duration

	// WaitStrategy selects the readiness condition.
	WaitStrategy WaitStrategy
}

// Browser navigates to URLs and hands out page handles.
// Implementations must be safe for concurrent Navigate calls.
type Browser interface {
	// Navigate loads url and returns a handle to the loaded page.
	// A non-2xx response is returned as *NavigationError.
	Navigate(ctx context.Context, url string, opts NavigateOptions) (Page, error)

	// Close releases the browser.
	Close() error
}

// Page is a loaded page.
type Page interface {
	// URL returns the final URL after redirects.
	URL() string

	// StatusCode returns the HTTP status of the main document, or 0 when
	// the driver cannot tell.
	StatusCode() int

	// QueryDOM returns structured facts about the current DOM.
	QueryDOM(ctx context.Context) (*DOMFacts, error)

	// Screenshot returns a PNG image of the viewport.
	Screenshot(ctx context.Context) ([]byte, error)

	// Close releases the page.
	Close() error
}

// Credentials are used to log in through a form.
type Credentials struct {
	Username string
	Password string
}

// Authenticator is implemented by browsers that can log in by filling
// and submitting a login form. The session persists for later navigations.
type Authenticator interface {
	Login(ctx context.Context, loginURL string, creds Credentials) error
}

// ErrScreenshotUnsupported is returned by drivers that cannot render pages.
var ErrScreenshotUnsupported = errors.New("screenshots are not supported by this browser")

// ErrNotHTML is returned by Page.QueryDOM when the loaded document is not
// an HTML page.
var ErrNotHTML = errors.New("document is not an HTML page")

// ErrNoLoginForm is returned when the login page has no password field.
var ErrNoLoginForm = errors.New("no login form found")

// NavigationError reports a navigation that reached the server but did not
// return a 2xx status.
type NavigationError struct {
	URL        string
	StatusCode int
}

// Error implements error.
func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s returned status %d", e.URL, e.StatusCode)
}

// IsSuccess reports whether status is a 2xx code. Zero (unknown) counts as
// success because some drivers cannot observe the status.
func IsSuccess(status int) bool {
	return status == 0 || (status >= 200 && status < 300)
}

// DOMFacts are the structured facts read from a loaded page.
// The JSON tags are shared with the in-page extraction script.
type DOMFacts struct {
	Title       string `json:"title"`
	Heading     string `json:"heading"`
	Description string `json:"description"`

	// BodyText is a prefix of the visible body text.
	BodyText string `json:"bodyText"`

	Forms []FormFacts `json:"forms"`

	// Buttons are buttons outside of any form.
	Buttons []ElementFacts `json:"buttons"`

	// Clickables are non-button elements with a click affordance.
	Clickables []ElementFacts `json:"clickables"`

	// Links are anchor targets, resolved to absolute URLs when possible.
	Links []string `json:"links"`

	// Hints are framework markers: generator meta, script sources and
	// well-known root attributes.
	Hints []string `json:"hints"`
}

// FormFacts describes one form element.
type FormFacts struct {
	// Action is the resolved action attribute, or "" when absent.
	Action  string        `json:"action"`
	Method  string        `json:"method"`
	Fields  []FieldFacts  `json:"fields"`
	Buttons []ButtonFacts `json:"buttons"`
}

// FieldFacts describes one input, select or textarea.
type FieldFacts struct {
	Tag         string `json:"tag"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	ID          string `json:"id"`
	Placeholder string `json:"placeholder"`
	Required    bool   `json:"required"`
	Label       string `json:"label"`

	// Value is the default value. It is sent along when a login form is
	// submitted (CSRF tokens live in hidden fields).
	Value string `json:"value"`
}

// ButtonFacts describes a button or submit control.
type ButtonFacts struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// ElementFacts describes an interactive element.
type ElementFacts struct {
	Text    string `json:"text"`
	ID      string `json:"id"`
	Classes string `json:"classes"`
}

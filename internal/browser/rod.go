package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// networkIdleWindow is how long the network must be quiet for WaitNetworkIdle.
const networkIdleWindow = 500 * time.Millisecond

// networkIdleTimeout bounds the network idle wait. Pages with long polling
// or websockets never go idle.
const networkIdleTimeout = 5 * time.Second

// RodOptions configures a RodBrowser.
type RodOptions struct {
	// BinPath is the Chrome/Chromium binary. Empty lets the launcher find
	// or download one.
	BinPath string

	// Headless runs without a window.
	Headless bool

	// Headers are extra HTTP headers sent with every navigation.
	Headers map[string]string

	// ViewportWidth and ViewportHeight set the page size for screenshots.
	// Zero keeps the browser default.
	ViewportWidth  int
	ViewportHeight int
}

// RodBrowser drives headless Chrome through go-rod.
// Each navigation opens its own tab, so concurrent visits do not share
// page state; cookies are shared through the browser profile.
type RodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     RodOptions
	headers  []string
}

// NewRodBrowser launches Chrome and connects to it.
func NewRodBrowser(opts RodOptions) (*RodBrowser, error) {
	l := launcher.New().Headless(opts.Headless)
	if opts.BinPath != "" {
		l = l.Bin(opts.BinPath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to chrome: %w", err)
	}

	headers := make([]string, 0, len(opts.Headers)*2)
	for k, v := range opts.Headers {
		headers = append(headers, k, v)
	}

	return &RodBrowser{
		browser:  browser,
		launcher: l,
		opts:     opts,
		headers:  headers,
	}, nil
}

// Navigate opens a tab, loads url and waits per the wait strategy.
func (b *RodBrowser) Navigate(ctx context.Context, url string, opts NavigateOptions) (Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	if err := b.load(ctx, page, url, opts); err != nil {
		_ = page.Close()
		return nil, err
	}

	status, err := documentStatus(page.Context(ctx))
	if err != nil {
		_ = page.Close()
		return nil, err
	}

	finalURL := url
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	if !IsSuccess(status) {
		_ = page.Close()
		return nil, &NavigationError{URL: finalURL, StatusCode: status}
	}

	return &rodPage{page: page, url: finalURL, status: status}, nil
}

func (b *RodBrowser) load(ctx context.Context, page *rod.Page, url string, opts NavigateOptions) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	p := page.Context(ctx)

	if len(b.headers) > 0 {
		if _, err := p.SetExtraHeaders(b.headers); err != nil {
			return fmt.Errorf("failed to set headers: %w", err)
		}
	}

	if b.opts.ViewportWidth > 0 && b.opts.ViewportHeight > 0 {
		if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             b.opts.ViewportWidth,
			Height:            b.opts.ViewportHeight,
			DeviceScaleFactor: 1,
		}); err != nil {
			return fmt.Errorf("failed to set viewport: %w", err)
		}
	}

	event := proto.PageLifecycleEventNameLoad
	if opts.WaitStrategy == WaitDOMContentLoaded {
		event = proto.PageLifecycleEventNameDOMContentLoaded
	}
	wait := p.WaitNavigation(event)

	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	wait()

	if opts.WaitStrategy == WaitNetworkIdle {
		p.Timeout(networkIdleTimeout).WaitRequestIdle(networkIdleWindow, nil, nil, nil)()
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("navigation timed out: %w", err)
	}
	return nil
}

// statusScript reads the HTTP status of the main document. Chrome exposes
// it through the navigation timing entry; 0 means unknown.
const statusScript = `() => {
	const nav = performance.getEntriesByType('navigation')[0];
	return nav && nav.responseStatus ? nav.responseStatus : 0;
}`

func documentStatus(page *rod.Page) (int, error) {
	res, err := page.Eval(statusScript)
	if err != nil {
		return 0, fmt.Errorf("failed to read status: %w", err)
	}
	return res.Value.Int(), nil
}

// Login fills the first login form on loginURL and submits it.
func (b *RodBrowser) Login(ctx context.Context, loginURL string, creds Credentials) error {
	pg, err := b.Navigate(ctx, loginURL, NavigateOptions{WaitStrategy: WaitLoad})
	if err != nil {
		return fmt.Errorf("failed to load login page: %w", err)
	}
	defer pg.Close()

	facts, err := pg.QueryDOM(ctx)
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

	var userSel, passSel string
	for _, f := range form.Fields {
		switch {
		case f.Type == "password" && passSel == "":
			passSel = fieldSelector(f)
		case userSel == "" && IsUsernameField(f):
			userSel = fieldSelector(f)
		}
	}
	if passSel == "" {
		return ErrNoLoginForm
	}

	page := pg.(*rodPage).page.Context(ctx)

	if userSel != "" {
		el, err := page.Element(userSel)
		if err != nil {
			return fmt.Errorf("failed to find username field: %w", err)
		}
		if err := el.Input(creds.Username); err != nil {
			return fmt.Errorf("failed to type username: %w", err)
		}
	}

	passEl, err := page.Element(passSel)
	if err != nil {
		return fmt.Errorf("failed to find password field: %w", err)
	}
	if err := passEl.Input(creds.Password); err != nil {
		return fmt.Errorf("failed to type password: %w", err)
	}

	wait := page.WaitNavigation(proto.PageLifecycleEventNameLoad)
	if err := passEl.Type(input.Enter); err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}
	wait()

	return ctx.Err()
}

// Close closes Chrome and removes its temporary profile.
func (b *RodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Cleanup()
	return err
}

// rodPage is an open tab.
type rodPage struct {
	page   *rod.Page
	url    string
	status int
}

func (p *rodPage) URL() string     { return p.url }
func (p *rodPage) StatusCode() int { return p.status }
func (p *rodPage) Close() error    { return p.page.Close() }

// QueryDOM runs the extraction script in the page. It returns ErrNotHTML
// when Chrome rendered a non-HTML document.
func (p *rodPage) QueryDOM(ctx context.Context) (*DOMFacts, error) {
	ct, err := p.page.Context(ctx).Eval(`() => document.contentType`)
	if err != nil {
		return nil, fmt.Errorf("failed to read content type: %w", err)
	}
	if contentType := ct.Value.Str(); contentType != "" && !isHTML(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, contentType)
	}

	res, err := p.page.Context(ctx).Eval(domScript)
	if err != nil {
		return nil, fmt.Errorf("failed to query DOM: %w", err)
	}

	var facts DOMFacts
	if err := json.Unmarshal([]byte(res.Value.Str()), &facts); err != nil {
		return nil, fmt.Errorf("failed to decode DOM facts: %w", err)
	}
	return &facts, nil
}

// Screenshot captures the viewport as PNG.
func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(false, nil)
}

func fieldSelector(f FieldFacts) string {
	if f.ID != "" {
		return "#" + f.ID
	}
	if f.Name != "" {
		return `[name="` + f.Name + `"]`
	}
	return ""
}

// domScript collects DOMFacts in one evaluation and returns them as a JSON
// string, mirroring what ParseDOM reads from static HTML.
const domScript = `() => {
	const text = (el) => (el ? (el.innerText || el.textContent || '') : '').replace(/\s+/g, ' ').trim();
	const abs = (href) => { try { return new URL(href, location.href).href; } catch (e) { return ''; } };
	const labelFor = (el) => {
		if (el.id) {
			const l = document.querySelector('label[for="' + CSS.escape(el.id) + '"]');
			if (l) return text(l);
		}
		const wrap = el.closest('label');
		if (wrap) return text(wrap);
		return el.getAttribute('aria-label') || '';
	};
	const elem = (el) => ({
		text: text(el) || el.getAttribute('aria-label') || el.getAttribute('title') || '',
		id: el.id || '',
		classes: (el.getAttribute('class') || '').trim().replace(/\s+/g, ' '),
	});

	const facts = { title: document.title || '', heading: '', description: '', bodyText: '',
		forms: [], buttons: [], clickables: [], links: [], hints: [] };

	facts.heading = text(document.querySelector('h1') || document.querySelector('h2, h3'));
	const meta = document.querySelector('meta[name="description"], meta[property="og:description"]');
	if (meta) facts.description = (meta.getAttribute('content') || '').trim();
	facts.bodyText = text(document.body).slice(0, 5000);

	document.querySelectorAll('form').forEach((form) => {
		const f = {
			action: form.hasAttribute('action') ? abs(form.getAttribute('action')) : '',
			method: (form.getAttribute('method') || 'GET').toUpperCase(),
			fields: [], buttons: [],
		};
		form.querySelectorAll('input, select, textarea').forEach((el) => {
			const tag = el.tagName.toLowerCase();
			const type = (el.getAttribute('type') || (tag === 'input' ? 'text' : tag)).toLowerCase();
			if (['submit', 'button', 'reset', 'image'].includes(type)) {
				f.buttons.push({ text: el.value || el.getAttribute('alt') || type, type: type });
				return;
			}
			f.fields.push({ tag: tag, type: type, name: el.getAttribute('name') || '', id: el.id || '',
				placeholder: el.getAttribute('placeholder') || '', required: el.required === true,
				label: labelFor(el), value: el.getAttribute('value') || '' });
		});
		form.querySelectorAll('button').forEach((el) => {
			f.buttons.push({ text: text(el) || el.getAttribute('aria-label') || el.value || '',
				type: (el.getAttribute('type') || 'submit').toLowerCase() });
		});
		facts.forms.push(f);
	});

	document.querySelectorAll('button').forEach((el) => {
		if (!el.closest('form')) facts.buttons.push(elem(el));
	});
	document.querySelectorAll('[onclick], [role="button"], [data-action]').forEach((el) => {
		if (el.tagName === 'BUTTON' || el.closest('form')) return;
		if (el.tagName === 'A' && el.hasAttribute('href')) return;
		facts.clickables.push(elem(el));
	});
	document.querySelectorAll('a[href]').forEach((a) => {
		const href = a.getAttribute('href');
		if (href) facts.links.push(a.href || abs(href));
	});

	const gen = document.querySelector('meta[name="generator"]');
	if (gen && gen.getAttribute('content')) facts.hints.push(gen.getAttribute('content'));
	document.querySelectorAll('script[src]').forEach((s) => facts.hints.push(s.getAttribute('src')));
	if (document.getElementById('__next') || window.__NEXT_DATA__) facts.hints.push('next.js');
	if (window.__NUXT__) facts.hints.push('nuxt');
	if (document.querySelector('[data-reactroot]')) facts.hints.push('react');
	const ng = document.querySelector('[ng-version]');
	if (ng) facts.hints.push('angular ' + ng.getAttribute('ng-version'));
	if (window.__VUE__) facts.hints.push('vue');
	if (document.querySelector('[class*="svelte-"]')) facts.hints.push('svelte');

	return JSON.stringify(facts);
}`

var _ Browser = (*RodBrowser)(nil)
var _ Authenticator = (*RodBrowser)(nil)

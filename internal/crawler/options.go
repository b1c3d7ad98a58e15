package crawler

import (
	"log/slog"
	"time"

	"github.com/nao1215/appscout/internal/browser"
)

const (
	// DefaultMaxDepth is the default maximum link depth.
	DefaultMaxDepth = 3
	// DefaultMaxPages is the default page budget.
	DefaultMaxPages = 50
	// DefaultConcurrency visits one page at a time.
	DefaultConcurrency = 1
	// DefaultPageTimeout bounds one visit.
	DefaultPageTimeout = 30 * time.Second
	// DefaultSettleDelay is how long the extractor waits for client-side
	// rendering before reading the DOM.
	DefaultSettleDelay = time.Second
	// DefaultElementCap limits interactive elements recorded per page.
	DefaultElementCap = 20
)

// options holds the settings shared by Frontier and Explorer.
// A Frontier reads only the frontier settings.
type options struct {
	maxDepth       int
	maxPages       int
	ignorePatterns []string
	followPatterns []string

	concurrency  int
	pageTimeout  time.Duration
	waitStrategy browser.WaitStrategy
	settleDelay  time.Duration
	elementCap   int
	delay        time.Duration
	hooks        []PostVisitHook
	observer     func(VisitEvent)
	logger       *slog.Logger
	verbose      bool
}

func defaultOptions() options {
	return options{
		maxDepth:     DefaultMaxDepth,
		maxPages:     DefaultMaxPages,
		concurrency:  DefaultConcurrency,
		pageTimeout:  DefaultPageTimeout,
		waitStrategy: browser.WaitLoad,
		settleDelay:  DefaultSettleDelay,
		elementCap:   DefaultElementCap,
	}
}

// Option configures a Frontier or an Explorer.
type Option func(*options)

// WithMaxDepth sets the maximum link depth.
// 0 = only the seed pages, 1 = seeds plus the pages they link to, etc.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		o.maxDepth = depth
	}
}

// WithMaxPages sets the page budget. Failed visits count against it.
func WithMaxPages(maxPages int) Option {
	return func(o *options) {
		o.maxPages = maxPages
	}
}

// WithIgnorePatterns sets path glob patterns that are never enqueued.
// Patterns use gobwas/glob syntax with '/' as separator ("/admin/**",
// "/logout", "*.php"). A pattern without '/' is matched against the last
// path segment.
func WithIgnorePatterns(patterns []string) Option {
	return func(o *options) {
		o.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts enqueuing to paths matching at least one
// pattern. Empty means every path is allowed.
func WithFollowPatterns(patterns []string) Option {
	return func(o *options) {
		o.followPatterns = patterns
	}
}

// WithConcurrency sets how many visits run at once within a BFS level.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithPageTimeout bounds each visit, navigation and extraction included.
func WithPageTimeout(d time.Duration) Option {
	return func(o *options) {
		o.pageTimeout = d
	}
}

// WithWaitStrategy selects the navigation readiness condition.
func WithWaitStrategy(s browser.WaitStrategy) Option {
	return func(o *options) {
		o.waitStrategy = s
	}
}

// WithSettleDelay sets the delay before the DOM is read.
func WithSettleDelay(d time.Duration) Option {
	return func(o *options) {
		o.settleDelay = d
	}
}

// WithElementCap limits interactive elements recorded per page.
func WithElementCap(n int) Option {
	return func(o *options) {
		o.elementCap = n
	}
}

// WithDelay sets the minimum interval between two navigations.
// Zero disables rate limiting.
func WithDelay(d time.Duration) Option {
	return func(o *options) {
		o.delay = d
	}
}

// WithHooks registers hooks that run after every successful visit.
func WithHooks(hooks ...PostVisitHook) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, hooks...)
	}
}

// WithObserver registers a callback that receives one event per visit.
// It is called from the visiting goroutine and must not block.
func WithObserver(fn func(VisitEvent)) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithVerbose enables per-visit failure logging at warn level.
func WithVerbose(verbose bool) Option {
	return func(o *options) {
		o.verbose = verbose
	}
}

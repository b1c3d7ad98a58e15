package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/appscout/internal/browser"
	"github.com/nao1215/appscout/internal/model"
	"github.com/nao1215/appscout/internal/seed"
)

// errRedirectedOffHost marks a visit whose final URL left the target host.
var errRedirectedOffHost = errors.New("redirected to another host")

// errRedirectedToVisited marks a visit whose final URL was already visited.
var errRedirectedToVisited = errors.New("redirected to an already visited page")

// VisitEvent reports the outcome of one visit to an observer.
type VisitEvent struct {
	URL      string
	Depth    int
	Status   model.VisitStatus
	Err      error
	Duration time.Duration

	// Visited is the number of URLs claimed so far, this one included.
	Visited int
	// MaxPages is the page budget.
	MaxPages int
}

// Explorer drives a browser over the frontier and accumulates an
// exploration.
//
// Design decision: The frontier is processed level by level. All entries
// of one depth are claimed in FIFO order and visited by up to
// `concurrency` workers; their results are recorded and their links are
// enqueued in claim order once the whole level is done. With any
// concurrency the output is the same as with the sequential loop.
type Explorer struct {
	browser   browser.Browser
	opts      options
	extractor *Extractor
	logger    *slog.Logger
}

// NewExplorer creates an explorer using the given browser.
func NewExplorer(b browser.Browser, opts ...Option) *Explorer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Explorer{
		browser:   b,
		opts:      o,
		extractor: NewExtractor(o.settleDelay, o.elementCap),
		logger:    logger,
	}
}

// outcome is the result of one visit before it is recorded.
type outcome struct {
	entry  Entry
	result *PageResult
	status model.VisitStatus
	err    error
	took   time.Duration
}

// Explore crawls the application described by s.
// On context cancellation it returns the pages gathered so far together
// with the context error.
func (x *Explorer) Explore(ctx context.Context, s seed.Seed) (*model.Exploration, error) {
	session, err := newSession(s.TargetURL, x.opts)
	if err != nil {
		return nil, err
	}
	logger := x.logger.With("session", session.ID)
	logger.Info("exploration started", "url", session.StartURL,
		"max_depth", x.opts.maxDepth, "max_pages", x.opts.maxPages)

	if s.Credentials.IsSet() {
		x.login(ctx, logger, &s)
	}

	session.Frontier.Enqueue(s.TargetURL, 0)
	for _, hint := range s.HintURLs() {
		session.Frontier.Enqueue(hint, 0)
	}

	var limiter *rate.Limiter
	if x.opts.delay > 0 {
		limiter = rate.NewLimiter(rate.Every(x.opts.delay), 1)
	}

	for !session.Frontier.IsExhausted() {
		if err := ctx.Err(); err != nil {
			return session.Exploration(), err
		}

		level := claimLevel(session.Frontier)
		outcomes := x.visitLevel(ctx, limiter, level)

		for _, o := range outcomes {
			if o == nil {
				continue
			}
			x.record(logger, session, o)
		}
		if err := ctx.Err(); err != nil {
			return session.Exploration(), err
		}
	}

	exploration := session.Exploration()
	logger.Info("exploration finished", "pages", len(exploration.Pages),
		"failed", exploration.FailedVisits(), "duration", exploration.FinishedAt.Sub(exploration.StartedAt))
	return exploration, nil
}

// claimLevel claims every queued entry. The queue holds a single depth at
// this point because links are only enqueued after a level completes.
func claimLevel(f *Frontier) []Entry {
	var level []Entry
	for {
		e, ok := f.DequeueNext()
		if !ok {
			return level
		}
		level = append(level, e)
	}
}

// visitLevel visits the entries concurrently and returns the outcomes in
// entry order. Entries not visited because of cancellation are nil.
func (x *Explorer) visitLevel(ctx context.Context, limiter *rate.Limiter, level []Entry) []*outcome {
	outcomes := make([]*outcome, len(level))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.opts.concurrency)
	for i, entry := range level {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}
			outcomes[i] = x.visit(gctx, entry)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // only context errors, checked by the caller
	return outcomes
}

// visit navigates to one entry and extracts it.
func (x *Explorer) visit(ctx context.Context, entry Entry) *outcome {
	start := time.Now()
	o := &outcome{entry: entry, status: model.VisitFailed}

	vctx := ctx
	if x.opts.pageTimeout > 0 {
		var cancel context.CancelFunc
		vctx, cancel = context.WithTimeout(ctx, x.opts.pageTimeout)
		defer cancel()
	}

	page, err := x.browser.Navigate(vctx, entry.URL, browser.NavigateOptions{
		Timeout:      x.opts.pageTimeout,
		WaitStrategy: x.opts.waitStrategy,
	})
	if err != nil {
		o.err = err
		o.took = time.Since(start)
		return o
	}
	defer page.Close()

	if status := page.StatusCode(); !browser.IsSuccess(status) {
		o.err = &browser.NavigationError{URL: entry.URL, StatusCode: status}
		o.took = time.Since(start)
		return o
	}

	result, err := x.extractor.Extract(vctx, page, entry.Depth)
	if err != nil {
		if errors.Is(err, browser.ErrNotHTML) {
			o.status = model.VisitSkipped
		}
		o.err = err
		o.took = time.Since(start)
		return o
	}

	for _, hook := range x.opts.hooks {
		if err := hook.AfterVisit(vctx, page, &result.Page); err != nil {
			x.logger.Debug("post-visit hook failed", "url", entry.URL, "error", err)
		}
	}

	o.result = result
	o.status = model.VisitOK
	o.took = time.Since(start)
	return o
}

// record stores one outcome in the session and enqueues its links.
// It runs on the exploring goroutine only.
func (x *Explorer) record(logger *slog.Logger, session *Session, o *outcome) {
	if o.status == model.VisitOK && o.result.Page.URL != o.entry.URL {
		switch {
		case !session.Frontier.InScope(o.result.Page.URL):
			o.status, o.err, o.result = model.VisitSkipped, errRedirectedOffHost, nil
		case !session.Frontier.Claim(o.result.Page.URL):
			o.status, o.err, o.result = model.VisitSkipped, errRedirectedToVisited, nil
		}
	}

	switch o.status {
	case model.VisitOK:
		session.RecordPage(o.entry, o.result, o.took)
		if o.entry.Depth < session.Frontier.MaxDepth() {
			session.Frontier.Discover(o.result.Page.URL, o.result.Links, o.entry.Depth+1)
		}
		logger.Debug("page visited", "url", o.entry.URL, "depth", o.entry.Depth,
			"forms", len(o.result.Forms), "links", len(o.result.Links))
	default:
		session.RecordFailure(o.entry, o.status, o.err, o.took)
		if x.opts.verbose {
			logger.Warn("page visit failed", "url", o.entry.URL, "status", o.status, "error", o.err)
		} else {
			logger.Debug("page visit failed", "url", o.entry.URL, "status", o.status, "error", o.err)
		}
	}

	if x.opts.observer != nil {
		x.opts.observer(VisitEvent{
			URL:      o.entry.URL,
			Depth:    o.entry.Depth,
			Status:   o.status,
			Err:      o.err,
			Duration: o.took,
			Visited:  session.Frontier.Visited(),
			MaxPages: x.opts.maxPages,
		})
	}
}

// login runs a form-fill login when the browser supports it.
// A failed login is a warning; exploration continues anonymously.
func (x *Explorer) login(ctx context.Context, logger *slog.Logger, s *seed.Seed) {
	auth, ok := x.browser.(browser.Authenticator)
	if !ok {
		logger.Warn("browser cannot log in, exploring anonymously")
		return
	}

	lctx := ctx
	if x.opts.pageTimeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, x.opts.pageTimeout)
		defer cancel()
	}

	loginURL := s.LoginURL()
	err := auth.Login(lctx, loginURL, browser.Credentials{
		Username: s.Credentials.Username,
		Password: s.Credentials.Password,
	})
	if err != nil {
		logger.Warn("login failed, exploring anonymously", "url", loginURL, "error", fmt.Errorf("login: %w", err))
		return
	}
	logger.Info("logged in", "url", loginURL)
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/nao1215/appscout/internal/analyzer"
	"github.com/nao1215/appscout/internal/browser"
	"github.com/nao1215/appscout/internal/config"
	"github.com/nao1215/appscout/internal/crawler"
	"github.com/nao1215/appscout/internal/database"
	"github.com/nao1215/appscout/internal/knowledge"
	"github.com/nao1215/appscout/internal/model"
	"github.com/nao1215/appscout/internal/seed"
)

// ScreenshotDirName is the directory under the artifact directory that
// holds page screenshots.
const ScreenshotDirName = "screenshots"

// errMissingInput is returned when a step runs before the step that
// produces its input.
var errMissingInput = errors.New("missing input from an earlier step")

// BrowserFactory starts the browser of one run.
type BrowserFactory func(ctx context.Context) (browser.Browser, error)

// NewBrowserFactory returns the factory selected by the configuration:
// the plain HTTP driver with --static, headless Chrome otherwise.
func NewBrowserFactory(cfg *config.Config) BrowserFactory {
	return func(context.Context) (browser.Browser, error) {
		if cfg.Static {
			b, err := browser.NewStaticBrowser(browser.WithHeaders(cfg.Headers))
			if err != nil {
				return nil, err
			}
			return b, nil
		}
		b, err := browser.NewRodBrowser(browser.RodOptions{
			BinPath:  cfg.BrowserBin,
			Headless: true,
			Headers:  cfg.Headers,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// ModeFor returns the run mode selected by the configuration.
func ModeFor(cfg *config.Config) model.RunMode {
	if cfg.UpdateMode {
		return model.ModeUpdate
	}
	return model.ModeCreate
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// LoadStep builds the seed of the run and, in update mode, loads the
// stored knowledge.
//
// Values set in the configuration win over the documentation file. An
// update without a URL explores the base URL of the stored knowledge.
type LoadStep struct {
	cfg    *config.Config
	store  *knowledge.Store
	logger *slog.Logger
}

// NewLoadStep creates a load step.
func NewLoadStep(cfg *config.Config, store *knowledge.Store, logger *slog.Logger) *LoadStep {
	return &LoadStep{cfg: cfg, store: store, logger: loggerOrDefault(logger)}
}

// Name returns the step name.
func (s *LoadStep) Name() string {
	return "load"
}

// Do executes the load step.
func (s *LoadStep) Do(_ context.Context, run *model.Run) error {
	sd := &seed.Seed{
		TargetURL: s.cfg.TargetURL,
		HintPages: s.cfg.HintPages,
		Credentials: seed.Credentials{
			Username:  s.cfg.Credentials.Username,
			Password:  s.cfg.Credentials.Password,
			LoginPath: s.cfg.Credentials.LoginPath,
		},
		Features: s.cfg.Features,
	}

	if s.cfg.DocsPath != "" {
		doc, err := seed.FromFile(s.cfg.DocsPath)
		if err != nil {
			return err
		}
		sd.Merge(doc)
		s.logger.Debug("seed read from documentation",
			"path", s.cfg.DocsPath,
			"target", doc.TargetURL,
			"hints", len(doc.HintPages),
		)
	}

	if run.Mode == model.ModeUpdate {
		existing, err := s.store.Load(run.AppName)
		if err != nil {
			return fmt.Errorf("cannot update %q: %w", run.AppName, err)
		}
		run.Existing = existing
		if sd.TargetURL == "" {
			sd.TargetURL = existing.BaseURL
		}
	}

	if err := sd.Validate(); err != nil {
		return err
	}
	run.Seed = sd
	run.BaseURL = sd.TargetURL
	return nil
}

// ExploreStep crawls the application starting from the seed.
type ExploreStep struct {
	newBrowser BrowserFactory
	opts       []crawler.Option
	logger     *slog.Logger
}

// NewExploreStep creates an explore step. Every run starts its own browser
// and closes it when the exploration ends.
func NewExploreStep(newBrowser BrowserFactory, logger *slog.Logger, opts ...crawler.Option) *ExploreStep {
	return &ExploreStep{newBrowser: newBrowser, opts: opts, logger: loggerOrDefault(logger)}
}

// Name returns the step name.
func (s *ExploreStep) Name() string {
	return "explore"
}

// Do executes the explore step. A cancelled exploration keeps the pages
// visited so far in the run.
func (s *ExploreStep) Do(ctx context.Context, run *model.Run) error {
	if run.Seed == nil {
		return fmt.Errorf("explore: no seed: %w", errMissingInput)
	}

	b, err := s.newBrowser(ctx)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			s.logger.Warn("failed to close browser", "error", err)
		}
	}()

	e, err := crawler.NewExplorer(b, s.opts...).Explore(ctx, *run.Seed)
	if e != nil {
		run.Exploration = e
	}
	if err != nil {
		return fmt.Errorf("exploration failed: %w", err)
	}

	if n := e.FailedVisits(); n > 0 {
		run.AddWarning(fmt.Sprintf("%d page(s) failed to load", n))
	}
	return nil
}

// AnalyzeStep classifies the explored pages and synthesizes flows and
// scenarios.
type AnalyzeStep struct{}

// NewAnalyzeStep creates an analyze step.
func NewAnalyzeStep() *AnalyzeStep {
	return &AnalyzeStep{}
}

// Name returns the step name.
func (s *AnalyzeStep) Name() string {
	return "analyze"
}

// Do executes the analyze step.
func (s *AnalyzeStep) Do(_ context.Context, run *model.Run) error {
	if run.Exploration == nil {
		return fmt.Errorf("analyze: no exploration: %w", errMissingInput)
	}
	run.Analysis = analyzer.Analyze(run.AppName, run.Exploration)
	return nil
}

// MergeStep turns the analysis into knowledge: new knowledge in create
// mode, merged into the stored knowledge in update mode.
//
// An exploration that found no pages is reported as a warning. In create
// mode it still yields empty knowledge; in update mode the run is marked
// skipped and the stored knowledge is kept as is.
type MergeStep struct {
	now    func() time.Time
	logger *slog.Logger
}

// NewMergeStep creates a merge step. A nil clock uses time.Now.
func NewMergeStep(now func() time.Time, logger *slog.Logger) *MergeStep {
	if now == nil {
		now = time.Now
	}
	return &MergeStep{now: now, logger: loggerOrDefault(logger)}
}

// Name returns the step name.
func (s *MergeStep) Name() string {
	return "merge"
}

// Do executes the merge step.
func (s *MergeStep) Do(_ context.Context, run *model.Run) error {
	if run.Analysis == nil {
		return fmt.Errorf("merge: no analysis: %w", errMissingInput)
	}

	if run.Analysis.Pages.Len() == 0 {
		if run.Mode == model.ModeUpdate {
			run.AddWarning(fmt.Sprintf("no pages were extracted from %s; stored knowledge left unchanged", run.BaseURL))
			run.Skipped = true
			return nil
		}
		run.AddWarning(fmt.Sprintf("no pages were extracted from %s", run.BaseURL))
	}

	now := s.now().UTC()
	if run.Mode != model.ModeUpdate {
		run.Knowledge = knowledge.New(run.Analysis, now)
		return nil
	}

	if run.Existing == nil {
		return fmt.Errorf("merge: no stored knowledge: %w", errMissingInput)
	}
	k, change, err := knowledge.Merge(run.Existing, run.Analysis, now)
	if err != nil {
		return err
	}
	run.Knowledge = k
	run.Change = change
	s.logger.Info("knowledge merged",
		"app", run.AppName,
		"version", change.NewVersion,
		"pages_added", len(change.PagesAdded),
		"pages_removed", len(change.PagesRemoved),
		"forms_added", len(change.FormsAdded),
		"forms_removed", len(change.FormsRemoved),
	)
	return nil
}

// PersistStep writes the artifacts of the new knowledge, backing up the
// previous ones.
type PersistStep struct {
	store  *knowledge.Store
	logger *slog.Logger
}

// NewPersistStep creates a persist step.
func NewPersistStep(store *knowledge.Store, logger *slog.Logger) *PersistStep {
	return &PersistStep{store: store, logger: loggerOrDefault(logger)}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do executes the persist step.
func (s *PersistStep) Do(_ context.Context, run *model.Run) error {
	if run.Skipped {
		return nil
	}
	if run.Knowledge == nil {
		return fmt.Errorf("persist: no knowledge: %w", errMissingInput)
	}

	res, err := s.store.Save(run.Knowledge)
	if err != nil {
		return err
	}
	run.ArtifactDir = res.Dir
	run.BackupDir = res.BackupDir
	s.logger.Info("artifacts written",
		"dir", res.Dir,
		"files", len(res.Files),
		"backup", res.BackupDir,
	)
	return nil
}

// RecordStep stores the run, its visits and a knowledge snapshot in the
// history database.
type RecordStep struct {
	db  *database.HistoryDB
	now func() time.Time
}

// NewRecordStep creates a record step. A nil clock uses time.Now.
func NewRecordStep(db *database.HistoryDB, now func() time.Time) *RecordStep {
	if now == nil {
		now = time.Now
	}
	return &RecordStep{db: db, now: now}
}

// Name returns the step name.
func (s *RecordStep) Name() string {
	return "record"
}

// Do executes the record step.
func (s *RecordStep) Do(ctx context.Context, run *model.Run) error {
	run.FinishedAt = s.now()
	return s.db.RecordRun(ctx, run)
}

// DefaultPipelineConfig holds the collaborators of the default pipeline
// that are not part of the configuration.
type DefaultPipelineConfig struct {
	// NewBrowser starts the browser. Defaults to NewBrowserFactory(cfg).
	NewBrowser BrowserFactory

	// Observer receives every visit, for progress display.
	Observer func(crawler.VisitEvent)

	// Now is the clock used for knowledge timestamps.
	Now func() time.Time

	// Logger is passed to the steps and the explorer.
	Logger *slog.Logger
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithBrowserFactory replaces the browser selected by the configuration.
func WithBrowserFactory(f BrowserFactory) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.NewBrowser = f
	}
}

// WithVisitObserver sets a function called after every visit.
func WithVisitObserver(fn func(crawler.VisitEvent)) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Observer = fn
	}
}

// WithClock sets the clock used for knowledge timestamps.
func WithClock(now func() time.Time) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Now = now
	}
}

// WithStepLogger sets the logger of the steps and the explorer.
func WithStepLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Logger = logger
	}
}

// CrawlerOptions maps the configuration to explorer options.
func CrawlerOptions(cfg *config.Config, logger *slog.Logger) []crawler.Option {
	opts := []crawler.Option{
		crawler.WithMaxDepth(cfg.MaxDepth),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithPageTimeout(cfg.PageTimeout),
		crawler.WithWaitStrategy(browser.WaitStrategy(cfg.WaitStrategy)),
		crawler.WithSettleDelay(cfg.SettleDelay),
		crawler.WithElementCap(cfg.ElementCap),
		crawler.WithDelay(cfg.CrawlDelay),
		crawler.WithVerbose(cfg.Verbose),
	}
	if logger != nil {
		opts = append(opts, crawler.WithLogger(logger))
	}
	if len(cfg.IgnorePatterns) > 0 {
		opts = append(opts, crawler.WithIgnorePatterns(cfg.IgnorePatterns))
	}
	if len(cfg.FollowPatterns) > 0 {
		opts = append(opts, crawler.WithFollowPatterns(cfg.FollowPatterns))
	}
	return opts
}

// DefaultPipeline creates the pipeline load, explore, analyze, merge,
// persist and record for one application. The record step is left out
// when db is nil.
//
// The first variadic parameter accepts pipeline options (WithLogger, etc).
// The second accepts collaborator options (WithBrowserFactory, etc).
func DefaultPipeline(
	cfg *config.Config,
	store *knowledge.Store,
	db *database.HistoryDB,
	pipelineOpts []Option,
	configOpts ...DefaultPipelineOption,
) *Pipeline {
	p := New(pipelineOpts...)

	dc := &DefaultPipelineConfig{}
	for _, opt := range configOpts {
		opt(dc)
	}
	if dc.NewBrowser == nil {
		dc.NewBrowser = NewBrowserFactory(cfg)
	}

	crawlOpts := CrawlerOptions(cfg, dc.Logger)
	if dc.Observer != nil {
		crawlOpts = append(crawlOpts, crawler.WithObserver(dc.Observer))
	}
	// The static driver cannot render, so the hook would only be skipped.
	if cfg.Screenshots && !cfg.Static {
		dir := filepath.Join(store.Dir(cfg.AppName), ScreenshotDirName)
		crawlOpts = append(crawlOpts, crawler.WithHooks(crawler.NewScreenshotHook(dir, 0)))
	}

	p.AddSteps(
		NewLoadStep(cfg, store, dc.Logger),
		NewExploreStep(dc.NewBrowser, dc.Logger, crawlOpts...),
		NewAnalyzeStep(),
		NewMergeStep(dc.Now, dc.Logger),
		NewPersistStep(store, dc.Logger),
	)
	if db != nil {
		p.AddStep(NewRecordStep(db, dc.Now))
	}

	return p
}

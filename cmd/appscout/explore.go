package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/appscout/internal/config"
	"github.com/nao1215/appscout/internal/crawler"
	"github.com/nao1215/appscout/internal/database"
	"github.com/nao1215/appscout/internal/knowledge"
	applog "github.com/nao1215/appscout/internal/log"
	"github.com/nao1215/appscout/internal/model"
	"github.com/nao1215/appscout/internal/pipeline"
	"github.com/nao1215/appscout/internal/report"
)

// errRunFailed is returned when a run finished with an error that was
// already reported.
var errRunFailed = errors.New("run failed")

// NewExploreCmd creates the explore command.
func NewExploreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Explore a web application and create its knowledge",
		Long: `Explore crawls a web application with a headless browser, starting from
a URL or from what a documentation file says about the application.

Every reachable page is classified (login, dashboard, form, list, detail,
settings, ...), its forms are recorded with generated test data, and user
flows and test scenarios are derived. The result is written to the
artifact directory of the application:

  knowledge.json     full knowledge document
  SKILL.md           human-readable summary
  flows.yaml         flows and form test data
  test-scenarios.md  test scenarios

Examples:
  # Explore an application
  appscout explore --name acme --url https://app.acme.test/

  # Read the start URL and demo credentials from a README
  appscout explore --name acme --docs ./README.md

  # Fetch pages over plain HTTP instead of a browser
  appscout explore --name acme --url http://localhost:8080/ --static

  # Explore every application in .appscout.yaml
  appscout explore --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			update, err := cmd.Flags().GetBool("update")
			if err != nil {
				return err
			}
			return runExploreCmd(cmd, update)
		},
	}

	addRunFlags(cmd)
	cmd.Flags().BoolP("update", "u", false,
		"Merge into the stored knowledge instead of creating it")

	return cmd
}

// NewUpdateCmd creates the update command.
func NewUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Explore again and merge into the stored knowledge",
		Long: `Update explores an application again and merges the result into its
stored knowledge.

New pages and forms are added, pages that are gone are removed, and
operator edits (descriptions, custom data, hand-written test data) are
kept. The minor version is bumped, the change is recorded in the update
history, and the previous artifacts are copied to a timestamped backup.

An update that finds no pages leaves the stored knowledge untouched.

Examples:
  # Update with the URL stored in the knowledge
  appscout update --name acme

  # Update every application in .appscout.yaml
  appscout update --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExploreCmd(cmd, true)
		},
	}

	addRunFlags(cmd)

	return cmd
}

// addRunFlags registers the flags shared by explore and update.
func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	// Target flags
	f.StringP("name", "n", "", "Application name (names the artifact directory)")
	f.String("url", "", "Start URL of the exploration")
	f.String("docs", "", "Documentation file to read the start URL, hint pages and credentials from")
	f.StringSlice("hint", nil, "Extra paths to visit next to the start URL (repeatable)")
	f.StringSlice("ignore", nil, "Glob patterns of URL paths never visited (repeatable)")
	f.StringSlice("follow", nil, "Glob patterns restricting visits to matching URL paths (repeatable)")
	f.String("username", "", "Login username (or set "+config.EnvUsername+")")
	f.String("login-path", "", "Path of the login page")

	// Crawl behavior flags
	f.IntP("max-depth", "d", config.DefaultMaxDepth, "Maximum number of link hops from the start URL")
	f.IntP("max-pages", "p", config.DefaultMaxPages, "Maximum number of pages visited, failed visits included")
	f.Int("concurrency", config.DefaultConcurrency, "Number of pages visited at once")
	f.DurationP("timeout", "t", config.DefaultPageTimeout, "Timeout of one page visit")
	f.Duration("settle", config.DefaultSettleDelay, "Time waited after navigation before extraction")
	f.Duration("delay", 0, "Minimum interval between navigations")
	f.String("wait", config.DefaultWaitStrategy, "Navigation wait strategy: load, domcontentloaded or networkidle")

	// Browser flags
	f.Bool("static", false, "Fetch pages over plain HTTP instead of a headless browser")
	f.Bool("no-screenshots", false, "Do not take page screenshots")
	f.String("browser-bin", "", "Chrome/Chromium binary (default: find or download one)")

	// Storage flags
	f.StringP("output", "o", "", "Root of the artifact directories (default: XDG data directory)")
	f.String("db-dir", "", "Directory of the history database (default: XDG data directory)")

	// Batch flags
	f.BoolP("all", "a", false, "Run every application in the configuration file")
	f.IntP("batch", "b", config.DefaultBatchSize, "Number of applications run at once with --all")

	// Configuration file
	f.StringP("config", "c", "",
		"Configuration file path (default: "+config.DefaultConfigFile+" in current or home directory)")

	// Report flags
	f.BoolP("json", "j", false, "Print the run report as JSON")
	f.String("log-file", "", "Also write logs to a rotating file")
	f.Bool("log-json", false, "Write logs as JSON")
}

// runExploreCmd executes explore or update.
func runExploreCmd(cmd *cobra.Command, update bool) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	file, err := loadConfigFile(configPath)
	if err != nil {
		return err
	}

	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}
	var names []string
	if all {
		names = file.AppNames()
		if len(names) == 0 {
			return errors.New("no applications configured (add entries under 'apps' in the configuration file)")
		}
	} else {
		name, err := cmd.Flags().GetString("name")
		if err != nil {
			return err
		}
		names = []string{name}
	}

	configs := make([]*config.Config, 0, len(names))
	secrets := make([]string, 0, len(names))
	for _, name := range names {
		cfg, err := buildConfig(cmd, file, name, update)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			if all {
				return fmt.Errorf("configuration error for %s: %w", name, err)
			}
			return fmt.Errorf("configuration error: %w", err)
		}
		configs = append(configs, cfg)
		secrets = append(secrets, cfg.Credentials.Password)
	}

	logger, closeLog, err := setupLogger(configs[0].Verbose, configs[0].LogFile, configs[0].JSONLogs, secrets)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	if all {
		return runBatch(ctx, cmd, configs, update, logger)
	}
	return runOne(ctx, cmd, configs[0], logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// loadConfigFile loads the configuration file.
// If the user explicitly specified a path, a missing file is an error.
// Otherwise an empty configuration is used when no file is found.
func loadConfigFile(path string) (*config.File, error) {
	found := config.FindConfigFile(path)
	if found == "" {
		if path != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
		}
		return &config.File{Apps: make(map[string]config.AppConfig)}, nil
	}

	file, err := config.LoadConfigFile(found)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
	}
	return file, nil
}

// buildConfig creates the Config of one application: defaults, then the
// configuration file, then the flags the user changed, then credentials
// from the environment.
func buildConfig(cmd *cobra.Command, file *config.File, name string, update bool) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.AppName = name
	cfg.UpdateMode = update
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.ConfigFilePath, _ = cmd.Flags().GetString("config") //nolint:errcheck // registered by addRunFlags

	if file != nil {
		cfg.Apply(file.GetAppConfig(name))
	}

	f := cmd.Flags()
	var err error
	setString := func(flag string, dst *string) {
		if err != nil || !f.Changed(flag) {
			return
		}
		*dst, err = f.GetString(flag)
	}
	setInt := func(flag string, dst *int) {
		if err != nil || !f.Changed(flag) {
			return
		}
		*dst, err = f.GetInt(flag)
	}
	setDuration := func(flag string, dst *time.Duration) {
		if err != nil || !f.Changed(flag) {
			return
		}
		*dst, err = f.GetDuration(flag)
	}
	appendSlice := func(flag string, dst *[]string) {
		if err != nil || !f.Changed(flag) {
			return
		}
		var values []string
		values, err = f.GetStringSlice(flag)
		*dst = append(*dst, values...)
	}

	setString("url", &cfg.TargetURL)
	setString("docs", &cfg.DocsPath)
	setString("username", &cfg.Credentials.Username)
	setString("login-path", &cfg.Credentials.LoginPath)
	setString("wait", &cfg.WaitStrategy)
	setString("browser-bin", &cfg.BrowserBin)
	setString("output", &cfg.OutputDir)
	setString("db-dir", &cfg.DBDir)
	setString("log-file", &cfg.LogFile)
	setInt("max-depth", &cfg.MaxDepth)
	setInt("max-pages", &cfg.MaxPages)
	setInt("concurrency", &cfg.Concurrency)
	setInt("batch", &cfg.BatchSize)
	setDuration("timeout", &cfg.PageTimeout)
	setDuration("settle", &cfg.SettleDelay)
	setDuration("delay", &cfg.CrawlDelay)
	appendSlice("hint", &cfg.HintPages)
	appendSlice("ignore", &cfg.IgnorePatterns)
	appendSlice("follow", &cfg.FollowPatterns)
	if err != nil {
		return nil, err
	}

	if cfg.Static, err = f.GetBool("static"); err != nil {
		return nil, err
	}
	noScreenshots, err := f.GetBool("no-screenshots")
	if err != nil {
		return nil, err
	}
	cfg.Screenshots = !noScreenshots
	if cfg.JSONReport, err = f.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.JSONLogs, err = f.GetBool("log-json"); err != nil {
		return nil, err
	}

	cfg.ApplyEnv()

	return cfg, nil
}

// setupLogger creates the secure logger. Logs go to stderr and, when
// logFile is set, also to a rotating file. The supplied passwords are
// masked wherever they appear. The returned func closes the file.
func setupLogger(verbose bool, logFile string, jsonLogs bool, secrets []string) (*slog.Logger, func(), error) {
	newLogger := applog.NewSecureLogger
	if jsonLogs {
		newLogger = applog.NewSecureJSONLogger
	}

	if logFile == "" {
		return newLogger(os.Stderr, verbose, secrets...), func() {}, nil
	}

	rotating, err := applog.NewRotatingWriter(logFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := newLogger(io.MultiWriter(os.Stderr, rotating), verbose, secrets...)
	return logger, func() { _ = rotating.Close() }, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// openStorage opens the artifact store and the history database.
func openStorage(cfg *config.Config) (*knowledge.Store, *database.HistoryDB, error) {
	store := knowledge.NewStore(cfg.OutputDir, knowledge.WithRenderer(report.Artifacts))
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, db, nil
}

// runOne runs the pipeline for a single application and prints its report.
func runOne(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	store, db, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("starting run",
		"app", cfg.AppName,
		"url", cfg.TargetURL,
		"mode", pipeline.ModeFor(cfg),
		"static", cfg.Static,
	)

	var opts []pipeline.DefaultPipelineOption
	opts = append(opts, pipeline.WithStepLogger(logger))

	var progress *report.Progress
	if !cfg.Verbose && !cfg.JSONReport {
		progress = report.NewProgress(cmd.ErrOrStderr())
		opts = append(opts, pipeline.WithVisitObserver(func(ev crawler.VisitEvent) {
			progress.Update(ev.Visited, ev.MaxPages, ev.URL)
		}))
	}

	p := pipeline.DefaultPipeline(cfg, store, db, []pipeline.Option{pipeline.WithLogger(logger)}, opts...)
	run := pipeline.NewRun(cfg.AppName, pipeline.ModeFor(cfg))

	execErr := p.Execute(ctx, run)
	if progress != nil {
		progress.Finish()
	}

	if err := writeRunReport(cmd.OutOrStdout(), cfg, run); err != nil {
		logger.Error("report failed", "app", cfg.AppName, "error", err)
	}

	if execErr != nil {
		return fmt.Errorf("%s: %w", cfg.AppName, execErr)
	}
	return nil
}

// runBatch runs every application of the configuration file.
func runBatch(ctx context.Context, cmd *cobra.Command, configs []*config.Config, update bool, logger *slog.Logger) error {
	apps := make([]string, len(configs))
	byName := make(map[string]*config.Config, len(configs))
	for i, cfg := range configs {
		apps[i] = cfg.AppName
		byName[cfg.AppName] = cfg
	}

	// All applications share one database and one artifact root.
	shared := configs[0]
	store, db, err := openStorage(shared)
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(cmd.ErrOrStderr(), "Running %d applications (concurrency: %d)...\n\n", len(apps), shared.BatchSize)
	startTime := time.Now()

	mode := model.ModeCreate
	if update {
		mode = model.ModeUpdate
	}
	bp := pipeline.NewBatchProcessor(
		func(name string) (*pipeline.Pipeline, error) {
			cfg, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("unknown application %q", name)
			}
			return pipeline.DefaultPipeline(cfg, store, db,
				[]pipeline.Option{pipeline.WithLogger(logger)},
				pipeline.WithStepLogger(logger),
			), nil
		},
		pipeline.WithConcurrency(shared.BatchSize),
		pipeline.WithBatchLogger(logger),
		pipeline.WithMode(mode),
	)

	var mu sync.Mutex
	var failed []string
	err = bp.ProcessBatchWithCallback(ctx, apps, func(run *model.Run, index int) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] Run completed: %s\n", index+1, len(apps), run.AppName)
		if err := writeRunReport(out, byName[run.AppName], run); err != nil {
			logger.Error("report failed", "app", run.AppName, "error", err)
		}
		if run.Err != nil {
			failed = append(failed, run.AppName)
		}
	})

	fmt.Fprintf(cmd.ErrOrStderr(), "\nBatch completed in %s\n", time.Since(startTime).Round(time.Millisecond))

	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: %v", errRunFailed, failed)
	}
	return nil
}

// writeRunReport prints the report of one run.
func writeRunReport(out io.Writer, cfg *config.Config, run *model.Run) error {
	var w report.Writer
	if cfg != nil && cfg.JSONReport {
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	} else {
		verbose := cfg != nil && cfg.Verbose
		w = report.NewSimpleWriter(out, report.WithVerbose(verbose))
	}
	_, err := w.Write(run)
	return err
}

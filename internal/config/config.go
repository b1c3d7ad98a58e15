package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultMaxDepth is the number of link hops followed from the start URL.
	// Shallow pages carry most of an application's structure; deeper pages
	// tend to be more items of a list already seen.
	DefaultMaxDepth = 3

	// DefaultMaxPages is the total page budget of one exploration.
	// Failed visits count against it.
	DefaultMaxPages = 50

	// DefaultConcurrency of 1 visits pages strictly one at a time with a
	// single browser session.
	DefaultConcurrency = 1

	// DefaultPageTimeout bounds navigation plus extraction of one page.
	DefaultPageTimeout = 30 * time.Second

	// DefaultSettleDelay is waited after navigation so client-rendered
	// content has a chance to appear before extraction.
	DefaultSettleDelay = 1 * time.Second

	// DefaultElementCap is the number of interactive elements kept per page.
	DefaultElementCap = 20

	// DefaultWaitStrategy waits for the load event.
	DefaultWaitStrategy = "load"

	// DefaultBatchSize is the number of applications explored at once with --all.
	DefaultBatchSize = 2

	// AppName is the application name used for XDG directory paths.
	AppName = "appscout"
)

// Wait strategies understood by the browsers.
const (
	WaitLoad             = "load"
	WaitDOMContentLoaded = "domcontentloaded"
	WaitNetworkIdle      = "networkidle"
)

// Credentials are supplied login credentials for form-fill authentication.
type Credentials struct {
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
	LoginPath string `yaml:"loginPath,omitempty"`
}

// IsSet reports whether both a username and a password are present.
func (c Credentials) IsSet() bool {
	return c.Username != "" && c.Password != ""
}

// Config holds all configuration options for appscout.
// This struct is populated from defaults, then the config file, then CLI
// flags, and passed through the application via dependency injection rather
// than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, BrowserConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// AppName identifies the application. It names the artifact directory.
	AppName string

	// TargetURL is the start URL of the exploration.
	TargetURL string

	// DocsPath is a documentation file the seed is read from when no URL
	// is given, or to add hint pages and credentials.
	DocsPath string

	// HintPages are extra paths or URLs enqueued next to the start URL.
	HintPages []string

	// MaxDepth is the crawl depth ceiling. Depth 0 means only the seeds.
	MaxDepth int

	// MaxPages is the total page budget, including failed visits.
	MaxPages int

	// Concurrency is the number of pages visited at once.
	// Bounds stay global regardless of the worker count.
	Concurrency int

	// PageTimeout bounds one page visit.
	PageTimeout time.Duration

	// SettleDelay is waited after navigation before extraction.
	SettleDelay time.Duration

	// CrawlDelay is the minimum interval between navigations. Zero disables it.
	CrawlDelay time.Duration

	// ElementCap is the number of interactive elements kept per page.
	ElementCap int

	// WaitStrategy is one of WaitLoad, WaitDOMContentLoaded, WaitNetworkIdle.
	WaitStrategy string

	// Verbose enables per-page diagnostics using slog.LevelDebug instead
	// of a progress indicator.
	Verbose bool

	// UpdateMode merges into stored knowledge instead of creating it.
	UpdateMode bool

	// Static fetches pages over plain HTTP instead of driving a headless browser.
	// Client-rendered content is not seen in this mode.
	Static bool

	// Screenshots enables the best-effort screenshot hook.
	Screenshots bool

	// BrowserBin is an explicit Chrome/Chromium binary. Empty lets the
	// launcher find or download one.
	BrowserBin string

	// Headers are extra HTTP headers sent with every navigation.
	Headers map[string]string

	// Credentials are used for form-fill login before crawling.
	Credentials Credentials

	// IgnorePatterns are glob patterns of URL paths never visited.
	IgnorePatterns []string

	// FollowPatterns, when set, restrict visits to matching URL paths.
	FollowPatterns []string

	// Features are free-form feature hints carried into the seed.
	Features []string

	// OutputDir is the root of the per-application artifact directories.
	// Defaults to the "apps" directory under the XDG data directory.
	OutputDir string

	// DBDir is the directory of the history database.
	// When empty, runs are not recorded.
	DBDir string

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .appscout.yaml in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// JSONReport prints the final report as JSON.
	JSONReport bool

	// LogFile, when set, also writes logs to a rotating file.
	LogFile string

	// JSONLogs writes logs as JSON instead of text.
	JSONLogs bool

	// BatchSize is the number of applications explored at once with --all.
	BatchSize int
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., page budget, timeouts).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		MaxDepth:     DefaultMaxDepth,
		MaxPages:     DefaultMaxPages,
		Concurrency:  DefaultConcurrency,
		PageTimeout:  DefaultPageTimeout,
		SettleDelay:  DefaultSettleDelay,
		ElementCap:   DefaultElementCap,
		WaitStrategy: DefaultWaitStrategy,
		Screenshots:  true,
		OutputDir:    DefaultOutputDir(),
		DBDir:        XDGDataDir(),
		BatchSize:    DefaultBatchSize,
	}
}

// XDGDataDir returns the XDG data directory for appscout.
// On Linux: ~/.local/share/appscout
// On macOS: ~/Library/Application Support/appscout
// On Windows: %LOCALAPPDATA%\appscout
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for appscout.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for appscout.
// Downloaded browser binaries are kept here.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// DefaultOutputDir returns the default root of the artifact directories.
func DefaultOutputDir() string {
	return filepath.Join(XDGDataDir(), "apps")
}

// Validate checks if the configuration is valid.
// It returns the first error found, since fixing one error often makes
// others irrelevant.
func (c *Config) Validate() error {
	if c.AppName == "" {
		return ErrMissingAppName
	}

	// An update falls back to the base URL of the stored knowledge.
	if c.TargetURL == "" && c.DocsPath == "" && !c.UpdateMode {
		return ErrMissingTarget
	}

	if c.TargetURL != "" && !IsHTTPURL(c.TargetURL) {
		return ErrInvalidURL
	}

	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}

	if c.MaxPages < 1 {
		return ErrInvalidMaxPages
	}

	if c.Concurrency < 1 {
		return ErrInvalidConcurrency
	}

	if c.PageTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.SettleDelay < 0 || c.CrawlDelay < 0 {
		return ErrInvalidDelay
	}

	switch c.WaitStrategy {
	case WaitLoad, WaitDOMContentLoaded, WaitNetworkIdle:
	default:
		return ErrInvalidWaitStrategy
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	return nil
}

// IsHTTPURL reports whether raw is an absolute http or https URL with a host.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

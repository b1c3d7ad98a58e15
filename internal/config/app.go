package config

import (
	"maps"
	"os"
	"slices"
)

// Environment variables that supply login credentials.
// They may also be set in a .env file in the working directory.
const (
	EnvUsername = "APPSCOUT_USERNAME"
	EnvPassword = "APPSCOUT_PASSWORD"
)

// AppConfig holds the configuration of one application in the config file.
type AppConfig struct {
	// URL is the start URL of the exploration.
	URL string `yaml:"url,omitempty"`

	// Docs is a documentation file to read the seed from.
	Docs string `yaml:"docs,omitempty"`

	// HintPages are extra paths enqueued next to the start URL.
	HintPages []string `yaml:"hintPages,omitempty"`

	// MaxDepth overrides the crawl depth. Zero keeps the current value.
	MaxDepth int `yaml:"maxDepth,omitempty"`

	// MaxPages overrides the page budget. Zero keeps the current value.
	MaxPages int `yaml:"maxPages,omitempty"`

	// Concurrency overrides the worker count. Zero keeps the current value.
	Concurrency int `yaml:"concurrency,omitempty"`

	// Headers are extra HTTP headers sent with every navigation.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Credentials are used for form-fill login.
	Credentials Credentials `yaml:"credentials,omitempty"`

	// IgnorePatterns are glob patterns of URL paths never visited.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, when set, restrict visits to matching URL paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`

	// Features are free-form feature hints.
	Features []string `yaml:"features,omitempty"`
}

// File represents the structure of the .appscout.yaml configuration file.
type File struct {
	// Apps maps application names to their configuration.
	Apps map[string]AppConfig `yaml:"apps,omitempty"`

	// Defaults is applied to every application unless overridden.
	Defaults AppConfig `yaml:"defaults,omitempty"`
}

// GetAppConfig returns the configuration for one application,
// merged over the defaults.
func (cf *File) GetAppConfig(name string) AppConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	app, ok := cf.Apps[name]
	if !ok {
		return result
	}

	if app.URL != "" {
		result.URL = app.URL
	}
	if app.Docs != "" {
		result.Docs = app.Docs
	}
	if app.MaxDepth != 0 {
		result.MaxDepth = app.MaxDepth
	}
	if app.MaxPages != 0 {
		result.MaxPages = app.MaxPages
	}
	if app.Concurrency != 0 {
		result.Concurrency = app.Concurrency
	}
	if len(app.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, app.Headers)
	}
	if app.Credentials.Username != "" {
		result.Credentials.Username = app.Credentials.Username
	}
	if app.Credentials.Password != "" {
		result.Credentials.Password = app.Credentials.Password
	}
	if app.Credentials.LoginPath != "" {
		result.Credentials.LoginPath = app.Credentials.LoginPath
	}
	if len(app.HintPages) > 0 {
		result.HintPages = app.HintPages
	}
	if len(app.IgnorePatterns) > 0 {
		result.IgnorePatterns = app.IgnorePatterns
	}
	if len(app.FollowPatterns) > 0 {
		result.FollowPatterns = app.FollowPatterns
	}
	if len(app.Features) > 0 {
		result.Features = app.Features
	}

	return result
}

// AppNames returns the configured application names in sorted order.
func (cf *File) AppNames() []string {
	return slices.Sorted(maps.Keys(cf.Apps))
}

// Apply copies the non-zero values of an application configuration into c.
// It runs before CLI flags are applied, so changed flags win.
func (c *Config) Apply(app AppConfig) {
	if c.TargetURL == "" {
		c.TargetURL = app.URL
	}
	if c.DocsPath == "" {
		c.DocsPath = app.Docs
	}
	if app.MaxDepth != 0 {
		c.MaxDepth = app.MaxDepth
	}
	if app.MaxPages != 0 {
		c.MaxPages = app.MaxPages
	}
	if app.Concurrency != 0 {
		c.Concurrency = app.Concurrency
	}
	if len(app.Headers) > 0 {
		c.Headers = maps.Clone(app.Headers)
	}
	if !c.Credentials.IsSet() && app.Credentials.IsSet() {
		c.Credentials = app.Credentials
	}
	if c.Credentials.LoginPath == "" {
		c.Credentials.LoginPath = app.Credentials.LoginPath
	}
	c.HintPages = append(c.HintPages, app.HintPages...)
	c.IgnorePatterns = append(c.IgnorePatterns, app.IgnorePatterns...)
	c.FollowPatterns = append(c.FollowPatterns, app.FollowPatterns...)
	c.Features = append(c.Features, app.Features...)
}

// ApplyEnv fills missing credentials from the environment.
func (c *Config) ApplyEnv() {
	if c.Credentials.Username == "" {
		c.Credentials.Username = os.Getenv(EnvUsername)
	}
	if c.Credentials.Password == "" {
		c.Credentials.Password = os.Getenv(EnvPassword)
	}
}

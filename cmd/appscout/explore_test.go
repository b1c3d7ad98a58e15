package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/appscout/internal/config"
	"github.com/nao1215/appscout/internal/knowledge"
	"github.com/nao1215/appscout/internal/report"
)

// TestNewExploreCmd tests the explore command creation.
func TestNewExploreCmd(t *testing.T) {
	t.Parallel()

	cmd := NewExploreCmd()

	if cmd.Use != "explore" {
		t.Errorf("expected use 'explore', got %q", cmd.Use)
	}

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"name", "n", ""},
		{"max-depth", "d", "3"},
		{"max-pages", "p", "50"},
		{"timeout", "t", "30s"},
		{"settle", "", "1s"},
		{"output", "o", ""},
		{"config", "c", ""},
		{"update", "u", "false"},
		{"all", "a", "false"},
		{"batch", "b", "2"},
		{"json", "j", "false"},
		{"static", "", "false"},
		{"no-screenshots", "", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

// TestNewUpdateCmd tests that update shares the run flags but has no --update.
func TestNewUpdateCmd(t *testing.T) {
	t.Parallel()

	cmd := NewUpdateCmd()

	if cmd.Use != "update" {
		t.Errorf("expected use 'update', got %q", cmd.Use)
	}
	if cmd.Flags().Lookup("url") == nil {
		t.Error("expected url flag")
	}
	if cmd.Flags().Lookup("update") != nil {
		t.Error("update command should not have an update flag")
	}
}

// TestBuildConfig tests the precedence of defaults, config file and flags.
func TestBuildConfig(t *testing.T) {
	t.Setenv(config.EnvUsername, "")
	t.Setenv(config.EnvPassword, "")

	file := &config.File{
		Defaults: config.AppConfig{
			MaxDepth:       5,
			IgnorePatterns: []string{"/logout"},
		},
		Apps: map[string]config.AppConfig{
			"acme": {
				URL:       "https://acme.test/",
				MaxPages:  10,
				HintPages: []string{"/settings"},
				Credentials: config.Credentials{
					LoginPath: "/signin",
				},
			},
		},
	}

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "config file over defaults",
			args: nil,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.TargetURL != "https://acme.test/" {
					t.Errorf("expected URL from config file, got %q", cfg.TargetURL)
				}
				if cfg.MaxDepth != 5 || cfg.MaxPages != 10 {
					t.Errorf("expected depth 5 and pages 10, got %d and %d", cfg.MaxDepth, cfg.MaxPages)
				}
				if cfg.Concurrency != config.DefaultConcurrency {
					t.Errorf("expected default concurrency, got %d", cfg.Concurrency)
				}
				if cfg.Credentials.LoginPath != "/signin" {
					t.Errorf("expected login path from config file, got %q", cfg.Credentials.LoginPath)
				}
				if !cfg.Screenshots {
					t.Error("expected screenshots enabled by default")
				}
			},
		},
		{
			name: "changed flags over config file",
			args: []string{"--url", "http://localhost:8080/", "-p", "3", "--concurrency", "4", "--settle", "0s", "--static", "--no-screenshots"},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.TargetURL != "http://localhost:8080/" {
					t.Errorf("expected URL from flag, got %q", cfg.TargetURL)
				}
				if cfg.MaxPages != 3 || cfg.Concurrency != 4 {
					t.Errorf("expected pages 3 and concurrency 4, got %d and %d", cfg.MaxPages, cfg.Concurrency)
				}
				if cfg.MaxDepth != 5 {
					t.Errorf("unchanged flag must not override config file, got depth %d", cfg.MaxDepth)
				}
				if cfg.SettleDelay != 0 {
					t.Errorf("expected zero settle delay, got %s", cfg.SettleDelay)
				}
				if !cfg.Static || cfg.Screenshots {
					t.Errorf("expected static without screenshots, got static=%v screenshots=%v", cfg.Static, cfg.Screenshots)
				}
			},
		},
		{
			name: "pattern flags add to config file",
			args: []string{"--ignore", "/admin/*", "--hint", "/help"},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if diff := cmp.Diff([]string{"/logout", "/admin/*"}, cfg.IgnorePatterns); diff != "" {
					t.Errorf("ignore patterns mismatch (-want +got):\n%s", diff)
				}
				if diff := cmp.Diff([]string{"/settings", "/help"}, cfg.HintPages); diff != "" {
					t.Errorf("hint pages mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "storage flags",
			args: []string{"-o", "/tmp/artifacts", "--db-dir", "/tmp/db", "--timeout", "5s"},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.OutputDir != "/tmp/artifacts" || cfg.DBDir != "/tmp/db" {
					t.Errorf("unexpected storage dirs %q and %q", cfg.OutputDir, cfg.DBDir)
				}
				if cfg.PageTimeout != 5*time.Second {
					t.Errorf("expected 5s timeout, got %s", cfg.PageTimeout)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewExploreCmd()
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("failed to parse flags: %v", err)
			}

			cfg, err := buildConfig(cmd, file, "acme", false)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.AppName != "acme" {
				t.Errorf("expected app name acme, got %q", cfg.AppName)
			}
			tt.check(t, cfg)
		})
	}

	t.Run("credentials from the environment", func(t *testing.T) {
		t.Setenv(config.EnvUsername, "demo@acme.test")
		t.Setenv(config.EnvPassword, "demo-pass")

		cmd := NewUpdateCmd()
		if err := cmd.ParseFlags(nil); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		cfg, err := buildConfig(cmd, file, "acme", true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cfg.UpdateMode {
			t.Error("expected update mode")
		}
		if !cfg.Credentials.IsSet() {
			t.Errorf("expected credentials from environment, got %+v", cfg.Credentials)
		}
	})
}

// TestLoadConfigFile tests config file discovery.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit missing path is an error", func(t *testing.T) {
		t.Parallel()

		_, err := loadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("explicit path is loaded", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "apps.yaml")
		data := "apps:\n  acme:\n    url: https://acme.test/\n"
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		file, err := loadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"acme"}, file.AppNames()); diff != "" {
			t.Errorf("app names mismatch (-want +got):\n%s", diff)
		}
	})
}

// newSite serves a three-page application with a login form.
func newSite(t *testing.T) *httptest.Server {
	t.Helper()

	pages := map[string]string{
		"/": `<html><head><title>Acme</title></head><body><h1>Acme</h1>
			<a href="/login">Log in</a> <a href="/about">About</a></body></html>`,
		"/login": `<html><head><title>Sign in</title></head><body><h1>Sign in</h1>
			<form method="post" action="/login">
			<input type="email" name="email" required>
			<input type="password" name="password" required>
			<button type="submit">Log in</button></form></body></html>`,
		"/about": `<html><head><title>About</title></head><body><h1>About</h1>
			<a href="/">Home</a></body></html>`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

// cli runs the root command with the given arguments and returns stdout.
type cli struct {
	configPath string
	artifacts  string
	dbDir      string
}

func newCLI(t *testing.T, apps string) *cli {
	t.Helper()

	c := &cli{
		configPath: filepath.Join(t.TempDir(), config.DefaultConfigFile),
		artifacts:  t.TempDir(),
		dbDir:      t.TempDir(),
	}
	if err := os.WriteFile(c.configPath, []byte(apps), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return c
}

func (c *cli) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func (c *cli) runFlags() []string {
	return []string{
		"-c", c.configPath,
		"-o", c.artifacts,
		"--db-dir", c.dbDir,
		"--static",
		"--no-screenshots",
		"--settle", "0s",
		"--timeout", "5s",
	}
}

func decodeSummary(t *testing.T, out string) report.RunSummary {
	t.Helper()

	var s report.RunSummary
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("report is not JSON: %v\n%s", err, out)
	}
	return s
}

// TestExploreUpdateHistoryRestore runs the commands end to end against a
// local site with the static browser.
func TestExploreUpdateHistoryRestore(t *testing.T) {
	t.Setenv(config.EnvUsername, "")
	t.Setenv(config.EnvPassword, "")

	server := newSite(t)
	c := newCLI(t, "apps:\n  acme:\n    url: "+server.URL+"/\n")

	out, err := c.run(t, append([]string{"explore", "--name", "acme", "--json"}, c.runFlags()...)...)
	if err != nil {
		t.Fatalf("explore failed: %v\n%s", err, out)
	}
	created := decodeSummary(t, out)
	if created.Mode != "create" || created.Counts.Version != "1.0.0" {
		t.Errorf("expected create 1.0.0, got %s %s", created.Mode, created.Counts.Version)
	}
	if created.Counts.Pages != 3 || created.Counts.Forms != 1 {
		t.Errorf("expected 3 pages and 1 form, got %d and %d", created.Counts.Pages, created.Counts.Forms)
	}
	for _, name := range knowledge.ArtifactNames() {
		if _, err := os.Stat(filepath.Join(created.ArtifactDir, name)); err != nil {
			t.Errorf("expected artifact %s: %v", name, err)
		}
	}

	// The URL comes from the stored knowledge.
	out, err = c.run(t, append([]string{"update", "--name", "acme", "--json"}, c.runFlags()...)...)
	if err != nil {
		t.Fatalf("update failed: %v\n%s", err, out)
	}
	updated := decodeSummary(t, out)
	if updated.Mode != "update" || updated.Counts.Version != "1.1.0" {
		t.Errorf("expected update 1.1.0, got %s %s", updated.Mode, updated.Counts.Version)
	}
	if updated.BackupDir == "" {
		t.Fatal("expected a backup of the previous artifacts")
	}

	out, err = c.run(t, "history", "acme", "--compare", "--format", "json",
		"--artifacts", c.artifacts, "--db-dir", c.dbDir)
	if err != nil {
		t.Fatalf("history failed: %v\n%s", err, out)
	}
	var h report.HistoryReport
	if err := json.Unmarshal([]byte(out), &h); err != nil {
		t.Fatalf("history is not JSON: %v\n%s", err, out)
	}
	if h.Current != "1.1.0" || len(h.Runs) != 2 || len(h.Snapshots) != 2 {
		t.Errorf("unexpected history: current %q, %d runs, %d snapshots", h.Current, len(h.Runs), len(h.Snapshots))
	}
	if len(h.Updates) != 1 {
		t.Errorf("expected one update entry, got %d", len(h.Updates))
	}
	if h.Compare == nil || h.Compare.PreviousVersion != "1.0.0" || h.Compare.NewVersion != "1.1.0" {
		t.Errorf("unexpected comparison: %+v", h.Compare)
	}

	out, err = c.run(t, "restore", "acme", "-o", c.artifacts)
	if err != nil {
		t.Fatalf("restore list failed: %v", err)
	}
	backup := filepath.Base(updated.BackupDir)
	if !strings.Contains(out, backup) {
		t.Errorf("expected backup %s listed, got:\n%s", backup, out)
	}

	if _, err := c.run(t, "restore", "acme", backup, "-o", c.artifacts); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	out, err = c.run(t, "history", "acme", "--format", "json", "--artifacts", c.artifacts, "--db-dir", c.dbDir)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &h); err != nil {
		t.Fatalf("history is not JSON: %v", err)
	}
	if h.Current != "1.0.0" {
		t.Errorf("expected restored version 1.0.0, got %q", h.Current)
	}

	if _, err := c.run(t, "restore", "acme", "19990101T000000Z", "-o", c.artifacts); err == nil {
		t.Error("expected error for an unknown backup")
	}
}

// TestExploreErrors tests runs that cannot start.
func TestExploreErrors(t *testing.T) {
	t.Setenv(config.EnvUsername, "")
	t.Setenv(config.EnvPassword, "")

	c := newCLI(t, "apps: {}\n")

	t.Run("missing name", func(t *testing.T) {
		_, err := c.run(t, append([]string{"explore", "--url", "http://localhost/"}, c.runFlags()...)...)
		if !errors.Is(err, config.ErrMissingAppName) {
			t.Errorf("expected ErrMissingAppName, got %v", err)
		}
	})

	t.Run("update without knowledge", func(t *testing.T) {
		_, err := c.run(t, append([]string{"update", "--name", "ghost", "--json"}, c.runFlags()...)...)
		if err == nil || !strings.Contains(err.Error(), "no stored knowledge") {
			t.Errorf("expected missing knowledge error, got %v", err)
		}
	})

	t.Run("all without applications", func(t *testing.T) {
		_, err := c.run(t, append([]string{"explore", "--all"}, c.runFlags()...)...)
		if err == nil {
			t.Error("expected error when no applications are configured")
		}
	})
}

// TestExploreAll runs every configured application through the batch processor.
func TestExploreAll(t *testing.T) {
	t.Setenv(config.EnvUsername, "")
	t.Setenv(config.EnvPassword, "")

	server := newSite(t)
	c := newCLI(t, "defaults:\n  maxPages: 2\napps:\n  alpha:\n    url: "+server.URL+"/\n  beta:\n    url: "+server.URL+"/about\n")

	if out, err := c.run(t, append([]string{"explore", "--all", "-b", "2"}, c.runFlags()...)...); err != nil {
		t.Fatalf("batch failed: %v\n%s", err, out)
	}

	out, err := c.run(t, "history", "--list-apps", "--db-dir", c.dbDir)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	for _, app := range []string{"alpha", "beta"} {
		if !strings.Contains(out, app) {
			t.Errorf("expected %s in application list, got:\n%s", app, out)
		}
	}
}

// TestHistoryWithoutRuns tests the hint printed for an unknown application.
func TestHistoryWithoutRuns(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cmd := NewHistoryCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"ghost", "--artifacts", t.TempDir(), "--db-dir", t.TempDir()})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "No history for ghost") {
		t.Errorf("expected hint, got %q", out.String())
	}
}

// TestHistoryCompareNeedsTwoSnapshots tests --compare on a short history.
func TestHistoryCompareNeedsTwoSnapshots(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"ghost", "--compare", "--artifacts", t.TempDir(), "--db-dir", t.TempDir()})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "two snapshots") {
		t.Errorf("expected snapshot count error, got %v", err)
	}
}

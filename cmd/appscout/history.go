package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/appscout/internal/config"
	"github.com/nao1215/appscout/internal/database"
	"github.com/nao1215/appscout/internal/knowledge"
	"github.com/nao1215/appscout/internal/report"
)

// defaultHistoryLimit is the number of runs and snapshots listed.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [app-name]",
		Short: "Show the stored history of an application",
		Long: `History lists the recorded runs of an application, newest first, and the
update history of its current knowledge.

With --compare, the latest two knowledge snapshots are compared: pages
and forms added or removed, and flows added or removed.

Examples:
  # Show the history of an application
  appscout history acme

  # Compare the latest two snapshots
  appscout history acme --compare

  # Write the history as Markdown
  appscout history acme --format markdown -o history.md

  # List every application with recorded runs
  appscout history --list-apps`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-apps", "L", false,
		"List all applications in the database")
	cmd.Flags().Bool("compare", false,
		"Compare the latest two knowledge snapshots")
	cmd.Flags().StringP("format", "f", string(report.FormatText),
		"Output format: text, markdown or json")
	cmd.Flags().IntP("limit", "l", defaultHistoryLimit,
		"Maximum number of runs listed")
	cmd.Flags().StringP("output", "o", "",
		"Write the history to the specified file path")
	cmd.Flags().String("artifacts", "",
		"Root of the artifact directories (default: XDG data directory)")
	cmd.Flags().String("db-dir", "",
		"Directory of the history database (default: XDG data directory)")

	return cmd
}

// historyOptions holds the parsed flags of the history command.
type historyOptions struct {
	listApps  bool
	compare   bool
	format    report.Format
	limit     int
	output    string
	artifacts string
	dbDir     string
}

func parseHistoryOptions(cmd *cobra.Command) (*historyOptions, error) {
	f := cmd.Flags()
	opts := &historyOptions{}
	var err error

	if opts.listApps, err = f.GetBool("list-apps"); err != nil {
		return nil, err
	}
	if opts.compare, err = f.GetBool("compare"); err != nil {
		return nil, err
	}
	format, err := f.GetString("format")
	if err != nil {
		return nil, err
	}
	if opts.format, err = report.ParseFormat(format); err != nil {
		return nil, err
	}
	if opts.limit, err = f.GetInt("limit"); err != nil {
		return nil, err
	}
	if opts.output, err = f.GetString("output"); err != nil {
		return nil, err
	}
	if opts.artifacts, err = f.GetString("artifacts"); err != nil {
		return nil, err
	}
	if opts.dbDir, err = f.GetString("db-dir"); err != nil {
		return nil, err
	}

	if opts.artifacts == "" {
		opts.artifacts = config.DefaultOutputDir()
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}
	return opts, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryOptions(cmd)
	if err != nil {
		return err
	}

	db, err := database.Open(opts.dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.listApps {
		return listApps(ctx, cmd.OutOrStdout(), db)
	}

	if len(args) == 0 {
		return errors.New("application name is required (or use --list-apps)")
	}

	store := knowledge.NewStore(opts.artifacts)
	h, err := buildHistory(ctx, db, store, args[0], opts)
	if err != nil {
		return err
	}

	if len(h.Runs) == 0 && h.Current == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "No history for %s.\n", h.AppName)
		fmt.Fprintf(cmd.OutOrStdout(), "Run 'appscout explore --name %s --url <url>' first.\n", h.AppName)
		return nil
	}

	return writeHistory(cmd.OutOrStdout(), opts, h)
}

// buildHistory collects the runs, snapshots and update history of an application.
func buildHistory(ctx context.Context, db *database.HistoryDB, store *knowledge.Store, appName string, opts *historyOptions) (*report.HistoryReport, error) {
	runs, err := db.ListRuns(ctx, appName, opts.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	limit := opts.limit
	if opts.compare && limit < 2 {
		limit = 2
	}
	snapshots, err := db.Snapshots(ctx, appName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	h := &report.HistoryReport{
		AppName:   appName,
		Runs:      runs,
		Snapshots: snapshots,
	}

	current, err := store.Load(appName)
	switch {
	case err == nil:
		h.Current = current.Version
		h.Updates = current.UpdateHistory
	case errors.Is(err, knowledge.ErrNoKnowledge):
	default:
		return nil, err
	}

	if opts.compare {
		if len(snapshots) < 2 {
			return nil, fmt.Errorf("at least two snapshots are needed to compare, %s has %d", appName, len(snapshots))
		}
		newer, err := db.Snapshot(ctx, snapshots[0].ID)
		if err != nil {
			return nil, err
		}
		older, err := db.Snapshot(ctx, snapshots[1].ID)
		if err != nil {
			return nil, err
		}
		h.Compare = knowledge.Diff(older, newer)
	}

	return h, nil
}

// writeHistory writes the history to stdout or the output file.
func writeHistory(stdout io.Writer, opts *historyOptions, h *report.HistoryReport) error {
	out := stdout
	if opts.output != "" {
		if dir := filepath.Dir(opts.output); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(opts.output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	_, err := report.NewWriter(opts.format, out).WriteHistory(h)
	return err
}

// listApps prints every application with recorded runs.
func listApps(ctx context.Context, out io.Writer, db *database.HistoryDB) error {
	apps, err := db.ListApps(ctx)
	if err != nil {
		return fmt.Errorf("failed to list applications: %w", err)
	}
	if len(apps) == 0 {
		fmt.Fprintln(out, "No applications recorded yet.")
		return nil
	}

	fmt.Fprintln(out, "Applications:")
	for _, app := range apps {
		runs, err := db.ListRuns(ctx, app, 1)
		if err != nil || len(runs) == 0 {
			fmt.Fprintf(out, "  %s\n", app)
			continue
		}
		last := runs[0]
		fmt.Fprintf(out, "  %-24s %-8s last run %s\n",
			app, last.Version, last.StartedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

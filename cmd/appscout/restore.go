package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/appscout/internal/config"
	"github.com/nao1215/appscout/internal/knowledge"
)

// NewRestoreCmd creates the restore command.
func NewRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore app-name [backup]",
		Short: "List or restore artifact backups",
		Long: `Restore copies a backup taken by 'appscout update' back into the artifact
directory of an application. The current artifacts are backed up first,
so a restore can itself be undone.

Without a backup name, the available backups are listed oldest first.

Examples:
  # List the backups of an application
  appscout restore acme

  # Restore a backup
  appscout restore acme 20260101T120000Z`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runRestoreCmd,
	}

	cmd.Flags().StringP("output", "o", "",
		"Root of the artifact directories (default: XDG data directory)")

	return cmd
}

// runRestoreCmd executes the restore command.
func runRestoreCmd(cmd *cobra.Command, args []string) error {
	root, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if root == "" {
		root = config.DefaultOutputDir()
	}

	store := knowledge.NewStore(root)
	appName := args[0]
	out := cmd.OutOrStdout()

	backups, err := store.Backups(appName)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		if len(backups) == 0 {
			fmt.Fprintf(out, "No backups for %s.\n", appName)
			return nil
		}
		fmt.Fprintf(out, "Backups of %s (oldest first):\n", appName)
		for _, b := range backups {
			fmt.Fprintf(out, "  %s\n", filepath.Base(b))
		}
		return nil
	}

	name := filepath.Base(args[1])
	found := false
	for _, b := range backups {
		if filepath.Base(b) == name {
			found = true
			break
		}
	}
	if !found {
		return errors.New("backup not found: " + name + " (run 'appscout restore " + appName + "' to list backups)")
	}

	res, err := store.Restore(appName, name)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Restored %s from %s\n", appName, name)
	fmt.Fprintf(out, "Artifacts: %s\n", res.Dir)
	if res.BackupDir != "" {
		fmt.Fprintf(out, "Previous artifacts saved to %s\n", res.BackupDir)
	}
	return nil
}

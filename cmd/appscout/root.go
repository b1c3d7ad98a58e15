package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for appscout.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appscout",
		Short: "Explore web applications and keep versioned knowledge of them",
		Long: `appscout explores a web application with a headless browser and records
what it finds: pages grouped by category, forms with generated test data,
user flows and test scenarios.

The knowledge of each application is versioned. 'appscout update' explores
again, merges the result into the stored knowledge, keeps operator edits
and backs up the previous artifacts.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewExploreCmd())
	cmd.AddCommand(NewUpdateCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewRestoreCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

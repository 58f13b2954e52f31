package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for bulkverify.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulkverify",
		Short: "Verify lists of email addresses against a verification service",
		Long: `bulkverify reads a file of email addresses, one per line, and checks them
against an email verification service.

The whole file can be uploaded at once (batch mode), sent one address at a
time in order (sequential mode), or sent per address with domains verified in
parallel (concurrent mode). Results are shown as a table and exported to CSV.
Every run is kept in a local history database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("show-emails", false,
		"Do not mask email addresses in log output")

	// Add subcommands
	cmd.AddCommand(NewVerifyCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

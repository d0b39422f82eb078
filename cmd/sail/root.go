// Purpose: Define the root command and global flags for the sail CLI.
// Exports: none (package-private root command helpers).
// Role: CLI configuration and help plumbing.
package main

import (
	"github.com/spf13/cobra"
)

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "sail",
	Short: "A governance engine for agent-driven software development.",
	Long: `sail keeps Products, Epics, Tasks, and Stories as plain-text artefacts,
tracks their dependency graph, assigns and supervises agent work in
isolated git worktrees, and reconciles what's on disk against what the
registries think is live.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.Dir, "dir", "", "Run in a specific directory")
	rootCmd.PersistentFlags().StringVar(&flags.AgentID, "agent", "", "Agent ID for claims (suggested: model@host)")
	rootCmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress output")
	rootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&flags.JSON, "json", false, "Output JSON")

	rootCmd.Version = version
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		exitErr(err)
	}
}

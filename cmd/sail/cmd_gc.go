// Cobra command wiring for the gc group: haven, agents, worktrees, all.
package main

import (
	"context"

	"github.com/sailctl/sailing/internal/gc"
	"github.com/spf13/cobra"
)

func init() {
	gcCmd := &cobra.Command{Use: "gc", Short: "Reclaim stale agent/worktree/haven directories"}
	gcCmd.PersistentFlags().Bool("apply", false, "Remove eligible entries instead of only printing the plan")
	gcCmd.PersistentFlags().Bool("unsafe", false, "Also remove the unsafe band")
	gcCmd.PersistentFlags().Bool("force", false, "Also remove havens from other projects (requires --unsafe)")
	gcCmd.AddCommand(gcAgentsCmd, gcWorktreesCmd, gcHavensCmd, gcAllCmd)
	rootCmd.AddCommand(gcCmd)
}

func runGC(cmd *cobra.Command, targets []gc.Target) error {
	a, err := newApp(flags)
	if err != nil {
		return err
	}
	apply, _ := cmd.Flags().GetBool("apply")
	unsafe, _ := cmd.Flags().GetBool("unsafe")
	force, _ := cmd.Flags().GetBool("force")

	if !apply {
		plan, err := a.gc.Scan(targets)
		if err != nil {
			return err
		}
		if flags.JSON {
			return printJSON(plan)
		}
		for _, e := range plan.Entries {
			cmd.Printf("%s\t%s\t%s\t%s\n", e.Band, e.Target, e.Name, e.Reason)
		}
		return nil
	}

	result, err := a.gc.Apply(context.Background(), a.repoRoot, targets, gc.ApplyOptions{IncludeUnsafe: unsafe, Force: force})
	if err != nil {
		return err
	}
	if flags.JSON {
		return printJSON(result)
	}
	for _, e := range result.Removed {
		cmd.Printf("removed\t%s\t%s\n", e.Target, e.Name)
	}
	for _, e := range result.Skipped {
		cmd.Printf("skipped\t%s\t%s\n", e.Target, e.Name)
	}
	return nil
}

var gcAgentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Reclaim stale agent record directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGC(cmd, []gc.Target{gc.TargetAgents})
	},
}

var gcWorktreesCmd = &cobra.Command{
	Use:   "worktrees",
	Short: "Reclaim stale git worktrees",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGC(cmd, []gc.Target{gc.TargetWorktrees})
	},
}

var gcHavensCmd = &cobra.Command{
	Use:   "haven",
	Short: "Reclaim stale haven directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGC(cmd, []gc.Target{gc.TargetHavens})
	},
}

var gcAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Reclaim every band across agents, worktrees, and havens",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGC(cmd, []gc.Target{gc.TargetAgents, gc.TargetWorktrees, gc.TargetHavens})
	},
}

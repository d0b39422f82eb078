// Cobra command wiring for the agent group: spawn, reap, kill, status, log,
// list, merge, pr, cleanup, sync.
package main

import (
	"context"
	"strings"
	"time"

	"github.com/sailctl/sailing/internal/agentlife"
	"github.com/sailctl/sailing/internal/artefact"
	"github.com/sailctl/sailing/internal/depgraph"
	"github.com/sailctl/sailing/internal/errs"
	"github.com/sailctl/sailing/internal/memory"
	"github.com/spf13/cobra"
)

func init() {
	agentCmd := &cobra.Command{Use: "agent", Short: "Supervise per-Task agent processes"}
	agentCmd.AddCommand(
		agentSpawnCmd, agentReapCmd, agentKillCmd, agentStatusCmd,
		agentLogCmd, agentListCmd, agentCleanupCmd, agentSyncCmd,
		agentMergeCmd, agentPRCmd,
	)
	rootCmd.AddCommand(agentCmd)
}

// dependencyCheck builds an agentlife.DependencyCheck against the live Task
// graph: it blocks a spawn when the target Task sits on a cycle or is not
// yet ready (unsatisfied, non-terminal blockers).
func dependencyCheck(a *app) agentlife.DependencyCheck {
	return func(taskID string) error {
		g := depgraph.Build(a.store.Index(), artefact.KindTask)
		for _, cyc := range g.DetectCycles() {
			for _, id := range cyc.Nodes {
				if id == taskID {
					return errs.New(errs.ValidationFailure, "cmd.agent.spawn", taskID+" sits on a dependency cycle")
				}
			}
		}
		if _, ok := g.Nodes[taskID]; ok && !g.IsReady(taskID, true) {
			return errs.New(errs.ValidationFailure, "cmd.agent.spawn", taskID+" is blocked by an unfinished dependency")
		}
		return nil
	}
}

var agentSpawnCmd = &cobra.Command{
	Use:   "spawn <task-id> [-- command args...]",
	Short: "Spawn a Task's agent process, optionally in an isolated worktree",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		worktree, _ := cmd.Flags().GetBool("worktree")
		base, _ := cmd.Flags().GetString("base")
		resume, _ := cmd.Flags().GetBool("resume")
		budget, _ := cmd.Flags().GetFloat64("budget")
		skipPreflight, _ := cmd.Flags().GetBool("skip-preflight")
		touchesRaw, _ := cmd.Flags().GetString("touches")
		var touches []string
		if touchesRaw != "" {
			touches = strings.Split(touchesRaw, ",")
		}

		if !skipPreflight {
			if err := a.agents.Preflight(context.Background(), args[0], touches, dependencyCheck(a)); err != nil {
				return err
			}
		}

		var command []string
		if len(args) > 1 {
			command = args[1:]
		}
		rec, err := a.agents.Spawn(context.Background(), args[0], agentlife.SpawnOptions{
			Command: command, BaseBranch: base, UseWorktree: worktree,
			Resume: resume, BudgetUSD: budget,
		})
		if err != nil {
			return err
		}
		if flags.JSON {
			return printJSON(rec)
		}
		cmd.Println(rec.TaskID, rec.Status)
		return nil
	},
}

func init() {
	agentSpawnCmd.Flags().Bool("worktree", false, "Create an isolated git worktree for this agent")
	agentSpawnCmd.Flags().String("base", "main", "Base branch the worktree forks from")
	agentSpawnCmd.Flags().Bool("resume", false, "Attach to an existing worktree/branch instead of creating one")
	agentSpawnCmd.Flags().Float64("budget", 0, "Budget ceiling in USD, recorded on the agent record (not enforced)")
	agentSpawnCmd.Flags().Bool("skip-preflight", false, "Skip the pre-spawn clean/ready/conflict checks")
	agentSpawnCmd.Flags().String("touches", "", "Comma-separated files this Task is expected to modify, for the conflict-matrix check")
}

var agentReapCmd = &cobra.Command{
	Use:   "reap <task-id>",
	Short: "Wait for the agent process to exit and record its outcome",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")
		rec, err := a.agents.Reap(context.Background(), args[0], timeout)
		if err != nil {
			return err
		}
		if flags.JSON {
			return printJSON(rec)
		}
		cmd.Println(rec.TaskID, rec.Status)
		return nil
	},
}

func init() {
	agentReapCmd.Flags().Duration("timeout", 0, "Maximum time to wait (0 = unbounded)")
}

var agentKillCmd = &cobra.Command{
	Use:   "kill <task-id>",
	Short: "Terminate an agent process (SIGTERM, escalating to SIGKILL)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		grace, _ := cmd.Flags().GetDuration("grace")
		rec, err := a.agents.Kill(args[0], grace)
		if err != nil {
			return err
		}
		if flags.JSON {
			return printJSON(rec)
		}
		cmd.Println(rec.TaskID, rec.Status)
		return nil
	},
}

func init() {
	agentKillCmd.Flags().Duration("grace", 10*time.Second, "Grace period before escalating to SIGKILL")
}

var agentStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show one agent's current record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		rec, ok, err := a.agents.Get(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return notFound("agent", args[0])
		}
		if flags.JSON {
			return printJSON(rec)
		}
		cmd.Println(rec.TaskID, rec.Status)
		return nil
	},
}

var agentLogCmd = &cobra.Command{
	Use:   "log <task-id>",
	Short: "Show a Task's append-only agent log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		lines, err := a.memory.ReadLog(args[0])
		if err != nil {
			return err
		}
		if flags.JSON {
			return printJSON(lines)
		}
		for _, line := range lines {
			cmd.Println(line)
		}
		return nil
	},
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every non-terminal agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		active, err := a.agents.ListActive()
		if err != nil {
			return err
		}
		if flags.JSON {
			return printJSON(active)
		}
		for _, rec := range active {
			cmd.Println(rec.TaskID, rec.Status)
		}
		return nil
	},
}

var agentMergeCmd = &cobra.Command{
	Use:   "merge <task-id>",
	Short: "Merge a completed agent's branch back into its base branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		base, _ := cmd.Flags().GetString("base")
		rec, err := a.agents.Merge(context.Background(), args[0], base)
		if err != nil {
			return err
		}
		if flags.JSON {
			return printJSON(rec)
		}
		cmd.Println(rec.TaskID, rec.Status)
		return nil
	},
}

func init() {
	agentMergeCmd.Flags().String("base", "main", "Branch to merge into")
}

var agentPRCmd = &cobra.Command{
	Use:   "pr <task-id>",
	Short: "Open a pull request for a reaped agent's branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		rec, err := a.agents.CreatePR(context.Background(), args[0])
		if err != nil {
			return err
		}
		if flags.JSON {
			return printJSON(rec)
		}
		cmd.Println(rec.TaskID, rec.PRURL)
		return nil
	},
}

var agentCleanupCmd = &cobra.Command{
	Use:   "cleanup <task-id>",
	Short: "Remove a finished agent's worktree and branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		rec, err := a.agents.Cleanup(context.Background(), args[0], force)
		if err != nil {
			return err
		}
		if flags.JSON {
			return printJSON(rec)
		}
		cmd.Println(rec.TaskID, rec.Status)
		return nil
	},
}

func init() {
	agentCleanupCmd.Flags().Bool("force", false, "Force-remove even if the worktree is dirty")
}

var agentSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge every pending Task log into its Epic's memory file",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		entries := a.store.Index().Entries(artefact.KindTask)
		var scope []memory.TaskRef
		for id, entry := range entries {
			epicID := entry.CachedFrontMatter.Parent
			if i := strings.LastIndex(epicID, "/"); i != -1 {
				epicID = strings.TrimSpace(epicID[i+1:])
			}
			scope = append(scope, memory.TaskRef{TaskID: id, EpicID: epicID})
		}
		noCreate, _ := cmd.Flags().GetBool("no-create")
		report, err := a.memory.Sync(scope, memory.SyncOptions{NoCreate: noCreate})
		if err != nil {
			return err
		}
		if flags.JSON {
			return printJSON(report)
		}
		cmd.Printf("merged %d task log(s); %d epic(s) still pending\n", len(report.Merged), len(report.PendingEpics))
		return nil
	},
}

func init() {
	agentSyncCmd.Flags().Bool("no-create", false, "Skip Tasks whose Epic memory file does not already exist")
}

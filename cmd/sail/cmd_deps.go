// Cobra command wiring for the deps group: tree, validate, ready, critical,
// impact, add.
package main

import (
	"sort"

	"github.com/sailctl/sailing/internal/artefact"
	"github.com/sailctl/sailing/internal/depgraph"
	"github.com/spf13/cobra"
)

func init() {
	depsCmd := &cobra.Command{Use: "deps", Short: "Inspect and mutate the dependency graph"}
	depsCmd.AddCommand(depsTreeCmd, depsValidateCmd, depsReadyCmd, depsCriticalCmd, depsImpactCmd, depsAddCmd)
	rootCmd.AddCommand(depsCmd)
}

var depsTreeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the Task dependency tree as an indented list",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		g := depgraph.Build(a.store.Index(), artefact.KindTask)
		if flags.JSON {
			return printJSON(g.Nodes)
		}
		ids := make([]string, 0, len(g.Nodes))
		for id := range g.Nodes {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			node := g.Nodes[id]
			cmd.Printf("%s (%s)\n", id, node.Status)
			for _, b := range node.BlockedBy {
				cmd.Printf("  <- %s\n", b)
			}
		}
		return nil
	},
}

var depsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the graph validator",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		fix, _ := cmd.Flags().GetBool("fix")
		report, err := depgraph.Validate(a.store, fix)
		if err != nil {
			return err
		}
		if flags.JSON {
			return printJSON(report)
		}
		for _, f := range report.Findings {
			cmd.Printf("%s\t%s\t%s\n", f.Rule, f.ArtefactID, f.Message)
		}
		if fix {
			cmd.Printf("fixed %d of %d findings\n", len(report.Fixed), len(report.Findings))
		}
		return nil
	},
}

func init() {
	depsValidateCmd.Flags().Bool("fix", false, "Apply auto-fixable repairs")
}

var depsReadyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List Tasks with every blocker resolved",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		includeStarted, _ := cmd.Flags().GetBool("include-started")
		g := depgraph.Build(a.store.Index(), artefact.KindTask)
		ready := g.Ready(includeStarted)
		if flags.JSON {
			return printJSON(ready)
		}
		for _, id := range ready {
			cmd.Println(id)
		}
		return nil
	},
}

func init() {
	depsReadyCmd.Flags().Bool("include-started", false, "Include Tasks already in progress")
}

var depsCriticalCmd = &cobra.Command{
	Use:   "critical",
	Short: "Print the critical path under the configured effort map",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		g := depgraph.Build(a.store.Index(), artefact.KindTask)
		schedule := g.TheoreticalSchedule(a.cfg.EffortHours)
		if flags.JSON {
			return printJSON(schedule)
		}
		cmd.Printf("critical path (%.1fh): %v\n", schedule.CriticalHours, schedule.CriticalPath)
		return nil
	},
}

var depsImpactCmd = &cobra.Command{
	Use:   "impact",
	Short: "Rank Tasks by downstream impact (dependents unblocked if completed)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		g := depgraph.Build(a.store.Index(), artefact.KindTask)
		scores := g.ImpactScores()
		if flags.JSON {
			return printJSON(scores)
		}
		ids := make([]string, 0, len(scores))
		for id := range scores {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return scores[ids[i]] > scores[ids[j]] })
		for _, id := range ids {
			cmd.Printf("%s\t%d\n", id, scores[id])
		}
		return nil
	},
}

var depsAddCmd = &cobra.Command{
	Use:   "add <task-id> <blocker-id>",
	Short: "Add a dependency: task-id is blocked by blocker-id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		rec, ok := a.store.Get(artefact.KindTask, args[0])
		if !ok {
			return notFound("task", args[0])
		}
		blockers := append(append([]string{}, rec.FrontMatter.BlockedBy...), args[1])
		_, err = a.store.UpdateFrontmatter(artefact.KindTask, args[0], map[string]interface{}{"blocked_by": blockers})
		return err
	},
}

// Cobra command wiring for the assign group: claim, release, show, list,
// complete, delete.
package main

import (
	"os"
	"strings"

	"github.com/sailctl/sailing/internal/assign"
	"github.com/sailctl/sailing/internal/memory"
	"github.com/spf13/cobra"
)

func init() {
	assignCmd := &cobra.Command{Use: "assign", Short: "Manage Task claims"}
	assignCmd.AddCommand(assignClaimCmd, assignReleaseCmd, assignShowCmd, assignListCmd, assignCompleteCmd, assignDeleteCmd)
	rootCmd.AddCommand(assignCmd)
}

var assignClaimCmd = &cobra.Command{
	Use:   "claim <task-id>",
	Short: "Claim a Task, compiling its agent prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		contract, _ := cmd.Flags().GetString("contract")
		result, outcome, err := a.assign.Claim(args[0], assign.ClaimOptions{Force: force, AgentPrompt: contract})
		if err != nil {
			if outcome != nil {
				for _, w := range outcome.Warnings() {
					cmd.PrintErrln("warning:", w.Message)
				}
			}
			return err
		}
		if flags.JSON {
			return printJSON(result)
		}
		cmd.Println(result.CompiledPrompt)
		cmd.Println(result.Reminder)
		return nil
	},
}

func init() {
	assignClaimCmd.Flags().Bool("force", false, "Override soft blocks (e.g. pending epic memory)")
	assignClaimCmd.Flags().String("contract", "", "Static agent contract prepended to the compiled prompt")
}

var assignReleaseCmd = &cobra.Command{
	Use:   "release <task-id>",
	Short: "Release a claimed Task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		success, _ := cmd.Flags().GetBool("success")
		lines, err := a.memory.ReadLog(args[0])
		if err != nil {
			return err
		}
		hasTip := hasTipEntry(lines)
		warning, err := a.assign.Release(args[0], assign.ReleaseOptions{Success: success, PID: os.Getpid()}, hasTip)
		if err != nil {
			return err
		}
		if warning != "" {
			cmd.PrintErrln("warning:", warning)
		}
		return nil
	},
}

func init() {
	assignReleaseCmd.Flags().Bool("success", true, "Whether the Task completed successfully")
}

var assignShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show one assignment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		assignment, ok, err := a.assign.Show(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return notFound("assignment", args[0])
		}
		if flags.JSON {
			return printJSON(assignment)
		}
		cmd.Printf("%s\t%s\n", assignment.TaskID, assignment.Status)
		return nil
	},
}

var assignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every assignment for the current project",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		list, err := a.assign.List()
		if err != nil {
			return err
		}
		if flags.JSON {
			return printJSON(list)
		}
		for _, assignment := range list {
			cmd.Printf("%s\t%s\n", assignment.TaskID, assignment.Status)
		}
		return nil
	},
}

var assignCompleteCmd = &cobra.Command{
	Use:   "complete <task-id>",
	Short: "Alias for release --success",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return assignReleaseCmd.RunE(cmd, args)
	},
}

func init() {
	assignCompleteCmd.Flags().Bool("success", true, "Whether the Task completed successfully")
}

var assignDeleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Remove an assignment and its sentinel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		return a.assign.Delete(args[0])
	},
}

// hasTipEntry reports whether any log line carries the TIP level, matching
// release()'s soft requirement that a completed Task leave at least one
// tip-level note behind for Epic memory consolidation.
func hasTipEntry(lines []string) bool {
	marker := "[" + string(memory.LevelTip) + "]"
	for _, line := range lines {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

// Cobra command wiring for the memory group: sync, show, write.
package main

import (
	"strings"
	"time"

	"github.com/sailctl/sailing/internal/artefact"
	"github.com/sailctl/sailing/internal/memory"
	"github.com/spf13/cobra"
)

func init() {
	memCmd := &cobra.Command{Use: "memory", Short: "Inspect and consolidate Epic memory"}
	memCmd.AddCommand(memorySyncCmd, memoryShowCmd, memoryWriteCmd)
	rootCmd.AddCommand(memCmd)
}

var memorySyncCmd = &cobra.Command{
	Use:   "sync [epic-id]",
	Short: "Merge pending Task logs into Epic memory, scoped to one Epic if given",
	Args:  cobra.MaximumNArgs(1),
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
			if len(args) == 1 && epicID != args[0] {
				continue
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
	memorySyncCmd.Flags().Bool("no-create", false, "Skip Tasks whose Epic memory file does not already exist")
}

var memoryShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a Task's pending log lines",
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

var memoryWriteCmd = &cobra.Command{
	Use:   "write <task-id> <level> <message>",
	Short: "Append one timestamped, level-tagged line to a Task's log",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		file, _ := cmd.Flags().GetString("file")
		command, _ := cmd.Flags().GetString("cmd")
		message := strings.Join(args[2:], " ")
		entry := memory.LogEntry{
			Timestamp: time.Now(),
			Level:     memory.Level(args[1]),
			Message:   message,
			File:      file,
			Command:   command,
		}
		return a.memory.AppendLog(args[0], entry)
	},
}

func init() {
	memoryWriteCmd.Flags().String("file", "", "Related file path")
	memoryWriteCmd.Flags().String("cmd", "", "Related command")
}

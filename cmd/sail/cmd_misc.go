// Cobra command wiring for the ambient group: config, paths, state,
// versions, status, init, ensure.
package main

import (
	"os"
	"path/filepath"

	"github.com/sailctl/sailing/internal/depgraph"
	"github.com/sailctl/sailing/internal/errs"
	"github.com/sailctl/sailing/internal/paths"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func collectionOf(name string) paths.Collection {
	return paths.Collection(name)
}

func init() {
	rootCmd.AddCommand(initCmd, configCmd, pathsCmd, stateCmd, versionsCmd, statusCmd, ensureCmd)
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Scaffold a .sailing/ directory in the current (or given) directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		root, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		sailingDir := filepath.Join(root, ".sailing")
		if _, err := os.Stat(sailingDir); err == nil {
			return errs.New(errs.AlreadyExists, "cmd.sail.init", sailingDir+" already exists")
		}
		for _, sub := range []string{"state", "memory"} {
			if err := os.MkdirAll(filepath.Join(sailingDir, sub), 0755); err != nil {
				return err
			}
		}
		if err := os.MkdirAll(filepath.Join(root, "artefacts"), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(sailingDir, "config.yaml"), []byte(defaultConfigYAML), 0644); err != nil {
			return err
		}
		cmd.Println("initialized", sailingDir)
		return nil
	},
}

const defaultConfigYAML = `# sailing project configuration
default_effort_hours: 4
log_level: info
watchdog:
  max_budget_usd: 5.0
  watchdog_timeout: 30m
  kill_grace_period: 10s
gc:
  interval: 1h
  auto_fix: false
  allow_unsafe: false
notify:
  debounce: 200ms
pr:
  provider: ""
`

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		if flags.JSON {
			return printJSON(a.cfg)
		}
		out, err := yaml.Marshal(a.cfg)
		if err != nil {
			return err
		}
		cmd.Print(string(out))
		return nil
	},
}

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show every resolved collection path",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		collections := []string{"artefacts", "memory", "runs", "assignments", "worktrees", "agents", "templates"}
		out := map[string]string{}
		for _, c := range collections {
			p, err := a.resolver.Collection(collectionOf(c))
			if err != nil {
				continue
			}
			out[c] = p
		}
		if flags.JSON {
			return printJSON(out)
		}
		for _, c := range collections {
			if p, ok := out[c]; ok {
				cmd.Printf("%s\t%s\n", c, p)
			}
		}
		return nil
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show project root, project hash, and haven directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		haven, _ := a.resolver.Collection(collectionOf("agents"))
		out := map[string]string{
			"project_root": a.resolver.ProjectRoot(),
			"project_hash": a.resolver.ProjectHash(),
			"haven":        filepath.Dir(haven),
		}
		if flags.JSON {
			return printJSON(out)
		}
		for k, v := range out {
			cmd.Printf("%s\t%s\n", k, v)
		}
		return nil
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Show sail's build version",
	RunE: func(cmd *cobra.Command, args []string) error {
		printVersion()
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize ready work, active agents, and pending memory",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		active, err := a.agents.ListActive()
		if err != nil {
			return err
		}
		assignments, err := a.assign.List()
		if err != nil {
			return err
		}
		out := map[string]interface{}{
			"active_agents": len(active),
			"assignments":   len(assignments),
		}
		if flags.JSON {
			return printJSON(out)
		}
		cmd.Printf("active agents: %d\n", len(active))
		cmd.Printf("assignments:   %d\n", len(assignments))
		return nil
	},
}

var ensureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Alias for deps validate --fix",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		report, err := depgraph.Validate(a.store, true)
		if err != nil {
			return err
		}
		if flags.JSON {
			return printJSON(report)
		}
		for _, f := range report.Findings {
			cmd.Printf("%s\t%s\t%s\n", f.Rule, f.ArtefactID, f.Message)
		}
		cmd.Printf("fixed %d of %d findings\n", len(report.Fixed), len(report.Findings))
		return nil
	},
}

// Purpose: Wire every core component against the resolved project root for
// one CLI invocation.
// Exports: none (package-private bootstrap).
// Role: Composition root for cmd/sail; RunE bodies call into an *app and
// nothing else.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sailctl/sailing/internal/agentlife"
	"github.com/sailctl/sailing/internal/artefact"
	"github.com/sailctl/sailing/internal/assign"
	"github.com/sailctl/sailing/internal/config"
	"github.com/sailctl/sailing/internal/gc"
	"github.com/sailctl/sailing/internal/logging"
	"github.com/sailctl/sailing/internal/memory"
	"github.com/sailctl/sailing/internal/paths"
	"github.com/sailctl/sailing/internal/state"
)

// globalFlags mirrors the persistent CLI flags every command group reads.
type globalFlags struct {
	Dir     string
	AgentID string
	Quiet   bool
	Verbose bool
	JSON    bool
}

// app is the fully-wired set of components one command invocation needs.
type app struct {
	resolver *paths.Resolver
	cfg      *config.Config
	store    *artefact.Store
	memory   *memory.Pipeline
	assign   *assign.Registry
	agents   *agentlife.Orchestrator
	gc       *gc.Collector
	repoRoot string
}

func newApp(flags globalFlags) (*app, error) {
	startDir := flags.Dir
	if startDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		startDir = wd
	}
	root, err := paths.FindProjectRoot(startDir)
	if err != nil {
		return nil, err
	}

	overrides, err := paths.LoadOverrides(filepath.Join(root, ".sailing", "paths.yaml"))
	if err != nil {
		return nil, err
	}
	resolver, err := paths.New(root, overrides)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(filepath.Join(root, ".sailing", "config.yaml"))
	if err != nil {
		return nil, err
	}

	artefactsDir, err := resolver.Collection(paths.CollArtefacts)
	if err != nil {
		return nil, err
	}
	memoryDir, err := resolver.Collection(paths.CollMemory)
	if err != nil {
		return nil, err
	}
	assignmentsDir, err := resolver.Collection(paths.CollAssignments)
	if err != nil {
		return nil, err
	}
	runsDir, err := resolver.Collection(paths.CollRuns)
	if err != nil {
		return nil, err
	}
	worktreesDir, err := resolver.Collection(paths.CollWorktrees)
	if err != nil {
		return nil, err
	}
	agentsDir, err := resolver.Collection(paths.CollAgents)
	if err != nil {
		return nil, err
	}

	var logger = logging.Discard()
	if flags.Verbose {
		logger = logging.New(logging.Options{Level: parseLevel(cfg.LogLevel), JSON: flags.JSON})
	}

	stateStore := state.New(filepath.Join(root, ".sailing", "state"))
	store := artefact.NewStore(artefactsDir, stateStore, logger)
	mem := memory.New(memoryDir)
	assignReg := assign.New(assignmentsDir, runsDir, resolver.ProjectHash(), store, mem)
	orchestrator := agentlife.New(filepath.Join(root, ".sailing", "state"), worktreesDir, root)
	if cfg.PR.Provider == "gh" {
		orchestrator.SetPRProvider(agentlife.NewGHProvider())
	}
	havensRoot := filepath.Dir(filepath.Dir(agentsDir)) // <home>/.sailing/havens
	collector := gc.New(agentsDir, worktreesDir, havensRoot, resolver.ProjectHash(), orchestrator, store)

	return &app{
		resolver: resolver,
		cfg:      cfg,
		store:    store,
		memory:   mem,
		assign:   assignReg,
		agents:   orchestrator,
		gc:       collector,
		repoRoot: root,
	}, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

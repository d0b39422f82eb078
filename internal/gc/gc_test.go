package gc_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sailctl/sailing/internal/agentlife"
	"github.com/sailctl/sailing/internal/artefact"
	"github.com/sailctl/sailing/internal/gc"
	"github.com/sailctl/sailing/internal/state"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*gc.Collector, *agentlife.Orchestrator, *artefact.Store, string) {
	t.Helper()
	root := t.TempDir()
	agentsDir := filepath.Join(root, "agents")
	worktreesDir := filepath.Join(root, "worktrees")
	havensRoot := filepath.Join(root, "havens")
	require.NoError(t, os.MkdirAll(agentsDir, 0755))
	require.NoError(t, os.MkdirAll(worktreesDir, 0755))
	require.NoError(t, os.MkdirAll(havensRoot, 0755))

	store := artefact.NewStore(filepath.Join(root, "artefacts"), state.New(root), nil)
	orch := agentlife.New(filepath.Join(root, "state"), worktreesDir, root)

	c := gc.New(agentsDir, worktreesDir, havensRoot, "hash-current", orch, store)
	return c, orch, store, root
}

func TestScanClassifiesOrphanWithNoTaskAsSafe(t *testing.T) {
	c, _, _, root := setup(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "agents", "T999"), 0755))

	plan, err := c.Scan([]gc.Target{gc.TargetAgents})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 1)
	require.Equal(t, gc.BandSafe, plan.Entries[0].Band)
}

func TestScanClassifiesOrphanWithExistingTaskAsUnsafe(t *testing.T) {
	c, _, store, root := setup(t)
	prd, err := store.CreateProduct("Auth", artefact.CreateOptions{})
	require.NoError(t, err)
	epic, err := store.CreateEpic(prd.FrontMatter.ID, "Login", artefact.CreateOptions{})
	require.NoError(t, err)
	task, err := store.CreateTask(epic.FrontMatter.ID, "Build form", artefact.CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "agents", task.FrontMatter.ID), 0755))

	plan, err := c.Scan([]gc.Target{gc.TargetAgents})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 1)
	require.Equal(t, gc.BandUnsafe, plan.Entries[0].Band)
}

func TestScanClassifiesNonTerminalRecordDirectoryAsActive(t *testing.T) {
	c, orch, _, root := setup(t)
	_, err := orch.Spawn(context.Background(), "T001", agentlife.SpawnOptions{TaskNum: 1})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "agents", "T001"), 0755))

	plan, err := c.Scan([]gc.Target{gc.TargetAgents})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 1)
	require.Equal(t, gc.BandActive, plan.Entries[0].Band)
}

func TestScanClassifiesTerminalRecordDirectoryAsSafe(t *testing.T) {
	c, orch, _, root := setup(t)
	_, err := orch.Spawn(context.Background(), "T002", agentlife.SpawnOptions{TaskNum: 1})
	require.NoError(t, err)
	_, err = orch.Kill("T002", 0)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "agents", "T002"), 0755))

	plan, err := c.Scan([]gc.Target{gc.TargetAgents})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 1)
	require.Equal(t, gc.BandSafe, plan.Entries[0].Band)
}

func TestScanBandsForeignHavenUnsafe(t *testing.T) {
	c, _, _, root := setup(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "havens", "hash-current"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "havens", "hash-other"), 0755))

	plan, err := c.Scan([]gc.Target{gc.TargetHavens})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 2)
	for _, e := range plan.Entries {
		if e.Name == "hash-current" {
			require.Equal(t, gc.BandActive, e.Band)
		} else {
			require.Equal(t, gc.BandUnsafe, e.Band)
		}
	}
}

func TestApplyRemovesSafeButNotUnsafeByDefault(t *testing.T) {
	c, orch, store, root := setup(t)
	_, err := orch.Spawn(context.Background(), "T003", agentlife.SpawnOptions{TaskNum: 1})
	require.NoError(t, err)
	_, err = orch.Kill("T003", 0)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "agents", "T003"), 0755))

	prd, err := store.CreateProduct("Auth", artefact.CreateOptions{})
	require.NoError(t, err)
	epic, err := store.CreateEpic(prd.FrontMatter.ID, "Login", artefact.CreateOptions{})
	require.NoError(t, err)
	task, err := store.CreateTask(epic.FrontMatter.ID, "Build form", artefact.CreateOptions{})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "agents", task.FrontMatter.ID), 0755))

	result, err := c.Apply(context.Background(), root, []gc.Target{gc.TargetAgents}, gc.ApplyOptions{})
	require.NoError(t, err)
	require.Len(t, result.Removed, 1)
	require.Equal(t, "T003", result.Removed[0].Name)
	require.NoDirExists(t, filepath.Join(root, "agents", "T003"))
	require.DirExists(t, filepath.Join(root, "agents", task.FrontMatter.ID))
}

func TestApplyWithIncludeUnsafeStillRequiresForceForHavens(t *testing.T) {
	c, _, _, root := setup(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "havens", "hash-other"), 0755))

	result, err := c.Apply(context.Background(), root, []gc.Target{gc.TargetHavens}, gc.ApplyOptions{IncludeUnsafe: true})
	require.NoError(t, err)
	require.Empty(t, result.Removed)
	require.DirExists(t, filepath.Join(root, "havens", "hash-other"))

	result, err = c.Apply(context.Background(), root, []gc.Target{gc.TargetHavens}, gc.ApplyOptions{IncludeUnsafe: true, Force: true})
	require.NoError(t, err)
	require.Len(t, result.Removed, 1)
	require.NoDirExists(t, filepath.Join(root, "havens", "hash-other"))
}

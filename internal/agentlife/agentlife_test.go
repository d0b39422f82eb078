package agentlife_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sailctl/sailing/internal/agentlife"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	run("init", "-b", "main")
	run("config", "user.email", "agent@example.com")
	run("config", "user.name", "agent")
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("hello\n"), 0644))
	run("add", ".")
	run("commit", "-m", "init")
	return root
}

func TestSpawnWithoutWorktreeTransitionsToRunning(t *testing.T) {
	stateDir := t.TempDir()
	o := agentlife.New(stateDir, filepath.Join(stateDir, "worktrees"), t.TempDir())

	rec, err := o.Spawn(context.Background(), "T001", agentlife.SpawnOptions{TaskNum: 1})
	require.NoError(t, err)
	require.Equal(t, agentlife.StatusRunning, rec.Status)
	require.Nil(t, rec.Worktree)
}

func TestSpawnCreatesWorktree(t *testing.T) {
	repo := initRepo(t)
	stateDir := t.TempDir()
	o := agentlife.New(stateDir, filepath.Join(stateDir, "worktrees"), repo)

	rec, err := o.Spawn(context.Background(), "T001", agentlife.SpawnOptions{TaskNum: 1, UseWorktree: true, BaseBranch: "main"})
	require.NoError(t, err)
	require.NotNil(t, rec.Worktree)
	require.DirExists(t, rec.Worktree.Path)
}

func TestMergeAndCleanupRoundTrip(t *testing.T) {
	repo := initRepo(t)
	stateDir := t.TempDir()
	o := agentlife.New(stateDir, filepath.Join(stateDir, "worktrees"), repo)

	rec, err := o.Spawn(context.Background(), "T001", agentlife.SpawnOptions{TaskNum: 1, UseWorktree: true, BaseBranch: "main"})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(rec.Worktree.Path, "change.txt"), []byte("work\n"), 0644))
	commitCmd := exec.Command("sh", "-c", "git add . && git commit -m work")
	commitCmd.Dir = rec.Worktree.Path
	out, err := commitCmd.CombinedOutput()
	require.NoErrorf(t, err, "commit: %s", out)

	rec, err = o.Reap(context.Background(), "T001", 0)
	require.NoError(t, err)
	require.Equal(t, agentlife.StatusReaped, rec.Status)

	merged, err := o.Merge(context.Background(), "T001", "main")
	require.NoError(t, err)
	require.Equal(t, agentlife.StatusMerged, merged.Status)

	collected, err := o.Cleanup(context.Background(), "T001", false)
	require.NoError(t, err)
	require.Equal(t, agentlife.StatusCollected, collected.Status)
	require.NoDirExists(t, rec.Worktree.Path)
}

func TestInvalidTransitionIsRejected(t *testing.T) {
	stateDir := t.TempDir()
	o := agentlife.New(stateDir, filepath.Join(stateDir, "worktrees"), t.TempDir())
	_, err := o.Spawn(context.Background(), "T001", agentlife.SpawnOptions{TaskNum: 1})
	require.NoError(t, err)

	// running → collected is not in the transition table.
	_, err = o.Cleanup(context.Background(), "T001", false)
	require.Error(t, err)
}

func TestListActiveExcludesTerminalRecords(t *testing.T) {
	stateDir := t.TempDir()
	o := agentlife.New(stateDir, filepath.Join(stateDir, "worktrees"), t.TempDir())
	_, err := o.Spawn(context.Background(), "T001", agentlife.SpawnOptions{TaskNum: 1})
	require.NoError(t, err)

	active, err := o.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)

	_, err = o.Kill("T001", 0)
	require.NoError(t, err)

	active, err = o.ListActive()
	require.NoError(t, err)
	require.Empty(t, active)
}

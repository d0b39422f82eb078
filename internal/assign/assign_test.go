package assign_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sailctl/sailing/internal/artefact"
	"github.com/sailctl/sailing/internal/assign"
	"github.com/sailctl/sailing/internal/memory"
	"github.com/sailctl/sailing/internal/state"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*artefact.Store, *memory.Pipeline, *assign.Registry, *artefact.Record, *artefact.Record) {
	t.Helper()
	root := t.TempDir()
	s := artefact.NewStore(root, state.New(root), nil)
	prd, err := s.CreateProduct("Auth", artefact.CreateOptions{})
	require.NoError(t, err)
	epic, err := s.CreateEpic(prd.FrontMatter.ID, "Login", artefact.CreateOptions{})
	require.NoError(t, err)
	task, err := s.CreateTask(epic.FrontMatter.ID, "Build form", artefact.CreateOptions{})
	require.NoError(t, err)

	mem := memory.New(filepath.Join(root, "memory"))
	reg := assign.New(filepath.Join(root, "assignments"), filepath.Join(root, "runs"), "projecthash1", s, mem)
	return s, mem, reg, epic, task
}

func TestClaimSucceedsWhenMemoryNotPending(t *testing.T) {
	_, _, reg, epic, task := setup(t)
	result, outcome, err := reg.Claim(task.FrontMatter.ID, assign.ClaimOptions{AgentPrompt: "contract"})
	require.NoError(t, err)
	require.False(t, outcome.Blocked)
	require.Equal(t, task.FrontMatter.ID, result.TaskID)
	require.Contains(t, result.CompiledPrompt, "contract")
	require.Contains(t, result.CompiledPrompt, "Build form")
	require.Contains(t, result.CompiledPrompt, "# Task: "+task.FrontMatter.ID)
	require.Contains(t, result.CompiledPrompt, "# Epic: "+epic.FrontMatter.ID)

	a, ok, err := reg.Show(task.FrontMatter.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, assign.StatusClaimed, a.Status)
}

func TestClaimFailsWhenEpicMemoryPending(t *testing.T) {
	_, mem, reg, epic, task := setup(t)
	require.NoError(t, mem.AppendLog(task.FrontMatter.ID, memory.LogEntry{
		Timestamp: time.Now(),
		Level:     memory.LevelInfo,
		Message:   "in progress",
	}))

	_, outcome, err := reg.Claim(task.FrontMatter.ID, assign.ClaimOptions{})
	require.Error(t, err)
	require.NotNil(t, outcome)
	require.True(t, outcome.Blocked)
	require.Len(t, outcome.SoftBlocks(), 1)

	_, err = mem.Sync([]memory.TaskRef{{TaskID: task.FrontMatter.ID, EpicID: epic.FrontMatter.ID}}, memory.SyncOptions{})
	require.NoError(t, err)

	_, outcome, err = reg.Claim(task.FrontMatter.ID, assign.ClaimOptions{})
	require.NoError(t, err)
	require.False(t, outcome.Blocked)
}

func TestClaimForceOverridesPendingMemory(t *testing.T) {
	_, mem, reg, _, task := setup(t)
	require.NoError(t, mem.AppendLog(task.FrontMatter.ID, memory.LogEntry{
		Timestamp: time.Now(),
		Level:     memory.LevelInfo,
		Message:   "still working",
	}))

	_, outcome, err := reg.Claim(task.FrontMatter.ID, assign.ClaimOptions{Force: true})
	require.NoError(t, err)
	require.False(t, outcome.Blocked)
}

func TestClaimTwiceFailsAlreadyClaimed(t *testing.T) {
	_, _, reg, _, task := setup(t)
	_, _, err := reg.Claim(task.FrontMatter.ID, assign.ClaimOptions{})
	require.NoError(t, err)

	_, outcome, err := reg.Claim(task.FrontMatter.ID, assign.ClaimOptions{Force: true})
	require.Error(t, err)
	require.True(t, outcome.Blocked)
	require.Len(t, outcome.HardBlocks(), 1)
}

func TestReleaseCompletesAssignmentAndRemovesSentinel(t *testing.T) {
	root := t.TempDir()
	s := artefact.NewStore(root, state.New(root), nil)
	prd, _ := s.CreateProduct("Auth", artefact.CreateOptions{})
	epic, _ := s.CreateEpic(prd.FrontMatter.ID, "Login", artefact.CreateOptions{})
	task, _ := s.CreateTask(epic.FrontMatter.ID, "Build form", artefact.CreateOptions{})
	mem := memory.New(filepath.Join(root, "memory"))
	reg := assign.New(filepath.Join(root, "assignments"), filepath.Join(root, "runs"), "hash", s, mem)

	_, _, err := reg.Claim(task.FrontMatter.ID, assign.ClaimOptions{})
	require.NoError(t, err)

	warning, err := reg.Release(task.FrontMatter.ID, assign.ReleaseOptions{Success: true, PID: os.Getpid()}, true)
	require.NoError(t, err)
	require.Empty(t, warning)

	a, ok, err := reg.Show(task.FrontMatter.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, assign.StatusComplete, a.Status)
	require.NotNil(t, a.Success)
	require.True(t, *a.Success)

	_, statErr := os.Stat(filepath.Join(root, "runs", task.FrontMatter.ID+".yaml"))
	require.Error(t, statErr)
	require.True(t, os.IsNotExist(statErr))
}

func TestReleaseWarnsWithoutTipEntryButStillCompletes(t *testing.T) {
	root := t.TempDir()
	s := artefact.NewStore(root, state.New(root), nil)
	prd, _ := s.CreateProduct("Auth", artefact.CreateOptions{})
	epic, _ := s.CreateEpic(prd.FrontMatter.ID, "Login", artefact.CreateOptions{})
	task, _ := s.CreateTask(epic.FrontMatter.ID, "Build form", artefact.CreateOptions{})
	mem := memory.New(filepath.Join(root, "memory"))
	reg := assign.New(filepath.Join(root, "assignments"), filepath.Join(root, "runs"), "hash", s, mem)

	_, _, err := reg.Claim(task.FrontMatter.ID, assign.ClaimOptions{})
	require.NoError(t, err)

	warning, err := reg.Release(task.FrontMatter.ID, assign.ReleaseOptions{Success: true, PID: os.Getpid()}, false)
	require.NoError(t, err)
	require.NotEmpty(t, warning)
}

func TestSweepOrphansKeepsLiveSentinels(t *testing.T) {
	root := t.TempDir()
	s := artefact.NewStore(root, state.New(root), nil)
	prd, _ := s.CreateProduct("Auth", artefact.CreateOptions{})
	epic, _ := s.CreateEpic(prd.FrontMatter.ID, "Login", artefact.CreateOptions{})
	task, _ := s.CreateTask(epic.FrontMatter.ID, "Build form", artefact.CreateOptions{})
	mem := memory.New(filepath.Join(root, "memory"))
	reg := assign.New(filepath.Join(root, "assignments"), filepath.Join(root, "runs"), "hash", s, mem)

	_, _, err := reg.Claim(task.FrontMatter.ID, assign.ClaimOptions{})
	require.NoError(t, err)

	runPath := filepath.Join(root, "runs", task.FrontMatter.ID+".yaml")
	data, err := os.ReadFile(runPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "pid:")

	reaped, err := reg.SweepOrphans()
	require.NoError(t, err)
	require.Empty(t, reaped)
}

package depgraph_test

import (
	"testing"

	"github.com/sailctl/sailing/internal/artefact"
	"github.com/sailctl/sailing/internal/depgraph"
	"github.com/sailctl/sailing/internal/state"
	"github.com/stretchr/testify/require"
)

func setupTasks(t *testing.T, blockers map[string][]string, statuses map[string]string) *artefact.Store {
	t.Helper()
	root := t.TempDir()
	s := artefact.NewStore(root, state.New(root), nil)
	prd, err := s.CreateProduct("Auth", artefact.CreateOptions{})
	require.NoError(t, err)
	epic, err := s.CreateEpic(prd.FrontMatter.ID, "Login", artefact.CreateOptions{})
	require.NoError(t, err)

	// Pre-create enough tasks (T001..Tn) in id order so blockers map below
	// can reference them by canonical id.
	names := []string{"T001", "T002", "T003", "T004", "T005", "T006", "T007", "T008", "T009", "T010"}
	for range names {
		_, err := s.CreateTask(epic.FrontMatter.ID, "task", artefact.CreateOptions{})
		require.NoError(t, err)
	}

	for id, bs := range blockers {
		_, err := s.UpdateFrontmatter(artefact.KindTask, id, map[string]interface{}{"blocked_by": bs})
		require.NoError(t, err)
	}
	for id, status := range statuses {
		_, err := s.UpdateFrontmatter(artefact.KindTask, id, map[string]interface{}{"status": status})
		require.NoError(t, err)
	}
	return s
}

func TestReadinessWithMixedStatuses(t *testing.T) {
	s := setupTasks(t,
		map[string][]string{"T002": {"T001"}, "T003": {"T002"}},
		map[string]string{"T001": artefact.StatusDone},
	)
	g := depgraph.Build(s.Index(), artefact.KindTask)
	require.ElementsMatch(t, []string{"T002", "T004", "T005", "T006", "T007", "T008", "T009", "T010"}, g.Ready(false))

	_, err := s.UpdateFrontmatter(artefact.KindTask, "T002", map[string]interface{}{"status": artefact.StatusDone})
	require.NoError(t, err)
	g2 := depgraph.Build(s.Index(), artefact.KindTask)
	ready := g2.Ready(false)
	require.Contains(t, ready, "T003")
	require.NotContains(t, ready, "T002")
}

func TestCycleDetection(t *testing.T) {
	s := setupTasks(t, map[string][]string{
		"T001": {"T002"},
		"T002": {"T003"},
		"T003": {"T001"},
	}, nil)
	g := depgraph.Build(s.Index(), artefact.KindTask)
	cycles := g.DetectCycles()
	require.Len(t, cycles, 1)
	require.ElementsMatch(t, []string{"T001", "T002", "T003"}, cycles[0].Nodes)
	// None of the cycle members is ready; the unblocked T004..T010 are.
	require.ElementsMatch(t, []string{"T004", "T005", "T006", "T007", "T008", "T009", "T010"}, g.Ready(false))
}

func TestImpactRanking(t *testing.T) {
	s := setupTasks(t, map[string][]string{
		"T002": {"T001"}, "T003": {"T001"}, "T004": {"T001"}, "T005": {"T001"},
		"T006": {"T002"}, "T007": {"T002"}, "T008": {"T002"}, "T009": {"T002"}, "T010": {"T002"},
	}, nil)
	g := depgraph.Build(s.Index(), artefact.KindTask)
	scores := g.ImpactScores()
	require.GreaterOrEqual(t, scores["T001"], 8)
	require.Greater(t, scores["T001"], scores["T002"])
}

func TestIsReachablePreventsCycleBeforeCommit(t *testing.T) {
	s := setupTasks(t, map[string][]string{"T002": {"T001"}}, nil)
	g := depgraph.Build(s.Index(), artefact.KindTask)
	// Adding T001 -> T002 (T001 blocked_by T002) would cycle since T002
	// already depends on T001.
	require.True(t, g.IsReachable("T002", "T001"))
}

func TestValidateFixDoesNotTouchCycles(t *testing.T) {
	s := setupTasks(t, map[string][]string{
		"T001": {"T002"},
		"T002": {"T003"},
		"T003": {"T001"},
	}, nil)
	report, err := depgraph.Validate(s, true)
	require.NoError(t, err)

	foundCycle := false
	for _, f := range report.Findings {
		if f.Rule == depgraph.RuleCycle {
			foundCycle = true
		}
	}
	require.True(t, foundCycle)

	// validate --fix never repairs cycles.
	g := depgraph.Build(s.Index(), artefact.KindTask)
	require.Len(t, g.DetectCycles(), 1)
}

func TestValidateFixRemovesMissingAndDuplicateBlockers(t *testing.T) {
	s := setupTasks(t, map[string][]string{"T001": {"T999", "T002", "T002"}}, nil)
	_, err := depgraph.Validate(s, true)
	require.NoError(t, err)

	task, ok := s.Get(artefact.KindTask, "T001")
	require.True(t, ok)
	require.Equal(t, []string{"T002"}, task.FrontMatter.BlockedBy)
}

func TestValidateFixRemovesCancelledBlocker(t *testing.T) {
	s := setupTasks(t, map[string][]string{"T001": {"T002"}}, map[string]string{"T002": artefact.StatusCancelled})
	_, err := depgraph.Validate(s, true)
	require.NoError(t, err)
	task, ok := s.Get(artefact.KindTask, "T001")
	require.True(t, ok)
	require.Empty(t, task.FrontMatter.BlockedBy)
}

package memory_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sailctl/sailing/internal/memory"
	"github.com/stretchr/testify/require"
)

func TestAppendLogAndReadLogRoundTrip(t *testing.T) {
	p := memory.New(t.TempDir())
	pending, err := p.IsPending("T001")
	require.NoError(t, err)
	require.False(t, pending)

	require.NoError(t, p.AppendLog("T001", memory.LogEntry{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:     memory.LevelInfo,
		Message:   "started work",
	}))
	require.NoError(t, p.AppendLog("T001", memory.LogEntry{
		Timestamp: time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC),
		Level:     memory.LevelWarn,
		Message:   "retrying fetch",
		File:      "main.go",
		Command:   "go build",
	}))

	lines, err := p.ReadLog("T001")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "[INFO] started work")
	require.Contains(t, lines[1], "[WARN] retrying fetch file=main.go cmd=go build")

	pending, err = p.IsPending("T001")
	require.NoError(t, err)
	require.True(t, pending)
}

func TestIsPendingFalseWhenLogMissing(t *testing.T) {
	p := memory.New(t.TempDir())
	pending, err := p.IsPending("T999")
	require.NoError(t, err)
	require.False(t, pending)
}

func TestEnsureEpicFileIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	p := memory.New(dir)
	require.NoError(t, p.EnsureEpicFile("E001"))

	path := filepath.Join(dir, "E001.md")
	before, err := readFile(path)
	require.NoError(t, err)
	require.Contains(t, before, "# E001 Memory")
	require.Contains(t, before, "## Agent Context")

	require.NoError(t, p.EnsureEpicFile("E001"))
	after, err := readFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestSyncMergesLogIntoAgentContextAndTruncates(t *testing.T) {
	dir := t.TempDir()
	p := memory.New(dir)
	require.NoError(t, p.AppendLog("T001", memory.LogEntry{
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Level:     memory.LevelInfo,
		Message:   "first line",
	}))
	require.NoError(t, p.AppendLog("T001", memory.LogEntry{
		Timestamp: time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Level:     memory.LevelInfo,
		Message:   "second line",
	}))

	scope := []memory.TaskRef{{TaskID: "T001", EpicID: "E001"}}
	report, err := p.Sync(scope, memory.SyncOptions{})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"T001"}, report.Merged)
	require.Empty(t, report.PendingEpics)

	memText, err := readFile(filepath.Join(dir, "E001.md"))
	require.NoError(t, err)
	require.Contains(t, memText, "first line")
	require.Contains(t, memText, "second line")

	pending, err := p.IsPending("T001")
	require.NoError(t, err)
	require.False(t, pending)

	lines, err := p.ReadLog("T001")
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestSyncIsIdempotentOnUnchangedLogs(t *testing.T) {
	dir := t.TempDir()
	p := memory.New(dir)
	require.NoError(t, p.AppendLog("T001", memory.LogEntry{
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Level:     memory.LevelInfo,
		Message:   "only line",
	}))

	scope := []memory.TaskRef{{TaskID: "T001", EpicID: "E001"}}
	_, err := p.Sync(scope, memory.SyncOptions{})
	require.NoError(t, err)

	path := filepath.Join(dir, "E001.md")
	first, err := readFile(path)
	require.NoError(t, err)

	_, err = p.Sync(scope, memory.SyncOptions{})
	require.NoError(t, err)
	second, err := readFile(path)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSyncDedupesRepeatedLinesAcrossMultipleTasks(t *testing.T) {
	dir := t.TempDir()
	p := memory.New(dir)
	entry := memory.LogEntry{
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Level:     memory.LevelInfo,
		Message:   "shared note",
	}
	require.NoError(t, p.AppendLog("T001", entry))
	require.NoError(t, p.AppendLog("T002", entry))

	scope := []memory.TaskRef{
		{TaskID: "T001", EpicID: "E001"},
		{TaskID: "T002", EpicID: "E001"},
	}
	report, err := p.Sync(scope, memory.SyncOptions{})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"T001", "T002"}, report.Merged)

	text, err := readFile(filepath.Join(dir, "E001.md"))
	require.NoError(t, err)
	require.Equal(t, 1, countOccurrences(text, "shared note"))
}

func TestSyncNoCreateReportsPendingWithoutWritingFile(t *testing.T) {
	dir := t.TempDir()
	p := memory.New(dir)
	require.NoError(t, p.AppendLog("T001", memory.LogEntry{
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Level:     memory.LevelInfo,
		Message:   "needs an epic file",
	}))

	scope := []memory.TaskRef{{TaskID: "T001", EpicID: "E001"}}
	report, err := p.Sync(scope, memory.SyncOptions{NoCreate: true})
	require.NoError(t, err)
	require.Empty(t, report.Merged)
	require.ElementsMatch(t, []string{"E001"}, report.PendingEpics)
	require.Equal(t, 1, report.PendingTaskCount)

	_, statErr := readFile(filepath.Join(dir, "E001.md"))
	require.Error(t, statErr)

	pending, err := p.IsPending("T001")
	require.NoError(t, err)
	require.True(t, pending)
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
			i += len(substr) - 1
		}
	}
	return count
}

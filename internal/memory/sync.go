package memory

import (
	"os"
	"strings"

	"github.com/sailctl/sailing/internal/artefact"
	"github.com/sailctl/sailing/internal/errs"
)

// TaskRef is the minimal Task shape sync() needs: its canonical ID and the
// Epic it belongs to.
type TaskRef struct {
	TaskID string
	EpicID string
}

// SyncOptions controls one sync() call.
type SyncOptions struct {
	// NoCreate suppresses creating a missing Epic memory file; the merge is
	// then skipped for that Epic and reported as still-pending.
	NoCreate bool
}

// SyncReport summarizes the outcome of one sync() call.
type SyncReport struct {
	Merged           []string // task IDs successfully merged and truncated
	PendingEpics     []string // epics that still have at least one pending task log
	PendingTaskCount int
}

// Sync merges every task in scope whose log is non-empty into its Epic's
// memory "Agent Context" section, then truncates the log. scope is the set
// of tasks visible to this call (already filtered by caller to the desired
// Epic/Product, or all tasks for a project-wide sync).
//
// sync is idempotent: running it twice on unchanged logs leaves files
// byte-identical to the state after the first call, because truncated logs
// have nothing left to merge on the second pass.
func (p *Pipeline) Sync(scope []TaskRef, opts SyncOptions) (SyncReport, error) {
	report := SyncReport{}
	pendingEpics := make(map[string]bool)

	byEpic := make(map[string][]string) // epicID -> taskIDs with pending logs
	for _, ref := range scope {
		pending, err := p.IsPending(ref.TaskID)
		if err != nil {
			return report, err
		}
		if pending {
			byEpic[ref.EpicID] = append(byEpic[ref.EpicID], ref.TaskID)
		}
	}

	for epicID, taskIDs := range byEpic {
		if !p.memoryExists(epicID) {
			if opts.NoCreate {
				pendingEpics[epicID] = true
				report.PendingTaskCount += len(taskIDs)
				continue
			}
			if err := p.EnsureEpicFile(epicID); err != nil {
				return report, err
			}
		}

		for _, taskID := range taskIDs {
			lines, err := p.ReadLog(taskID)
			if err != nil {
				return report, err
			}
			if len(lines) == 0 {
				continue
			}
			if err := p.mergeIntoAgentContext(epicID, lines); err != nil {
				return report, err
			}
			if err := p.truncateLog(taskID); err != nil {
				return report, err
			}
			report.Merged = append(report.Merged, taskID)
		}
	}

	for epic := range pendingEpics {
		report.PendingEpics = append(report.PendingEpics, epic)
	}
	return report, nil
}

func (p *Pipeline) memoryExists(epicID string) bool {
	_, err := os.Stat(p.memoryPath(epicID))
	return err == nil
}

// mergeIntoAgentContext appends newLines to epicID's "Agent Context"
// section, stripping lines already present (dedupe) and preserving
// chronological order of first appearance.
func (p *Pipeline) mergeIntoAgentContext(epicID string, newLines []string) error {
	path := p.memoryPath(epicID)
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.IOError, "memory.mergeIntoAgentContext", "reading memory file", err)
	}
	body := string(data)
	if body == "" {
		body = templateBody(epicID)
	}

	rec := &artefact.Record{Body: body}
	existing := sectionLines(rec.Body, "Agent Context")
	seen := make(map[string]bool, len(existing))
	for _, l := range existing {
		seen[l] = true
	}

	merged := append([]string{}, existing...)
	for _, l := range newLines {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		merged = append(merged, l)
	}

	if err := rec.EditSection("Agent Context", strings.Join(merged, "\n"), artefact.ModeReplace); err != nil {
		return errs.Wrap(errs.IOError, "memory.mergeIntoAgentContext", "editing Agent Context section", err)
	}
	return p.writeAtomic(path, rec.Body)
}

// sectionLines extracts the current lines of an H2 section without
// consuming EditSection's replace semantics, mirroring the header-scan used
// to locate sections elsewhere.
func sectionLines(body, name string) []string {
	marker := "## " + name
	idx := strings.Index(body, marker)
	if idx == -1 {
		return nil
	}
	rest := body[idx+len(marker):]
	rest = strings.TrimPrefix(rest, "\n")
	end := strings.Index(rest, "\n## ")
	if end == -1 {
		end = len(rest)
	}
	content := strings.TrimSpace(rest[:end])
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

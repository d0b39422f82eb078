package assign

import (
	"os"
	"strings"
	"time"

	"github.com/sailctl/sailing/internal/artefact"
	"github.com/sailctl/sailing/internal/errs"
	"github.com/sailctl/sailing/internal/guard"
	"github.com/sailctl/sailing/internal/lockfile"
)

const reminderLine = "When you have completed this claimed task, you MUST mark it done."

// ClaimOptions configures one claim() call.
type ClaimOptions struct {
	Force       bool
	AgentPrompt string // the static agent contract prepended to every compiled prompt
}

// ClaimResult carries the compiled prompt handed back to the caller.
type ClaimResult struct {
	TaskID         string
	CompiledPrompt string
	Reminder       string
}

// Claim runs the gated claim sequence: orphan sweep, already-claimed check,
// pending-memory check (unless forced), sentinel write, status stamp, and
// prompt composition.
func (r *Registry) Claim(taskID string, opts ClaimOptions) (*ClaimResult, *guard.Outcome, error) {
	if _, err := r.SweepOrphans(); err != nil {
		return nil, nil, err
	}

	task, ok := r.store.Get(artefact.KindTask, taskID)
	if !ok {
		return nil, nil, errs.New(errs.NotFound, "assign.Claim", "unknown task "+taskID)
	}
	epicID := task.FrontMatter.Parent

	existing, _, err := r.load(task.FrontMatter.ID)
	if err != nil {
		return nil, nil, err
	}
	assignStatus := ""
	if existing != nil {
		assignStatus = string(existing.Status)
	}

	pending := false
	if r.memory != nil && epicID != "" {
		pending, err = r.epicHasPendingMemory(epicID)
		if err != nil {
			return nil, nil, err
		}
	}

	gctx := &guard.Context{
		TaskID:            task.FrontMatter.ID,
		EpicID:            epicID,
		Force:             opts.Force,
		AssignmentStatus:  assignStatus,
		EpicMemoryPending: pending,
	}
	outcome := guard.NewRunner().Run(nil, gctx, guard.ClaimGuards)
	if outcome.Blocked {
		return nil, outcome, errs.New(errs.ConcurrencyError, "assign.Claim", outcome.FormatBlockMessage())
	}

	err = lockfile.Lock(r.assignPath(task.FrontMatter.ID)+".lock", func() error {
		now := time.Now().UTC()
		sentinel := &Sentinel{TaskID: task.FrontMatter.ID, Operation: "claim", StartedAt: now, PID: os.Getpid()}
		if err := r.saveSentinel(sentinel); err != nil {
			return err
		}

		a := existing
		if a == nil {
			a = &Assignment{TaskID: task.FrontMatter.ID, EpicID: epicID, Operation: "claim", CreatedAt: now, ProjectHash: r.projectHash}
		}
		a.Status = StatusClaimed
		a.ClaimedAt = &now
		return r.save(a)
	})
	if err != nil {
		return nil, outcome, err
	}

	var epic *artefact.Record
	if epicID != "" {
		// A Task's parent reads "PRD-<n> / E<n>"; the Epic is the last part.
		epicRef := epicID
		if i := strings.LastIndex(epicRef, "/"); i != -1 {
			epicRef = strings.TrimSpace(epicRef[i+1:])
		}
		epic, _ = r.store.Get(artefact.KindEpic, epicRef)
	}
	prompt := ComposePrompt(opts.AgentPrompt, epic, task)

	return &ClaimResult{TaskID: task.FrontMatter.ID, CompiledPrompt: prompt, Reminder: reminderLine}, outcome, nil
}

// ReleaseOptions configures one release() call.
type ReleaseOptions struct {
	Success bool
	PID     int
}

// Release completes an assignment: requires the sentinel to exist and
// match the releasing process, stamps completion, and removes the
// sentinel. The requirement that the Task log carry at least one TIP-level
// entry is soft: a missing TIP entry is reported but does not abort.
func (r *Registry) Release(taskID string, opts ReleaseOptions, hasTipEntry bool) (softWarning string, err error) {
	sentinel, ok, err := r.loadSentinel(taskID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errs.New(errs.NotFound, "assign.Release", "no active claim for "+taskID)
	}
	if opts.PID != 0 && sentinel.PID != opts.PID {
		return "", errs.New(errs.InvalidInput, "assign.Release", "releasing process does not match the claiming process")
	}

	a, ok, err := r.load(taskID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errs.New(errs.NotFound, "assign.Release", "no assignment record for "+taskID)
	}

	now := time.Now().UTC()
	a.Status = StatusComplete
	a.CompletedAt = &now
	success := opts.Success
	a.Success = &success
	if err := r.save(a); err != nil {
		return "", err
	}
	if err := r.deleteSentinel(taskID); err != nil {
		return "", err
	}

	if !hasTipEntry {
		return "release: no TIP-level log entry recorded for " + taskID, nil
	}
	return "", nil
}

// List returns every assignment scoped to this registry's project hash.
func (r *Registry) List() ([]*Assignment, error) {
	entries, err := os.ReadDir(r.assignDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.IOError, "assign.List", "reading assignments directory", err)
	}
	var out []*Assignment
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		a, ok, err := r.load(strings.TrimSuffix(e.Name(), ".yaml"))
		if err != nil {
			return nil, err
		}
		if !ok || a.ProjectHash != r.projectHash {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Delete removes an assignment and its sentinel, if any.
func (r *Registry) Delete(taskID string) error {
	if err := r.deleteSentinel(taskID); err != nil {
		return err
	}
	err := os.Remove(r.assignPath(taskID))
	if err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.IOError, "assign.Delete", "removing assignment file", err)
	}
	return nil
}

// Show returns the assignment for one task, if any.
func (r *Registry) Show(taskID string) (*Assignment, bool, error) {
	return r.load(taskID)
}

// epicHasPendingMemory reports whether any Task under epicID has a
// non-empty log.
func (r *Registry) epicHasPendingMemory(epicID string) (bool, error) {
	entries := r.store.Index().Entries(artefact.KindTask)
	for id, entry := range entries {
		if entry.CachedFrontMatter.Parent != epicID {
			continue
		}
		pending, err := r.memory.IsPending(id)
		if err != nil {
			return false, err
		}
		if pending {
			return true, nil
		}
	}
	return false, nil
}

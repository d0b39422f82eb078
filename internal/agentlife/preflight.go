package agentlife

import (
	"context"

	"github.com/sailctl/sailing/internal/errs"
)

// DependencyCheck asserts that no cycle or invalid dependency blocks
// taskID. It is injected by the caller (cmd/sail) so this package does not
// need to import the artefact store or dependency graph directly.
type DependencyCheck func(taskID string) error

// Preflight asserts the four invariants spec.md requires before any spawn:
// the main branch is clean, the main branch has at least one commit, no
// cycle or invalid dependency blocks the target Task, and no already-running
// agent's touched files overlap the target's declared touches. The touches
// overlap check is best-effort: touches is the set of files the caller
// expects the target Task to modify, and running agents' file sets are
// reconstructed live (uncommitted_files is only populated at reap time).
func (o *Orchestrator) Preflight(ctx context.Context, taskID string, touches []string, depCheck DependencyCheck) error {
	dirty, _, err := worktreeDirty(ctx, o.repoRoot)
	if err != nil {
		return err
	}
	if dirty {
		return errs.New(errs.ValidationFailure, "agentlife.Preflight", "main branch has uncommitted changes")
	}

	if _, err := runGit(ctx, o.repoRoot, "rev-parse", "HEAD"); err != nil {
		return errs.New(errs.ValidationFailure, "agentlife.Preflight", "main branch has no commits yet")
	}

	if depCheck != nil {
		if err := depCheck(taskID); err != nil {
			return err
		}
	}

	if len(touches) == 0 {
		return nil
	}
	want := make(map[string]bool, len(touches))
	for _, f := range touches {
		want[f] = true
	}

	active, err := o.ListActive()
	if err != nil {
		return err
	}
	for _, rec := range active {
		if rec.TaskID == taskID || rec.Worktree == nil {
			continue
		}
		_, files, err := worktreeDirty(ctx, rec.Worktree.Path)
		if err != nil {
			// A vanished or unreadable worktree shouldn't block preflight;
			// best-effort per spec.md's conflict-matrix wording.
			continue
		}
		for _, f := range files {
			if want[f] {
				return errs.New(errs.ValidationFailure, "agentlife.Preflight",
					"file "+f+" is already touched by running agent "+rec.TaskID)
			}
		}
	}
	return nil
}

package agentlife

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sailctl/sailing/internal/errs"
)

// SpawnOptions configures one spawn() call.
type SpawnOptions struct {
	TaskNum       int
	Command       []string // argv of the worker process
	BaseBranch    string
	UseWorktree   bool
	Resume        bool
	BudgetUSD     float64
	WatchdogAfter time.Duration
}

// running tracks the live *exec.Cmd for an in-flight agent. Kept
// process-local (not persisted): a "running" record left by an earlier
// process has no entry here, so Kill and Reap skip the process step and only
// move the record on.
var running = map[string]*exec.Cmd{}

// Spawn creates the isolated worktree (if enabled), starts the worker
// process, and persists the record in spawned, transitioning immediately to
// running since no readiness handshake is modeled here.
func (o *Orchestrator) Spawn(ctx context.Context, taskID string, opts SpawnOptions) (*Record, error) {
	now := time.Now().UTC()
	rec := &Record{TaskID: taskID, TaskNum: opts.TaskNum, Status: StatusSpawned, SpawnedAt: &now, BudgetUSD: opts.BudgetUSD}

	branch := taskID
	if opts.UseWorktree {
		path := o.worktreePath(taskID)
		if !opts.Resume {
			if err := createWorktree(ctx, o.repoRoot, path, branch, opts.BaseBranch); err != nil {
				return nil, err
			}
		}
		rec.Worktree = &Worktree{Path: path, Branch: branch, Base: opts.BaseBranch}
	}

	if err := o.save(rec); err != nil {
		return nil, err
	}

	if len(opts.Command) > 0 {
		dir := o.repoRoot
		if rec.Worktree != nil {
			dir = rec.Worktree.Path
		}
		cmd := exec.CommandContext(ctx, opts.Command[0], opts.Command[1:]...)
		cmd.Dir = dir
		if err := cmd.Start(); err != nil {
			_, _ = o.transition(taskID, StatusError, nil)
			return nil, errs.Wrap(errs.IOError, "agentlife.Spawn", "starting worker process", err)
		}
		running[taskID] = cmd
		rec.PID = cmd.Process.Pid
	}

	started := time.Now().UTC()
	return o.transition(taskID, StatusRunning, func(r *Record) {
		r.PID = rec.PID
		r.StartedAt = &started
	})
}

// Kill terminates a running agent: SIGTERM, then SIGKILL after the grace
// period if the process has not exited.
func (o *Orchestrator) Kill(taskID string, grace time.Duration) (*Record, error) {
	if cmd, ok := running[taskID]; ok && cmd.Process != nil {
		terminateThenKill(cmd, grace)
		delete(running, taskID)
	}
	return o.transition(taskID, StatusKilled, nil)
}

// Reap waits for the child to exit (bounded by timeout when set), records
// the exit code, probes for uncommitted changes in the worktree, and
// transitions to reaped.
func (o *Orchestrator) Reap(ctx context.Context, taskID string, timeout time.Duration) (*Record, error) {
	rec, ok, err := o.load(taskID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.New(errs.NotFound, "agentlife.Reap", "no agent record for "+taskID)
	}

	var exitCode int
	if cmd, isRunning := running[taskID]; isRunning {
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case waitErr := <-done:
			if waitErr != nil {
				if exitErr, ok := waitErr.(*exec.ExitError); ok {
					exitCode = exitErr.ExitCode()
				} else {
					exitCode = -1
				}
			}
		case <-time.After(timeoutOrForever(timeout)):
			return nil, errs.New(errs.Timeout, "agentlife.Reap", "timed out waiting for "+taskID+" to exit")
		}
		delete(running, taskID)
	}

	var dirty bool
	var files []string
	if rec.Worktree != nil {
		dirty, files, err = worktreeDirty(ctx, rec.Worktree.Path)
		if err != nil {
			return nil, err
		}
	}

	ended := time.Now().UTC()
	code := exitCode
	if _, err := o.transition(taskID, StatusCompleted, func(r *Record) {
		r.EndedAt = &ended
		r.ExitCode = &code
		r.DirtyWorktree = dirty
		r.UncommittedFiles = files
	}); err != nil {
		return nil, err
	}

	// A PR is only attempted when the branch carries committed work ahead of
	// its base; a best-effort operation that never blocks the reap itself.
	var prURL string
	if rec.Worktree != nil && o.prProvider != nil {
		base := rec.Worktree.Base
		if base == "" {
			base = "main"
		}
		if out, aheadErr := runGit(ctx, o.repoRoot, "rev-list", "--count", base+".."+rec.Worktree.Branch); aheadErr == nil && strings.TrimSpace(out) != "0" {
			if url, prErr := o.prProvider.CreatePR(ctx, PRRequest{
				TaskID: taskID, Branch: rec.Worktree.Branch, Base: base, Title: "Task " + taskID,
			}); prErr == nil {
				prURL = url
			}
		}
	}

	return o.transition(taskID, StatusReaped, func(r *Record) {
		if prURL != "" {
			r.PRURL = prURL
		}
	})
}

func timeoutOrForever(d time.Duration) time.Duration {
	if d <= 0 {
		return 365 * 24 * time.Hour
	}
	return d
}

// Merge fast-forwards or merges the agent's branch back into baseBranch. A
// conflict is observable: the record moves to conflict rather than merged.
func (o *Orchestrator) Merge(ctx context.Context, taskID, baseBranch string) (*Record, error) {
	rec, ok, err := o.load(taskID)
	if err != nil {
		return nil, err
	}
	if !ok || rec.Worktree == nil {
		return nil, errs.New(errs.InvalidInput, "agentlife.Merge", "no worktree to merge for "+taskID)
	}

	conflict, err := mergeBranch(ctx, o.repoRoot, baseBranch, rec.Worktree.Branch)
	if err != nil {
		return nil, err
	}
	if conflict {
		return o.transition(taskID, StatusConflict, func(r *Record) { r.DirtyWorktree = true })
	}
	return o.transition(taskID, StatusMerged, nil)
}

// Cleanup deletes the worktree directory and local branch, transitioning
// to collected. Cleanup is idempotent: a missing worktree or branch is not
// an error.
func (o *Orchestrator) Cleanup(ctx context.Context, taskID string, force bool) (*Record, error) {
	rec, ok, err := o.load(taskID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.New(errs.NotFound, "agentlife.Cleanup", "no agent record for "+taskID)
	}
	if rec.Worktree != nil {
		if err := removeWorktree(ctx, o.repoRoot, rec.Worktree.Path, force); err != nil && !force {
			if _, statErr := os.Stat(rec.Worktree.Path); !os.IsNotExist(statErr) {
				return nil, err
			}
		}
		_ = deleteBranch(ctx, o.repoRoot, rec.Worktree.Branch, force)
		_ = pruneWorktrees(ctx, o.repoRoot)
	}
	return o.transition(taskID, StatusCollected, nil)
}

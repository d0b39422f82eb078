package gc

import (
	"context"
	"os"
	"os/exec"

	"github.com/sailctl/sailing/internal/errs"
)

// ApplyOptions controls which bands Apply is permitted to remove.
type ApplyOptions struct {
	IncludeUnsafe bool
	Force         bool // required to remove havens from a different project hash
}

// ApplyResult reports what Apply actually removed and what it skipped.
type ApplyResult struct {
	Removed []Entry
	Skipped []Entry
}

// Apply scans, then idempotently removes every eligible entry: safe entries
// always, unsafe entries only with IncludeUnsafe, haven entries from other
// projects only with both IncludeUnsafe and Force. Before sweeping
// worktrees it runs `git worktree prune` so git's own bookkeeping matches
// the directory removal about to happen, per the teacher's pattern of
// running external tooling before trusting its own view of disk state.
func (c *Collector) Apply(ctx context.Context, repoRoot string, targets []Target, opts ApplyOptions) (ApplyResult, error) {
	for _, t := range targets {
		if t == TargetWorktrees {
			_ = pruneWorktrees(ctx, repoRoot)
			break
		}
	}

	plan, err := c.Scan(targets)
	if err != nil {
		return ApplyResult{}, err
	}

	var result ApplyResult
	for _, e := range plan.Entries {
		eligible, reason := eligibleForRemoval(e, opts)
		if !eligible {
			if e.Band != BandActive {
				result.Skipped = append(result.Skipped, e)
			}
			continue
		}
		if err := os.RemoveAll(e.Path); err != nil {
			return result, errs.Wrap(errs.IOError, "gc.Apply", "removing "+e.Path, err)
		}
		e.Reason = reason
		result.Removed = append(result.Removed, e)
	}
	return result, nil
}

func eligibleForRemoval(e Entry, opts ApplyOptions) (bool, string) {
	switch e.Band {
	case BandSafe:
		return true, e.Reason
	case BandUnsafe:
		if !opts.IncludeUnsafe {
			return false, ""
		}
		if e.Target == TargetHavens && !opts.Force {
			return false, ""
		}
		return true, e.Reason + " (removed with --unsafe)"
	default:
		return false, ""
	}
}

func pruneWorktrees(ctx context.Context, repoRoot string) error {
	cmd := exec.CommandContext(ctx, "git", "worktree", "prune")
	cmd.Dir = repoRoot
	return cmd.Run()
}

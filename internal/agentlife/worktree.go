package agentlife

import (
	"context"
	"os/exec"
	"strings"

	"github.com/sailctl/sailing/internal/errs"
)

// runGit shells out to the git binary rooted at repoRoot. No pack example
// wires a Go git library, so every VCS operation here goes through the
// real binary, matching the corpus's convention of shelling out for
// external tooling it does not want to reimplement.
func runGit(ctx context.Context, repoRoot string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), errs.Wrap(errs.IOError, "agentlife.runGit", "git "+strings.Join(args, " ")+" failed: "+string(out), err)
	}
	return string(out), nil
}

// createWorktree checks out branch (creating it off the main branch if it
// does not already exist) into a fresh worktree directory.
func createWorktree(ctx context.Context, repoRoot, path, branch, baseBranch string) error {
	if _, err := runGit(ctx, repoRoot, "worktree", "add", "-b", branch, path, baseBranch); err == nil {
		return nil
	}
	// Branch may already exist from a resumed agent; attach the worktree to it.
	_, err := runGit(ctx, repoRoot, "worktree", "add", path, branch)
	return err
}

func removeWorktree(ctx context.Context, repoRoot, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := runGit(ctx, repoRoot, args...)
	return err
}

func pruneWorktrees(ctx context.Context, repoRoot string) error {
	_, err := runGit(ctx, repoRoot, "worktree", "prune")
	return err
}

func deleteBranch(ctx context.Context, repoRoot, branch string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := runGit(ctx, repoRoot, "branch", flag, branch)
	return err
}

// worktreeDirty reports whether path has any uncommitted changes (tracked
// or untracked), and the list of affected file paths.
func worktreeDirty(ctx context.Context, path string) (bool, []string, error) {
	out, err := runGit(ctx, path, "status", "--porcelain")
	if err != nil {
		return false, nil, err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return false, nil, nil
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		files = append(files, fields[len(fields)-1])
	}
	return true, files, nil
}

// mergeBranch attempts a fast-forward or regular merge of branch into
// baseBranch. A conflict leaves the repository's merge state as git left
// it; the caller is responsible for observing dirty_worktree and surfacing
// it rather than auto-resolving.
func mergeBranch(ctx context.Context, repoRoot, baseBranch, branch string) (conflict bool, err error) {
	if _, err := runGit(ctx, repoRoot, "checkout", baseBranch); err != nil {
		return false, err
	}
	_, err = runGit(ctx, repoRoot, "merge", "--no-edit", branch)
	if err != nil {
		// A merge conflict is a git failure we want to report as a domain
		// state, not bubble as an opaque IOError.
		return true, nil
	}
	return false, nil
}

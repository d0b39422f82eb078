package agentlife

import (
	"context"
	"os/exec"
	"strings"

	"github.com/sailctl/sailing/internal/errs"
)

// PRRequest describes one pull request to open for a reaped agent's branch.
type PRRequest struct {
	TaskID string
	Branch string
	Base   string
	Title  string
}

// PRProvider opens a pull request and returns its URL. Reap calls it when
// committed changes exist and a provider has been configured via
// Orchestrator.SetPRProvider; left unconfigured, PR creation is skipped
// entirely and reap still completes.
type PRProvider interface {
	CreatePR(ctx context.Context, req PRRequest) (url string, err error)
}

// GHProvider shells out to the GitHub CLI, matching this package's
// convention of driving every other VCS operation through the real git
// binary rather than a Go library.
type GHProvider struct{}

func NewGHProvider() PRProvider { return GHProvider{} }

func (GHProvider) CreatePR(ctx context.Context, req PRRequest) (string, error) {
	cmd := exec.CommandContext(ctx, "gh", "pr", "create",
		"--base", req.Base, "--head", req.Branch, "--title", req.Title, "--fill")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", errs.Wrap(errs.IOError, "agentlife.GHProvider.CreatePR", strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// CreatePR opens a pull request for an already-reaped agent on demand,
// independent of the best-effort attempt reap makes inline. Returns the
// existing pr_url unchanged if one was already recorded.
func (o *Orchestrator) CreatePR(ctx context.Context, taskID string) (*Record, error) {
	rec, ok, err := o.load(taskID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.New(errs.NotFound, "agentlife.CreatePR", "no agent record for "+taskID)
	}
	if rec.PRURL != "" {
		return rec, nil
	}
	if rec.Worktree == nil {
		return nil, errs.New(errs.InvalidInput, "agentlife.CreatePR", "no worktree to open a PR for "+taskID)
	}
	if o.prProvider == nil {
		return nil, errs.New(errs.ConfigError, "agentlife.CreatePR", "no PR provider configured")
	}
	base := rec.Worktree.Base
	if base == "" {
		base = "main"
	}
	url, err := o.prProvider.CreatePR(ctx, PRRequest{
		TaskID: taskID, Branch: rec.Worktree.Branch, Base: base, Title: "Task " + taskID,
	})
	if err != nil {
		return nil, err
	}
	table := map[string]*Record{}
	err = o.table.Update(&table, func() error {
		existing, ok := table[taskID]
		if !ok {
			return errs.New(errs.NotFound, "agentlife.CreatePR", "no agent record for "+taskID)
		}
		existing.PRURL = url
		table[taskID] = existing
		rec = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Package agentlife implements the per-Task agent lifecycle: spawning a
// worker process in an isolated git worktree, tracking its status through a
// persistent record, kill (terminate, then kill after a grace period), reap,
// merge, and cleanup. No watchdog runs: a spawn's budget is stored on the
// record, and neither budget nor timeout is enforced.
package agentlife

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sailctl/sailing/internal/errs"
	"github.com/sailctl/sailing/internal/state"
)

// Status is one agent record's lifecycle state.
type Status string

const (
	StatusSpawned   Status = "spawned"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusReaped    Status = "reaped"
	StatusMerged    Status = "merged"
	StatusCollected Status = "collected"
	StatusConflict  Status = "conflict"
	StatusError     Status = "error"
	StatusKilled    Status = "killed"
	StatusRejected  Status = "rejected"
)

// validTransitions generalizes the teacher's state-machine table to the
// agent spawn→...→collected lifecycle. Only collected has no outgoing
// transition; the other states isTerminal reports (completed, reaped,
// merged, killed, rejected, error) still move on as listed here.
var validTransitions = map[Status]map[Status]struct{}{
	StatusSpawned:   {StatusRunning: {}, StatusError: {}, StatusKilled: {}},
	StatusRunning:   {StatusCompleted: {}, StatusError: {}, StatusKilled: {}},
	StatusCompleted: {StatusReaped: {}, StatusRejected: {}},
	StatusReaped:    {StatusMerged: {}, StatusConflict: {}, StatusRejected: {}, StatusCollected: {}},
	StatusConflict:  {StatusMerged: {}, StatusRejected: {}, StatusCollected: {}},
	StatusMerged:    {StatusCollected: {}},
	StatusError:     {StatusSpawned: {}, StatusKilled: {}, StatusCollected: {}},
	StatusKilled:    {StatusCollected: {}},
	StatusRejected:  {StatusCollected: {}},
}

func validateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	allowed, ok := validTransitions[from]
	if !ok {
		return errs.New(errs.InvalidInput, "agentlife.validateTransition", fmt.Sprintf("unknown status %q", from))
	}
	if _, ok := allowed[to]; !ok {
		return errs.New(errs.InvalidInput, "agentlife.validateTransition", fmt.Sprintf("invalid transition %s -> %s", from, to))
	}
	return nil
}

func isTerminal(s Status) bool {
	switch s {
	case StatusCollected, StatusMerged, StatusReaped, StatusCompleted, StatusRejected, StatusKilled, StatusError:
		return true
	default:
		return false
	}
}

// Worktree describes an agent's isolated checkout.
type Worktree struct {
	Path   string `json:"path"`
	Branch string `json:"branch"`
	Base   string `json:"base,omitempty"`
}

// Record is one Task's agent entry, persisted as a small document.
type Record struct {
	TaskID            string     `json:"task_id"`
	TaskNum           int        `json:"task_num"`
	Status            Status     `json:"status"`
	PID               int        `json:"pid,omitempty"`
	Worktree          *Worktree  `json:"worktree,omitempty"`
	SpawnedAt         *time.Time `json:"spawned_at,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	ExitCode          *int       `json:"exit_code,omitempty"`
	DirtyWorktree     bool       `json:"dirty_worktree,omitempty"`
	UncommittedFiles  []string   `json:"uncommitted_files,omitempty"`
	LogFile           string     `json:"log_file,omitempty"`
	PRURL             string     `json:"pr_url,omitempty"`
	BudgetUSD         float64    `json:"budget_usd,omitempty"`
}

// Orchestrator owns the agent table and the worktrees directory. The table
// is a single small document (one JSON map keyed by Task ID), consistent
// with state.Doc's whole-document get/set contract; per-record mutation
// always goes through the table's own lock to keep read-modify-write
// atomic across concurrent spawn/reap/merge calls.
type Orchestrator struct {
	table        *state.Doc
	worktreesDir string
	repoRoot     string
	prProvider   PRProvider
}

func New(stateDir, worktreesDir, repoRoot string) *Orchestrator {
	return &Orchestrator{table: state.NewDoc(stateDir, "agents"), worktreesDir: worktreesDir, repoRoot: repoRoot}
}

// SetPRProvider wires a PR provider in; Reap only attempts PR creation when
// one is configured, and an on-demand "agent pr" call requires it too.
func (o *Orchestrator) SetPRProvider(p PRProvider) { o.prProvider = p }

func (o *Orchestrator) load(taskID string) (*Record, bool, error) {
	table := map[string]*Record{}
	if err := o.table.Get(&table); err != nil {
		return nil, false, err
	}
	rec, ok := table[taskID]
	return rec, ok, nil
}

func (o *Orchestrator) save(rec *Record) error {
	table := map[string]*Record{}
	return o.table.Update(&table, func() error {
		table[rec.TaskID] = rec
		return nil
	})
}

func (o *Orchestrator) transition(taskID string, to Status, mutate func(*Record)) (*Record, error) {
	table := map[string]*Record{}
	var rec *Record
	err := o.table.Update(&table, func() error {
		existing, ok := table[taskID]
		if !ok {
			return errs.New(errs.NotFound, "agentlife.transition", "no agent record for "+taskID)
		}
		if err := validateTransition(existing.Status, to); err != nil {
			return err
		}
		existing.Status = to
		if mutate != nil {
			mutate(existing)
		}
		table[taskID] = existing
		rec = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (o *Orchestrator) worktreePath(taskID string) string {
	return filepath.Join(o.worktreesDir, taskID)
}

// Get returns the agent record for a Task, if any.
func (o *Orchestrator) Get(taskID string) (*Record, bool, error) {
	return o.load(taskID)
}

// ListActive returns every non-terminal agent record, for preflight and
// dashboard use.
func (o *Orchestrator) ListActive() ([]*Record, error) {
	table := map[string]*Record{}
	if err := o.table.Get(&table); err != nil {
		return nil, err
	}
	var out []*Record
	for _, rec := range table {
		if !isTerminal(rec.Status) {
			out = append(out, rec)
		}
	}
	return out, nil
}

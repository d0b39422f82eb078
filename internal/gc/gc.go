// Package gc reconciles the filesystem against the live registries for
// agent records, git worktrees, and per-project haven directories,
// generalizing the teacher's done/canceled prune plan to a three-band
// disposition (safe/unsafe/active) over directories instead of artefacts.
package gc

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/sailctl/sailing/internal/agentlife"
	"github.com/sailctl/sailing/internal/artefact"
)

// Band is one entry's disposition relative to the registry.
type Band string

const (
	BandSafe   Band = "safe"
	BandUnsafe Band = "unsafe"
	BandActive Band = "active"
)

// Target names one managed directory kind.
type Target string

const (
	TargetAgents    Target = "agents"
	TargetWorktrees Target = "worktrees"
	TargetHavens    Target = "havens"
)

// Entry is one filesystem-level item discovered under a managed directory,
// with its computed band and the reason it was classified that way.
type Entry struct {
	Target Target `json:"target"`
	Name   string `json:"name"`
	Path   string `json:"path"`
	Band   Band   `json:"band"`
	Reason string `json:"reason"`
}

// Plan is the result of a dry-run scan: every entry found, regardless of
// band, so callers can report active/unsafe counts alongside what would be
// removed.
type Plan struct {
	Entries []Entry
}

// Safe returns only the entries eligible for removal.
func (p Plan) Safe() []Entry {
	var out []Entry
	for _, e := range p.Entries {
		if e.Band == BandSafe {
			out = append(out, e)
		}
	}
	return out
}

// Unsafe returns only the entries requiring --unsafe to remove.
func (p Plan) Unsafe() []Entry { return filterBand(p.Entries, BandUnsafe) }

// Active returns only the entries the registry still considers live.
func (p Plan) Active() []Entry { return filterBand(p.Entries, BandActive) }

func filterBand(entries []Entry, b Band) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Band == b {
			out = append(out, e)
		}
	}
	return out
}

// Collector scans the agents, worktrees, and havens directories and
// classifies each filesystem entry against the agent registry and the
// artefact Task index.
type Collector struct {
	agentsDir    string
	worktreesDir string
	havensRoot   string
	projectHash  string
	orchestrator *agentlife.Orchestrator
	taskStore    *artefact.Store
}

func New(agentsDir, worktreesDir, havensRoot, projectHash string, orchestrator *agentlife.Orchestrator, taskStore *artefact.Store) *Collector {
	return &Collector{
		agentsDir:    agentsDir,
		worktreesDir: worktreesDir,
		havensRoot:   havensRoot,
		projectHash:  projectHash,
		orchestrator: orchestrator,
		taskStore:    taskStore,
	}
}

// Scan builds a Plan over the requested targets (empty slice means all
// three).
func (c *Collector) Scan(targets []Target) (Plan, error) {
	if len(targets) == 0 {
		targets = []Target{TargetAgents, TargetWorktrees, TargetHavens}
	}
	var plan Plan
	for _, t := range targets {
		var entries []Entry
		var err error
		switch t {
		case TargetAgents:
			entries, err = c.scanAgents()
		case TargetWorktrees:
			entries, err = c.scanWorktrees()
		case TargetHavens:
			entries, err = c.scanHavens()
		}
		if err != nil {
			return Plan{}, err
		}
		plan.Entries = append(plan.Entries, entries...)
	}
	sort.Slice(plan.Entries, func(i, j int) bool {
		if plan.Entries[i].Target != plan.Entries[j].Target {
			return plan.Entries[i].Target < plan.Entries[j].Target
		}
		return plan.Entries[i].Name < plan.Entries[j].Name
	})
	return plan, nil
}

func (c *Collector) taskExists(taskID string) bool {
	if c.taskStore == nil {
		return false
	}
	_, ok := c.taskStore.Get(artefact.KindTask, taskID)
	return ok
}

func (c *Collector) classifyByRecord(taskID string) (Band, string, bool) {
	rec, ok, err := c.orchestrator.Get(taskID)
	if err != nil || !ok {
		if c.taskExists(taskID) {
			return BandUnsafe, "orphaned directory but Task " + taskID + " still exists", true
		}
		return BandSafe, "no registry record and no referencing Task", true
	}
	if isTerminalStatus(rec.Status) {
		return BandSafe, "agent record is terminal (" + string(rec.Status) + ")", true
	}
	return BandActive, "agent record is non-terminal (" + string(rec.Status) + ")", true
}

func isTerminalStatus(s agentlife.Status) bool {
	switch s {
	case agentlife.StatusCollected, agentlife.StatusMerged, agentlife.StatusReaped,
		agentlife.StatusCompleted, agentlife.StatusRejected, agentlife.StatusKilled, agentlife.StatusError:
		return true
	default:
		return false
	}
}

func (c *Collector) scanAgents() ([]Entry, error) {
	names, err := listDirs(c.agentsDir)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, name := range names {
		band, reason, _ := c.classifyByRecord(name)
		out = append(out, Entry{Target: TargetAgents, Name: name, Path: filepath.Join(c.agentsDir, name), Band: band, Reason: reason})
	}
	return out, nil
}

func (c *Collector) scanWorktrees() ([]Entry, error) {
	names, err := listDirs(c.worktreesDir)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, name := range names {
		band, reason, _ := c.classifyByRecord(name)
		out = append(out, Entry{Target: TargetWorktrees, Name: name, Path: filepath.Join(c.worktreesDir, name), Band: band, Reason: reason})
	}
	return out, nil
}

// scanHavens inspects sibling per-project-hash haven directories. A haven
// belonging to a different project hash is only ever safe behind --force,
// modeled here as unsafe so the apply step requires an explicit opt-in.
func (c *Collector) scanHavens() ([]Entry, error) {
	names, err := listDirs(c.havensRoot)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, name := range names {
		var band Band
		var reason string
		if name == c.projectHash {
			band, reason = BandActive, "haven belongs to the current project"
		} else {
			band, reason = BandUnsafe, "haven belongs to a different project hash; requires --force"
		}
		out = append(out, Entry{Target: TargetHavens, Name: name, Path: filepath.Join(c.havensRoot, name), Band: band, Reason: reason})
	}
	return out, nil
}

func listDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

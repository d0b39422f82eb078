// Package assign implements the per-Task assignment registry: claim,
// release, and the orphan sentinel sweep that reclaims tasks abandoned by
// dead agent processes.
package assign

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sailctl/sailing/internal/artefact"
	"github.com/sailctl/sailing/internal/errs"
	"github.com/sailctl/sailing/internal/memory"
	"gopkg.in/yaml.v3"
)

// Status is the lifecycle state of one Task's assignment.
type Status string

const (
	StatusPending Status = "pending"
	StatusClaimed Status = "claimed"
	StatusComplete Status = "complete"
)

// Assignment is the per-Task registry entry.
type Assignment struct {
	TaskID      string     `yaml:"task_id"`
	EpicID      string     `yaml:"epic_id"`
	Operation   string     `yaml:"operation"`
	Status      Status     `yaml:"status"`
	CreatedAt   time.Time  `yaml:"created_at"`
	ClaimedAt   *time.Time `yaml:"claimed_at,omitempty"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty"`
	Success     *bool      `yaml:"success,omitempty"`
	ProjectHash string     `yaml:"project_hash"`
}

// Sentinel is the per-claim run marker, one file per currently-claimed Task.
type Sentinel struct {
	TaskID    string    `yaml:"task_id"`
	Operation string    `yaml:"operation"`
	StartedAt time.Time `yaml:"started_at"`
	PID       int       `yaml:"pid"`
}

// Registry owns the assignments and runs directories for one project.
type Registry struct {
	assignDir   string
	runDir      string
	projectHash string
	store       *artefact.Store
	memory      *memory.Pipeline
}

func New(assignDir, runDir, projectHash string, store *artefact.Store, mem *memory.Pipeline) *Registry {
	return &Registry{assignDir: assignDir, runDir: runDir, projectHash: projectHash, store: store, memory: mem}
}

func (r *Registry) assignPath(taskID string) string { return filepath.Join(r.assignDir, taskID+".yaml") }
func (r *Registry) runPath(taskID string) string     { return filepath.Join(r.runDir, taskID+".yaml") }

func (r *Registry) load(taskID string) (*Assignment, bool, error) {
	data, err := os.ReadFile(r.assignPath(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errs.Wrap(errs.IOError, "assign.load", "reading assignment file", err)
	}
	var a Assignment
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, false, errs.Wrap(errs.Corrupted, "assign.load", "parsing assignment file", err)
	}
	return &a, true, nil
}

func (r *Registry) save(a *Assignment) error {
	if err := os.MkdirAll(r.assignDir, 0755); err != nil {
		return errs.Wrap(errs.IOError, "assign.save", "creating assignments directory", err)
	}
	data, err := yaml.Marshal(a)
	if err != nil {
		return errs.Wrap(errs.IOError, "assign.save", "marshalling assignment", err)
	}
	tmp := r.assignPath(a.TaskID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errs.Wrap(errs.IOError, "assign.save", "writing assignment file", err)
	}
	return os.Rename(tmp, r.assignPath(a.TaskID))
}

func (r *Registry) loadSentinel(taskID string) (*Sentinel, bool, error) {
	data, err := os.ReadFile(r.runPath(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errs.Wrap(errs.IOError, "assign.loadSentinel", "reading sentinel file", err)
	}
	var s Sentinel
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, false, errs.Wrap(errs.Corrupted, "assign.loadSentinel", "parsing sentinel file", err)
	}
	return &s, true, nil
}

func (r *Registry) saveSentinel(s *Sentinel) error {
	if err := os.MkdirAll(r.runDir, 0755); err != nil {
		return errs.Wrap(errs.IOError, "assign.saveSentinel", "creating runs directory", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return errs.Wrap(errs.IOError, "assign.saveSentinel", "marshalling sentinel", err)
	}
	return os.WriteFile(r.runPath(s.TaskID), data, 0644)
}

func (r *Registry) deleteSentinel(taskID string) error {
	err := os.Remove(r.runPath(taskID))
	if err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.IOError, "assign.deleteSentinel", "removing sentinel file", err)
	}
	return nil
}

// pidAlive probes a process with the null signal: success means the
// process exists and we have permission to signal it; any error is treated
// as dead (including EPERM from a cross-user process, which is rare here).
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// SweepOrphans deletes every sentinel in the runs directory whose recorded
// PID is no longer alive.
func (r *Registry) SweepOrphans() ([]string, error) {
	entries, err := os.ReadDir(r.runDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.IOError, "assign.SweepOrphans", "reading runs directory", err)
	}

	var reaped []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		taskID := strings.TrimSuffix(e.Name(), ".yaml")
		sentinel, ok, err := r.loadSentinel(taskID)
		if err != nil {
			return reaped, err
		}
		if !ok {
			continue
		}
		if !pidAlive(sentinel.PID) {
			if err := r.deleteSentinel(taskID); err != nil {
				return reaped, err
			}
			reaped = append(reaped, taskID)
		}
	}
	return reaped, nil
}

// ComposePrompt concatenates the static agent contract, the Task's full
// content under "# Task: <id>", and then the Epic's body under
// "# Epic: <id>". The Agent Context from the Epic's memory file is not
// included.
func ComposePrompt(contract string, epic, task *artefact.Record) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(contract, "\n"))
	b.WriteString("\n\n")
	if task != nil {
		fmt.Fprintf(&b, "# Task: %s\n\n%s\n\n", task.FrontMatter.ID, strings.TrimSpace(task.Body))
	}
	if epic != nil {
		fmt.Fprintf(&b, "# Epic: %s\n\n%s\n", epic.FrontMatter.ID, strings.TrimSpace(epic.Body))
	}
	return b.String()
}

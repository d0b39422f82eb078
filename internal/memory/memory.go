// Package memory implements the per-Task append-only log and per-Epic
// curated memory file, and the sync() consolidation that merges the former
// into the latter.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sailctl/sailing/internal/errs"
)

// Level tags one log line's severity, per spec.md §4.E.
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelTip      Level = "TIP"
	LevelWarn     Level = "WARN"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// LogEntry is one line of a Task's append-only log.
type LogEntry struct {
	Timestamp time.Time
	Level     Level
	Message   string
	File      string // optional related file path
	Command   string // optional related command
}

// Pipeline owns the memory directory.
type Pipeline struct {
	dir string
}

// New returns a Pipeline rooted at dir (the resolved "memory" collection).
func New(dir string) *Pipeline {
	return &Pipeline{dir: dir}
}

func (p *Pipeline) logPath(taskID string) string {
	return filepath.Join(p.dir, taskID+".log")
}

func (p *Pipeline) memoryPath(epicID string) string {
	return filepath.Join(p.dir, epicID+".md")
}

// AppendLog appends one timestamped, level-tagged line to the Task's log.
func (p *Pipeline) AppendLog(taskID string, entry LogEntry) error {
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return errs.Wrap(errs.IOError, "memory.AppendLog", "creating memory directory", err)
	}
	f, err := os.OpenFile(p.logPath(taskID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errs.Wrap(errs.IOError, "memory.AppendLog", "opening log file", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(entry)); err != nil {
		return errs.Wrap(errs.IOError, "memory.AppendLog", "writing log line", err)
	}
	return nil
}

func formatLine(e LogEntry) string {
	ts := e.Timestamp.UTC().Format(time.RFC3339)
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", ts, e.Level, e.Message)
	if e.File != "" {
		fmt.Fprintf(&b, " file=%s", e.File)
	}
	if e.Command != "" {
		fmt.Fprintf(&b, " cmd=%s", e.Command)
	}
	b.WriteByte('\n')
	return b.String()
}

// ReadLog returns the raw lines currently in a Task's log, or nil if the
// log doesn't exist or is empty.
func (p *Pipeline) ReadLog(taskID string) ([]string, error) {
	data, err := os.ReadFile(p.logPath(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.IOError, "memory.ReadLog", "reading log file", err)
	}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// IsPending reports whether taskID's log is non-empty.
func (p *Pipeline) IsPending(taskID string) (bool, error) {
	lines, err := p.ReadLog(taskID)
	if err != nil {
		return false, err
	}
	return len(lines) > 0, nil
}

// EnsureEpicFile creates epicID's memory file from the template if it does
// not already exist.
func (p *Pipeline) EnsureEpicFile(epicID string) error {
	path := p.memoryPath(epicID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errs.Wrap(errs.IOError, "memory.EnsureEpicFile", "stat memory file", err)
	}
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return errs.Wrap(errs.IOError, "memory.EnsureEpicFile", "creating memory directory", err)
	}
	return p.writeAtomic(path, templateBody(epicID))
}

func templateBody(epicID string) string {
	return fmt.Sprintf("# %s Memory\n\n## Agent Context\n\n## Decisions\n\n## Open Questions\n\n", epicID)
}

func (p *Pipeline) writeAtomic(path, content string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return errs.Wrap(errs.IOError, "memory.writeAtomic", "writing temp file", err)
	}
	return os.Rename(tmp, path)
}

// truncateLog zero-lengths a Task's log after a successful merge.
func (p *Pipeline) truncateLog(taskID string) error {
	return os.WriteFile(p.logPath(taskID), nil, 0644)
}

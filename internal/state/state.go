// Package state implements the persistent integer counters (next PRD/Epic/
// Task/Story/ADR ID) and small key-value JSON documents that live under the
// project-local control directory. Counters are exclusively owned here;
// every allocation is a locked read-modify-write.
package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/sailctl/sailing/internal/errs"
	"github.com/sailctl/sailing/internal/idnorm"
	"github.com/sailctl/sailing/internal/lockfile"
)

// Counters holds the next-ID value per artefact kind.
type Counters struct {
	PRD   int `json:"prd"`
	Epic  int `json:"epic"`
	Task  int `json:"task"`
	Story int `json:"story"`
	ADR   int `json:"adr"`
}

// Store owns state.json under dir and a small lock file beside it.
type Store struct {
	path     string
	lockPath string
}

// New returns a Store backed by <dir>/state.json.
func New(dir string) *Store {
	return &Store{
		path:     filepath.Join(dir, "state.json"),
		lockPath: filepath.Join(dir, "state.lock"),
	}
}

// Kind selects which counter to allocate from.
type Kind string

const (
	KindPRD   Kind = "prd"
	KindEpic  Kind = "epic"
	KindTask  Kind = "task"
	KindStory Kind = "story"
	KindADR   Kind = "adr"
)

// Next atomically increments and returns the next integer value for kind,
// persisting the result before returning it.
func (s *Store) Next(kind Kind) (int, error) {
	var allocated int
	err := lockfile.LockRetry(s.lockPath, 5*time.Second, 5*time.Millisecond, func() error {
		counters, err := s.read()
		if err != nil {
			return err
		}
		switch kind {
		case KindPRD:
			counters.PRD++
			allocated = counters.PRD
		case KindEpic:
			counters.Epic++
			allocated = counters.Epic
		case KindTask:
			counters.Task++
			allocated = counters.Task
		case KindStory:
			counters.Story++
			allocated = counters.Story
		case KindADR:
			counters.ADR++
			allocated = counters.ADR
		default:
			return errs.New(errs.InvalidInput, "state.Next", "unknown counter kind")
		}
		return s.write(counters)
	})
	if err != nil {
		if errors.Is(err, lockfile.ErrBusy) {
			return 0, errs.Wrap(errs.ConcurrencyError, "state.Next", "state.json is locked by another process", err)
		}
		return 0, err
	}
	return allocated, nil
}

// Peek returns the current counters without allocating.
func (s *Store) Peek() (Counters, error) {
	return s.read()
}

// Prefix maps a counter Kind to its idnorm.Prefix, used by callers composing
// a canonical ID right after allocation.
func (k Kind) Prefix() idnorm.Prefix {
	switch k {
	case KindPRD:
		return idnorm.PRD
	case KindEpic:
		return idnorm.Epic
	case KindTask:
		return idnorm.Task
	case KindStory:
		return idnorm.Story
	case KindADR:
		return idnorm.ADR
	default:
		return ""
	}
}

func (s *Store) read() (Counters, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Counters{}, nil
		}
		return Counters{}, errs.Wrap(errs.IOError, "state.read", "reading state.json", err)
	}
	if len(data) == 0 {
		return Counters{}, nil
	}
	var c Counters
	if err := json.Unmarshal(data, &c); err != nil {
		return Counters{}, errs.Wrap(errs.Corrupted, "state.read", "parsing state.json", err)
	}
	return c, nil
}

func (s *Store) write(c Counters) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errs.Wrap(errs.IOError, "state.write", "marshalling counters", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errs.Wrap(errs.IOError, "state.write", "writing temp state file", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errs.Wrap(errs.IOError, "state.write", "renaming temp state file", err)
	}
	return nil
}

// Doc is a small key-value JSON document stored alongside state.json, e.g.
// components.yaml-adjacent bookkeeping that does not warrant a whole
// artefact.
type Doc struct {
	path     string
	lockPath string
}

// NewDoc returns a Doc backed by <dir>/<name>.json.
func NewDoc(dir, name string) *Doc {
	return &Doc{
		path:     filepath.Join(dir, name+".json"),
		lockPath: filepath.Join(dir, name+".lock"),
	}
}

// Get unmarshals the document into out. A missing document leaves out
// untouched and returns no error.
func (d *Doc) Get(out interface{}) error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrap(errs.IOError, "state.Doc.Get", "reading document", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errs.Wrap(errs.Corrupted, "state.Doc.Get", "parsing document", err)
	}
	return nil
}

// Set atomically overwrites the document with value, under lock.
func (d *Doc) Set(value interface{}) error {
	return lockfile.Lock(d.lockPath, func() error {
		return d.writeLocked(value)
	})
}

// Update performs a locked read-modify-write: out is populated from the
// current document, mutate is called to change it in place, and the result
// is persisted before the lock is released.
func (d *Doc) Update(out interface{}, mutate func() error) error {
	return lockfile.Lock(d.lockPath, func() error {
		data, err := os.ReadFile(d.path)
		if err != nil && !os.IsNotExist(err) {
			return errs.Wrap(errs.IOError, "state.Doc.Update", "reading document", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return errs.Wrap(errs.Corrupted, "state.Doc.Update", "parsing document", err)
			}
		}
		if err := mutate(); err != nil {
			return err
		}
		return d.writeLocked(out)
	})
}

func (d *Doc) writeLocked(value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errs.Wrap(errs.IOError, "state.Doc.writeLocked", "marshalling document", err)
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errs.Wrap(errs.IOError, "state.Doc.writeLocked", "writing temp document", err)
	}
	return os.Rename(tmp, d.path)
}

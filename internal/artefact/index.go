package artefact

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sailctl/sailing/internal/idnorm"
)

// IndexEntry is a non-owning reference into an on-disk artefact: enough to
// locate and re-load the file without holding its content in memory.
type IndexEntry struct {
	ID                string
	Key                string // the canonical ID, same value as ID
	FilePath          string
	ParentDir         string
	CachedFrontMatter FrontMatter
	CreatedAt         time.Time
	ModifiedAt        time.Time
}

// Index maintains a per-kind Map<canonical_id, IndexEntry>, rebuilt lazily
// on first use after invalidation. All reads take a short-lived snapshot;
// all mutations invalidate and let the next read rebuild.
type Index struct {
	store *Store

	mu      sync.RWMutex
	built   map[Kind]bool
	entries map[Kind]map[string]IndexEntry
	warnings []string
}

func newIndex(store *Store) *Index {
	return &Index{
		store:   store,
		built:   make(map[Kind]bool),
		entries: make(map[Kind]map[string]IndexEntry),
	}
}

// Invalidate marks kind's index dirty; the next read rebuilds it from disk.
func (idx *Index) invalidate(kind Kind) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.built[kind] = false
}

// InvalidateAll forces a full rebuild of every kind on next use.
func (idx *Index) InvalidateAll() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for k := range idx.built {
		idx.built[k] = false
	}
}

// Entries returns a snapshot of all known entries for kind, rebuilding
// first if necessary.
func (idx *Index) Entries(kind Kind) map[string]IndexEntry {
	idx.ensureBuilt(kind)
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string]IndexEntry, len(idx.entries[kind]))
	for k, v := range idx.entries[kind] {
		out[k] = v
	}
	return out
}

// CanonicalIDs returns every canonical ID known for kind, sorted.
func (idx *Index) CanonicalIDs(kind Kind) []string {
	entries := idx.Entries(kind)
	out := make([]string, 0, len(entries))
	for id := range entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Warnings returns non-fatal findings accumulated during the most recent
// rebuild (e.g. duplicate IDs), cleared on the next rebuild.
func (idx *Index) Warnings() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]string, len(idx.warnings))
	copy(out, idx.warnings)
	return out
}

func (idx *Index) lookupEntry(kind Kind, idAny string) (IndexEntry, bool) {
	idx.ensureBuilt(kind)
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	m := idx.entries[kind]
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	resolver := idnorm.NewResolver(prefixFor(kind), ids)
	canonical, ok := resolver.Resolve(idAny)
	if !ok {
		return IndexEntry{}, false
	}
	entry, ok := m[canonical]
	return entry, ok
}

func prefixFor(kind Kind) idnorm.Prefix {
	switch kind {
	case KindProduct:
		return idnorm.PRD
	case KindEpic:
		return idnorm.Epic
	case KindTask:
		return idnorm.Task
	case KindStory:
		return idnorm.Story
	default:
		return ""
	}
}

func (idx *Index) ensureBuilt(kind Kind) {
	idx.mu.RLock()
	built := idx.built[kind]
	idx.mu.RUnlock()
	if built {
		return
	}

	entries, warnings := idx.rebuild(kind)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[kind] = entries
	idx.built[kind] = true
	idx.warnings = append(idx.warnings, warnings...)
}

// rebuild scans the artefacts tree for files matching kind's filename
// pattern and builds a fresh entry map. Duplicate keys are never fatal: the
// later file wins, and a warning is recorded unless both entries are in a
// terminal status (Done or Cancelled).
func (idx *Index) rebuild(kind Kind) (map[string]IndexEntry, []string) {
	entries := make(map[string]IndexEntry)
	var warnings []string

	_ = filepath.WalkDir(idx.store.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(name, ".md") {
			return nil
		}
		fileKind := kindFromFilename(name)
		if fileKind != kind {
			return nil
		}
		rec, _, err := idx.store.Load(path)
		if err != nil {
			return nil
		}
		id := rec.FrontMatter.ID
		if id == "" {
			return nil
		}
		info, statErr := d.Info()
		var modTime time.Time
		if statErr == nil {
			modTime = info.ModTime()
		}
		newEntry := IndexEntry{
			ID: id, Key: id, FilePath: path, ParentDir: filepath.Dir(path),
			CachedFrontMatter: rec.FrontMatter,
			CreatedAt:         rec.FrontMatter.CreatedAt,
			ModifiedAt:        modTime,
		}
		if existing, dup := entries[id]; dup {
			bothTerminal := IsTerminal(existing.CachedFrontMatter.Status) && IsTerminal(newEntry.CachedFrontMatter.Status)
			if !bothTerminal {
				warnings = append(warnings, "duplicate id "+id+" at "+path+" and "+existing.FilePath)
			}
		}
		entries[id] = newEntry
		return nil
	})
	return entries, warnings
}

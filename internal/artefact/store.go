// Package artefact implements the on-disk artefact store and its in-memory
// index: loading/saving markdown+front-matter files, allocating new
// artefacts from the state store's counters, and section-level edits.
package artefact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/sailctl/sailing/internal/errs"
	"github.com/sailctl/sailing/internal/idnorm"
	"github.com/sailctl/sailing/internal/paths"
	"github.com/sailctl/sailing/internal/state"
)

// Store translates between on-disk artefacts and typed Records. It owns the
// artefacts/ tree; the Index holds only non-owning references into it.
type Store struct {
	root    string // resolved path of the "artefacts" collection
	state   *state.Store
	log     *slog.Logger
	index   *Index
}

// NewStore builds a Store rooted at artefactsDir, allocating IDs from
// stateStore.
func NewStore(artefactsDir string, stateStore *state.Store, log *slog.Logger) *Store {
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	s := &Store{root: artefactsDir, state: stateStore, log: log}
	s.index = newIndex(s)
	return s
}

// Index exposes the store's lazy index.
func (s *Store) Index() *Index { return s.index }

// Load reads a raw document from an absolute path, tolerating malformed
// front-matter per the store's failure semantics.
func (s *Store) Load(path string) (*Record, Kind, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", errs.Wrap(errs.NotFound, "artefact.Load", path, err)
		}
		return nil, "", errs.Wrap(errs.IOError, "artefact.Load", path, err)
	}
	doc, err := parseDocument(data)
	if err != nil {
		return nil, "", err
	}
	kind := kindFromFilename(filepath.Base(path))
	rec, err := recordFromDocument(kind, doc, path)
	if err != nil {
		return nil, "", err
	}
	if len(doc.FrontMatter) == 0 && rec.FrontMatter.ID == "" {
		s.log.Warn("malformed front-matter, loaded as body-only", "path", path)
	}
	return rec, kind, nil
}

// Save writes rec atomically: temp file in the same directory, then rename.
// Permission bits are clamped to 0644 before the rename.
func (s *Store) Save(rec *Record) error {
	doc, err := rec.toDocument()
	if err != nil {
		return err
	}
	data, err := renderDocument(doc)
	if err != nil {
		return err
	}
	dir := filepath.Dir(rec.FilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.Wrap(errs.IOError, "artefact.Save", "creating parent directory", err)
	}
	tmp := filepath.Join(dir, ".tmp-"+filepath.Base(rec.FilePath))
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errs.Wrap(errs.IOError, "artefact.Save", "writing temp file", err)
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		return errs.Wrap(errs.IOError, "artefact.Save", "clamping permissions", err)
	}
	if err := os.Rename(tmp, rec.FilePath); err != nil {
		return errs.Wrap(errs.IOError, "artefact.Save", "renaming into place", err)
	}
	s.index.invalidate(rec.Kind)
	return nil
}

// CreateOptions carries the optional fields create_<kind> may set besides
// title and parent.
type CreateOptions struct {
	Tags           []string
	BlockedBy      []string
	Stories        []string
	Effort         string
	Priority       string
	Assignee       string
	Milestone      string
	Branching      string
	TargetVersions map[string]string
	Body           string
}

var filenamePattern = regexp.MustCompile(`^(PRD-\d+|E\d+|T\d+[a-z]?|S\d+)-(.+)\.md$`)

func kindFromFilename(name string) Kind {
	switch {
	case name == "prd.md":
		return KindProduct
	case regexp.MustCompile(`^PRD-\d+`).MatchString(name):
		return KindProduct
	case regexp.MustCompile(`^E\d+`).MatchString(name):
		return KindEpic
	case regexp.MustCompile(`^T\d+`).MatchString(name):
		return KindTask
	case regexp.MustCompile(`^S\d+`).MatchString(name):
		return KindStory
	}
	return ""
}

func (s *Store) now() time.Time { return time.Now().UTC() }

// maxIDAllocAttempts bounds the retry-on-collision loop every Create<Kind>
// runs: the counter and the artefact tree can drift apart (a file restored
// from backup, a counter reset) and a fresh ID can land on an existing path.
const maxIDAllocAttempts = 5

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CreateProduct allocates PRD-<n>, writes prds/PRD-<n>-<slug>/prd.md, and
// invalidates the Product index. Retries on a colliding path up to
// maxIDAllocAttempts times before failing with CounterExhausted.
func (s *Store) CreateProduct(title string, opts CreateOptions) (*Record, error) {
	slug := slugify(title)
	for attempt := 0; attempt < maxIDAllocAttempts; attempt++ {
		n, err := s.state.Next(state.KindPRD)
		if err != nil {
			return nil, err
		}
		id := idnorm.Canonicalize(idnorm.PRD, n, "")
		dir := filepath.Join(s.root, "prds", fmt.Sprintf("%s-%s", id, slug))
		candidate := filepath.Join(dir, "prd.md")
		if fileExists(candidate) {
			continue
		}
		rec := &Record{
			Kind: KindProduct,
			FrontMatter: FrontMatter{
				ID: id, Title: title, Status: StatusDraft,
				Tags: opts.Tags, CreatedAt: s.now(), UpdatedAt: s.now(),
				Branching: firstNonEmpty(opts.Branching, "flat"),
			},
			Body:     firstNonEmpty(opts.Body, defaultBody(KindProduct)),
			FilePath: candidate,
		}
		if err := s.Save(rec); err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, errs.New(errs.CounterExhausted, "artefact.CreateProduct", "could not allocate a unique PRD id for "+title)
}

// productDir returns the directory containing prd.md for the given
// canonical PRD id, used to place Epic/Task/Story/Milestone collateral.
func (s *Store) productDir(prdID string) (string, error) {
	entry, ok := s.index.lookupEntry(KindProduct, prdID)
	if !ok {
		return "", errs.New(errs.NotFound, "artefact.productDir", fmt.Sprintf("%s not found", prdID))
	}
	return filepath.Dir(entry.FilePath), nil
}

// CreateEpic allocates E<n> under prdID. Retries on a colliding path up to
// maxIDAllocAttempts times before failing with CounterExhausted.
func (s *Store) CreateEpic(prdID, title string, opts CreateOptions) (*Record, error) {
	dir, err := s.productDir(prdID)
	if err != nil {
		return nil, err
	}
	slug := slugify(title)
	for attempt := 0; attempt < maxIDAllocAttempts; attempt++ {
		n, err := s.state.Next(state.KindEpic)
		if err != nil {
			return nil, err
		}
		id := idnorm.Canonicalize(idnorm.Epic, n, "")
		candidate := filepath.Join(dir, "epics", fmt.Sprintf("%s-%s.md", id, slug))
		if fileExists(candidate) {
			continue
		}
		rec := &Record{
			Kind: KindEpic,
			FrontMatter: FrontMatter{
				ID: id, Title: title, Status: StatusDraft, Parent: prdID,
				Tags: opts.Tags, BlockedBy: dedupe(opts.BlockedBy),
				CreatedAt: s.now(), UpdatedAt: s.now(),
				Milestone: opts.Milestone,
			},
			Body:     firstNonEmpty(opts.Body, defaultBody(KindEpic)),
			FilePath: candidate,
		}
		if err := s.Save(rec); err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, errs.New(errs.CounterExhausted, "artefact.CreateEpic", "could not allocate a unique Epic id for "+title)
}

// CreateTask allocates T<n> under the Epic identified by epicID. Retries on
// a colliding path up to maxIDAllocAttempts times before failing with
// CounterExhausted.
func (s *Store) CreateTask(epicID, title string, opts CreateOptions) (*Record, error) {
	epic, ok := s.Get(KindEpic, epicID)
	if !ok {
		return nil, errs.New(errs.NotFound, "artefact.CreateTask", fmt.Sprintf("epic %s not found", epicID))
	}
	dir, err := s.productDir(epic.FrontMatter.Parent)
	if err != nil {
		return nil, err
	}
	slug := slugify(title)
	for attempt := 0; attempt < maxIDAllocAttempts; attempt++ {
		n, err := s.state.Next(state.KindTask)
		if err != nil {
			return nil, err
		}
		id := idnorm.Canonicalize(idnorm.Task, n, "")
		candidate := filepath.Join(dir, "tasks", fmt.Sprintf("%s-%s.md", id, slug))
		if fileExists(candidate) {
			continue
		}
		rec := &Record{
			Kind: KindTask,
			FrontMatter: FrontMatter{
				ID: id, Title: title, Status: StatusNotStarted,
				Parent: fmt.Sprintf("%s / %s", epic.FrontMatter.Parent, epic.FrontMatter.ID),
				Tags:   opts.Tags, BlockedBy: dedupe(opts.BlockedBy), Stories: opts.Stories,
				Effort: opts.Effort, Priority: firstNonEmpty(opts.Priority, "normal"),
				Assignee: opts.Assignee, CreatedAt: s.now(), UpdatedAt: s.now(),
				TargetVersions: opts.TargetVersions,
			},
			Body:     firstNonEmpty(opts.Body, defaultBody(KindTask)),
			FilePath: candidate,
		}
		if err := s.Save(rec); err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, errs.New(errs.CounterExhausted, "artefact.CreateTask", "could not allocate a unique Task id for "+title)
}

// CreateStory allocates S<n> under prdID. Retries on a colliding path up to
// maxIDAllocAttempts times before failing with CounterExhausted.
func (s *Store) CreateStory(prdID, title string, opts CreateOptions) (*Record, error) {
	dir, err := s.productDir(prdID)
	if err != nil {
		return nil, err
	}
	slug := slugify(title)
	for attempt := 0; attempt < maxIDAllocAttempts; attempt++ {
		n, err := s.state.Next(state.KindStory)
		if err != nil {
			return nil, err
		}
		id := idnorm.Canonicalize(idnorm.Story, n, "")
		candidate := filepath.Join(dir, "stories", fmt.Sprintf("%s-%s.md", id, slug))
		if fileExists(candidate) {
			continue
		}
		rec := &Record{
			Kind: KindStory,
			FrontMatter: FrontMatter{
				ID: id, Title: title, Parent: prdID, Tags: opts.Tags,
				CreatedAt: s.now(), UpdatedAt: s.now(),
			},
			Body:     firstNonEmpty(opts.Body, defaultBody(KindStory)),
			FilePath: candidate,
		}
		if err := s.Save(rec); err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, errs.New(errs.CounterExhausted, "artefact.CreateStory", "could not allocate a unique Story id for "+title)
}

// Get performs an ID-normalized lookup for the given kind.
func (s *Store) Get(kind Kind, idAny string) (*Record, bool) {
	entry, ok := s.index.lookupEntry(kind, idAny)
	if !ok {
		return nil, false
	}
	rec, _, err := s.Load(entry.FilePath)
	if err != nil {
		return nil, false
	}
	return rec, true
}

// UpdateFrontmatter merges patch into the artefact's front-matter, stamps
// updated_at, and applies started_at/done_at status-transition stamping
// when status is among the patched keys.
func (s *Store) UpdateFrontmatter(kind Kind, idAny string, patch map[string]interface{}) (*Record, error) {
	rec, ok := s.Get(kind, idAny)
	if !ok {
		return nil, errs.New(errs.NotFound, "artefact.UpdateFrontmatter", fmt.Sprintf("%s not found", idAny))
	}
	if newStatus, changingStatus := patch["status"].(string); changingStatus {
		delete(patch, "status")
		if err := rec.ApplyPatch(patch); err != nil {
			return nil, err
		}
		if !rec.StampTransition(newStatus, s.now()) {
			rec.FrontMatter.UpdatedAt = s.now()
		}
	} else {
		if err := rec.ApplyPatch(patch); err != nil {
			return nil, err
		}
		rec.FrontMatter.UpdatedAt = s.now()
	}
	if err := s.Save(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func defaultBody(kind Kind) string {
	switch kind {
	case KindProduct:
		return "## Overview\n\nDescribe the product.\n"
	case KindEpic:
		return "## Summary\n\nDescribe the epic.\n"
	case KindTask:
		return "## Description\n\nDescribe the task.\n\n## Acceptance Criteria\n\n"
	case KindStory:
		return "## Narrative\n\n"
	default:
		return ""
	}
}

func slugify(title string) string {
	return paths.Sanitize(title)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}

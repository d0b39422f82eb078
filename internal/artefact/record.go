package artefact

import (
	"time"

	"github.com/sailctl/sailing/internal/errs"
	"gopkg.in/yaml.v3"
)

// FrontMatter holds every canonical attribute an artefact can carry. Fields
// that only apply to some kinds are simply left zero for the others; this
// keeps Record a single tagged-variant type per spec.md §9's redesign
// guidance rather than four near-duplicate structs.
type FrontMatter struct {
	ID        string    `yaml:"id"`
	Title     string    `yaml:"title"`
	Status    string    `yaml:"status"`
	Parent    string    `yaml:"parent,omitempty"`
	Tags      []string  `yaml:"tags,omitempty"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`

	BlockedBy      []string          `yaml:"blocked_by,omitempty"`
	Stories        []string          `yaml:"stories,omitempty"`
	Effort         string            `yaml:"effort,omitempty"`
	Priority       string            `yaml:"priority,omitempty"`
	Assignee       string            `yaml:"assignee,omitempty"`
	StartedAt      *time.Time        `yaml:"started_at,omitempty"`
	DoneAt         *time.Time        `yaml:"done_at,omitempty"`
	Milestone      string            `yaml:"milestone,omitempty"`
	Branching      string            `yaml:"branching,omitempty"`
	TargetVersions map[string]string `yaml:"target_versions,omitempty"`
}

// Record is the in-memory representation of one loaded artefact.
type Record struct {
	Kind        Kind
	FrontMatter FrontMatter
	Body        string
	FilePath    string
}

// CanonicalID is a convenience accessor mirroring FrontMatter.ID.
func (r *Record) CanonicalID() string { return r.FrontMatter.ID }

// kind reports the tagged-variant discriminator, per spec.md §9's "closed
// sum type with a kind() accessor" guidance.
func (r *Record) kind() Kind { return r.Kind }

func recordFromDocument(kind Kind, doc *document, filePath string) (*Record, error) {
	data, err := yaml.Marshal(doc.FrontMatter)
	if err != nil {
		return nil, errs.Wrap(errs.Corrupted, "artefact.recordFromDocument", "re-marshalling front-matter", err)
	}
	var fm FrontMatter
	if err := yaml.Unmarshal(data, &fm); err != nil {
		// Malformed shape for our schema: degrade to an empty typed record,
		// the caller logs the warning and keeps only ID/body if derivable.
		fm = FrontMatter{}
	}
	return &Record{Kind: kind, FrontMatter: fm, Body: doc.Body, FilePath: filePath}, nil
}

func (r *Record) toDocument() (*document, error) {
	data, err := yaml.Marshal(r.FrontMatter)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "artefact.toDocument", "marshalling front-matter", err)
	}
	var m map[string]interface{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errs.Wrap(errs.IOError, "artefact.toDocument", "round-tripping front-matter", err)
	}
	return &document{FrontMatter: m, Body: r.Body}, nil
}

// ApplyPatch merges an arbitrary field→value map into the front-matter,
// matching update_frontmatter's "merge a patch" contract. Unknown keys are
// ignored (the schema is closed); known keys overwrite.
func (r *Record) ApplyPatch(patch map[string]interface{}) error {
	data, err := yaml.Marshal(r.FrontMatter)
	if err != nil {
		return errs.Wrap(errs.IOError, "artefact.ApplyPatch", "marshalling current front-matter", err)
	}
	var m map[string]interface{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return errs.Wrap(errs.IOError, "artefact.ApplyPatch", "unmarshalling current front-matter", err)
	}
	for k, v := range patch {
		m[k] = v
	}
	data2, err := yaml.Marshal(m)
	if err != nil {
		return errs.Wrap(errs.IOError, "artefact.ApplyPatch", "marshalling merged front-matter", err)
	}
	var fm FrontMatter
	if err := yaml.Unmarshal(data2, &fm); err != nil {
		return errs.Wrap(errs.InvalidInput, "artefact.ApplyPatch", "merged front-matter does not fit schema", err)
	}
	r.FrontMatter = fm
	return nil
}

// StampTransition applies the started_at/done_at stamping rule: entering
// In Progress stamps started_at exactly once (idempotent on repeat),
// entering Done stamps done_at and preserves started_at. Returns whether the
// status actually changed.
func (r *Record) StampTransition(newStatus string, now time.Time) bool {
	if r.FrontMatter.Status == newStatus {
		return false
	}
	r.FrontMatter.Status = newStatus
	switch newStatus {
	case StatusInProgress:
		if r.FrontMatter.StartedAt == nil {
			t := now
			r.FrontMatter.StartedAt = &t
		}
	case StatusDone:
		if r.FrontMatter.StartedAt == nil {
			t := now
			r.FrontMatter.StartedAt = &t
		}
		t := now
		r.FrontMatter.DoneAt = &t
	}
	r.FrontMatter.UpdatedAt = now
	return true
}

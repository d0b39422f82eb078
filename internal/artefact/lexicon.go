package artefact

import "strings"

// Kind discriminates the four artefact variants. It is a closed sum type;
// the string alias survives only at the CLI parsing boundary.
type Kind string

const (
	KindProduct Kind = "product"
	KindEpic    Kind = "epic"
	KindTask    Kind = "task"
	KindStory   Kind = "story"
)

// Task status lexicon, invariant across the system.
const (
	StatusNotStarted = "Not Started"
	StatusInProgress = "In Progress"
	StatusDone       = "Done"
	StatusBlocked    = "Blocked"
	StatusCancelled  = "Cancelled"
)

// Extra terms for the other kinds: Epics use Draft in place of Not Started
// and otherwise share the Task terms (Blocked included); Products use Draft,
// Approved, In Progress and Done.
const (
	StatusDraft    = "Draft"
	StatusApproved = "Approved"
)

var taskAliases = map[string]string{
	"wip":          StatusInProgress,
	"in progress":  StatusInProgress,
	"todo":         StatusNotStarted,
	"not started":  StatusNotStarted,
	"done":         StatusDone,
	"blocked":      StatusBlocked,
	"cancelled":    StatusCancelled,
	"canceled":     StatusCancelled,
}

var epicAliases = map[string]string{
	"draft":       StatusDraft,
	"in progress": StatusInProgress,
	"done":        StatusDone,
	"blocked":     StatusBlocked,
	"cancelled":   StatusCancelled,
	"canceled":    StatusCancelled,
}

var productAliases = map[string]string{
	"draft":       StatusDraft,
	"approved":    StatusApproved,
	"in progress": StatusInProgress,
	"done":        StatusDone,
}

// validStatuses lists the canonical statuses accepted for each kind.
var validStatuses = map[Kind][]string{
	KindTask:    {StatusNotStarted, StatusInProgress, StatusDone, StatusBlocked, StatusCancelled},
	KindEpic:    {StatusDraft, StatusInProgress, StatusDone, StatusBlocked, StatusCancelled},
	KindProduct: {StatusDraft, StatusApproved, StatusInProgress, StatusDone},
}

// CanonicalStatus maps any accepted alias (case/spacing-insensitive) for the
// given kind to its canonical lexicon form. ok is false for values outside
// the lexicon entirely (the InvalidStatus validator finding).
func CanonicalStatus(kind Kind, raw string) (canonical string, ok bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	var aliases map[string]string
	switch kind {
	case KindTask, KindStory:
		aliases = taskAliases
	case KindEpic:
		aliases = epicAliases
	case KindProduct:
		aliases = productAliases
	}
	if aliases == nil {
		return "", false
	}
	if canon, found := aliases[normalized]; found {
		return canon, true
	}
	for _, v := range validStatuses[kind] {
		if strings.EqualFold(v, raw) {
			return v, true
		}
	}
	return "", false
}

// IsTerminal reports whether status represents a terminal state for any
// kind (Done or Cancelled) — the state beyond which dependents may be unblocked
// and GC may consider the artefact for removal.
func IsTerminal(status string) bool {
	return status == StatusDone || status == StatusCancelled
}

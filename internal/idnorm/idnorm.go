// Package idnorm normalizes the various textual forms an artefact ID can
// take on input (raw number, prefixed, zero-padded, suffixed) into one
// canonical form, and resolves arbitrary input against a known ID set.
package idnorm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Prefix identifies which artefact kind an ID belongs to.
type Prefix string

const (
	PRD  Prefix = "PRD-"
	Epic Prefix = "E"
	Task Prefix = "T"
	Story Prefix = "S"
	ADR  Prefix = "ADR-"
)

// width is the zero-pad width used when rendering a canonical ID whose
// numeric component still fits; wider numbers are rendered at their natural
// width (T1000, not T01000).
const width = 3

var formRe = regexp.MustCompile(`^([A-Za-z]*-?)0*([0-9]+)([a-z]?)$`)

// Canonicalize renders prefix, n and an optional lowercase task suffix
// letter into the canonical textual form, e.g. Canonicalize(Task, 1, "a")
// → "T001a", Canonicalize(Task, 10000, "") → "T10000".
func Canonicalize(prefix Prefix, n int, suffix string) string {
	digits := fmt.Sprintf("%d", n)
	if len(digits) < width {
		digits = strings.Repeat("0", width-len(digits)) + digits
	}
	return string(prefix) + digits + suffix
}

// Parse decomposes an arbitrary input ID form into its prefix-free
// components: the parsed prefix text, the numeric value, and any trailing
// lowercase letter suffix. ok is false if input does not match the ID
// grammar `<prefix>?0*<n><suffix>?`.
func Parse(input string) (prefix string, n int, suffix string, ok bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", 0, "", false
	}
	m := formRe.FindStringSubmatch(input)
	if m == nil {
		return "", 0, "", false
	}
	value, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, "", false
	}
	return m[1], value, m[3], true
}

// Resolver maps canonical IDs of a single kind to themselves, and accepts
// any accepted input variant, collapsing it to the canonical form.
type Resolver struct {
	prefix Prefix
	known  map[string]string // numeric+suffix key -> canonical
}

// NewResolver builds a Resolver for one artefact kind from its set of
// already-canonical known IDs (e.g. everything currently in the index).
func NewResolver(prefix Prefix, canonicalIDs []string) *Resolver {
	r := &Resolver{prefix: prefix, known: make(map[string]string, len(canonicalIDs))}
	for _, id := range canonicalIDs {
		r.Add(id)
	}
	return r
}

// Add registers an additional canonical ID with the resolver, e.g. after a
// create operation allocates a new one.
func (r *Resolver) Add(canonicalID string) {
	_, n, suffix, ok := Parse(canonicalID)
	if !ok {
		return
	}
	r.known[key(n, suffix)] = canonicalID
}

// Resolve accepts any textual variant of an ID (raw number, prefixed,
// zero-padded, differently-cased prefix) and returns the canonical form
// known to the resolver, or ("", false) if it does not match any known ID
// or does not match the ID grammar at all.
func (r *Resolver) Resolve(input string) (string, bool) {
	prefix, n, suffix, ok := Parse(input)
	if !ok {
		return "", false
	}
	if prefix != "" && !strings.EqualFold(prefix, string(r.prefix)) {
		return "", false
	}
	canonical, known := r.known[key(n, suffix)]
	if !known {
		return "", false
	}
	return canonical, true
}

func key(n int, suffix string) string {
	return fmt.Sprintf("%d%s", n, suffix)
}

// Len reports how many distinct IDs the resolver currently knows about.
func (r *Resolver) Len() int { return len(r.known) }

package depgraph

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sailctl/sailing/internal/artefact"
	"github.com/sailctl/sailing/internal/idnorm"
)

// Rule names the eleven validator rule families from spec.md §4.D.
type Rule string

const (
	RuleMissingRef         Rule = "missing_ref"
	RuleSelfRef            Rule = "self_ref"
	RuleDuplicate          Rule = "duplicate"
	RuleFormat             Rule = "format"
	RuleCancelledBlocker   Rule = "cancelled_blocker"
	RuleInvalidStatus      Rule = "invalid_status"
	RuleStatusFormat       Rule = "status_format"
	RuleCycle              Rule = "cycle"
	RuleMissingEpicParent  Rule = "missing_epic_parent"
	RuleIDMismatch         Rule = "id_mismatch"
	RuleEpicStatusMismatch Rule = "epic_status_mismatch"
)

// Finding is one validator result.
type Finding struct {
	Rule        Rule
	ArtefactID  string
	Kind        artefact.Kind
	Message     string
	AutoFixable bool
}

// Report is the full validate() output.
type Report struct {
	Findings []Finding
	Fixed    []Finding // subset that --fix successfully repaired
}

// Validate runs all eleven rule families against store. When fix is true,
// a bounded set of repairs is applied, grouped per file — every finding on
// one artefact is resolved in a single load-save cycle — and the index is
// invalidated once at the end.
func Validate(store *artefact.Store, fix bool) (*Report, error) {
	taskGraph := Build(store.Index(), artefact.KindTask)
	epicGraph := Build(store.Index(), artefact.KindEpic)

	report := &Report{}
	report.Findings = append(report.Findings, cycleFindings(taskGraph)...)
	report.Findings = append(report.Findings, cycleFindings(epicGraph)...)

	perFileFindings := make(map[string][]Finding)

	for _, entry := range store.Index().Entries(artefact.KindTask) {
		fs := inspectBlockers(artefact.KindTask, entry, taskGraph)
		fs = append(fs, inspectStatus(artefact.KindTask, entry)...)
		fs = append(fs, inspectIDMismatch(artefact.KindTask, entry)...)
		fs = append(fs, inspectMissingEpicParent(entry, store)...)
		report.Findings = append(report.Findings, fs...)
		if len(fs) > 0 {
			perFileFindings[entry.FilePath] = fs
		}
	}

	for _, entry := range store.Index().Entries(artefact.KindEpic) {
		fs := inspectBlockers(artefact.KindEpic, entry, epicGraph)
		fs = append(fs, inspectStatus(artefact.KindEpic, entry)...)
		fs = append(fs, inspectIDMismatch(artefact.KindEpic, entry)...)
		report.Findings = append(report.Findings, fs...)
		if len(fs) > 0 {
			perFileFindings[entry.FilePath] = fs
		}
	}

	epicMismatches := inspectEpicStatusMismatch(store, taskGraph)
	report.Findings = append(report.Findings, epicMismatches...)
	for _, f := range epicMismatches {
		entry, ok := store.Index().Entries(artefact.KindEpic)[f.ArtefactID]
		if ok {
			perFileFindings[entry.FilePath] = append(perFileFindings[entry.FilePath], f)
		}
	}

	if fix {
		fixed, err := applyFixes(store, perFileFindings)
		if err != nil {
			return nil, err
		}
		report.Fixed = fixed
		store.Index().InvalidateAll()
	}

	return report, nil
}

func cycleFindings(g *Graph) []Finding {
	var findings []Finding
	for _, c := range g.DetectCycles() {
		path := append(append([]string{}, c.Nodes...), c.Nodes[0])
		findings = append(findings, Finding{
			Rule: RuleCycle, ArtefactID: c.Nodes[0], Kind: g.Kind,
			Message:     fmt.Sprintf("cycle: %s", strings.Join(path, " -> ")),
			AutoFixable: false,
		})
	}
	return findings
}

func inspectBlockers(kind artefact.Kind, entry artefact.IndexEntry, g *Graph) []Finding {
	var findings []Finding
	fm := entry.CachedFrontMatter
	seen := make(map[string]int)
	for _, raw := range fm.BlockedBy {
		seen[raw]++
	}
	for raw, count := range seen {
		if count > 1 {
			findings = append(findings, Finding{Rule: RuleDuplicate, ArtefactID: fm.ID, Kind: kind,
				Message: fmt.Sprintf("blocker %q listed %d times", raw, count), AutoFixable: true})
		}
	}

	node := g.Nodes[fm.ID]
	for _, d := range node.Dangling {
		if d == fm.ID {
			findings = append(findings, Finding{Rule: RuleSelfRef, ArtefactID: fm.ID, Kind: kind,
				Message: "task lists itself as a blocker", AutoFixable: true})
			continue
		}
		findings = append(findings, Finding{Rule: RuleMissingRef, ArtefactID: fm.ID, Kind: kind,
			Message: fmt.Sprintf("blocker %q does not resolve to a known artefact", d), AutoFixable: true})
	}

	resolver := idnorm.NewResolver(prefixFor(kind), entryKeys(g))
	for _, raw := range fm.BlockedBy {
		canonical, ok := resolver.Resolve(raw)
		if !ok {
			continue
		}
		if canonical == fm.ID {
			findings = append(findings, Finding{Rule: RuleSelfRef, ArtefactID: fm.ID, Kind: kind,
				Message: "task lists itself as a blocker", AutoFixable: true})
		}
		if raw != canonical {
			findings = append(findings, Finding{Rule: RuleFormat, ArtefactID: fm.ID, Kind: kind,
				Message: fmt.Sprintf("blocker %q should be written as %q", raw, canonical), AutoFixable: true})
		}
		if blocker, ok := g.Nodes[canonical]; ok && blocker.Status == artefact.StatusCancelled {
			findings = append(findings, Finding{Rule: RuleCancelledBlocker, ArtefactID: fm.ID, Kind: kind,
				Message: fmt.Sprintf("blocker %q is Cancelled", canonical), AutoFixable: true})
		}
	}
	return findings
}

func entryKeys(g *Graph) []string {
	keys := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		keys = append(keys, id)
	}
	return keys
}

func inspectStatus(kind artefact.Kind, entry artefact.IndexEntry) []Finding {
	fm := entry.CachedFrontMatter
	canonical, ok := artefact.CanonicalStatus(kind, fm.Status)
	if !ok {
		return []Finding{{Rule: RuleInvalidStatus, ArtefactID: fm.ID, Kind: kind,
			Message: fmt.Sprintf("status %q is not in the lexicon", fm.Status), AutoFixable: false}}
	}
	if canonical != fm.Status {
		return []Finding{{Rule: RuleStatusFormat, ArtefactID: fm.ID, Kind: kind,
			Message: fmt.Sprintf("status %q should be written as %q", fm.Status, canonical), AutoFixable: true}}
	}
	return nil
}

func inspectIDMismatch(kind artefact.Kind, entry artefact.IndexEntry) []Finding {
	base := filepath.Base(entry.FilePath)
	idx := strings.IndexByte(base, '-')
	if idx == -1 {
		return nil
	}
	filePrefix := base[:idx]
	if filePrefix != entry.CachedFrontMatter.ID {
		return []Finding{{Rule: RuleIDMismatch, ArtefactID: entry.CachedFrontMatter.ID, Kind: kind,
			Message: fmt.Sprintf("filename prefix %q does not match front-matter id %q", filePrefix, entry.CachedFrontMatter.ID),
			AutoFixable: true}}
	}
	return nil
}

func inspectMissingEpicParent(entry artefact.IndexEntry, store *artefact.Store) []Finding {
	fm := entry.CachedFrontMatter
	parts := strings.Split(fm.Parent, "/")
	epicToken := strings.TrimSpace(parts[len(parts)-1])
	if epicToken == "" {
		return []Finding{{Rule: RuleMissingEpicParent, ArtefactID: fm.ID, Kind: artefact.KindTask,
			Message: "task has no epic ancestor", AutoFixable: false}}
	}
	if _, ok := store.Get(artefact.KindEpic, epicToken); !ok {
		return []Finding{{Rule: RuleMissingEpicParent, ArtefactID: fm.ID, Kind: artefact.KindTask,
			Message: fmt.Sprintf("epic ancestor %q does not exist", epicToken), AutoFixable: false}}
	}
	return nil
}

func inspectEpicStatusMismatch(store *artefact.Store, taskGraph *Graph) []Finding {
	byEpic := make(map[string][]*Node)
	for _, entry := range store.Index().Entries(artefact.KindTask) {
		parts := strings.Split(entry.CachedFrontMatter.Parent, "/")
		epicID := strings.TrimSpace(parts[len(parts)-1])
		if node, ok := taskGraph.Nodes[entry.CachedFrontMatter.ID]; ok {
			byEpic[epicID] = append(byEpic[epicID], node)
		}
	}

	var findings []Finding
	for _, epicEntry := range store.Index().Entries(artefact.KindEpic) {
		tasks, ok := byEpic[epicEntry.CachedFrontMatter.ID]
		if !ok || len(tasks) == 0 {
			continue
		}
		allTerminal := true
		for _, t := range tasks {
			if !artefact.IsTerminal(t.Status) {
				allTerminal = false
				break
			}
		}
		if allTerminal && epicEntry.CachedFrontMatter.Status != artefact.StatusDone {
			findings = append(findings, Finding{
				Rule: RuleEpicStatusMismatch, ArtefactID: epicEntry.CachedFrontMatter.ID, Kind: artefact.KindEpic,
				Message:     "all tasks are Done/Cancelled but epic status is not Done",
				AutoFixable: true,
			})
		}
	}
	return findings
}

// applyFixes groups findings per file and resolves them in one load-save
// cycle each, returning the subset actually fixed.
func applyFixes(store *artefact.Store, perFile map[string][]Finding) ([]Finding, error) {
	var fixed []Finding
	for path, findings := range perFile {
		rec, kind, err := store.Load(path)
		if err != nil {
			continue
		}

		rename := ""
		for _, f := range findings {
			if !f.AutoFixable {
				continue
			}
			switch f.Rule {
			case RuleDuplicate:
				rec.FrontMatter.BlockedBy = dedupePreserveOrder(rec.FrontMatter.BlockedBy)
			case RuleSelfRef:
				rec.FrontMatter.BlockedBy = removeAll(rec.FrontMatter.BlockedBy, rec.FrontMatter.ID)
			case RuleMissingRef, RuleCancelledBlocker:
				token := extractQuoted(f.Message)
				rec.FrontMatter.BlockedBy = removeAll(rec.FrontMatter.BlockedBy, token)
			case RuleFormat:
				rec.FrontMatter.BlockedBy = canonicalizeBlockers(rec.FrontMatter.BlockedBy, kind)
			case RuleStatusFormat:
				if canon, ok := artefact.CanonicalStatus(kind, rec.FrontMatter.Status); ok {
					rec.FrontMatter.Status = canon
				}
			case RuleIDMismatch:
				rename = rec.FrontMatter.ID
			case RuleEpicStatusMismatch:
				rec.FrontMatter.Status = artefact.StatusDone
			}
			fixed = append(fixed, f)
		}

		if rename != "" {
			dir := filepath.Dir(rec.FilePath)
			base := filepath.Base(rec.FilePath)
			idx := strings.IndexByte(base, '-')
			suffix := base
			if idx != -1 {
				suffix = base[idx:]
			}
			newPath := filepath.Join(dir, rename+suffix)
			if newPath != rec.FilePath {
				_ = os.Remove(rec.FilePath)
				rec.FilePath = newPath
			}
		}

		if err := store.Save(rec); err != nil {
			return fixed, err
		}
	}
	return fixed, nil
}

func dedupePreserveOrder(items []string) []string {
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

func removeAll(items []string, target string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it != target {
			out = append(out, it)
		}
	}
	return out
}

func canonicalizeBlockers(items []string, kind artefact.Kind) []string {
	out := make([]string, len(items))
	for i, it := range items {
		_, n, suffix, ok := idnorm.Parse(it)
		if !ok {
			out[i] = it
			continue
		}
		out[i] = idnorm.Canonicalize(prefixFor(kind), n, suffix)
	}
	return out
}

func extractQuoted(s string) string {
	start := strings.IndexByte(s, '"')
	if start == -1 {
		return ""
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end == -1 {
		return ""
	}
	return s[start+1 : start+1+end]
}

package artefact

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sailctl/sailing/internal/errs"
)

// EditMode selects how edit_section applies new content to a section.
type EditMode string

const (
	ModeReplace EditMode = "replace"
	ModeAppend  EditMode = "append"
	ModePrepend EditMode = "prepend"
)

var h2HeaderRe = regexp.MustCompile(`(?m)^## (.+?)\s*$`)

// section is a parsed H2-delimited region of a document body.
type section struct {
	name  string
	start int // index of the line after the header
	end   int // index where this section's content ends (next header or EOF)
}

func parseSections(body string) []section {
	locs := h2HeaderRe.FindAllStringSubmatchIndex(body, -1)
	sections := make([]section, 0, len(locs))
	for i, loc := range locs {
		name := body[loc[2]:loc[3]]
		headerEnd := loc[1]
		contentStart := headerEnd
		if contentStart < len(body) && body[contentStart] == '\n' {
			contentStart++
		}
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		sections = append(sections, section{name: name, start: contentStart, end: end})
	}
	return sections
}

// EditSection applies new content to the named H2 section of rec's body,
// per mode. An unknown section name is created at document end (replace and
// append behave identically in that case — there's nothing to append to).
func (r *Record) EditSection(name, content string, mode EditMode) error {
	sections := parseSections(r.Body)
	for _, sec := range sections {
		if !strings.EqualFold(sec.name, name) {
			continue
		}
		existing := r.Body[sec.start:sec.end]
		var replacement string
		switch mode {
		case ModeReplace:
			replacement = ensureTrailingNewline(content)
		case ModeAppend:
			replacement = ensureTrailingNewline(strings.TrimRight(existing, "\n") + "\n" + content)
		case ModePrepend:
			replacement = ensureTrailingNewline(content + "\n" + strings.TrimLeft(existing, "\n"))
		default:
			return errs.New(errs.InvalidInput, "artefact.EditSection", fmt.Sprintf("unknown edit mode %q", mode))
		}
		r.Body = r.Body[:sec.start] + replacement + r.Body[sec.end:]
		return nil
	}
	// Section doesn't exist: append a new H2 region at document end.
	sep := ""
	if !strings.HasSuffix(r.Body, "\n\n") {
		if strings.HasSuffix(r.Body, "\n") {
			sep = "\n"
		} else {
			sep = "\n\n"
		}
	}
	r.Body = r.Body + sep + "## " + name + "\n\n" + ensureTrailingNewline(content)
	return nil
}

func ensureTrailingNewline(s string) string {
	if s == "" {
		return s
	}
	if !strings.HasSuffix(s, "\n") {
		return s + "\n"
	}
	return s
}

// multiSectionHeaderRe recognizes a region header line of the form
// "## <section>[ op]" where op, if present, is one of append/prepend.
var multiSectionHeaderRe = regexp.MustCompile(`(?m)^## (.+?)(?:\s+(append|prepend))?\s*$`)

// EditMultiSection parses a composite payload where each "## <section>[ op]"
// line begins a region, and applies each region's operation to rec's body
// atomically (all-or-nothing: if any region fails to apply none are kept).
func (r *Record) EditMultiSection(content string, defaultMode EditMode) error {
	locs := multiSectionHeaderRe.FindAllStringSubmatchIndex(content, -1)
	if len(locs) == 0 {
		return errs.New(errs.InvalidInput, "artefact.EditMultiSection", "no ## sections found in payload")
	}

	type region struct {
		name string
		mode EditMode
		body string
	}
	regions := make([]region, 0, len(locs))
	for i, loc := range locs {
		name := content[loc[2]:loc[3]]
		mode := defaultMode
		if loc[4] != -1 {
			switch content[loc[4]:loc[5]] {
			case "append":
				mode = ModeAppend
			case "prepend":
				mode = ModePrepend
			}
		}
		bodyStart := loc[1]
		if bodyStart < len(content) && content[bodyStart] == '\n' {
			bodyStart++
		}
		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		regions = append(regions, region{name: name, mode: mode, body: content[bodyStart:end]})
	}

	original := r.Body
	for _, reg := range regions {
		if err := r.EditSection(reg.name, reg.body, reg.mode); err != nil {
			r.Body = original
			return err
		}
	}
	return nil
}

// PatchOptions carries the optional scoping/matching knobs for Patch.
type PatchOptions struct {
	Section string // restrict the match to one H2 section, by name
	Regexp  bool   // treat oldString as a regular expression
}

// Patch performs a surgical search/replace: fails if oldString is not
// uniquely present within scope (whole body, or a named section).
func (r *Record) Patch(oldString, newString string, opts PatchOptions) error {
	if opts.Section == "" {
		return r.patchWithin(oldString, newString, opts.Regexp, 0, len(r.Body), func(replacement string) {
			r.Body = replacement
		})
	}

	sections := parseSections(r.Body)
	for _, sec := range sections {
		if !strings.EqualFold(sec.name, opts.Section) {
			continue
		}
		return r.patchWithin(oldString, newString, opts.Regexp, sec.start, sec.end, func(replacement string) {
			r.Body = r.Body[:sec.start] + replacement + r.Body[sec.end:]
		})
	}
	return errs.New(errs.NotFound, "artefact.Patch", fmt.Sprintf("section %q not found", opts.Section))
}

func (r *Record) patchWithin(oldString, newString string, useRegexp bool, start, end int, apply func(string)) error {
	scope := r.Body[start:end]

	if !useRegexp {
		count := strings.Count(scope, oldString)
		if count == 0 {
			return errs.New(errs.NotFound, "artefact.Patch", fmt.Sprintf("string %q not found in scope", oldString))
		}
		if count > 1 {
			return errs.New(errs.InvalidInput, "artefact.Patch", fmt.Sprintf("string %q is not unique in scope (%d occurrences)", oldString, count))
		}
		apply(strings.Replace(scope, oldString, newString, 1))
		return nil
	}

	re, err := regexp.Compile(oldString)
	if err != nil {
		return errs.Wrap(errs.InvalidInput, "artefact.Patch", fmt.Sprintf("invalid regexp %q", oldString), err)
	}
	matches := re.FindAllStringIndex(scope, -1)
	if len(matches) == 0 {
		return errs.New(errs.NotFound, "artefact.Patch", fmt.Sprintf("pattern %q matched nothing in scope", oldString))
	}
	if len(matches) > 1 {
		return errs.New(errs.InvalidInput, "artefact.Patch", fmt.Sprintf("pattern %q is not unique in scope (%d matches)", oldString, len(matches)))
	}
	loc := matches[0]
	apply(scope[:loc[0]] + re.ReplaceAllString(scope[loc[0]:loc[1]], newString) + scope[loc[1]:])
	return nil
}

package artefact_test

import (
	"testing"

	"github.com/sailctl/sailing/internal/artefact"
	"github.com/stretchr/testify/require"
)

func newTaskRecord(body string) *artefact.Record {
	return &artefact.Record{
		Kind: artefact.KindTask,
		FrontMatter: artefact.FrontMatter{ID: "T001", Title: "Form"},
		Body: body,
	}
}

func TestEditSectionReplace(t *testing.T) {
	rec := newTaskRecord("## Description\n\nold text\n\n## Acceptance Criteria\n\n- one\n")
	err := rec.EditSection("Description", "new text", artefact.ModeReplace)
	require.NoError(t, err)
	require.Contains(t, rec.Body, "new text")
	require.NotContains(t, rec.Body, "old text")
	require.Contains(t, rec.Body, "- one")
}

func TestEditSectionAppend(t *testing.T) {
	rec := newTaskRecord("## Description\n\nline one\n")
	err := rec.EditSection("Description", "line two", artefact.ModeAppend)
	require.NoError(t, err)
	require.Contains(t, rec.Body, "line one")
	require.Contains(t, rec.Body, "line two")
}

func TestEditSectionCreatesUnknownSectionAtEnd(t *testing.T) {
	rec := newTaskRecord("## Description\n\nhello\n")
	err := rec.EditSection("Notes", "a note", artefact.ModeReplace)
	require.NoError(t, err)
	require.Contains(t, rec.Body, "## Notes")
	require.Contains(t, rec.Body, "a note")
}

func TestEditMultiSectionAppliesEachRegion(t *testing.T) {
	rec := newTaskRecord("## Description\n\nold\n\n## Acceptance Criteria\n\n- old\n")
	payload := "## Description\n\nnew desc\n\n## Acceptance Criteria append\n\n- new item\n"
	err := rec.EditMultiSection(payload, artefact.ModeReplace)
	require.NoError(t, err)
	require.Contains(t, rec.Body, "new desc")
	require.NotContains(t, rec.Body, "## Description\n\nold")
	require.Contains(t, rec.Body, "- old")
	require.Contains(t, rec.Body, "- new item")
}

func TestPatchRequiresUniqueMatch(t *testing.T) {
	rec := newTaskRecord("## Description\n\nfoo bar foo\n")
	err := rec.Patch("foo", "baz", artefact.PatchOptions{})
	require.Error(t, err)

	rec2 := newTaskRecord("## Description\n\nfoo bar\n")
	err = rec2.Patch("foo", "baz", artefact.PatchOptions{})
	require.NoError(t, err)
	require.Contains(t, rec2.Body, "baz bar")
}

func TestPatchScopedToSection(t *testing.T) {
	rec := newTaskRecord("## Description\n\ntarget\n\n## Acceptance Criteria\n\ntarget\n")
	err := rec.Patch("target", "replaced", artefact.PatchOptions{Section: "Acceptance Criteria"})
	require.NoError(t, err)
	require.Contains(t, rec.Body, "## Description\n\ntarget")
	require.Contains(t, rec.Body, "## Acceptance Criteria\n\nreplaced")
}

func TestPatchRegexpRequiresUniqueMatch(t *testing.T) {
	rec := newTaskRecord("## Description\n\nfoo123 bar foo456\n")
	err := rec.Patch(`foo\d+`, "baz", artefact.PatchOptions{Regexp: true})
	require.Error(t, err)

	rec2 := newTaskRecord("## Description\n\nfoo123 bar\n")
	err = rec2.Patch(`foo\d+`, "baz", artefact.PatchOptions{Regexp: true})
	require.NoError(t, err)
	require.Contains(t, rec2.Body, "baz bar")
}

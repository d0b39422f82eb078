package artefact

import "testing"

import "github.com/stretchr/testify/require"

func TestParseRenderRoundTrip(t *testing.T) {
	content := []byte("---\nid: T001\ntitle: Form\nstatus: Not Started\n---\n\n## Description\n\nhello\n")
	doc, err := parseDocument(content)
	require.NoError(t, err)
	require.Equal(t, "T001", doc.FrontMatter["id"])
	require.Contains(t, doc.Body, "## Description")

	out, err := renderDocument(doc)
	require.NoError(t, err)
	doc2, err := parseDocument(out)
	require.NoError(t, err)
	require.Equal(t, doc.FrontMatter["id"], doc2.FrontMatter["id"])
	require.Equal(t, doc.Body, doc2.Body)
}

func TestParseToleratesMissingFence(t *testing.T) {
	content := []byte("just some plain text\nno front matter here\n")
	doc, err := parseDocument(content)
	require.NoError(t, err)
	require.Empty(t, doc.FrontMatter)
	require.Equal(t, string(content), doc.Body)
}

func TestParseToleratesUnclosedFence(t *testing.T) {
	content := []byte("---\nid: T001\nno closing fence\n")
	doc, err := parseDocument(content)
	require.NoError(t, err)
	require.Empty(t, doc.FrontMatter)
}

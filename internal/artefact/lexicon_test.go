package artefact_test

import (
	"testing"

	"github.com/sailctl/sailing/internal/artefact"
	"github.com/stretchr/testify/require"
)

func TestCanonicalStatusAliases(t *testing.T) {
	cases := []struct {
		kind artefact.Kind
		raw  string
		want string
	}{
		{artefact.KindTask, "wip", artefact.StatusInProgress},
		{artefact.KindTask, "todo", artefact.StatusNotStarted},
		{artefact.KindTask, "done", artefact.StatusDone},
		{artefact.KindEpic, "draft", artefact.StatusDraft},
		{artefact.KindProduct, "approved", artefact.StatusApproved},
	}
	for _, c := range cases {
		got, ok := artefact.CanonicalStatus(c.kind, c.raw)
		require.True(t, ok, c.raw)
		require.Equal(t, c.want, got)
	}
}

func TestCanonicalStatusRejectsUnknown(t *testing.T) {
	_, ok := artefact.CanonicalStatus(artefact.KindTask, "frobnicated")
	require.False(t, ok)
}

func TestIsTerminal(t *testing.T) {
	require.True(t, artefact.IsTerminal(artefact.StatusDone))
	require.True(t, artefact.IsTerminal(artefact.StatusCancelled))
	require.False(t, artefact.IsTerminal(artefact.StatusInProgress))
}

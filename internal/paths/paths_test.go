package paths_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sailctl/sailing/internal/paths"
	"github.com/stretchr/testify/require"
)

func TestResolveBuiltinPlaceholders(t *testing.T) {
	root := t.TempDir()
	r, err := paths.New(root, nil)
	require.NoError(t, err)

	got, err := r.Resolve("%project_root%/artefacts")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "artefacts"), got)
}

func TestResolveHavenNestsUnderHomeAndProjectHash(t *testing.T) {
	root := t.TempDir()
	r, err := paths.New(root, nil)
	require.NoError(t, err)

	haven, err := r.Resolve("%haven%")
	require.NoError(t, err)
	require.Contains(t, haven, ".sailing/havens")
	require.Contains(t, haven, r.ProjectHash())
	require.Len(t, r.ProjectHash(), 12)
}

func TestResolveUnknownPlaceholderFails(t *testing.T) {
	r, err := paths.New(t.TempDir(), nil)
	require.NoError(t, err)
	_, err = r.Resolve("%nonexistent%")
	require.Error(t, err)
}

func TestResolveCircularPlaceholderFails(t *testing.T) {
	r, err := paths.New(t.TempDir(), &paths.Overrides{
		Placeholders: map[string]string{
			"a": "%b%",
			"b": "%a%",
		},
	})
	require.NoError(t, err)
	_, err = r.Resolve("%a%")
	require.Error(t, err)
}

func TestResolveAbsolutePassesThrough(t *testing.T) {
	r, err := paths.New(t.TempDir(), nil)
	require.NoError(t, err)
	got, err := r.Resolve("/var/tmp/fixed")
	require.NoError(t, err)
	require.Equal(t, "/var/tmp/fixed", got)
}

func TestCollectionOverride(t *testing.T) {
	r, err := paths.New(t.TempDir(), &paths.Overrides{
		Collections: map[paths.Collection]string{
			paths.CollArtefacts: "%project_root%/custom-artefacts",
		},
	})
	require.NoError(t, err)
	got, err := r.Collection(paths.CollArtefacts)
	require.NoError(t, err)
	require.Contains(t, got, "custom-artefacts")
}

func TestFindProjectRootWalksUpToSailingDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".sailing"), 0755))
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0755))

	got, err := paths.FindProjectRoot(nested)
	require.NoError(t, err)
	require.Equal(t, root, got)
}

func TestFindProjectRootEnvOverride(t *testing.T) {
	root := t.TempDir()
	t.Setenv("SAILING_PROJECT_ROOT", root)
	got, err := paths.FindProjectRoot(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, root, got)
}

func TestSanitizeProducesKebabCase(t *testing.T) {
	require.Equal(t, "login-form", paths.Sanitize("Login Form!"))
	require.Equal(t, "a-b-c", paths.Sanitize("  A_B/C  "))
	require.Equal(t, "untitled", paths.Sanitize("   "))
}

package orchestration

import (
	"os"
	"path/filepath"
	"testing"

	"bootkit/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListStacks(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"web2/.pulumi", "web1/.pulumi", "scratch"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))

	names, err := ListStacks(&config.Profile{PulumiBackend: "file://" + root + "/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"web1", "web2"}, names)
}

func TestListStacks_MissingDir(t *testing.T) {
	names, err := ListStacks(&config.Profile{PulumiBackend: "file://" + filepath.Join(t.TempDir(), "absent")})
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestListStacks_RemoteBackend(t *testing.T) {
	_, err := ListStacks(&config.Profile{PulumiBackend: "s3://bucket"})
	assert.ErrorIs(t, err, ErrListUnsupported)
}

func TestLocalBackendDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := localBackendDir("file://~/.bootkit/state")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".bootkit", "state"), got)

	got, err = localBackendDir("file:///tmp/state")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/state", got)
}

package archive

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "keycloak"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "keycloak", "users.json"), []byte(`[{"username":"jdoe"}]`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "keycloak", "groups.json"), []byte(`[]`), 0644))

	archivePath := filepath.Join(t.TempDir(), "snap.tar.gz")
	require.NoError(t, Pack(src, archivePath))

	dest := t.TempDir()
	require.NoError(t, Unpack(archivePath, dest))

	users, err := os.ReadFile(filepath.Join(dest, "keycloak", "users.json"))
	require.NoError(t, err)
	assert.Equal(t, `[{"username":"jdoe"}]`, string(users))

	groups, err := os.ReadFile(filepath.Join(dest, "keycloak", "groups.json"))
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(groups))
}

func TestPackEmptyDir(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "empty.tar.gz")
	require.NoError(t, Pack(t.TempDir(), archivePath))

	dest := t.TempDir()
	require.NoError(t, Unpack(archivePath, dest))

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnpackRejectsPathTraversal(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "evil.tar.gz")
	out, err := os.Create(archivePath)
	require.NoError(t, err)

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "../escape.txt",
		Typeflag: tar.TypeReg,
		Mode:     0644,
		Size:     4,
	}))
	_, err = tw.Write([]byte("boom"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, out.Close())

	err = Unpack(archivePath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes destination")
}

func TestUnpackMissingFile(t *testing.T) {
	err := Unpack(filepath.Join(t.TempDir(), "nope.tar.gz"), t.TempDir())
	assert.Error(t, err)
}

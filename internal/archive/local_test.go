package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLocalCreatesBaseDir(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "payloads")
	_, err := NewLocal(LocalConfig{BaseDir: base})
	require.NoError(t, err)
	require.DirExists(t, base)
}

func TestNewLocalRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := NewLocal(LocalConfig{})
	require.Error(t, err)
}

func TestPutObjectWritesNestedPath(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store, err := NewLocal(LocalConfig{BaseDir: base})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "demo/https/shop.example.com/p/a", "text/html", []byte("<html/>"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"), uri)

	data, err := os.ReadFile(filepath.Join(base, "demo", "https", "shop.example.com", "p", "a"))
	require.NoError(t, err)
	require.Equal(t, "<html/>", string(data))
}

func TestPutObjectRejectsEscapingPaths(t *testing.T) {
	t.Parallel()

	store, err := NewLocal(LocalConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)

	for _, path := range []string{"", ".", "../outside", "/etc/passwd"} {
		_, err := store.PutObject(context.Background(), path, "", []byte("x"))
		require.Error(t, err, "path %q must be rejected", path)
	}
}

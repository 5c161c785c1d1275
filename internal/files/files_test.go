package files

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestClean(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "dist", "index.abc.js"), "old")

	require.NoError(t, Clean(root, "dist"))
	require.NoDirExists(t, filepath.Join(root, "dist"))

	// cleaning a missing directory is fine
	require.NoError(t, Clean(root, "dist"))
}

func TestClean_unsafePaths(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name string
		dir  string
	}{
		{name: "root itself", dir: "."},
		{name: "empty", dir: ""},
		{name: "parent", dir: ".."},
		{name: "traversal", dir: "dist/../../other"},
		{name: "absolute outside", dir: os.TempDir()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, Clean(root, tt.dir), ErrUnsafePath)
		})
	}
	require.DirExists(t, root)
}

func TestCopy_directory(t *testing.T) {
	root := t.TempDir()
	from := filepath.Join(root, "src", "img")
	to := filepath.Join(root, "dist", "img")
	writeTestFile(t, filepath.Join(from, "logo.png"), "png")
	writeTestFile(t, filepath.Join(from, "icons", "star.svg"), "svg")

	written, err := Copy(context.Background(), from, to)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		filepath.Join(to, "logo.png"),
		filepath.Join(to, "icons", "star.svg"),
	}, written)

	data, err := os.ReadFile(filepath.Join(to, "icons", "star.svg"))
	require.NoError(t, err)
	require.Equal(t, "svg", string(data))
}

func TestCopy_missingSource(t *testing.T) {
	root := t.TempDir()

	written, err := Copy(context.Background(), filepath.Join(root, "nope"), filepath.Join(root, "dist"))
	require.NoError(t, err)
	require.Empty(t, written)
	require.NoDirExists(t, filepath.Join(root, "dist"))
}

func TestCopy_singleFile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "robots.txt")
	writeTestFile(t, src, "User-agent: *")

	written, err := Copy(context.Background(), src, filepath.Join(root, "dist")+string(filepath.Separator))
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(root, "dist", "robots.txt")}, written)
}

func TestCopy_cancelled(t *testing.T) {
	root := t.TempDir()
	from := filepath.Join(root, "img")
	writeTestFile(t, filepath.Join(from, "a.png"), "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Copy(ctx, from, filepath.Join(root, "dist"))
	require.ErrorIs(t, err, context.Canceled)
}

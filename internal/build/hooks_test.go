package build

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestShellHooks_success(t *testing.T) {
	requireShell(t)

	err := ShellHooks{}.Run(context.Background(), "before_build", []string{"echo one", "echo two"}, map[string]string{
		"SITEPACK_ROOT": t.TempDir(),
	})
	require.NoError(t, err)
}

func TestShellHooks_exitCode(t *testing.T) {
	requireShell(t)

	err := ShellHooks{}.Run(context.Background(), "after_build", []string{"exit 3"}, nil)
	require.ErrorIs(t, err, ErrHookFailed)
	require.Contains(t, err.Error(), "exit 3")
}

func TestShellHooks_inheritsEnvironment(t *testing.T) {
	requireShell(t)

	t.Setenv("HOME", "/home/dev")
	t.Setenv("PATH", "/opt/node/bin"+string(os.PathListSeparator)+os.Getenv("PATH"))

	// shell metacharacters in the root must not be expanded
	root := filepath.Join(t.TempDir(), "site $HOME `x`")
	require.NoError(t, os.MkdirAll(root, 0o755))

	err := ShellHooks{}.Run(context.Background(), "before_build",
		[]string{`printf '%s\n' "$HOME" "$PATH" "$SITEPACK_MODE" "$(pwd -P)" > env.txt`},
		map[string]string{
			"SITEPACK_ROOT": root,
			"SITEPACK_MODE": "production",
		})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "env.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)

	wantDir, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	require.Equal(t, "/home/dev", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "/opt/node/bin"))
	require.Equal(t, "production", lines[2])
	require.Equal(t, wantDir, lines[3])
}

func TestHookEnviron_overridesInherited(t *testing.T) {
	t.Setenv("NODE_ENV", "development")
	t.Setenv("HOME", "/home/dev")

	environ := hookEnviron(map[string]string{"NODE_ENV": "production"})

	var last string
	for _, kv := range environ {
		if v, ok := strings.CutPrefix(kv, "NODE_ENV="); ok {
			last = v
		}
	}
	require.Equal(t, "production", last)
	require.Contains(t, environ, "HOME=/home/dev")
}

package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/sitepack/internal/config"
)

func TestProjectFlags_Load(t *testing.T) {
	tests := []struct {
		name     string
		flag     string
		env      string
		noMinify bool
		want     config.Mode
	}{
		{name: "defaults to development", want: config.Development},
		{name: "env selects production", env: "production", want: config.Production},
		{name: "flag wins over env", flag: "development", env: "production", want: config.Development},
		{name: "no minify", flag: "production", noMinify: true, want: config.Production},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NODE_ENV", tt.env)

			root := t.TempDir()
			flags := ProjectFlags{Root: root, Config: config.DefaultFile, Mode: tt.flag, NoMinify: tt.noMinify}

			cfg, err := flags.Load()
			require.NoError(t, err)
			require.Equal(t, tt.want, cfg.Mode)
			require.Equal(t, !tt.noMinify, cfg.Minify)
			require.Equal(t, config.DefaultPort, cfg.DevServer.Port)
		})
	}
}

func TestProjectFlags_Load_configFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "site.yaml"), []byte("out_dir: public\n"), 0o600))

	cfg, err := ProjectFlags{Root: root, Config: "site.yaml"}.Load()
	require.NoError(t, err)
	require.Equal(t, "public", cfg.OutDir)
}

func TestProjectFlags_Load_invalid(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "sitepack.yaml"), []byte("entry_names: \"[name]\"\n"), 0o600))

	_, err := ProjectFlags{Root: root, Config: config.DefaultFile}.Load()
	require.ErrorIs(t, err, config.ErrMissingHash)
}

func TestCleanCmd(t *testing.T) {
	root := t.TempDir()
	dist := filepath.Join(root, "dist")
	cache := filepath.Join(root, ".cache", "sitepack")
	require.NoError(t, os.MkdirAll(dist, 0o755))
	require.NoError(t, os.MkdirAll(cache, 0o755))

	cmd := &CleanCmd{ProjectFlags: ProjectFlags{Root: root, Config: config.DefaultFile}}
	require.NoError(t, cmd.Run(&Globals{}))
	require.NoDirExists(t, dist)
	require.DirExists(t, cache)

	cmd.Cache = true
	require.NoError(t, cmd.Run(&Globals{}))
	require.NoDirExists(t, cache)
}

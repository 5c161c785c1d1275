package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Mode
	}{
		{name: "production", input: "production", expected: Production},
		{name: "production mixed case", input: " Production ", expected: Production},
		{name: "development", input: "development", expected: Development},
		{name: "empty", input: "", expected: Development},
		{name: "unknown value", input: "test", expected: Development},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, ParseMode(tt.input))
		})
	}
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name     string
		flag     string
		env      string
		expected Mode
	}{
		{name: "flag wins over env", flag: "development", env: "production", expected: Development},
		{name: "env when flag unset", flag: "", env: "production", expected: Production},
		{name: "nothing set", expected: Development},
		{name: "flag production", flag: "production", env: "development", expected: Production},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, ResolveMode(tt.flag, tt.env))
		})
	}
}

func TestProfile_production(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Mode = Production

	p := cfg.Profile()
	require.False(t, p.SourceMap)
	require.False(t, p.Cache)
	require.True(t, p.Minify)
}

func TestProfile_development(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Mode = Development

	p := cfg.Profile()
	require.True(t, p.SourceMap)
	require.True(t, p.Cache)
	require.True(t, p.Minify)
}

func TestDefault_namesAlwaysHashed(t *testing.T) {
	for _, mode := range []Mode{Development, Production} {
		cfg := Default(t.TempDir())
		cfg.Mode = mode

		require.Contains(t, cfg.EntryNames, HashPlaceholder)
		require.Contains(t, cfg.ChunkNames, HashPlaceholder)
		require.Contains(t, cfg.AssetNames, HashPlaceholder)
		require.NoError(t, cfg.Validate())
	}
}

func TestDefault_portIndependentOfMode(t *testing.T) {
	dev := Default(t.TempDir())
	dev.Mode = Development
	prod := Default(t.TempDir())
	prod.Mode = Production

	require.Equal(t, DefaultPort, dev.DevServer.Port)
	require.Equal(t, dev.DevServer.Port, prod.DevServer.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{
			name:    "entry names without hash",
			mutate:  func(c *Config) { c.EntryNames = "[name]" },
			wantErr: ErrMissingHash,
		},
		{
			name:    "asset names without hash",
			mutate:  func(c *Config) { c.AssetNames = "assets/[name]" },
			wantErr: ErrMissingHash,
		},
		{
			name:    "empty entry",
			mutate:  func(c *Config) { c.Entry = " " },
			wantErr: ErrInvalidEntry,
		},
		{
			name:    "output is root",
			mutate:  func(c *Config) { c.OutDir = "." },
			wantErr: ErrInvalidOutDir,
		},
		{
			name:    "output outside root",
			mutate:  func(c *Config) { c.OutDir = "../elsewhere" },
			wantErr: ErrInvalidOutDir,
		},
		{
			name:    "output contains sources",
			mutate:  func(c *Config) { c.OutDir = "src" },
			wantErr: ErrInvalidOutDir,
		},
		{
			name:    "copy target escapes output",
			mutate:  func(c *Config) { c.Copy = []CopyPattern{{From: "src/img", To: "../img"}} },
			wantErr: ErrInvalidCopy,
		},
		{
			name:    "absolute copy target outside output",
			mutate:  func(c *Config) { c.Copy = []CopyPattern{{From: "src/img", To: c.Path("static")}} },
			wantErr: ErrInvalidCopy,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.DevServer.Port = 70000 },
			wantErr: ErrInvalidPort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestCopyTarget_followsOutDir(t *testing.T) {
	root := t.TempDir()
	cfg := Default(root)
	cfg.OutDir = "public"

	require.NoError(t, cfg.Validate())
	require.Equal(t, filepath.Join(root, "public", "img"), cfg.CopyTarget(cfg.Copy[0]))
}

func TestLoad_missingFileUsesDefaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := Load("", root)
	require.NoError(t, err)
	require.Equal(t, Default(root), cfg)
}

func TestLoad_overridesDefaults(t *testing.T) {
	root := t.TempDir()
	data := strings.Join([]string{
		"entry: app/main.js",
		"title: My Site",
		"images:",
		"  avif: false",
		"dev_server:",
		"  watch: app",
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, DefaultFile), []byte(data), 0600))

	cfg, err := Load("", root)
	require.NoError(t, err)
	require.Equal(t, "app/main.js", cfg.Entry)
	require.Equal(t, "My Site", cfg.Title)
	require.False(t, cfg.Images.AVIF)
	require.True(t, cfg.Images.WebP)
	require.Equal(t, 90, cfg.Images.JPEGQuality)
	require.Equal(t, "app", cfg.DevServer.Watch)
	require.Equal(t, DefaultPort, cfg.DevServer.Port)
	require.Equal(t, root, cfg.Root)
}

func TestLoad_invalidYAML(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "custom.yaml"), []byte("entry: [unclosed"), 0600))

	_, err := Load("custom.yaml", root)
	require.Error(t, err)
}

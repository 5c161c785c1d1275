package assets

import (
	"path/filepath"

	"github.com/wolfeidau/sitepack/internal/config"
)

type Config struct {
	// Project root, used as the esbuild working directory
	Root string
	// Entry point (e.g., "src/index.js")
	Entry string
	// Output directory for built files
	OutputDir string
	// Output name patterns, each must carry [hash]
	EntryNames string
	ChunkNames string
	AssetNames string
	// Path to metafile (relative to OutputDir)
	MetafileName string
	// JavaScript language target (e.g., "es2017")
	Target     string
	PublicPath string
	// Emit ES modules with code splitting instead of a single IIFE bundle
	Splitting bool
	// Whether to minify output
	Minify bool
	// Whether to enable source maps
	SourceMap bool
	// Keep an incremental esbuild context between builds
	Incremental bool
	// Value of process.env.NODE_ENV
	NodeEnv string
	// Extra global replacements, values are JS expressions
	Define map[string]string
}

// DefaultConfig returns the development configuration for root
func DefaultConfig(root string) Config {
	return FromConfig(config.Default(root))
}

// FromConfig derives the bundler settings from the project configuration and
// its mode profile.
func FromConfig(cfg config.Config) Config {
	profile := cfg.Profile()

	return Config{
		Root:         cfg.Root,
		Entry:        cfg.Entry,
		OutputDir:    cfg.Path(cfg.OutDir),
		EntryNames:   cfg.EntryNames,
		ChunkNames:   cfg.ChunkNames,
		AssetNames:   cfg.AssetNames,
		MetafileName: cfg.MetafileName,
		Target:       cfg.Target,
		PublicPath:   cfg.PublicPath,
		Splitting:    cfg.Splitting,
		Minify:       profile.Minify,
		SourceMap:    profile.SourceMap,
		Incremental:  profile.Cache,
		NodeEnv:      cfg.Mode.String(),
		Define:       cfg.Define,
	}
}

func (c Config) metafilePath() string {
	if c.MetafileName == "" {
		return ""
	}
	return filepath.Join(c.OutputDir, c.MetafileName)
}

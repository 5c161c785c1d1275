package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultPort is the dev server port. It does not change with the mode.
const DefaultPort = 3000

// HashPlaceholder is substituted by the bundler with a content hash.
const HashPlaceholder = "[hash]"

type Config struct {
	// Project root, all relative paths resolve against it
	Root string `yaml:"-"`
	Mode Mode   `yaml:"-"`

	// Entry point, e.g. "src/index.js"
	Entry string `yaml:"entry"`
	// Output directory for built files
	OutDir string `yaml:"out_dir"`
	// Name patterns for entry, chunk and asset outputs (relative to OutDir, no extension)
	EntryNames string `yaml:"entry_names"`
	ChunkNames string `yaml:"chunk_names"`
	AssetNames string `yaml:"asset_names"`
	// Metafile written after each bundle (relative to OutDir)
	MetafileName string `yaml:"metafile_name"`

	// JavaScript language target, e.g. "es2017"
	Target     string `yaml:"target"`
	PublicPath string `yaml:"public_path"`
	// ES module output with shared chunks instead of a single script
	Splitting bool              `yaml:"splitting"`
	Minify    bool              `yaml:"minify"`
	Define    map[string]string `yaml:"define"`

	// HTML shell
	Template     string `yaml:"template"`
	HTMLFilename string `yaml:"html_filename"`
	Title        string `yaml:"title"`

	Copy      []CopyPattern    `yaml:"copy"`
	Images    ImageOptions     `yaml:"images"`
	DevServer DevServerOptions `yaml:"dev_server"`
	Hooks     Hooks            `yaml:"hooks"`

	// Filesystem cache location, only used when the profile enables caching
	CacheDir string `yaml:"cache_dir"`
}

type CopyPattern struct {
	// Source, relative to the root
	From string `yaml:"from"`
	// Destination, relative to OutDir
	To string `yaml:"to"`
}

type ImageOptions struct {
	Enabled bool `yaml:"enabled"`
	// JPEG re-encode quality 1-100
	JPEGQuality int `yaml:"jpeg_quality"`
	// PNG optimization level 0-7
	PNGLevel int  `yaml:"png_level"`
	WebP     bool `yaml:"webp"`
	AVIF     bool `yaml:"avif"`
	// Max concurrent encodes, 0 means GOMAXPROCS
	Concurrency int `yaml:"concurrency"`
}

type DevServerOptions struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Watch string `yaml:"watch"`
	// Allowed CORS origins
	CORSOrigins []string `yaml:"cors_origins"`
}

type Hooks struct {
	BeforeBuild []string `yaml:"before_build"`
	AfterBuild  []string `yaml:"after_build"`
}

// Profile holds the mode dependent switches.
type Profile struct {
	SourceMap bool
	Cache     bool
	Minify    bool
}

// Default returns the stock configuration rooted at root.
func Default(root string) Config {
	return Config{
		Root:         root,
		Mode:         Development,
		Entry:        filepath.Join("src", "index.js"),
		OutDir:       "dist",
		EntryNames:   "[name].[hash]",
		ChunkNames:   "chunks/[name].[hash]",
		AssetNames:   "assets/[name].[hash]",
		MetafileName: "meta.json",
		Target:       "es2017",
		Minify:       true,
		Template:     filepath.Join("src", "template.html"),
		HTMLFilename: "index.html",
		Copy: []CopyPattern{
			{From: filepath.Join("src", "img"), To: "img"},
		},
		Images: ImageOptions{
			Enabled:     true,
			JPEGQuality: 90,
			PNGLevel:    7,
			WebP:        true,
			AVIF:        true,
		},
		DevServer: DevServerOptions{
			Host:  "localhost",
			Port:  DefaultPort,
			Watch: "src",
		},
		CacheDir: filepath.Join(".cache", "sitepack"),
	}
}

// Profile derives the build switches from the mode.
func (c Config) Profile() Profile {
	if c.Mode.IsProduction() {
		return Profile{SourceMap: false, Cache: false, Minify: c.Minify}
	}
	return Profile{SourceMap: true, Cache: true, Minify: c.Minify}
}

// CopyTarget resolves the destination of a copy pattern below the output directory.
func (c Config) CopyTarget(p CopyPattern) string {
	if filepath.IsAbs(p.To) {
		return filepath.Clean(p.To)
	}
	return filepath.Join(c.Path(c.OutDir), p.To)
}

// Path resolves p against the project root.
func (c Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Entry) == "" {
		return ErrInvalidEntry
	}

	for name, pattern := range map[string]string{
		"entry_names": c.EntryNames,
		"chunk_names": c.ChunkNames,
		"asset_names": c.AssetNames,
	} {
		if !strings.Contains(pattern, HashPlaceholder) {
			return fmt.Errorf("%w: %s=%q", ErrMissingHash, name, pattern)
		}
	}

	if strings.TrimSpace(c.OutDir) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidOutDir)
	}

	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("failed to resolve root: %w", err)
	}
	out, err := filepath.Abs(c.Path(c.OutDir))
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if out == root || !isWithin(root, out) {
		return fmt.Errorf("%w: %s must be inside %s", ErrInvalidOutDir, out, root)
	}
	entry, err := filepath.Abs(c.Path(c.Entry))
	if err != nil {
		return fmt.Errorf("failed to resolve entry: %w", err)
	}
	if isWithin(out, entry) {
		return fmt.Errorf("%w: %s contains the entry point", ErrInvalidOutDir, out)
	}

	for _, pattern := range c.Copy {
		target, err := filepath.Abs(c.CopyTarget(pattern))
		if err != nil {
			return fmt.Errorf("failed to resolve copy target: %w", err)
		}
		if !isWithin(out, target) {
			return fmt.Errorf("%w: %s is outside %s", ErrInvalidCopy, target, out)
		}
	}

	if c.DevServer.Port < 1 || c.DevServer.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.DevServer.Port)
	}

	return nil
}

func isWithin(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

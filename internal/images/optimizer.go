// Package images minifies the JPEG and PNG files of a build output and
// emits WebP and AVIF variants next to them.
package images

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sitepack/internal/cache"
	"github.com/wolfeidau/sitepack/internal/files"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWebPQuality = 75
	defaultAVIFQuality = 50
)

type Options struct {
	JPEGQuality int
	// optipng style level 0-7
	PNGLevel    int
	WebP        bool
	WebPQuality int
	AVIF        bool
	AVIFQuality int
	Concurrency int
}

// Stats summarises one optimization pass.
type Stats struct {
	Images     int
	Optimized  int
	Variants   int
	CacheHits  int
	BytesSaved int64
}

type variantJob struct {
	path   string
	format Format
	opts   EncodeOptions
}

type counters struct {
	optimized  atomic.Int64
	variants   atomic.Int64
	cacheHits  atomic.Int64
	bytesSaved atomic.Int64
}

type Optimizer struct {
	encoder Encoder
	cache   cache.Cache
	opts    Options
}

func NewOptimizer(encoder Encoder, c cache.Cache, opts Options) *Optimizer {
	if c == nil {
		c = cache.Nop{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	if opts.WebPQuality <= 0 {
		opts.WebPQuality = defaultWebPQuality
	}
	if opts.AVIFQuality <= 0 {
		opts.AVIFQuality = defaultAVIFQuality
	}
	return &Optimizer{encoder: encoder, cache: c, opts: opts}
}

// Optimize processes every JPEG and PNG below dir.
func (o *Optimizer) Optimize(ctx context.Context, dir string) (Stats, error) {
	paths, err := collect(dir)
	if err != nil {
		return Stats{}, err
	}

	variants, err := o.planVariants(paths)
	if err != nil {
		return Stats{}, err
	}

	var c counters

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)

	for _, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return o.optimizeFile(path, variants[path], &c)
		})
	}

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Images:     len(paths),
		Optimized:  int(c.optimized.Load()),
		Variants:   int(c.variants.Load()),
		CacheHits:  int(c.cacheHits.Load()),
		BytesSaved: c.bytesSaved.Load(),
	}

	log.Info().
		Int("images", stats.Images).
		Int("optimized", stats.Optimized).
		Int("variants", stats.Variants).
		Int("cache_hits", stats.CacheHits).
		Int64("bytes_saved", stats.BytesSaved).
		Msg("Optimized images")

	return stats, nil
}

func (o *Optimizer) optimizeFile(path string, variants []variantJob, c *counters) error {
	original, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	format, opts := o.minifyParams(path)

	// variants are derived from the untouched source
	for _, v := range variants {
		if err := o.variant(original, v.path, v.format, v.opts, c); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	minified, err := o.encode(original, format, opts, c)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if len(minified) == 0 || len(minified) >= len(original) {
		log.Debug().Str("file", path).Msg("Image already optimal")
		return nil
	}

	if err := files.WriteFile(path, minified); err != nil {
		return err
	}

	c.optimized.Add(1)
	c.bytesSaved.Add(int64(len(original) - len(minified)))
	log.Debug().Str("file", path).Int("before", len(original)).Int("after", len(minified)).Msg("Minified image")

	return nil
}

// planVariants assigns each source its variant outputs before anything is
// written. Two sources claiming the same variant is an error; a variant path
// that already exists in the output is left alone.
func (o *Optimizer) planVariants(paths []string) (map[string][]variantJob, error) {
	type kind struct {
		ext    string
		format Format
		opts   EncodeOptions
	}
	var kinds []kind
	if o.opts.WebP {
		kinds = append(kinds, kind{ext: ".webp", format: WebP, opts: EncodeOptions{Quality: o.opts.WebPQuality}})
	}
	if o.opts.AVIF {
		kinds = append(kinds, kind{ext: ".avif", format: AVIF, opts: EncodeOptions{Quality: o.opts.AVIFQuality}})
	}

	plan := make(map[string][]variantJob, len(paths))
	claimed := map[string]string{}

	for _, src := range paths {
		base := strings.TrimSuffix(src, filepath.Ext(src))
		for _, k := range kinds {
			dst := base + k.ext
			if other, ok := claimed[dst]; ok {
				return nil, fmt.Errorf("%w: %s and %s both produce %s", ErrVariantConflict, other, src, dst)
			}
			claimed[dst] = src

			_, err := os.Lstat(dst)
			switch {
			case err == nil:
				log.Warn().Str("file", dst).Str("source", src).Msg("Variant already exists, keeping it")
				continue
			case !errors.Is(err, fs.ErrNotExist):
				return nil, fmt.Errorf("failed to check %s: %w", dst, err)
			}

			plan[src] = append(plan[src], variantJob{path: dst, format: k.format, opts: k.opts})
		}
	}

	return plan, nil
}

func (o *Optimizer) variant(original []byte, dst string, format Format, opts EncodeOptions, c *counters) error {
	data, err := o.encode(original, format, opts, c)
	if err != nil {
		return err
	}
	if err := files.WriteFile(dst, data); err != nil {
		return err
	}
	c.variants.Add(1)
	return nil
}

func (o *Optimizer) encode(data []byte, format Format, opts EncodeOptions, c *counters) ([]byte, error) {
	key := cache.Key(data, variantLabel(format, opts))
	if cached, ok := o.cache.Get(key); ok {
		c.cacheHits.Add(1)
		return cached, nil
	}

	out, err := o.encoder.Encode(data, format, opts)
	if err != nil {
		return nil, err
	}

	o.cache.Set(key, out)
	return out, nil
}

func (o *Optimizer) minifyParams(path string) (Format, EncodeOptions) {
	if isPNG(path) {
		return PNG, EncodeOptions{Compression: pngCompression(o.opts.PNGLevel)}
	}
	return JPEG, EncodeOptions{Quality: o.opts.JPEGQuality}
}

// pngCompression maps an optipng optimization level (0-7) onto a zlib level.
func pngCompression(level int) int {
	switch {
	case level <= 0:
		return 1
	case level >= 7:
		return 9
	default:
		return level + 2
	}
}

func variantLabel(format Format, opts EncodeOptions) string {
	return string(format) + ":q" + strconv.Itoa(opts.Quality) + ":c" + strconv.Itoa(opts.Compression)
}

func collect(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsOptimizable(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return paths, nil
}

// IsOptimizable reports whether path is a JPEG or PNG file.
func IsOptimizable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func isPNG(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".png")
}

// Package build sequences the stages of a site build: hooks, cleaning the
// output directory, bundling, rendering the HTML shell, copying static files
// and optimizing images.
package build

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sitepack/internal/assets"
	"github.com/wolfeidau/sitepack/internal/cache"
	"github.com/wolfeidau/sitepack/internal/config"
	"github.com/wolfeidau/sitepack/internal/files"
	"github.com/wolfeidau/sitepack/internal/html"
	"github.com/wolfeidau/sitepack/internal/images"
	"github.com/wolfeidau/sitepack/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const (
	StageBeforeHooks = "before_hooks"
	StageClean       = "clean"
	StageBundle      = "bundle"
	StageHTML        = "html"
	StageCopy        = "copy"
	StageImages      = "images"
	StageAfterHooks  = "after_hooks"
)

// Report summarises a successful build.
type Report struct {
	ID       string
	Mode     config.Mode
	Duration time.Duration
	// Absolute paths of the files written
	Files    []string
	Warnings int
	Images   images.Stats
}

type Builder struct {
	cfg           config.Config
	pipeline      *assets.Pipeline
	optimizer     *images.Optimizer
	encoder       images.Encoder
	hooks         HookRunner
	inlineScripts []string
	metrics       *telemetry.Metrics
}

type Option func(*Builder)

// WithEncoder replaces the libvips image encoder.
func WithEncoder(enc images.Encoder) Option {
	return func(b *Builder) {
		b.encoder = enc
	}
}

// WithHookRunner replaces the shell hook runner.
func WithHookRunner(r HookRunner) Option {
	return func(b *Builder) {
		b.hooks = r
	}
}

// WithInlineScripts adds inline scripts to the rendered HTML shell.
func WithInlineScripts(scripts ...string) Option {
	return func(b *Builder) {
		b.inlineScripts = append(b.inlineScripts, scripts...)
	}
}

// New validates cfg and prepares the build stages.
func New(cfg config.Config, opts ...Option) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Builder{
		cfg:      cfg,
		pipeline: assets.New(assets.FromConfig(cfg)),
		hooks:    ShellHooks{},
		metrics:  telemetry.GetMetrics(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if cfg.Images.Enabled {
		if b.encoder == nil {
			b.encoder = images.NewVipsEncoder()
		}
		b.optimizer = images.NewOptimizer(b.encoder, cache.New(cfg.Profile().Cache, cfg.Path(cfg.CacheDir)), images.Options{
			JPEGQuality: cfg.Images.JPEGQuality,
			PNGLevel:    cfg.Images.PNGLevel,
			WebP:        cfg.Images.WebP,
			AVIF:        cfg.Images.AVIF,
			Concurrency: cfg.Images.Concurrency,
		})
	}

	return b, nil
}

// Config returns the configuration the builder was created with.
func (b *Builder) Config() config.Config {
	return b.cfg
}

// Close releases the bundler's incremental state. libvips is process wide
// and stopped with images.Shutdown.
func (b *Builder) Close() {
	b.pipeline.Close()
}

// Run performs one complete build.
func (b *Builder) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	report := &Report{
		ID:   uuid.NewString(),
		Mode: b.cfg.Mode,
	}

	ctx, span := telemetry.Tracer().Start(ctx, "sitepack.build")
	defer span.End()
	span.SetAttributes(
		attribute.String("build.id", report.ID),
		attribute.String("build.mode", report.Mode.String()),
	)

	buildAttrs := metric.WithAttributes(attribute.String("mode", report.Mode.String()))
	b.metrics.BuildsTotal.Add(ctx, 1, buildAttrs)

	logger := log.With().Str("build_id", report.ID).Str("mode", report.Mode.String()).Logger()
	ctx = logger.WithContext(ctx)
	logger.Info().Msg("Build started")

	if err := b.run(ctx, report); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.metrics.BuildErrorsTotal.Add(ctx, 1, buildAttrs)
		logger.Error().Err(err).Dur("duration", time.Since(started)).Msg("Build failed")
		return nil, err
	}

	report.Duration = time.Since(started)
	b.metrics.BuildDuration.Record(ctx, float64(report.Duration.Milliseconds()), buildAttrs)
	b.metrics.FilesWritten.Add(ctx, int64(len(report.Files)), buildAttrs)

	logger.Info().
		Int("files", len(report.Files)).
		Int("warnings", report.Warnings).
		Dur("duration", report.Duration).
		Msg("Build finished")

	return report, nil
}

func (b *Builder) run(ctx context.Context, report *Report) error {
	cfg := b.cfg
	outDir := cfg.Path(cfg.OutDir)
	env := b.hookEnv()

	if len(cfg.Hooks.BeforeBuild) > 0 {
		if err := b.stage(ctx, StageBeforeHooks, func(ctx context.Context) error {
			return b.hooks.Run(ctx, "before_build", cfg.Hooks.BeforeBuild, env)
		}); err != nil {
			return err
		}
	}

	if err := b.stage(ctx, StageClean, func(ctx context.Context) error {
		return files.Clean(cfg.Root, cfg.OutDir)
	}); err != nil {
		return err
	}

	var result *assets.Result
	if err := b.stage(ctx, StageBundle, func(ctx context.Context) error {
		var err error
		result, err = b.pipeline.Build(ctx)
		return err
	}); err != nil {
		return err
	}
	report.Files = append(report.Files, result.Files...)
	report.Warnings = result.Warnings

	if err := b.stage(ctx, StageHTML, func(ctx context.Context) error {
		path, err := b.renderHTML(result)
		if err != nil {
			return err
		}
		report.Files = append(report.Files, path)
		return nil
	}); err != nil {
		return err
	}

	if err := b.stage(ctx, StageCopy, func(ctx context.Context) error {
		for _, pattern := range cfg.Copy {
			written, err := files.Copy(ctx, cfg.Path(pattern.From), cfg.CopyTarget(pattern))
			if err != nil {
				return err
			}
			report.Files = append(report.Files, written...)
		}
		return nil
	}); err != nil {
		return err
	}

	if b.optimizer != nil {
		if err := b.stage(ctx, StageImages, func(ctx context.Context) error {
			stats, err := b.optimizer.Optimize(ctx, outDir)
			if err != nil {
				return err
			}
			report.Images = stats
			b.metrics.ImagesOptimizedTotal.Add(ctx, int64(stats.Optimized))
			b.metrics.ImageVariantsTotal.Add(ctx, int64(stats.Variants))
			b.metrics.ImageCacheHitsTotal.Add(ctx, int64(stats.CacheHits))
			b.metrics.ImageBytesSaved.Add(ctx, stats.BytesSaved)
			return nil
		}); err != nil {
			return err
		}
	}

	if len(cfg.Hooks.AfterBuild) > 0 {
		if err := b.stage(ctx, StageAfterHooks, func(ctx context.Context) error {
			return b.hooks.Run(ctx, "after_build", cfg.Hooks.AfterBuild, env)
		}); err != nil {
			return err
		}
	}

	return nil
}

func (b *Builder) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	started := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "sitepack.stage."+name)
	defer span.End()

	err := fn(ctx)

	b.metrics.StageDuration.Record(ctx, float64(time.Since(started).Milliseconds()),
		metric.WithAttributes(attribute.String("stage", name)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", name, err)
	}

	log.Ctx(ctx).Debug().Str("stage", name).Dur("duration", time.Since(started)).Msg("Stage finished")
	return nil
}

func (b *Builder) renderHTML(result *assets.Result) (string, error) {
	entry, err := result.Entry(b.cfg.Entry)
	if err != nil {
		return "", err
	}

	doc, err := html.Render(html.Options{
		Template:      b.cfg.Path(b.cfg.Template),
		Title:         b.cfg.Title,
		Mode:          b.cfg.Mode.String(),
		Scripts:       b.publicURLs(entry.Script),
		Styles:        b.publicURLs(entry.Styles...),
		Preloads:      b.publicURLs(entry.Preloads...),
		Module:        entry.Module,
		InlineScripts: b.inlineScripts,
	})
	if err != nil {
		return "", err
	}

	path := filepath.Join(b.cfg.Path(b.cfg.OutDir), b.cfg.HTMLFilename)
	if err := files.WriteFile(path, doc); err != nil {
		return "", err
	}
	return path, nil
}

// publicURLs prefixes output relative paths with the configured public path,
// the same prefix the bundler applies to asset URLs.
func (b *Builder) publicURLs(paths ...string) []string {
	prefix := b.cfg.PublicPath
	if prefix == "" {
		return paths
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		urls = append(urls, prefix+strings.TrimPrefix(filepath.ToSlash(p), "/"))
	}
	return urls
}

func (b *Builder) hookEnv() map[string]string {
	root, err := filepath.Abs(b.cfg.Root)
	if err != nil {
		root = b.cfg.Root
	}
	return map[string]string{
		"NODE_ENV":         b.cfg.Mode.String(),
		"SITEPACK_MODE":    b.cfg.Mode.String(),
		"SITEPACK_ROOT":    root,
		"SITEPACK_OUT_DIR": b.cfg.Path(b.cfg.OutDir),
		"SITEPACK_MINIFY":  strconv.FormatBool(b.cfg.Profile().Minify),
	}
}

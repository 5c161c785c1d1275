package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sitepack/internal/files"
)

// resource types emitted as separate hashed files
var resourceLoaders = map[string]api.Loader{
	".png":   api.LoaderFile,
	".svg":   api.LoaderFile,
	".jpg":   api.LoaderFile,
	".jpeg":  api.LoaderFile,
	".webp":  api.LoaderFile,
	".gif":   api.LoaderFile,
	".woff":  api.LoaderFile,
	".woff2": api.LoaderFile,
	".eot":   api.LoaderFile,
	".ttf":   api.LoaderFile,
	".otf":   api.LoaderFile,
}

// Options returns the esbuild options for the configured profile
func (p *Pipeline) Options() (api.BuildOptions, error) {
	target, err := parseTarget(p.config.Target)
	if err != nil {
		return api.BuildOptions{}, err
	}

	root, err := filepath.Abs(p.config.Root)
	if err != nil {
		return api.BuildOptions{}, fmt.Errorf("failed to resolve root: %w", err)
	}

	define := map[string]string{
		"process.env.NODE_ENV": strconv.Quote(p.config.NodeEnv),
	}
	for k, v := range p.config.Define {
		define[k] = v
	}

	return api.BuildOptions{
		AbsWorkingDir:     root,
		EntryPoints:       []string{absUnder(root, p.config.Entry)},
		Bundle:            true,
		Splitting:         p.config.Splitting,
		Write:             false,
		Outdir:            absUnder(root, p.config.OutputDir),
		EntryNames:        p.config.EntryNames,
		ChunkNames:        p.config.ChunkNames,
		AssetNames:        p.config.AssetNames,
		PublicPath:        p.config.PublicPath,
		Platform:          api.PlatformBrowser,
		Format:            cond(p.config.Splitting, api.FormatESModule, api.FormatIIFE),
		Target:            target,
		Loader:            resourceLoaders,
		Define:            define,
		MinifyWhitespace:  p.config.Minify,
		MinifyIdentifiers: p.config.Minify,
		MinifySyntax:      p.config.Minify,
		LegalComments:     api.LegalCommentsNone,
		TreeShaking:       api.TreeShakingTrue,
		Sourcemap:         cond(p.config.SourceMap, api.SourceMapLinked, api.SourceMapNone),
		Metafile:          true,
		LogLevel:          api.LogLevelSilent,
	}, nil
}

// Build runs esbuild with the configured settings, writes the outputs and
// loads metadata
func (p *Pipeline) Build(ctx context.Context) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts, err := p.Options()
	if err != nil {
		return nil, err
	}

	log.Info().
		Strs("entrypoints", opts.EntryPoints).
		Bool("minify", p.config.Minify).
		Bool("sourcemap", p.config.SourceMap).
		Bool("incremental", p.config.Incremental).
		Msg("Building assets")

	var result api.BuildResult
	if p.config.Incremental {
		result, err = p.rebuild(ctx, opts)
		if err != nil {
			return nil, err
		}
	} else {
		result = api.Build(opts)
	}

	for _, msg := range result.Warnings {
		log.Warn().Str("warning", msg.Text).Str("file", location(msg)).Msg("Build warning")
	}

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			log.Error().Str("error", msg.Text).Str("file", location(msg)).Msg("Build error")
		}
		return nil, &BuildError{Messages: api.FormatMessages(result.Errors, api.FormatMessagesOptions{
			Kind: api.ErrorMessage,
		})}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Result{
		Warnings:   len(result.Warnings),
		outputDir:  opts.Outdir,
		workingDir: opts.AbsWorkingDir,
		module:     p.config.Splitting,
	}

	for _, file := range result.OutputFiles {
		if err := files.WriteFile(file.Path, file.Contents); err != nil {
			return nil, err
		}
		out.Files = append(out.Files, file.Path)
		log.Debug().Str("file", file.Path).Int("bytes", len(file.Contents)).Msg("Built file")
	}

	// Write metafile
	if path := p.config.metafilePath(); path != "" {
		if err := files.WriteFile(absUnder(opts.AbsWorkingDir, path), []byte(result.Metafile)); err != nil {
			return nil, err
		}
	}

	// Parse metadata
	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}
	out.Metadata = &metadata

	return out, nil
}

func (p *Pipeline) rebuild(ctx context.Context, opts api.BuildOptions) (api.BuildResult, error) {
	if p.ctx == nil {
		bctx, ctxErr := api.Context(opts)
		if ctxErr != nil {
			return api.BuildResult{}, &BuildError{Messages: api.FormatMessages(ctxErr.Errors, api.FormatMessagesOptions{
				Kind: api.ErrorMessage,
			})}
		}
		p.ctx = bctx
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.ctx.Cancel()
		case <-done:
		}
	}()

	return p.ctx.Rebuild(), nil
}

// Close releases the incremental build context, if any
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx != nil {
		p.ctx.Dispose()
		p.ctx = nil
	}
}

// Entry returns the files needed for the given entrypoint. The entrypoint is
// either relative to the project root, e.g. "src/index.js", or absolute.
func (r *Result) Entry(entryPointPath string) (Entry, error) {
	if r == nil || r.Metadata == nil {
		return Entry{}, errors.New("assets not built yet, call Build() first")
	}

	// metafile entry points are relative to the working directory
	if filepath.IsAbs(entryPointPath) {
		if rel, err := filepath.Rel(r.workingDir, entryPointPath); err == nil {
			entryPointPath = rel
		}
	}
	want := filepath.ToSlash(filepath.Clean(entryPointPath))

	// Find the output file for this entrypoint
	for _, outputPath := range sortedKeys(r.Metadata.Outputs) {
		info := r.Metadata.Outputs[outputPath]
		if info.EntryPoint != want || !strings.HasSuffix(outputPath, ".js") {
			continue
		}

		entry := Entry{
			Script: r.relative(outputPath),
			Module: r.module,
		}
		if info.CSSBundle != "" {
			entry.Styles = append(entry.Styles, r.relative(info.CSSBundle))
		}

		visited := map[string]bool{outputPath: true}
		r.addDependencies(info, &entry, visited)
		return entry, nil
	}

	return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, want)
}

func (r *Result) addDependencies(output OutputInfo, entry *Entry, visited map[string]bool) {
	for _, imp := range output.Imports {
		if visited[imp.Path] {
			continue
		}
		visited[imp.Path] = true

		chunkInfo, exists := r.Metadata.Outputs[imp.Path]
		if !exists {
			// external or resource import
			continue
		}
		if strings.HasSuffix(imp.Path, ".js") {
			entry.Preloads = append(entry.Preloads, r.relative(imp.Path))
		}
		if chunkInfo.CSSBundle != "" && !visited[chunkInfo.CSSBundle] {
			visited[chunkInfo.CSSBundle] = true
			entry.Styles = append(entry.Styles, r.relative(chunkInfo.CSSBundle))
		}
		r.addDependencies(chunkInfo, entry, visited)
	}
}

// relative converts a metafile output path (relative to the working dir)
// into a slash separated path relative to the output directory.
func (r *Result) relative(outputPath string) string {
	abs := absUnder(r.workingDir, filepath.FromSlash(outputPath))
	rel, err := filepath.Rel(r.outputDir, abs)
	if err != nil {
		return outputPath
	}
	return filepath.ToSlash(rel)
}

func location(msg api.Message) string {
	if msg.Location == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", msg.Location.File, msg.Location.Line, msg.Location.Column)
}

func absUnder(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}

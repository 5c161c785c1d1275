package assets

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
)

var (
	// ErrBuildFailed is returned when esbuild reports errors
	ErrBuildFailed = errors.New("esbuild failed with errors")
	// ErrUnknownTarget indicates a target string esbuild does not support
	ErrUnknownTarget = errors.New("unknown javascript target")
	// ErrEntryNotFound indicates the entry point is missing from the build metadata
	ErrEntryNotFound = errors.New("entrypoint not found in metadata")
)

// BuildError carries the formatted esbuild messages of a failed build.
type BuildError struct {
	Messages []string
}

func (e *BuildError) Error() string {
	return ErrBuildFailed.Error() + ":\n" + strings.Join(e.Messages, "\n")
}

func (e *BuildError) Unwrap() error {
	return ErrBuildFailed
}

type BuildMetadata struct {
	Inputs  map[string]InputInfo  `json:"inputs"`
	Outputs map[string]OutputInfo `json:"outputs"`
}

type InputInfo struct {
	Bytes int64 `json:"bytes"`
}

type OutputInfo struct {
	EntryPoint string       `json:"entryPoint"`
	CSSBundle  string       `json:"cssBundle"`
	Imports    []ImportInfo `json:"imports"`
	Bytes      int64        `json:"bytes"`
}

type ImportInfo struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// Entry lists the files the HTML shell must reference for one entry point.
// Paths are slash separated and relative to the output directory.
type Entry struct {
	Script   string
	Styles   []string
	Preloads []string
	Module   bool
}

// Result describes a completed bundle.
type Result struct {
	// Absolute paths of every file written
	Files    []string
	Warnings int
	Metadata *BuildMetadata

	outputDir  string
	workingDir string
	module     bool
}

// Pipeline manages the esbuild process
type Pipeline struct {
	config Config
	ctx    api.BuildContext
	mu     sync.Mutex
}

// New creates a new asset pipeline with the given configuration
func New(config Config) *Pipeline {
	return &Pipeline{
		config: config,
	}
}

// Config returns the pipeline configuration
func (p *Pipeline) Config() Config {
	return p.config
}

var targets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"es2023": api.ES2023,
	"es2024": api.ES2024,
	"esnext": api.ESNext,
}

func parseTarget(s string) (api.Target, error) {
	if s == "" {
		return api.ES2017, nil
	}
	t, ok := targets[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTarget, s)
	}
	return t, nil
}

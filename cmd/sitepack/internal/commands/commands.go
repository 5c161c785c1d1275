package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sitepack/internal/config"
	"github.com/wolfeidau/sitepack/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Tracing bool
	Version string
}

// ProjectFlags locate the project and select the build profile.
type ProjectFlags struct {
	Root     string `help:"project root directory" default:"." env:"SITEPACK_ROOT" type:"path"`
	Config   string `help:"config file, relative to the root" default:"sitepack.yaml" env:"SITEPACK_CONFIG"`
	Mode     string `help:"build mode (development or production), falls back to NODE_ENV"`
	NoMinify bool   `help:"disable minification" env:"SITEPACK_NO_MINIFY"`
}

// Load resolves the project configuration. The mode comes from --mode, then
// NODE_ENV, then development.
func (f ProjectFlags) Load() (config.Config, error) {
	root, err := filepath.Abs(f.Root)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to resolve root: %w", err)
	}

	cfg, err := config.Load(f.Config, root)
	if err != nil {
		return config.Config{}, err
	}

	cfg.Mode = config.ResolveMode(f.Mode, os.Getenv("NODE_ENV"))
	if f.NoMinify {
		cfg.Minify = false
	}

	return cfg, cfg.Validate()
}

func setupTelemetry(ctx context.Context, globals *Globals) telemetry.ShutdownFunc {
	noop := func(context.Context) error { return nil }
	if !globals.Tracing {
		return noop
	}

	shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Options{
		ServiceName: "sitepack",
		Version:     globals.Version,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Telemetry disabled")
		return noop
	}
	return shutdown
}

func shutdownTelemetry(shutdown telemetry.ShutdownFunc) {
	if err := shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown telemetry")
	}
}

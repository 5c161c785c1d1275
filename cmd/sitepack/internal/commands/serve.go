package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sitepack/internal/build"
	"github.com/wolfeidau/sitepack/internal/images"
	"github.com/wolfeidau/sitepack/internal/devserver"
	"github.com/wolfeidau/sitepack/internal/logger"
)

type ServeCmd struct {
	ProjectFlags `embed:""`

	Host string `help:"dev server host, overrides the config file" env:"SITEPACK_HOST"`
	Port int    `help:"dev server port, overrides the config file" env:"SITEPACK_PORT"`
}

func (s *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := setupTelemetry(ctx, globals)
	defer shutdownTelemetry(shutdown)

	cfg, err := s.Load()
	if err != nil {
		return err
	}
	if s.Host != "" {
		cfg.DevServer.Host = s.Host
	}
	if s.Port != 0 {
		cfg.DevServer.Port = s.Port
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	builder, err := build.New(cfg, build.WithInlineScripts(devserver.ReloadScript))
	if err != nil {
		return err
	}
	defer builder.Close()
	defer images.Shutdown()

	log.Info().Str("mode", cfg.Mode.String()).Msg("Starting dev server")

	return devserver.New(cfg, builder).ListenAndServe(ctx)
}

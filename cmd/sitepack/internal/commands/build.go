package commands

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sitepack/internal/build"
	"github.com/wolfeidau/sitepack/internal/images"
	"github.com/wolfeidau/sitepack/internal/logger"
)

type BuildCmd struct {
	ProjectFlags `embed:""`
}

func (b *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(globals.Debug)

	shutdown := setupTelemetry(ctx, globals)
	defer shutdownTelemetry(shutdown)

	cfg, err := b.Load()
	if err != nil {
		return err
	}

	builder, err := build.New(cfg)
	if err != nil {
		return err
	}
	defer builder.Close()
	defer images.Shutdown()

	report, err := builder.Run(ctx)
	if err != nil {
		return err
	}

	log.Info().
		Str("out_dir", cfg.OutDir).
		Int("files", len(report.Files)).
		Int("images_optimized", report.Images.Optimized).
		Int("image_variants", report.Images.Variants).
		Msg("Site built")

	return nil
}

package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sitepack/internal/files"
	"github.com/wolfeidau/sitepack/internal/logger"
)

type CleanCmd struct {
	ProjectFlags `embed:""`

	Cache bool `help:"also remove the filesystem cache"`
}

func (c *CleanCmd) Run(globals *Globals) error {
	logger.Setup(globals.Debug)

	cfg, err := c.Load()
	if err != nil {
		return err
	}

	dirs := []string{cfg.OutDir}
	if c.Cache {
		dirs = append(dirs, cfg.CacheDir)
	}

	for _, dir := range dirs {
		if err := files.Clean(cfg.Root, cfg.Path(dir)); err != nil {
			return err
		}
		log.Info().Str("dir", dir).Msg("Removed")
	}

	return nil
}

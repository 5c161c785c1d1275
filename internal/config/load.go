package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up in the project root.
const DefaultFile = "sitepack.yaml"

// Load reads the YAML file at path over the defaults for root. A missing
// file yields the defaults.
func Load(path, root string) (Config, error) {
	cfg := Default(root)

	if path == "" {
		path = DefaultFile
	}
	path = cfg.Path(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("path", path).Msg("No config file, using defaults")
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	log.Debug().Str("path", path).Msg("Loaded config file")
	return cfg, nil
}

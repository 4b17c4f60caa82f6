package config

import (
	"fmt"

	"go-civitai-scrape/internal/models"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

// LoadConfig reads the configuration from the specified path (defaulting to
// "config.toml") and populates a models.Config struct.
func LoadConfig(configFilePath string) (models.Config, error) {
	if configFilePath == "" {
		configFilePath = "config.toml" // Default path
	}
	var cfg models.Config
	// Defaults that an absent key must not turn off. Set before decoding so
	// the file can still disable them explicitly.
	cfg.ScrapeFallback = true

	_, err := toml.DecodeFile(configFilePath, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("error loading config file %s: %w", configFilePath, err)
	}

	if cfg.OutputPath == "" {
		log.Warn("Warning: OutputPath is not set in config")
	}
	if cfg.ThumbnailPath == "" {
		log.Warn("Warning: ThumbnailPath is not set in config")
	}

	log.Infof("Configuration loaded from %s", configFilePath)
	return cfg, nil
}

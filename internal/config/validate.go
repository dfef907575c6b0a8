package config

import (
	"errors"
	"fmt"
	"strings"

	"perapera/internal/keys"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateIndex(); err != nil {
		return err
	}
	if err := c.validateMerge(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.GameDataDir == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/perapera/config.toml"
		}
		return fmt.Errorf("paths.game_data_dir is required. Set PERAPERA_GAME_DATA_DIR env var or edit %s (create with 'perapera config init')", defaultPath)
	}
	if c.Paths.WorkspaceDir == "" {
		return errors.New("paths.workspace_dir must be set")
	}
	return nil
}

func (c *Config) validateDownload() error {
	for key, tmpl := range map[string]string{
		"download.bundle_url":  c.Download.BundleURL,
		"download.generic_url": c.Download.GenericURL,
	} {
		if !strings.Contains(tmpl, "{hash}") {
			return fmt.Errorf("%s must contain the {hash} placeholder", key)
		}
	}
	if c.Download.TimeoutSeconds < 0 {
		return errors.New("download.timeout_seconds must be positive")
	}
	if c.Download.Workers < 0 {
		return errors.New("download.workers must be positive")
	}
	return nil
}

func (c *Config) validateIndex() error {
	if c.Index.KDFIterations < 0 {
		return errors.New("index.kdf_iterations must be zero or positive")
	}
	if _, err := c.KeyMaterial(); err != nil {
		return fmt.Errorf("index keys: %w", err)
	}
	return nil
}

func (c *Config) validateMerge() error {
	if c.Merge.SimilarityThreshold <= 0 || c.Merge.SimilarityThreshold >= 1 {
		return errors.New("merge.similarity_threshold must be between 0 and 1 (exclusive)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

// KeyMaterial decodes the configured key inputs.
func (c *Config) KeyMaterial() (keys.Material, error) {
	m, err := keys.NewMaterial(c.Index.DBKey, c.Index.DBSalt, c.Index.BundleBaseKey)
	if err != nil {
		return keys.Material{}, err
	}
	if len(m.DBKey) != 32 {
		return keys.Material{}, fmt.Errorf("db key must be 32 bytes, got %d", len(m.DBKey))
	}
	return m, nil
}

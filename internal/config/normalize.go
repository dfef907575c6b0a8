package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDownload()
	c.normalizeIndex()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.GameDataDir) == "" {
		if value, ok := os.LookupEnv("PERAPERA_GAME_DATA_DIR"); ok {
			c.Paths.GameDataDir = strings.TrimSpace(value)
		}
	}
	if value, ok := os.LookupEnv("PERAPERA_WORKSPACE_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.WorkspaceDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = defaultWorkspaceDir
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}

	var err error
	if c.Paths.GameDataDir, err = expandPath(strings.TrimSpace(c.Paths.GameDataDir)); err != nil {
		return fmt.Errorf("paths.game_data_dir: %w", err)
	}
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.BackupDir, err = expandPath(strings.TrimSpace(c.Paths.BackupDir)); err != nil {
		return fmt.Errorf("paths.backup_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDownload() {
	c.Download.BundleURL = strings.TrimSpace(c.Download.BundleURL)
	if c.Download.BundleURL == "" {
		c.Download.BundleURL = defaultBundleURL
	}
	c.Download.GenericURL = strings.TrimSpace(c.Download.GenericURL)
	if c.Download.GenericURL == "" {
		c.Download.GenericURL = defaultGenericURL
	}
	if c.Download.TimeoutSeconds == 0 {
		c.Download.TimeoutSeconds = defaultDownloadTimeout
	}
	if c.Download.Workers == 0 {
		c.Download.Workers = defaultDownloadWorkers
	}
}

func (c *Config) normalizeIndex() {
	c.Index.DefaultPlatform = strings.TrimSpace(c.Index.DefaultPlatform)
	if c.Index.DefaultPlatform == "" {
		c.Index.DefaultPlatform = defaultPlatform
	}
	c.Index.DBKey = strings.TrimSpace(c.Index.DBKey)
	c.Index.DBSalt = strings.TrimSpace(c.Index.DBSalt)
	c.Index.BundleBaseKey = strings.TrimSpace(c.Index.BundleBaseKey)
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("PERAPERA_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

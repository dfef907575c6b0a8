package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	GameDataDir  string `toml:"game_data_dir"`
	WorkspaceDir string `toml:"workspace_dir"`
	CacheDir     string `toml:"cache_dir"`
	LogDir       string `toml:"log_dir"`
	BackupDir    string `toml:"backup_dir"`
}

// Download controls how missing bundles are fetched from the asset origin.
type Download struct {
	AutoDownload   bool   `toml:"auto_download"`
	BundleURL      string `toml:"bundle_url"`
	GenericURL     string `toml:"generic_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Workers        int    `toml:"workers"`
	Progress       bool   `toml:"progress"`
}

// Index contains key material and tuning for the encrypted asset index.
type Index struct {
	KDFIterations   int    `toml:"kdf_iterations"`
	DefaultPlatform string `toml:"default_platform"`
	DBKey           string `toml:"db_key"`
	DBSalt          string `toml:"db_salt"`
	BundleBaseKey   string `toml:"bundle_base_key"`
}

// Merge contains translation carry-forward settings.
type Merge struct {
	// SimilarityThreshold is the ratio a prior block must exceed to donate its
	// translation. Default: 0.85
	SimilarityThreshold float64 `toml:"similarity_threshold"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for perapera.
//
// Configuration sections by subsystem:
//   - Paths: game data, workspace, cache, log and backup directories
//   - Download: auto-download policy, origin URL templates, timeouts, workers
//   - Index: key material and KDF tuning for the encrypted asset index
//   - Merge: similarity threshold for translation carry-forward
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Download Download `toml:"download"`
	Index    Index    `toml:"index"`
	Merge    Merge    `toml:"merge"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/perapera/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv populates unset environment variables from path when it exists.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("perapera.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the writable directories the pipeline needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceDir, c.Paths.CacheDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MetaPath returns the location of the encrypted asset index.
func (c *Config) MetaPath() string {
	return filepath.Join(c.Paths.GameDataDir, "meta")
}

// MasterPath returns the location of the master text database.
func (c *Config) MasterPath() string {
	return filepath.Join(c.Paths.GameDataDir, "master", "master.mdb")
}

// ContentDir returns the root of the content-addressed bundle store.
func (c *Config) ContentDir() string {
	return filepath.Join(c.Paths.GameDataDir, "dat")
}

// IndexCacheDir holds decrypted copies of the asset index.
func (c *Config) IndexCacheDir() string {
	return filepath.Join(c.Paths.CacheDir, "index")
}

// LockDir holds per-content download lock files.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.CacheDir, "locks")
}

// BackupDir returns the directory receiving compressed copies of replaced
// workspace documents.
func (c *Config) BackupDir() string {
	if strings.TrimSpace(c.Paths.BackupDir) != "" {
		return c.Paths.BackupDir
	}
	return filepath.Join(c.Paths.WorkspaceDir, ".backups")
}

// DownloadTimeout returns the bounded per-request timeout for bundle fetches.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "perapera")
	}
	return defaultCacheDirFallback
}

// defaultGameDataDir checks the Windows install location used by the game
// client. Returns "" when nothing is found.
func defaultGameDataDir() string {
	profile := strings.TrimSpace(os.Getenv("USERPROFILE"))
	if profile == "" {
		return ""
	}
	candidate := filepath.Join(profile, "AppData", "LocalLow", "Cygames", "umamusume")
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate
	}
	return ""
}

// CreateSample writes a sample configuration file to the specified location.
// A non-empty gameDataDir replaces the empty game_data_dir of the sample.
func CreateSample(path, gameDataDir string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(renderSample(gameDataDir)), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func renderSample(gameDataDir string) string {
	if gameDataDir == "" {
		return sampleConfig
	}
	value, err := toml.Marshal(map[string]string{"game_data_dir": gameDataDir})
	if err != nil {
		return sampleConfig
	}
	return strings.Replace(sampleConfig, `game_data_dir = ""`+"\n", string(value), 1)
}

// DetectGameDataDir returns the game client's data directory when it exists
// at its standard install location, or "".
func DetectGameDataDir() string {
	return defaultGameDataDir()
}

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"perapera/internal/config"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", "")
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("PERAPERA_GAME_DATA_DIR", "")
	t.Setenv("PERAPERA_WORKSPACE_DIR", "")
	t.Setenv("PERAPERA_LOG_LEVEL", "")
	t.Chdir(t.TempDir())
	return home
}

func TestLoadDefaultConfigUsesEnvGameDirAndExpandsPaths(t *testing.T) {
	home := isolateEnv(t)
	gameDir := filepath.Join(home, "game")
	t.Setenv("PERAPERA_GAME_DATA_DIR", gameDir)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.GameDataDir != gameDir {
		t.Fatalf("unexpected game dir: got %q want %q", cfg.Paths.GameDataDir, gameDir)
	}
	wantWorkspace := filepath.Join(home, ".local", "share", "perapera", "translations")
	if cfg.Paths.WorkspaceDir != wantWorkspace {
		t.Fatalf("unexpected workspace dir: got %q want %q", cfg.Paths.WorkspaceDir, wantWorkspace)
	}
	if cfg.Paths.CacheDir != filepath.Join(home, ".cache", "perapera") {
		t.Fatalf("unexpected cache dir: %q", cfg.Paths.CacheDir)
	}
	if cfg.MetaPath() != filepath.Join(gameDir, "meta") {
		t.Fatalf("unexpected meta path: %q", cfg.MetaPath())
	}
	if cfg.MasterPath() != filepath.Join(gameDir, "master", "master.mdb") {
		t.Fatalf("unexpected master path: %q", cfg.MasterPath())
	}
	if cfg.BackupDir() != filepath.Join(wantWorkspace, ".backups") {
		t.Fatalf("unexpected backup dir: %q", cfg.BackupDir())
	}
	if !cfg.Download.AutoDownload {
		t.Fatal("expected auto download enabled by default")
	}
	if cfg.Index.KDFIterations != 64007 {
		t.Fatalf("unexpected kdf iterations: %d", cfg.Index.KDFIterations)
	}
	if cfg.Merge.SimilarityThreshold != 0.85 {
		t.Fatalf("unexpected similarity threshold: %v", cfg.Merge.SimilarityThreshold)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadRequiresGameDataDir(t *testing.T) {
	isolateEnv(t)
	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error without game data dir")
	}
	if !strings.Contains(err.Error(), "game_data_dir") {
		t.Fatalf("expected game_data_dir in error, got %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	isolateEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "perapera.toml")

	type payload struct {
		Paths struct {
			GameDataDir  string `toml:"game_data_dir"`
			WorkspaceDir string `toml:"workspace_dir"`
		} `toml:"paths"`
		Download struct {
			AutoDownload bool `toml:"auto_download"`
			Workers      int  `toml:"workers"`
		} `toml:"download"`
		Merge struct {
			SimilarityThreshold float64 `toml:"similarity_threshold"`
		} `toml:"merge"`
	}
	custom := payload{}
	custom.Paths.GameDataDir = filepath.Join(tempDir, "game")
	custom.Paths.WorkspaceDir = filepath.Join(tempDir, "ws")
	custom.Download.AutoDownload = false
	custom.Download.Workers = 8
	custom.Merge.SimilarityThreshold = 0.9
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Download.AutoDownload {
		t.Fatal("expected auto download disabled from file")
	}
	if cfg.Download.Workers != 8 {
		t.Fatalf("expected 8 workers, got %d", cfg.Download.Workers)
	}
	if cfg.Merge.SimilarityThreshold != 0.9 {
		t.Fatalf("expected threshold 0.9, got %v", cfg.Merge.SimilarityThreshold)
	}
	if cfg.Paths.WorkspaceDir != filepath.Join(tempDir, "ws") {
		t.Fatalf("unexpected workspace: %q", cfg.Paths.WorkspaceDir)
	}
	if cfg.Download.BundleURL == "" || cfg.Download.GenericURL == "" {
		t.Fatal("expected URL templates to keep defaults")
	}
}

func TestDotEnvSuppliesGameDataDir(t *testing.T) {
	isolateEnv(t)
	os.Unsetenv("PERAPERA_GAME_DATA_DIR")
	gameDir := filepath.Join(t.TempDir(), "from-dotenv")
	if err := os.WriteFile(".env", []byte("PERAPERA_GAME_DATA_DIR="+gameDir+"\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("PERAPERA_GAME_DATA_DIR") })

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.GameDataDir != gameDir {
		t.Fatalf("expected game dir from .env, got %q", cfg.Paths.GameDataDir)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path, ""); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "game_data_dir") {
		t.Fatalf("sample config missing game_data_dir: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Index.KDFIterations != 64007 {
		t.Fatalf("sample kdf iterations = %d", cfg.Index.KDFIterations)
	}
	if !strings.Contains(cfg.Download.BundleURL, "{hash}") {
		t.Fatalf("sample bundle url missing placeholder: %q", cfg.Download.BundleURL)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.Paths.GameDataDir = "/tmp/game"
		cfg.Paths.WorkspaceDir = "/tmp/ws"
		return cfg
	}

	cfg := valid()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}

	cases := map[string]func(*config.Config){
		"threshold above one":   func(c *config.Config) { c.Merge.SimilarityThreshold = 1.2 },
		"threshold zero":        func(c *config.Config) { c.Merge.SimilarityThreshold = 0 },
		"url without hash":      func(c *config.Config) { c.Download.BundleURL = "https://example.com/{prefix}" },
		"negative timeout":      func(c *config.Config) { c.Download.TimeoutSeconds = -1 },
		"negative kdf":          func(c *config.Config) { c.Index.KDFIterations = -5 },
		"bad db key hex":        func(c *config.Config) { c.Index.DBKey = "zz" },
		"short salt":            func(c *config.Config) { c.Index.DBSalt = "0102" },
		"short db key":          func(c *config.Config) { c.Index.DBKey = "0102" },
		"unsupported log level": func(c *config.Config) { c.Logging.Level = "trace" },
		"unsupported format":    func(c *config.Config) { c.Logging.Format = "xml" },
	}
	for name, mutate := range cases {
		cfg := valid()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestCreateSampleWithGameDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	gameDir := filepath.Join(t.TempDir(), "Cygames", "umamusume")
	if err := config.CreateSample(path, gameDir); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Paths.GameDataDir != gameDir {
		t.Fatalf("game_data_dir = %q, want %q", cfg.Paths.GameDataDir, gameDir)
	}
	if cfg.Merge.SimilarityThreshold != 0.85 {
		t.Fatalf("rest of the sample should be kept, threshold = %v", cfg.Merge.SimilarityThreshold)
	}
}

package testsupport

import (
	"path/filepath"
	"testing"

	"perapera/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Auto-download is disabled unless WithOrigin is applied.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.GameDataDir = filepath.Join(base, "game")
	cfgVal.Paths.WorkspaceDir = filepath.Join(base, "workspace")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.BackupDir = filepath.Join(base, "backups")
	cfgVal.Download.AutoDownload = false
	cfgVal.Download.Progress = false
	cfgVal.Index.KDFIterations = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithOrigin points both download templates at baseURL and enables
// auto-download.
func WithOrigin(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.AutoDownload = true
		b.cfg.Download.BundleURL = baseURL + "/{platform}/assetbundles/{prefix}/{hash}"
		b.cfg.Download.GenericURL = baseURL + "/Generic/{prefix}/{hash}"
		b.cfg.Download.TimeoutSeconds = 5
	}
}

// WithThreshold overrides the merge similarity threshold.
func WithThreshold(threshold float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Merge.SimilarityThreshold = threshold
	}
}

// WithWorkers overrides the batch worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.Workers = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.GameDataDir)
}

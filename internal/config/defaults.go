package config

import "perapera/internal/keys"

const (
	defaultWorkspaceDir        = "~/.local/share/perapera/translations"
	defaultLogDir              = "~/.local/share/perapera/logs"
	defaultCacheDirFallback    = "~/.cache/perapera"
	defaultBundleURL           = "https://prd-storage-game-umamusume.akamaized.net/dl/resources/{platform}/assetbundles/{prefix}/{hash}"
	defaultGenericURL          = "https://prd-storage-game-umamusume.akamaized.net/dl/resources/Generic/{prefix}/{hash}"
	defaultDownloadTimeout     = 60
	defaultDownloadWorkers     = 4
	defaultKDFIterations       = 64007
	defaultPlatform            = "Windows"
	defaultSimilarityThreshold = 0.85
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			GameDataDir:  defaultGameDataDir(),
			WorkspaceDir: defaultWorkspaceDir,
			CacheDir:     defaultCacheDir(),
			LogDir:       defaultLogDir,
		},
		Download: Download{
			AutoDownload:   true,
			BundleURL:      defaultBundleURL,
			GenericURL:     defaultGenericURL,
			TimeoutSeconds: defaultDownloadTimeout,
			Workers:        defaultDownloadWorkers,
			Progress:       true,
		},
		Index: Index{
			KDFIterations:   defaultKDFIterations,
			DefaultPlatform: defaultPlatform,
			DBKey:           keys.DefaultDBKeyHex,
			DBSalt:          keys.DefaultDBSaltHex,
			BundleBaseKey:   keys.DefaultBundleBaseKeyHex,
		},
		Merge: Merge{
			SimilarityThreshold: defaultSimilarityThreshold,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

package preflight

import (
	"context"

	"perapera/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckFileReadable("Asset index", cfg.MetaPath()),
		CheckFileReadable("Master database", cfg.MasterPath()),
		CheckKeyMaterial(cfg),
		CheckDirectoryAccess("Workspace directory", cfg.Paths.WorkspaceDir),
		CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir),
	}

	if cfg.Download.AutoDownload {
		results = append(results,
			CheckOrigin(ctx, "Bundle origin", cfg.Download.BundleURL),
			CheckOrigin(ctx, "Generic origin", cfg.Download.GenericURL),
		)
	}
	return results
}

// Required returns the checks extraction cannot run without: a readable
// asset index and a writable workspace.
func Required(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckFileReadable("Asset index", cfg.MetaPath()),
		CheckDirectoryAccess("Workspace directory", cfg.Paths.WorkspaceDir),
	}
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

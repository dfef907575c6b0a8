package translation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"perapera/internal/document"
	"perapera/internal/logging"
	"perapera/internal/services"
	"perapera/internal/workspace"
)

// ProjectEntry records where one imported document went.
type ProjectEntry struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	AssetName string `json:"asset_name"`
}

// ProjectSummary counts the files seen by ImportProject.
type ProjectSummary struct {
	Scanned  int            `json:"scanned"`
	Imported int            `json:"imported"`
	Skipped  int            `json:"skipped"`
	DryRun   bool           `json:"dry_run"`
	Entries  []ProjectEntry `json:"entries"`
}

// ImportProject copies every document below srcDir into the workspace at the
// path its asset name and group name map to. Files without an asset name or
// type are skipped. With dryRun set nothing is written.
func ImportProject(ctx context.Context, store *workspace.Store, srcDir string, dryRun bool, logger *slog.Logger) (*ProjectSummary, error) {
	if err := requireDir(srcDir); err != nil {
		return nil, err
	}
	logger = logging.NewComponentLogger(logger, "translation")
	paths, err := workspace.Documents(srcDir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "translation", "scan", "Failed to scan "+srcDir, err)
	}

	summary := &ProjectSummary{DryRun: dryRun, Entries: []ProjectEntry{}}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Scanned++
		rel, _ := filepath.Rel(srcDir, path)

		doc, err := workspace.ReadDocument(path)
		if err != nil {
			summary.Skipped++
			logging.WarnWithContext(logger, "import file skipped", "import_unreadable",
				logging.String("path", rel),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file not imported"),
			)
			continue
		}
		if doc.AssetName == "" || !slices.Contains(document.Types, doc.Type) {
			summary.Skipped++
			logger.Debug("not a translation document", logging.String("path", rel), logging.String("type", doc.Type))
			continue
		}

		id := document.ParseStoryID(doc.Type, doc.AssetName, doc.GroupName)
		target := store.Path(id)
		if !dryRun {
			if _, err := store.Save(ctx, id, doc); err != nil {
				return summary, err
			}
		}
		summary.Imported++
		summary.Entries = append(summary.Entries, ProjectEntry{Source: rel, Target: filepath.ToSlash(id.RelPath()), AssetName: doc.AssetName})
		logger.Info("document imported",
			logging.String("source", rel),
			logging.String("target", target),
			logging.Bool("dry_run", dryRun),
		)
	}
	return summary, nil
}

func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "translation", "open", fmt.Sprintf("Source directory %s is not readable", dir), err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrConfiguration, "translation", "open", fmt.Sprintf("%s is not a directory", dir), nil)
	}
	return nil
}

package workflow

import (
	"context"
	"log/slog"
	"time"

	"perapera/internal/document"
	"perapera/internal/extract"
	"perapera/internal/logging"
	"perapera/internal/services"
)

// Mode selects how an existing workspace document is treated.
type Mode int

const (
	// ModeSkip leaves assets with an existing document alone.
	ModeSkip Mode = iota
	// ModeUpdate re-extracts and carries existing translations forward.
	ModeUpdate
	// ModeOverwrite re-extracts and discards existing translations.
	ModeOverwrite
)

func (m Mode) String() string {
	switch m {
	case ModeUpdate:
		return "update"
	case ModeOverwrite:
		return "overwrite"
	default:
		return "skip"
	}
}

// AssetResult is the outcome of one asset.
type AssetResult struct {
	Name     string
	Type     string
	Outcome  services.Outcome
	Kind     string
	Reason   string
	Path     string
	Units    int
	Matched  int
	Duration time.Duration
	Err      error
}

// ProcessAsset runs one asset through resolve, fetch, decode, extract, merge
// and save.
func (p *Pipeline) ProcessAsset(ctx context.Context, assetType, name string, mode Mode) AssetResult {
	start := time.Now()
	ctx = services.WithAsset(services.WithAssetType(ctx, assetType), name)
	logger := logging.WithContext(ctx, p.logger)

	result := p.processAsset(ctx, logger, assetType, name, mode)
	result.Name = name
	result.Type = assetType
	result.Duration = time.Since(start)
	if result.Err != nil {
		result.Outcome = services.OutcomeFor(result.Err)
		result.Kind = services.Kind(result.Err)
		if result.Reason == "" {
			result.Reason = result.Err.Error()
		}
	}
	p.report(logger, result)
	return result
}

func (p *Pipeline) processAsset(ctx context.Context, logger *slog.Logger, assetType, name string, mode Mode) AssetResult {
	if !p.dispatcher.Supports(assetType) {
		return AssetResult{Err: services.Wrap(services.ErrValidation, "workflow", "dispatch", "Unsupported asset type "+assetType, nil)}
	}

	id := document.ParseStoryID(assetType, name, "")
	id.GroupName = p.names.GroupName(ctx, assetType, id.Group)
	path := p.workspace.Path(id)
	if mode == ModeSkip && p.workspace.Exists(id) {
		return AssetResult{Outcome: services.OutcomeSkipped, Reason: "document exists; use update or overwrite", Path: path}
	}

	loaded, err := p.decoder.Load(services.WithStage(ctx, "decode"), name)
	if err != nil {
		return AssetResult{Err: err, Path: path}
	}

	in := extract.Input{
		AssetName:   name,
		AssetType:   assetType,
		GroupName:   id.GroupName,
		ContentHash: loaded.Record.ContentHash,
		Platform:    p.index.Platform(),
		Graph:       loaded.Graph,
	}
	if assetType == document.TypeStory || assetType == document.TypeHome {
		names, err := p.names.CharacterNames(ctx)
		if err != nil {
			logger.Debug("character names unavailable", logging.Error(err))
		}
		in.CharacterNames = names
	}

	res := p.dispatcher.Extract(services.WithStage(ctx, "extract"), in)
	if res.Status != extract.StatusFound {
		return AssetResult{Err: res.Err(), Reason: res.Reason, Path: path}
	}
	doc := res.Document

	var matched int
	if mode == ModeUpdate {
		existing, err := p.workspace.Load(id)
		if err != nil {
			return AssetResult{Err: err, Path: path}
		}
		merged, stats := p.merger.Merge(doc, existing)
		doc = merged
		matched = stats.Matched()
		if existing != nil {
			logger.Info("translations merged",
				logging.String(logging.FieldEventType, "merge_complete"),
				logging.Int("matched", stats.Matched()),
				logging.Int("exact", stats.Exact),
				logging.Int("total", stats.Total),
			)
		}
	}

	saved, err := p.workspace.Save(services.WithStage(ctx, "save"), id, doc)
	if err != nil {
		return AssetResult{Err: err, Path: path}
	}
	return AssetResult{Outcome: services.OutcomeSuccess, Path: saved, Units: doc.Len(), Matched: matched}
}

func (p *Pipeline) report(logger *slog.Logger, result AssetResult) {
	switch result.Outcome {
	case services.OutcomeSuccess:
		logger.Info("asset extracted",
			logging.String(logging.FieldEventType, "asset_complete"),
			logging.String("path", result.Path),
			logging.Int("units", result.Units),
			logging.Duration("duration", result.Duration),
		)
	case services.OutcomeSkipped:
		logger.Info("asset skipped",
			logging.String(logging.FieldEventType, "asset_skipped"),
			logging.String("reason", result.Reason),
			logging.String(logging.FieldErrorKind, result.Kind),
		)
	default:
		logging.ErrorWithContext(logger, "asset failed", "asset_failed",
			logging.String(logging.FieldErrorKind, result.Kind),
			logging.String(logging.FieldErrorHint, hintFor(result.Err)),
			logging.String(logging.FieldImpact, "asset left unchanged in the workspace"),
			logging.Error(result.Err),
		)
	}
}

func hintFor(err error) string {
	switch services.Kind(err) {
	case "IndexLookupFailed":
		return "check the asset name with the names command"
	case "DownloadFailed":
		return "check network access and download.bundle_url, then re-run"
	case "DecodeFailed":
		return "verify index.bundle_base_key and re-download the bundle"
	case "ConfigurationError":
		return "run perapera check"
	default:
		return "re-run with --log-level debug for details"
	}
}

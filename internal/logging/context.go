package logging

import (
	"context"
	"log/slog"

	"perapera/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized key for batch run identifiers.
	FieldRunID = "run_id"
	// FieldAsset is the standardized key for logical asset names.
	FieldAsset = "asset"
	// FieldAssetType is the standardized key for asset type tags.
	FieldAssetType = "asset_type"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the pipeline error taxonomy name.
	FieldErrorKind = "error_kind"
	// FieldBlockIndex locates a block inside a document.
	FieldBlockIndex = "block_index"
	// FieldPathID is the scene-graph object a log line refers to.
	FieldPathID = "path_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if name, ok := services.AssetFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldAsset, name))
	}
	if typ, ok := services.AssetTypeFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldAssetType, typ))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}

package services

import "context"

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	assetKey     contextKey = "asset"
	assetTypeKey contextKey = "asset_type"
	stageKey     contextKey = "stage"
)

// WithRunID annotates context with the batch run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	return withString(ctx, runIDKey, id)
}

// RunIDFromContext extracts the batch run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, runIDKey)
}

// WithAsset annotates context with the logical asset name being processed.
func WithAsset(ctx context.Context, name string) context.Context {
	return withString(ctx, assetKey, name)
}

// AssetFromContext returns the asset name if present.
func AssetFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, assetKey)
}

// WithAssetType annotates context with the asset type tag (story, home, ...).
func WithAssetType(ctx context.Context, assetType string) context.Context {
	return withString(ctx, assetTypeKey, assetType)
}

// AssetTypeFromContext returns the asset type if present.
func AssetTypeFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, assetTypeKey)
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, stageKey)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

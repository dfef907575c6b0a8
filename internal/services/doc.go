// Package services defines shared utilities consumed by the extraction
// pipeline stages.
//
// Key responsibilities:
//   - Context helpers that stamp batch run IDs, asset names, asset types and
//     stage names for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into the pipeline's error taxonomy and per-asset outcomes
//     (success, skipped, failed).
//
// Use these helpers when wiring new pipeline stages so failure reporting stays
// uniform across index lookups, downloads, decoding and extraction.
package services

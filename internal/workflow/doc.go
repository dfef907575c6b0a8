// Package workflow drives assets through the extraction pipeline.
//
// A Pipeline owns one open asset index, the master text database and its
// per-batch lookup cache, the content store, the bundle decoder, the walker
// dispatcher, the merge engine and the workspace store. ProcessAsset runs a
// single asset end to end; RunBatch fans a filtered name list out over a
// bounded worker pool and records a success, skipped or failed outcome per
// asset without letting one failure stop the rest.
//
// The package also hosts the read-only helpers built on the same components:
// character queries against the master database, raw asset export and master
// table dumps.
package workflow

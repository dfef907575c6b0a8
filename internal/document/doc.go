// Package document defines the persisted translation record: AssetDocument
// and its text blocks, choices, colored spans, voice references and the
// UI-animation motion text units.
//
// The JSON shape is the stable contract with downstream editors and
// exporters. Every block carries block_index, and translated fields are
// written as empty strings rather than omitted so "untranslated" is always
// explicit. Documents written by older tooling (jpText/enText style keys) are
// accepted on read and rewritten in the current shape.
//
// StoryID derives the structured identity of an asset from its logical name
// and computes the deterministic workspace path and batch filter matching for
// it.
package document

// Package textdata reads localized strings from the game's master database.
//
// Store wraps a read-only connection to the text_data table. Cache memoizes
// whole categories for the lifetime of a batch; the pipeline owns it and calls
// Reset before each run.
package textdata

// Package preflight provides readiness checks for the files, directories and
// services perapera depends on.
//
// The CLI "perapera check" command runs RunAll and renders the results. Batch
// extraction runs the Required subset before opening the pipeline so a
// missing index or unwritable workspace fails fast instead of once per asset.
//
// The origin check only runs when auto-download is enabled.
package preflight

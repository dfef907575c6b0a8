// Package main hosts the perapera CLI entrypoint and command graph.
//
// The Cobra-based command tree loads configuration once, builds the logger,
// opens the extraction pipeline on demand and renders results as tables or
// JSON. Heavy lifting lives in the internal packages; commands here only
// parse flags and format output.
package main

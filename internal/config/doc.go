// Package config loads, normalizes, and validates perapera configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file and honours
// environment fallbacks such as PERAPERA_GAME_DATA_DIR. The Config type
// centralizes every knob the extraction pipeline and CLI need, so the game data
// directory, workspace, download policy and key material are discovered in one
// pass and threaded explicitly into component constructors.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

// Package config loads, normalizes, and validates mangabridge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY. The Config type centralizes every knob the CLI and HTTP
// API need: metadata and model endpoints, the AI failure policy, cache TTLs,
// and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical policy names, and clear validation errors.
package config

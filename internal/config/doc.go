// Package config loads, normalizes, and validates vidtranslate configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY and ELEVENLABS_API_KEY. The Config type centralizes every
// knob the daemon and CLI need, from stage timeouts to delivery link signing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

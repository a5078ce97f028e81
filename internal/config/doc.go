// Package config loads, normalizes, and validates shelfcast configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SHELFCAST_SERVER_URL and SHELFCAST_TOKEN. The Config type centralizes every
// knob the transfer, transcode, and streaming layers need so that directory
// layout and external binaries are resolved in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

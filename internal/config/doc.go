// Package config loads and validates tilenorm configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts) and reads TOML files. The Config type centralizes every knob the
// batch pipeline and CLI need, so roots, reference images and worker sizing
// are resolved in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and canonical method names.
package config

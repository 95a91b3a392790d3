// Package config loads, normalizes, and validates snsnotify configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SNSNOTIFY_AWS_SECRET_KEY. Credentials are held as Secret values so they never
// reach logs or API responses in plain text.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

// Package config loads, normalizes, and validates the crossdock TOML
// configuration file.
package config

// Package config loads, normalizes, and validates the TOML configuration for
// the scanbay daemon and CLI. All path fields are tilde-expanded and absolute
// after Load returns.
package config

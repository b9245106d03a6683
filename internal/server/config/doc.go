// Package config defines the pixelflut-server configuration.
//
// ServerConfig mirrors the YAML layout key for key. Defaults come from
// Default (and DefaultMap for the loader), Verify rejects settings the
// server cannot start with, and Sanitize renders a copy suitable for the
// startup log.
package config

package config

import "path/filepath"

// Sanitize returns a copy of the config for logging, with file paths made
// absolute so the startup log shows exactly where state lives.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	sanitized.Storage.SnapshotPath = absPath(cfg.Storage.SnapshotPath)
	sanitized.Server.Unix.Path = absPath(cfg.Server.Unix.Path)
	return &sanitized
}

func absPath(p string) string {
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

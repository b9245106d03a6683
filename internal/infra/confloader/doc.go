// Package confloader loads layered configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Command-line flags (LoadMap after Load)
//  2. Environment variables (PIXELFLUT_ prefix)
//  3. YAML configuration file
//  4. Defaults (WithDefaults)
//
// Environment names are resolved against the keys already known from
// defaults and the file, so PIXELFLUT_STORAGE_SNAPSHOT_PATH maps to
// storage.snapshot_path rather than storage.snapshot.path. Unknown names
// fall back to replacing every underscore with a dot.
//
// Watcher reports writes to the configuration file so the server can
// apply the runtime-adjustable settings without a restart.
package confloader

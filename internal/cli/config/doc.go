// Package config holds pixelflut-cli connection profiles.
//
// Profiles live in a YAML file (by default cli.yaml under the user config
// directory) and name a server, transport and metrics address so that
// they need not be repeated as flags. Flags and PIXELFLUT_* variables
// still take precedence over the selected profile.
package config

// Command pixelflut-server serves a shared pixel canvas over TCP, UDP,
// WebSocket and a Unix socket.
//
// Configuration is layered: built-in defaults, then the YAML file given
// with --config, then PIXELFLUT_* environment variables, then flags.
// The canvas is restored from its snapshot at startup, saved periodically
// and saved once more on SIGINT or SIGTERM.
package main

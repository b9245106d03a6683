// Package command defines the pixelflut-cli commands.
//
// Canvas commands (size, get, set, rect, state, server-help) speak the
// text protocol over the transport chosen by --transport. health and
// metrics read the server's HTTP listener, and snapshot inspect works on
// a snapshot file without a server.
package command

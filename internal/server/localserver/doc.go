// Package localserver serves the pixelflut protocol on a Unix domain socket.
//
// It is the stream server bound to a filesystem path. A socket file left
// behind by a previous run is removed before listening, and the file is
// removed again on shutdown. Access is controlled by file permissions.
package localserver

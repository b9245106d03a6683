// Package streamserver serves the pixelflut protocol over stream sockets.
//
// Every accepted connection gets its own goroutine running a
// protocol.Session with a StreamFramer, so a command may arrive split
// across reads or many commands may share one read. Responses are buffered
// and flushed once per read.
//
// The same server runs on TCP and on Unix domain sockets; see localserver
// for the Unix wrapper.
package streamserver

// Package wsserver serves the pixelflut protocol over WebSocket.
//
// Each inbound message, text or binary, is one complete command buffer.
// The responses it produces are sent back as a single text message.
// Messages larger than the read limit close the connection.
package wsserver

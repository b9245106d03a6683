// Package connection talks to a pixelflut server for pixelflut-cli.
//
// Dial opens one of four transports behind a common line interface:
//
//   - tcp and unix: a byte stream, commands written through a buffer
//   - udp: commands packed into datagrams at line boundaries
//   - ws: commands packed into WebSocket messages at line boundaries
//
// Client layers the protocol operations (Size, GetPixel, SetPixel, Fill,
// State) on top. HTTPClient reads the health and metrics endpoints.
package connection

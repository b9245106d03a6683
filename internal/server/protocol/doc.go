// Package protocol implements the pixelflut text protocol.
//
// The package has three layers:
//
//   - codec.go: stateless grammar. Decode turns bytes into Command values,
//     AppendResponse renders the replies for commands that have one.
//   - framer.go: buffering strategy per transport kind. StreamFramer keeps
//     a partial line across reads (TCP, Unix), PayloadFramer treats every
//     payload as complete (UDP datagrams, WebSocket messages).
//   - session.go: the per-client loop that reads payloads, frames them,
//     applies the commands to the canvas and writes the responses back.
//
// Grammar (ASCII, one command per line, fields separated by one space):
//
//	HELP
//	SIZE                  -> SIZE <w> <h>
//	PX <x> <y>            -> PX <x> <y> <RRGGBB|RRGGBBAA>
//	PX <x> <y> <RRGGBB>
//	PX <x> <y> <RRGGBBAA>
//	STATE <rgb64|rgba64>  -> STATE <encoding> <base64>
//
// Invalid input never produces a response and never closes a session.
// Only I/O errors and protocol limits do.
package protocol

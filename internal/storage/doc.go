// Package storage owns the canvas for the lifetime of the server.
//
// The Engine restores the canvas from the snapshot file on Open, saves it
// periodically in the background, and writes a final snapshot on Close.
//
// Recovery policy:
//
//   - missing snapshot file: start from a black canvas
//   - unreadable or mismatched snapshot: LoadErrorBlank logs and starts
//     blank, LoadErrorAbort fails Open
//
// With an empty snapshot path the engine runs purely in memory and every
// snapshot operation is a no-op.
package storage

// Package memory provides the in-memory pixel canvas for pixelflut.
//
// The canvas is a row-major slice of atomic words, one per pixel.
//
// Thread Safety:
//
// Get and Set are single atomic loads and stores and are safe from any
// number of goroutines. There is no grid-wide lock: ForEach
// and Raw observe each pixel atomically but may interleave with writers,
// so a full pass is only an approximation of one instant.
package memory

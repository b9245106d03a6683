// Package snapshot provides canvas snapshot persistence for pixelflut.
//
// A snapshot is a single file holding the whole canvas:
//
//	[magic:4 "PXFL"]
//	[version:2]            big-endian, currently 1
//	[width:4][height:4]    big-endian
//	[pixel:4] * width*height   R,G,B,A records, row-major, row 0 first
//
// Save writes to a temporary file in the same directory, fsyncs it, and
// renames it over the target, so a crash mid-write leaves the previous
// snapshot intact.
//
// Load validates magic, version, and declared dimensions against the
// configured canvas before any pixel is read. Every validation failure
// matches ErrFormatMismatch; a missing file matches ErrNotFound.
package snapshot

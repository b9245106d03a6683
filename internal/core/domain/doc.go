// Package domain defines the core domain values for pixelflut.
//
// Domain values are plain types without any IO dependencies:
//
//   - Color: a packed RGBA pixel value with hex parsing and formatting
//   - Errors: domain error codes shared by the canvas and protocol layers
package domain

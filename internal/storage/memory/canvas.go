// Package memory provides the in-memory pixel canvas for pixelflut.
package memory

import (
	"fmt"
	"sync/atomic"

	"github.com/yndnr/pixelflut-go/internal/core/domain"
)

// Canvas size limits.
const (
	// MaxDimension bounds a single side of the canvas.
	MaxDimension = 1 << 16

	// MaxPixels bounds width*height (1 GiB of pixel data).
	MaxPixels = 1 << 28
)

// Canvas is a fixed-size grid of independently synchronized pixels.
//
// Every slot is an atomic word, so Get and Set never block each other and
// no lock covers the grid as a whole. Concurrent writers to the same slot
// resolve as last-write-wins; one of the written values is always visible.
type Canvas struct {
	width  int
	height int
	pixels []atomic.Uint32
}

// New creates a canvas filled with domain.Black.
func New(width, height int) (*Canvas, error) {
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return nil, domain.ErrInvalidDimensions.WithDetails(fmt.Sprintf("%dx%d", width, height))
	}
	if width*height > MaxPixels {
		return nil, domain.ErrInvalidDimensions.WithDetails(fmt.Sprintf("%dx%d exceeds %d pixels", width, height, MaxPixels))
	}

	c := &Canvas{
		width:  width,
		height: height,
		pixels: make([]atomic.Uint32, width*height),
	}
	for i := range c.pixels {
		c.pixels[i].Store(uint32(domain.Black))
	}
	return c, nil
}

// Size returns the canvas dimensions.
func (c *Canvas) Size() (width, height int) {
	return c.width, c.height
}

// Len returns the number of pixel slots.
func (c *Canvas) Len() int {
	return len(c.pixels)
}

// index maps a coordinate to its slot, rejecting anything outside the grid.
func (c *Canvas) index(x, y uint64) (int, bool) {
	if x >= uint64(c.width) || y >= uint64(c.height) {
		return 0, false
	}
	return int(y)*c.width + int(x), true
}

// Get returns the current color at (x, y).
func (c *Canvas) Get(x, y uint64) (domain.Color, error) {
	i, ok := c.index(x, y)
	if !ok {
		return 0, domain.ErrOutOfBounds
	}
	return domain.Color(c.pixels[i].Load()), nil
}

// Set overwrites the color at (x, y).
func (c *Canvas) Set(x, y uint64, color domain.Color) error {
	i, ok := c.index(x, y)
	if !ok {
		return domain.ErrOutOfBounds
	}
	c.pixels[i].Store(uint32(color))
	return nil
}

// ForEach calls fn for every pixel in row-major order.
//
// Writers keep running during the pass, so the result is a best-effort
// view: each pixel is coherent, the grid as a whole is not.
func (c *Canvas) ForEach(fn func(x, y int, color domain.Color)) {
	for y := 0; y < c.height; y++ {
		row := y * c.width
		for x := 0; x < c.width; x++ {
			fn(x, y, domain.Color(c.pixels[row+x].Load()))
		}
	}
}

// Raw copies every pixel into dst in row-major order.
// dst must hold at least Len() values.
func (c *Canvas) Raw(dst []uint32) error {
	if len(dst) < len(c.pixels) {
		return domain.ErrDimensionMismatch.WithDetails(fmt.Sprintf("got %d slots, need %d", len(dst), len(c.pixels)))
	}
	for i := range c.pixels {
		dst[i] = c.pixels[i].Load()
	}
	return nil
}

// Load overwrites every pixel from src in row-major order.
func (c *Canvas) Load(src []uint32) error {
	if len(src) != len(c.pixels) {
		return domain.ErrDimensionMismatch.WithDetails(fmt.Sprintf("got %d slots, need %d", len(src), len(c.pixels)))
	}
	for i, v := range src {
		c.pixels[i].Store(v)
	}
	return nil
}

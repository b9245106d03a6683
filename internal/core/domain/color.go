package domain

import (
	"encoding/hex"
)

// Color is an RGBA pixel value packed as R<<24 | G<<16 | B<<8 | A.
//
// The packed form fits a single atomic word, which is how the canvas stores it.
type Color uint32

// Black is the color of every pixel on a freshly created canvas.
const Black Color = 0x000000FF

const upperHex = "0123456789ABCDEF"

// RGB returns an opaque color.
func RGB(r, g, b uint8) Color {
	return RGBA(r, g, b, 0xFF)
}

// RGBA returns a color with an explicit alpha channel.
func RGBA(r, g, b, a uint8) Color {
	return Color(uint32(r)<<24 | uint32(g)<<16 | uint32(b)<<8 | uint32(a))
}

// R returns the red channel.
func (c Color) R() uint8 { return uint8(c >> 24) }

// G returns the green channel.
func (c Color) G() uint8 { return uint8(c >> 16) }

// B returns the blue channel.
func (c Color) B() uint8 { return uint8(c >> 8) }

// A returns the alpha channel.
func (c Color) A() uint8 { return uint8(c) }

// Opaque reports whether the alpha channel is 255.
func (c Color) Opaque() bool { return c.A() == 0xFF }

// Bytes returns the channels in R, G, B, A order.
func (c Color) Bytes() [4]byte {
	return [4]byte{c.R(), c.G(), c.B(), c.A()}
}

// ParseHex parses an RRGGBB or RRGGBBAA literal (either case).
// hasAlpha reports which of the two forms was given; RRGGBB implies alpha 255.
func ParseHex(s []byte) (c Color, hasAlpha bool, err error) {
	var buf [4]byte
	switch len(s) {
	case 6:
		buf[3] = 0xFF
	case 8:
		hasAlpha = true
	default:
		return 0, false, ErrInvalidColor.WithDetails("want 6 or 8 hex digits")
	}
	if _, err := hex.Decode(buf[:len(s)/2], s); err != nil {
		return 0, false, ErrInvalidColor.WithCause(err)
	}
	return RGBA(buf[0], buf[1], buf[2], buf[3]), hasAlpha, nil
}

// AppendHex appends the uppercase hex form of c to dst.
// The alpha channel is written only when withAlpha is set.
func (c Color) AppendHex(dst []byte, withAlpha bool) []byte {
	n := 3
	if withAlpha {
		n = 4
	}
	b := c.Bytes()
	for i := 0; i < n; i++ {
		dst = append(dst, upperHex[b[i]>>4], upperHex[b[i]&0x0F])
	}
	return dst
}

// String returns RRGGBB for opaque colors and RRGGBBAA otherwise.
func (c Color) String() string {
	return string(c.AppendHex(make([]byte, 0, 8), !c.Opaque()))
}

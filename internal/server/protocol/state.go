package protocol

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/yndnr/pixelflut-go/internal/core/domain"
)

// Encoding names a whole-canvas encoding for the STATE command.
type Encoding string

const (
	// EncodingRGB64 is base64 of width*height*3 bytes (R, G, B), row-major.
	EncodingRGB64 Encoding = "rgb64"
	// EncodingRGBA64 is base64 of width*height*4 bytes (R, G, B, A), row-major.
	EncodingRGBA64 Encoding = "rgba64"
)

// ParseEncoding returns the encoding named by b.
func ParseEncoding(b []byte) (Encoding, bool) {
	switch string(b) {
	case string(EncodingRGB64):
		return EncodingRGB64, true
	case string(EncodingRGBA64):
		return EncodingRGBA64, true
	}
	return "", false
}

// Channels returns the number of bytes per pixel before base64.
func (e Encoding) Channels() int {
	if e == EncodingRGBA64 {
		return 4
	}
	return 3
}

func appendState(dst []byte, enc Encoding, v View) []byte {
	w, h := v.Size()
	ch := enc.Channels()
	raw := make([]byte, 0, w*h*ch)
	v.ForEach(func(_, _ int, color domain.Color) {
		b := color.Bytes()
		raw = append(raw, b[:ch]...)
	})

	dst = append(dst, "STATE "...)
	dst = append(dst, enc...)
	dst = append(dst, ' ')
	dst = base64.StdEncoding.AppendEncode(dst, raw)
	return append(dst, '\n')
}

// DecodeState parses a STATE response line (without its newline) and
// returns the pixels it carries, one domain.Color per pixel in row-major
// order. rgb64 pixels are returned opaque.
func DecodeState(line []byte) (Encoding, []domain.Color, error) {
	line = bytes.TrimSuffix(line, cr)
	fields := bytes.SplitN(line, []byte{' '}, 3)
	if len(fields) != 3 || string(fields[0]) != "STATE" {
		return "", nil, fmt.Errorf("protocol: not a STATE response")
	}
	enc, ok := ParseEncoding(fields[1])
	if !ok {
		return "", nil, fmt.Errorf("protocol: unknown state encoding %q", fields[1])
	}
	raw, err := base64.StdEncoding.AppendDecode(nil, fields[2])
	if err != nil {
		return "", nil, fmt.Errorf("protocol: decode state: %w", err)
	}
	ch := enc.Channels()
	if len(raw)%ch != 0 {
		return "", nil, fmt.Errorf("protocol: state length %d is not a multiple of %d", len(raw), ch)
	}

	pixels := make([]domain.Color, 0, len(raw)/ch)
	for i := 0; i < len(raw); i += ch {
		a := uint8(0xFF)
		if ch == 4 {
			a = raw[i+3]
		}
		pixels = append(pixels, domain.RGBA(raw[i], raw[i+1], raw[i+2], a))
	}
	return enc, pixels, nil
}

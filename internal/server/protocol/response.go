package protocol

import (
	"bytes"
	"fmt"

	"github.com/yndnr/pixelflut-go/internal/core/domain"
)

// Pixel is a GetPixel response.
type Pixel struct {
	X     uint64       `json:"x" yaml:"x"`
	Y     uint64       `json:"y" yaml:"y"`
	Color domain.Color `json:"-" yaml:"-"`
	Hex   string       `json:"color" yaml:"color"`
}

// ParseSizeResponse parses "SIZE <w> <h>".
func ParseSizeResponse(line []byte) (width, height int, err error) {
	fields := bytes.Fields(bytes.TrimSuffix(line, cr))
	if len(fields) != 3 || string(fields[0]) != "SIZE" {
		return 0, 0, fmt.Errorf("protocol: unexpected response %q", line)
	}
	w, ok1 := parseCoord(fields[1])
	h, ok2 := parseCoord(fields[2])
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("protocol: invalid size %q", line)
	}
	return int(w), int(h), nil
}

// ParsePixelResponse parses "PX <x> <y> <RRGGBB|RRGGBBAA>".
func ParsePixelResponse(line []byte) (Pixel, error) {
	cmd := parseLine(line)
	set, ok := cmd.(SetPixel)
	if !ok {
		return Pixel{}, fmt.Errorf("protocol: unexpected response %q", line)
	}
	return Pixel{X: set.X, Y: set.Y, Color: set.Color, Hex: set.Color.String()}, nil
}

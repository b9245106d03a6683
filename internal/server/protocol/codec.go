package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/yndnr/pixelflut-go/internal/core/domain"
)

// Protocol limits.
const (
	// DefaultMaxLineLength is the longest line a stream session accepts.
	DefaultMaxLineLength = 1024

	// MinMaxLineLength is the smallest configurable line limit. It leaves
	// room for the longest valid PX command.
	MinMaxLineLength = 32

	maxFields = 4

	// maxMalformedEcho caps how much of a bad line is kept for logging.
	maxMalformedEcho = 64
)

var (
	// ErrIncomplete is returned by Decode when buf holds no complete line.
	ErrIncomplete = errors.New("protocol: incomplete command")

	// ErrLimitExceeded is the parent of every error that closes a session
	// because the peer broke a size limit.
	ErrLimitExceeded = errors.New("protocol: limit exceeded")

	// ErrLineTooLong is returned by StreamFramer when a line grows past
	// the configured maximum.
	ErrLineTooLong = fmt.Errorf("%w: line too long", ErrLimitExceeded)
)

// HelpText is the response to HELP.
const HelpText = "HELP pixelflut shared canvas\n" +
	"HELP commands are ASCII lines, fields separated by one space\n" +
	"HELP   HELP                   this text\n" +
	"HELP   SIZE                   reply SIZE <width> <height>\n" +
	"HELP   PX <x> <y>             reply PX <x> <y> <RRGGBB|RRGGBBAA>\n" +
	"HELP   PX <x> <y> <RRGGBB>    set a pixel\n" +
	"HELP   PX <x> <y> <RRGGBBAA>  set a pixel with alpha\n" +
	"HELP   STATE <rgb64|rgba64>   reply STATE <encoding> <base64 canvas>\n" +
	"HELP invalid commands are ignored without a reply\n"

var cr = []byte{'\r'}

// Decode decodes the first command in buf and reports how many bytes it
// consumed.
//
// When buf holds no newline, Decode returns ErrIncomplete unless final is
// set, in which case the unterminated rest of buf is decoded as the last
// command. An empty line is consumed and yields a nil Command.
func Decode(buf []byte, final bool) (Command, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrIncomplete
	}

	line, n := buf, len(buf)
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		line, n = buf[:i], i+1
	} else if !final {
		return nil, 0, ErrIncomplete
	}
	return parseLine(line), n, nil
}

// DecodeAll decodes every command in a complete payload, including an
// unterminated trailing command. Empty lines are skipped.
func DecodeAll(buf []byte) []Command {
	return appendAll(nil, buf)
}

func appendAll(dst []Command, buf []byte) []Command {
	for len(buf) > 0 {
		cmd, n, err := Decode(buf, true)
		if err != nil {
			break
		}
		buf = buf[n:]
		if cmd != nil {
			dst = append(dst, cmd)
		}
	}
	return dst
}

func parseLine(line []byte) Command {
	line = bytes.TrimSuffix(line, cr)
	if len(line) == 0 {
		return nil
	}

	var fields [maxFields][]byte
	nf := 0
	rest := line
	for {
		if nf == maxFields {
			return malformed(line, "too many fields")
		}
		i := bytes.IndexByte(rest, ' ')
		if i < 0 {
			fields[nf] = rest
			nf++
			break
		}
		fields[nf] = rest[:i]
		nf++
		rest = rest[i+1:]
	}
	for i := 0; i < nf; i++ {
		if len(fields[i]) == 0 {
			return malformed(line, "empty field")
		}
	}

	switch string(fields[0]) {
	case "PX":
		if nf != 3 && nf != 4 {
			return malformed(line, "PX takes 2 or 3 arguments")
		}
		x, ok := parseCoord(fields[1])
		if !ok {
			return malformed(line, "invalid x coordinate")
		}
		y, ok := parseCoord(fields[2])
		if !ok {
			return malformed(line, "invalid y coordinate")
		}
		if nf == 3 {
			return GetPixel{X: x, Y: y}
		}
		color, hasAlpha, err := domain.ParseHex(fields[3])
		if err != nil {
			return malformed(line, "invalid color")
		}
		return SetPixel{X: x, Y: y, Color: color, HasAlpha: hasAlpha}

	case "SIZE":
		if nf != 1 {
			return malformed(line, "SIZE takes no arguments")
		}
		return Size{}

	case "HELP":
		if nf != 1 {
			return malformed(line, "HELP takes no arguments")
		}
		return Help{}

	case "STATE":
		if nf != 2 {
			return malformed(line, "STATE takes 1 argument")
		}
		enc, ok := ParseEncoding(fields[1])
		if !ok {
			return malformed(line, "unknown state encoding")
		}
		return State{Encoding: enc}
	}

	return malformed(line, "unknown command")
}

// parseCoord parses a non-negative decimal that fits in uint64.
func parseCoord(b []byte) (uint64, bool) {
	var v uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		d := uint64(c - '0')
		if v > (math.MaxUint64-d)/10 {
			return 0, false
		}
		v = v*10 + d
	}
	return v, true
}

func malformed(line []byte, reason string) Malformed {
	if len(line) > maxMalformedEcho {
		line = line[:maxMalformedEcho]
	}
	return Malformed{Line: string(line), Reason: reason}
}

// View is the read side of the canvas needed to render responses.
type View interface {
	Size() (width, height int)
	Get(x, y uint64) (domain.Color, error)
	ForEach(fn func(x, y int, color domain.Color))
}

// AppendResponse appends the response for cmd to dst.
//
// Only Help, Size, GetPixel and State have responses. A GetPixel outside
// the canvas appends nothing.
func AppendResponse(dst []byte, cmd Command, v View) []byte {
	switch c := cmd.(type) {
	case Help:
		return append(dst, HelpText...)

	case Size:
		w, h := v.Size()
		dst = append(dst, "SIZE "...)
		dst = strconv.AppendInt(dst, int64(w), 10)
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, int64(h), 10)
		return append(dst, '\n')

	case GetPixel:
		color, err := v.Get(c.X, c.Y)
		if err != nil {
			return dst
		}
		dst = append(dst, "PX "...)
		dst = strconv.AppendUint(dst, c.X, 10)
		dst = append(dst, ' ')
		dst = strconv.AppendUint(dst, c.Y, 10)
		dst = append(dst, ' ')
		dst = color.AppendHex(dst, !color.Opaque())
		return append(dst, '\n')

	case State:
		return appendState(dst, c.Encoding, v)
	}
	return dst
}

// AppendCommand appends the wire form of cmd, newline included. It is the
// client-side inverse of Decode. Malformed commands append nothing.
func AppendCommand(dst []byte, cmd Command) []byte {
	switch c := cmd.(type) {
	case Help:
		return append(dst, "HELP\n"...)
	case Size:
		return append(dst, "SIZE\n"...)
	case GetPixel:
		dst = append(dst, "PX "...)
		dst = strconv.AppendUint(dst, c.X, 10)
		dst = append(dst, ' ')
		dst = strconv.AppendUint(dst, c.Y, 10)
		return append(dst, '\n')
	case SetPixel:
		dst = append(dst, "PX "...)
		dst = strconv.AppendUint(dst, c.X, 10)
		dst = append(dst, ' ')
		dst = strconv.AppendUint(dst, c.Y, 10)
		dst = append(dst, ' ')
		dst = c.Color.AppendHex(dst, c.HasAlpha)
		return append(dst, '\n')
	case State:
		dst = append(dst, "STATE "...)
		dst = append(dst, c.Encoding...)
		return append(dst, '\n')
	}
	return dst
}

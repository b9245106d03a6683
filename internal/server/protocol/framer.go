package protocol

import "bytes"

// Framer turns raw transport payloads into commands.
//
// The returned slice is reused by the next call to Feed.
type Framer interface {
	Feed(p []byte) ([]Command, error)
}

// StreamFramer frames a byte stream into newline-terminated commands.
//
// A partial line is kept until the rest of it arrives. A line longer than
// the limit, complete or not, yields ErrLineTooLong after the commands
// preceding it; the framer must not be used after that.
type StreamFramer struct {
	maxLine int
	buf     []byte
	cmds    []Command
}

// NewStreamFramer creates a StreamFramer. maxLine <= 0 selects
// DefaultMaxLineLength.
func NewStreamFramer(maxLine int) *StreamFramer {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineLength
	}
	return &StreamFramer{maxLine: maxLine}
}

// Feed implements Framer.
func (f *StreamFramer) Feed(p []byte) ([]Command, error) {
	f.cmds = f.cmds[:0]

	data := p
	if len(f.buf) > 0 {
		f.buf = append(f.buf, p...)
		data = f.buf
	}

	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		if i > f.maxLine {
			f.buf = f.buf[:0]
			return f.cmds, ErrLineTooLong
		}
		if cmd := parseLine(data[:i]); cmd != nil {
			f.cmds = append(f.cmds, cmd)
		}
		data = data[i+1:]
	}

	if len(data) > f.maxLine {
		f.buf = f.buf[:0]
		return f.cmds, ErrLineTooLong
	}

	// data may alias f.buf; copy moves the tail to the front.
	f.buf = append(f.buf[:0], data...)
	return f.cmds, nil
}

// Pending returns the number of buffered bytes of an unterminated line.
func (f *StreamFramer) Pending() int {
	return len(f.buf)
}

// PayloadFramer frames self-contained payloads such as UDP datagrams and
// WebSocket messages. Each payload is decoded completely, an unterminated
// last command included, and nothing carries over to the next payload.
type PayloadFramer struct {
	cmds []Command
}

// NewPayloadFramer creates a PayloadFramer.
func NewPayloadFramer() *PayloadFramer {
	return &PayloadFramer{}
}

// Feed implements Framer. It never returns an error.
func (f *PayloadFramer) Feed(p []byte) ([]Command, error) {
	f.cmds = appendAll(f.cmds[:0], p)
	return f.cmds, nil
}

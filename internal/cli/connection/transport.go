package connection

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

// Transport names.
const (
	TransportTCP       = "tcp"
	TransportUnix      = "unix"
	TransportUDP       = "udp"
	TransportWebSocket = "ws"
)

// ErrLineTooLong is returned when a response line exceeds the read limit.
var ErrLineTooLong = errors.New("connection: response line too long")

// wire moves newline-terminated command batches out and response lines in.
type wire interface {
	// Send writes payload, which holds whole lines only.
	Send(payload []byte) error
	// Flush pushes buffered output to the server.
	Flush() error
	// ReadLine returns the next response line without its newline.
	ReadLine(deadline time.Time) ([]byte, error)
	Close() error
}

// lineBuffer assembles lines from message-oriented transports, where a
// reply may be split across several datagrams or messages.
type lineBuffer struct {
	buf []byte
	max int
}

// next returns the first complete line, if any.
func (b *lineBuffer) next() ([]byte, bool) {
	i := bytes.IndexByte(b.buf, '\n')
	if i < 0 {
		return nil, false
	}
	line := append([]byte(nil), b.buf[:i]...)
	b.buf = b.buf[i+1:]
	return line, true
}

func (b *lineBuffer) add(p []byte) error {
	b.buf = append(b.buf, p...)
	if b.max > 0 && len(b.buf) > b.max && bytes.IndexByte(b.buf, '\n') < 0 {
		return fmt.Errorf("%w: more than %d bytes", ErrLineTooLong, b.max)
	}
	return nil
}

// splitLines cuts payload into chunks of at most max bytes, breaking only
// after a newline. A single line longer than max becomes its own chunk.
func splitLines(payload []byte, max int) [][]byte {
	var chunks [][]byte
	for len(payload) > max {
		cut := bytes.LastIndexByte(payload[:max], '\n')
		if cut < 0 {
			cut = bytes.IndexByte(payload, '\n')
			if cut < 0 {
				break
			}
		}
		chunks = append(chunks, payload[:cut+1])
		payload = payload[cut+1:]
	}
	if len(payload) > 0 {
		chunks = append(chunks, payload)
	}
	return chunks
}

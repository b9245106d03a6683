package connection

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"time"
)

// streamWire serves tcp and unix connections.
type streamWire struct {
	conn    net.Conn
	r       *bufio.Reader
	w       *bufio.Writer
	maxLine int
}

func dialStream(network, address string, timeout time.Duration, maxLine int) (*streamWire, error) {
	conn, err := net.DialTimeout(network, address, timeout)
	if err != nil {
		return nil, fmt.Errorf("connection: dial %s %s: %w", network, address, err)
	}
	return &streamWire{
		conn:    conn,
		r:       bufio.NewReaderSize(conn, 64*1024),
		w:       bufio.NewWriterSize(conn, 64*1024),
		maxLine: maxLine,
	}, nil
}

func (s *streamWire) Send(payload []byte) error {
	_, err := s.w.Write(payload)
	return err
}

func (s *streamWire) Flush() error {
	return s.w.Flush()
}

func (s *streamWire) ReadLine(deadline time.Time) ([]byte, error) {
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	var line []byte
	for {
		chunk, err := s.r.ReadSlice('\n')
		line = append(line, chunk...)
		if s.maxLine > 0 && len(line) > s.maxLine {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrLineTooLong, s.maxLine)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return line[:len(line)-1], nil
	}
}

func (s *streamWire) Close() error {
	return s.conn.Close()
}

package connection

import (
	"fmt"
	"net"
	"time"
)

// MaxDatagramSize is the largest UDP payload the client sends.
const MaxDatagramSize = 65507

// datagramWire packs commands into UDP datagrams.
type datagramWire struct {
	conn    *net.UDPConn
	pending []byte
	lines   lineBuffer
	rbuf    []byte
}

func dialDatagram(address string, timeout time.Duration, maxLine int) (*datagramWire, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.Dial("udp", address)
	if err != nil {
		return nil, fmt.Errorf("connection: dial udp %s: %w", address, err)
	}
	return &datagramWire{
		conn:  conn.(*net.UDPConn),
		lines: lineBuffer{max: maxLine},
		rbuf:  make([]byte, MaxDatagramSize),
	}, nil
}

func (d *datagramWire) Send(payload []byte) error {
	d.pending = append(d.pending, payload...)
	for len(d.pending) >= MaxDatagramSize {
		chunks := splitLines(d.pending, MaxDatagramSize)
		if err := d.write(chunks[0]); err != nil {
			return err
		}
		d.pending = d.pending[len(chunks[0]):]
	}
	return nil
}

func (d *datagramWire) Flush() error {
	for _, chunk := range splitLines(d.pending, MaxDatagramSize) {
		if err := d.write(chunk); err != nil {
			return err
		}
	}
	d.pending = d.pending[:0]
	return nil
}

func (d *datagramWire) write(p []byte) error {
	if len(p) > MaxDatagramSize {
		return fmt.Errorf("connection: command of %d bytes does not fit a datagram", len(p))
	}
	_, err := d.conn.Write(p)
	return err
}

func (d *datagramWire) ReadLine(deadline time.Time) ([]byte, error) {
	if err := d.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	for {
		if line, ok := d.lines.next(); ok {
			return line, nil
		}
		n, err := d.conn.Read(d.rbuf)
		if err != nil {
			return nil, err
		}
		if err := d.lines.add(d.rbuf[:n]); err != nil {
			return nil, err
		}
	}
}

func (d *datagramWire) Close() error {
	return d.conn.Close()
}

package streamserver

import (
	"net"
	"sync/atomic"
	"time"
)

// conn adapts a net.Conn to protocol.Transport.
type conn struct {
	netConn net.Conn
	buf     []byte

	idleTimeout  time.Duration
	writeTimeout time.Duration

	closed atomic.Bool
}

func newConn(c net.Conn, readBufferSize int, idleTimeout, writeTimeout time.Duration) *conn {
	return &conn{
		netConn:      c,
		buf:          make([]byte, readBufferSize),
		idleTimeout:  idleTimeout,
		writeTimeout: writeTimeout,
	}
}

// ReadPayload reads whatever is available, waiting at most idleTimeout.
func (c *conn) ReadPayload() ([]byte, error) {
	if c.idleTimeout > 0 {
		if err := c.netConn.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
			return nil, err
		}
	}
	n, err := c.netConn.Read(c.buf)
	return c.buf[:n], err
}

// WritePayload writes p within writeTimeout. Sessions hand over one
// batch of responses per read, so p is written straight to the socket.
func (c *conn) WritePayload(p []byte) error {
	if c.writeTimeout > 0 {
		if err := c.netConn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := c.netConn.Write(p)
	return err
}

func (c *conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

func (c *conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

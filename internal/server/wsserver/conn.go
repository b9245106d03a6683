package wsserver

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/pixelflut-go/internal/server/protocol"
)

// conn adapts a websocket.Conn to protocol.Transport.
type conn struct {
	ws           *websocket.Conn
	idleTimeout  time.Duration
	writeTimeout time.Duration
	closed       atomic.Bool
}

func newConn(ws *websocket.Conn, maxMessageSize int64, idleTimeout, writeTimeout time.Duration) *conn {
	c := &conn{
		ws:           ws,
		idleTimeout:  idleTimeout,
		writeTimeout: writeTimeout,
	}
	ws.SetReadLimit(maxMessageSize)
	ws.SetPongHandler(func(string) error {
		return c.extendReadDeadline()
	})
	return c
}

func (c *conn) extendReadDeadline() error {
	if c.idleTimeout <= 0 {
		return nil
	}
	return c.ws.SetReadDeadline(time.Now().Add(c.idleTimeout))
}

// ReadPayload returns the next data message.
func (c *conn) ReadPayload() ([]byte, error) {
	if err := c.extendReadDeadline(); err != nil {
		return nil, err
	}
	for {
		mt, p, err := c.ws.ReadMessage()
		if err != nil {
			return nil, translateError(err)
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return p, nil
		}
	}
}

func translateError(err error) error {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		return fmt.Errorf("%w: %v", protocol.ErrLimitExceeded, err)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		return io.EOF
	}
	return err
}

// WritePayload sends p as one text message.
func (c *conn) WritePayload(p []byte) error {
	if c.writeTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.ws.WriteMessage(websocket.TextMessage, p)
}

// ping sends a ping control frame. It may run concurrently with writes.
func (c *conn) ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

func (c *conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.ws.Close()
}

func (c *conn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

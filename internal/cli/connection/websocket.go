package connection

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/pixelflut-go/internal/infra/tlsroots"
)

// DefaultMessageSize is the largest WebSocket message the client sends.
const DefaultMessageSize = 64 * 1024

// wsWire packs commands into WebSocket text messages.
type wsWire struct {
	conn    *websocket.Conn
	pending []byte
	lines   lineBuffer
	maxMsg  int
}

// wsURL accepts host:port, host:port/path or a full ws:// URL.
func wsURL(address string) (string, error) {
	if !strings.Contains(address, "://") {
		address = "ws://" + address
	}
	u, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("connection: invalid websocket address %q: %w", address, err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

func dialWebSocket(ctx context.Context, address, caFile string, timeout time.Duration, maxLine int) (*wsWire, error) {
	target, err := wsURL(address)
	if err != nil {
		return nil, err
	}
	tlsConfig, err := tlsroots.ClientConfig(caFile)
	if err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout, TLSClientConfig: tlsConfig}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("connection: dial %s: %w", target, err)
	}
	return &wsWire{
		conn:   conn,
		lines:  lineBuffer{max: maxLine},
		maxMsg: DefaultMessageSize,
	}, nil
}

func (w *wsWire) Send(payload []byte) error {
	w.pending = append(w.pending, payload...)
	for len(w.pending) >= w.maxMsg {
		chunks := splitLines(w.pending, w.maxMsg)
		if err := w.conn.WriteMessage(websocket.TextMessage, chunks[0]); err != nil {
			return err
		}
		w.pending = w.pending[len(chunks[0]):]
	}
	return nil
}

func (w *wsWire) Flush() error {
	for _, chunk := range splitLines(w.pending, w.maxMsg) {
		if err := w.conn.WriteMessage(websocket.TextMessage, chunk); err != nil {
			return err
		}
	}
	w.pending = w.pending[:0]
	return nil
}

func (w *wsWire) ReadLine(deadline time.Time) ([]byte, error) {
	if err := w.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	for {
		if line, ok := w.lines.next(); ok {
			return line, nil
		}
		_, msg, err := w.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if err := w.lines.add(msg); err != nil {
			return nil, err
		}
	}
}

func (w *wsWire) Close() error {
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return w.conn.Close()
}

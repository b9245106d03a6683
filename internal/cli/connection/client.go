package connection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yndnr/pixelflut-go/internal/core/domain"
	"github.com/yndnr/pixelflut-go/internal/server/protocol"
)

// Default client settings.
const (
	DefaultTimeout = 5 * time.Second

	// DefaultMaxResponseLine fits a STATE reply for a 4096x4096 rgba64 canvas.
	DefaultMaxResponseLine = 96 << 20

	flushEvery = 32 * 1024
)

// Options configures Dial.
type Options struct {
	// Transport is tcp, unix, udp or ws.
	Transport string
	// Address is host:port, a socket path for unix, or a ws:// URL.
	Address string
	// Timeout bounds dialing and each wait for a response.
	Timeout time.Duration
	// MaxResponseLine is the longest accepted response line.
	MaxResponseLine int
	// CAFile adds trusted roots for wss:// addresses.
	CAFile string
}

// Client issues pixelflut commands over one connection.
type Client struct {
	w       wire
	timeout time.Duration
	buf     []byte
}

// Dial connects to a pixelflut server.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxResponseLine <= 0 {
		opts.MaxResponseLine = DefaultMaxResponseLine
	}

	var (
		w   wire
		err error
	)
	switch opts.Transport {
	case TransportTCP, "":
		w, err = dialStream("tcp", opts.Address, opts.Timeout, opts.MaxResponseLine)
	case TransportUnix:
		w, err = dialStream("unix", opts.Address, opts.Timeout, opts.MaxResponseLine)
	case TransportUDP:
		w, err = dialDatagram(opts.Address, opts.Timeout, opts.MaxResponseLine)
	case TransportWebSocket:
		w, err = dialWebSocket(ctx, opts.Address, opts.CAFile, opts.Timeout, opts.MaxResponseLine)
	default:
		return nil, fmt.Errorf("connection: unknown transport %q", opts.Transport)
	}
	if err != nil {
		return nil, err
	}
	return &Client{w: w, timeout: opts.Timeout}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.w.Close()
}

// send queues cmds, flushing the batch buffer as it grows.
func (c *Client) send(cmds ...protocol.Command) error {
	for _, cmd := range cmds {
		c.buf = protocol.AppendCommand(c.buf, cmd)
		if len(c.buf) >= flushEvery {
			if err := c.w.Send(c.buf); err != nil {
				return err
			}
			c.buf = c.buf[:0]
		}
	}
	return nil
}

func (c *Client) flush() error {
	if len(c.buf) > 0 {
		if err := c.w.Send(c.buf); err != nil {
			return err
		}
		c.buf = c.buf[:0]
	}
	return c.w.Flush()
}

func (c *Client) roundTrip(cmd protocol.Command) ([]byte, error) {
	if err := c.send(cmd); err != nil {
		return nil, err
	}
	if err := c.flush(); err != nil {
		return nil, err
	}
	line, err := c.w.ReadLine(time.Now().Add(c.timeout))
	if err != nil {
		return nil, fmt.Errorf("connection: waiting for %s reply: %w", cmd.Name(), err)
	}
	return line, nil
}

// Help returns the server's HELP text.
func (c *Client) Help() (string, error) {
	if err := c.send(protocol.Help{}); err != nil {
		return "", err
	}
	if err := c.flush(); err != nil {
		return "", err
	}

	want := bytes.Count([]byte(protocol.HelpText), []byte{'\n'})
	var out []byte
	for i := 0; i < want; i++ {
		line, err := c.w.ReadLine(time.Now().Add(c.timeout))
		if err != nil {
			return "", err
		}
		out = append(append(out, line...), '\n')
	}
	return string(out), nil
}

// Size returns the canvas dimensions.
func (c *Client) Size() (width, height int, err error) {
	line, err := c.roundTrip(protocol.Size{})
	if err != nil {
		return 0, 0, err
	}
	return protocol.ParseSizeResponse(line)
}

// GetPixel reads one pixel.
func (c *Client) GetPixel(x, y uint64) (protocol.Pixel, error) {
	line, err := c.roundTrip(protocol.GetPixel{X: x, Y: y})
	if err != nil {
		return protocol.Pixel{}, err
	}
	return protocol.ParsePixelResponse(line)
}

// SetPixel writes one pixel.
func (c *Client) SetPixel(x, y uint64, color domain.Color, withAlpha bool) error {
	if err := c.send(protocol.SetPixel{X: x, Y: y, Color: color, HasAlpha: withAlpha}); err != nil {
		return err
	}
	return c.flush()
}

// Fill writes every pixel of the rectangle at (x, y) of size w by h.
// progress, if set, is called after each row with the pixels sent so far.
func (c *Client) Fill(x, y, w, h uint64, color domain.Color, withAlpha bool, progress func(done, total int64)) error {
	total := int64(w * h)
	var done int64
	for row := y; row < y+h; row++ {
		for col := x; col < x+w; col++ {
			if err := c.send(protocol.SetPixel{X: col, Y: row, Color: color, HasAlpha: withAlpha}); err != nil {
				return err
			}
		}
		done += int64(w)
		if progress != nil {
			progress(done, total)
		}
	}
	return c.flush()
}

// State fetches the whole canvas.
func (c *Client) State(enc protocol.Encoding) (protocol.Encoding, []domain.Color, error) {
	line, err := c.roundTrip(protocol.State{Encoding: enc})
	if err != nil {
		return "", nil, err
	}
	return protocol.DecodeState(line)
}

// ErrMalformed is returned by Exec for a line the server would ignore.
var ErrMalformed = errors.New("connection: malformed command")

// Exec sends one protocol line and returns the response lines it produces.
// Pixel writes return no lines. A pixel read outside the canvas gets no
// reply and fails once the timeout passes.
func (c *Client) Exec(line string) ([]string, error) {
	cmd, _, err := protocol.Decode([]byte(line), true)
	if err != nil || cmd == nil {
		return nil, nil
	}
	if m, ok := cmd.(protocol.Malformed); ok {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, m.Reason)
	}

	switch cmd := cmd.(type) {
	case protocol.SetPixel:
		return nil, c.SetPixel(cmd.X, cmd.Y, cmd.Color, cmd.HasAlpha)
	case protocol.Help:
		text, err := c.Help()
		if err != nil {
			return nil, err
		}
		return strings.Split(strings.TrimSuffix(text, "\n"), "\n"), nil
	default:
		reply, err := c.roundTrip(cmd)
		if err != nil {
			return nil, err
		}
		return []string{string(reply)}, nil
	}
}

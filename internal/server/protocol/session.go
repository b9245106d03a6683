package protocol

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/pixelflut-go/internal/telemetry/metric"
)

// Transport names, used as log fields and metric labels.
const (
	TransportTCP       = "tcp"
	TransportUnix      = "unix"
	TransportUDP       = "udp"
	TransportWebSocket = "ws"
)

// Transport moves payloads for one client.
//
// ReadPayload blocks until data arrives; the returned slice is only valid
// until the next call. Close must unblock a pending ReadPayload.
type Transport interface {
	ReadPayload() ([]byte, error)
	WritePayload(p []byte) error
	Close() error
	RemoteAddr() net.Addr
}

// Session drives one client: read, frame, apply, respond.
type Session struct {
	id        string
	transport Transport
	kind      string
	framer    Framer
	handler   *Handler
	limiter   *rate.Limiter
	metrics   *metric.Registry
	logger    *slog.Logger

	out []byte

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the base logger. The session adds its id,
// transport and remote address.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRateLimit limits the session to limit commands per second with the
// given burst. limit <= 0 disables limiting.
func WithRateLimit(limit float64, burst int) SessionOption {
	return func(s *Session) {
		if limit <= 0 {
			s.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
}

// WithSessionMetrics records traffic for the session.
func WithSessionMetrics(m *metric.Registry) SessionOption {
	return func(s *Session) {
		s.metrics = m
	}
}

// NewSession creates a session for transport of the given kind.
//
// transport may be nil for sessions that are only driven through Process.
func NewSession(kind string, transport Transport, framer Framer, handler *Handler, opts ...SessionOption) *Session {
	s := &Session{
		id:        ulid.Make().String(),
		transport: transport,
		kind:      kind,
		framer:    framer,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	attrs := []any{"session_id", s.id, "transport", kind}
	if transport != nil && transport.RemoteAddr() != nil {
		attrs = append(attrs, "remote", transport.RemoteAddr().String())
	}
	s.logger = s.logger.With(attrs...)
	s.handler = handler.WithLogger(s.logger)
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Transport returns the session's transport kind.
func (s *Session) Transport() string {
	return s.kind
}

// Logger returns the session-scoped logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// Run processes payloads until the peer disconnects, a protocol limit is
// exceeded, ctx is cancelled or Close is called.
//
// A clean end (EOF, Close, cancellation) returns nil. Limit violations
// return an error matching ErrLimitExceeded; I/O failures are returned as is.
func (s *Session) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()
	defer s.Close()

	for {
		p, err := s.transport.ReadPayload()
		if len(p) > 0 {
			if s.metrics != nil {
				s.metrics.AddBytesReceived(s.kind, len(p))
			}
			cmds, ferr := s.framer.Feed(p)
			if aerr := s.apply(ctx, cmds); aerr != nil {
				return s.finish(aerr)
			}
			if ferr != nil {
				return s.finish(ferr)
			}
		}
		if err != nil {
			return s.finish(err)
		}
	}
}

func (s *Session) finish(err error) error {
	switch {
	case errors.Is(err, ErrLimitExceeded):
		s.logger.Warn("protocol limit exceeded, closing session", "error", err)
		if s.metrics != nil {
			s.metrics.IncLimitExceeded(s.kind)
		}
		return err
	case s.closed.Load(), errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
		s.logger.Debug("session closed")
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		s.logger.Debug("session idle timeout")
		return err
	}
	s.logger.Debug("session read error", "error", err)
	return err
}

func (s *Session) apply(ctx context.Context, cmds []Command) error {
	out := s.out[:0]
	for len(cmds) > 0 {
		n := len(cmds)
		if s.limiter != nil {
			n = min(n, s.limiter.Burst())
			if err := s.limiter.WaitN(ctx, n); err != nil {
				return err
			}
		}
		out = s.handler.Apply(out, cmds[:n])
		cmds = cmds[n:]
	}
	s.out = out
	if len(out) == 0 {
		return nil
	}
	return s.transport.WritePayload(out)
}

// Process applies one complete payload and returns the response bytes,
// which are valid until the next call. It is used for transports without
// a persistent connection such as UDP.
func (s *Session) Process(payload []byte) ([]byte, error) {
	if s.metrics != nil {
		s.metrics.AddBytesReceived(s.kind, len(payload))
	}
	cmds, err := s.framer.Feed(payload)
	s.out = s.handler.Apply(s.out[:0], cmds)
	return s.out, err
}

// Close force-closes the session. It is safe to call from any goroutine
// and more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.transport != nil {
			s.closeErr = s.transport.Close()
		}
	})
	return s.closeErr
}

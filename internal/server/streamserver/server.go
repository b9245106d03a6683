package streamserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/pixelflut-go/internal/server/protocol"
	"github.com/yndnr/pixelflut-go/internal/telemetry/metric"
)

// Config holds the stream server configuration.
type Config struct {
	// Network is "tcp" or "unix".
	Network string
	// Address is the listen address, or the socket path for "unix".
	Address string
	// IdleTimeout closes a connection that sends nothing for this long.
	// Zero disables it.
	IdleTimeout time.Duration
	// WriteTimeout bounds each response write. Zero disables it.
	WriteTimeout time.Duration
	// MaxLineLength is the longest accepted command line.
	MaxLineLength int
	// ReadBufferSize is the size of each connection's read buffer.
	ReadBufferSize int
	// RateLimit is the maximum number of commands per second per
	// connection. Zero disables rate limiting.
	RateLimit float64
	// RateBurst is the rate limiter bucket size.
	RateBurst int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Network:        "tcp",
		Address:        ":1234",
		IdleTimeout:    5 * time.Minute,
		WriteTimeout:   10 * time.Second,
		MaxLineLength:  protocol.DefaultMaxLineLength,
		ReadBufferSize: 16 * 1024,
		RateBurst:      1000,
	}
}

// Server accepts stream connections and runs a session for each.
type Server struct {
	cfg      *Config
	handler  *protocol.Handler
	registry *protocol.Registry
	metrics  *metric.Registry
	logger   *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup
}

// New creates a stream server. registry and metrics may be nil.
func New(cfg *Config, handler *protocol.Handler, registry *protocol.Registry, metrics *metric.Registry, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Network == "" {
		cfg.Network = "tcp"
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = 16 * 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		handler:  handler,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
	}
}

// Listen opens the listening socket. Start calls it if needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen(s.cfg.Network, s.cfg.Address)
	if err != nil {
		return fmt.Errorf("streamserver: listen %s %s: %w", s.cfg.Network, s.cfg.Address, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the listening address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start listens and accepts connections in the background.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.running.Store(true)
	s.logger.Info("stream server listening", "transport", s.cfg.Network, "address", s.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx, s.listener); err != nil && s.running.Load() {
			s.logger.Error("stream server accept error", "transport", s.cfg.Network, "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting and waits for open sessions until ctx is done.
// Sessions still running when ctx expires are left to the caller, who can
// force-close them through the session registry.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var closeErr error
	s.mu.Lock()
	if s.listener != nil {
		closeErr = s.listener.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if errors.Is(closeErr, net.ErrClosed) {
			return nil
		}
		return closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, c)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, c net.Conn) {
	transport := newConn(c, s.cfg.ReadBufferSize, s.cfg.IdleTimeout, s.cfg.WriteTimeout)
	session := protocol.NewSession(s.cfg.Network, transport,
		protocol.NewStreamFramer(s.cfg.MaxLineLength), s.handler,
		protocol.WithSessionLogger(s.logger),
		protocol.WithSessionMetrics(s.metrics),
		protocol.WithRateLimit(s.cfg.RateLimit, s.cfg.RateBurst),
	)

	if s.registry != nil {
		s.registry.Add(session)
		defer s.registry.Remove(session.ID())
	}
	if s.metrics != nil {
		s.metrics.IncConnection(s.cfg.Network)
		defer s.metrics.DecConnection(s.cfg.Network)
	}

	session.Logger().Debug("session opened")
	_ = session.Run(ctx)
}

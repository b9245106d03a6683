package wsserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/pixelflut-go/internal/server/httpserver"
	"github.com/yndnr/pixelflut-go/internal/server/protocol"
	"github.com/yndnr/pixelflut-go/internal/telemetry/logger"
	"github.com/yndnr/pixelflut-go/internal/telemetry/metric"
)

// Config holds the WebSocket server configuration.
type Config struct {
	// Address is the HTTP listen address.
	Address string
	// Path is the URL path that accepts upgrades.
	Path string
	// IdleTimeout closes a connection that sends nothing, not even a pong,
	// for this long. It also sets the ping interval. Zero disables both.
	IdleTimeout time.Duration
	// WriteTimeout bounds each message write.
	WriteTimeout time.Duration
	// MaxMessageSize is the largest accepted inbound message.
	MaxMessageSize int64
	// RateLimit is the maximum number of commands per second per
	// connection. Zero disables rate limiting.
	RateLimit float64
	// RateBurst is the rate limiter bucket size.
	RateBurst int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:        ":1235",
		Path:           "/",
		IdleTimeout:    5 * time.Minute,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 64 * 1024,
		RateBurst:      1000,
	}
}

// Server upgrades HTTP requests and runs a session per connection.
type Server struct {
	cfg      *Config
	handler  *protocol.Handler
	registry *protocol.Registry
	metrics  *metric.Registry
	logger   *slog.Logger

	upgrader websocket.Upgrader
	http     *httpserver.Server
	baseCtx  context.Context

	// mu orders wg.Add in handlers against wg.Wait in Shutdown.
	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// New creates a WebSocket server. registry and metrics may be nil.
func New(cfg *Config, handler *protocol.Handler, registry *protocol.Registry, metrics *metric.Registry, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 64 * 1024
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		handler:  handler,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Drawing clients are served from anywhere.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		baseCtx: context.Background(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.handleUpgrade)
	h := httpserver.Chain(mux, httpserver.RequestID(), httpserver.Recover(logger))
	s.http = httpserver.New(cfg.Address, h).WithLogger(logger)
	return s
}

// Listen binds the HTTP listener.
func (s *Server) Listen() error {
	return s.http.Listen()
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	return s.http.Addr()
}

// Start serves upgrades in the background. Sessions end when ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx
	if err := s.http.Start(); err != nil {
		return err
	}
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	s.logger.Info("websocket server listening", "address", s.Addr().String(), "path", s.cfg.Path)
	return nil
}

// Shutdown stops accepting upgrades and waits for open sessions until ctx
// is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	err := s.http.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !s.acquire() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.wg.Done()
		// Upgrade has already written an HTTP error response.
		s.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	base := logger.L(logger.WithLogger(r.Context(), s.logger))
	go func() {
		defer s.wg.Done()
		s.serveConn(ws, base)
	}()
}

// acquire reserves a session slot in wg, or reports false once Shutdown
// has started.
func (s *Server) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) serveConn(ws *websocket.Conn, log *slog.Logger) {
	transport := newConn(ws, s.cfg.MaxMessageSize, s.cfg.IdleTimeout, s.cfg.WriteTimeout)
	session := protocol.NewSession(protocol.TransportWebSocket, transport,
		protocol.NewPayloadFramer(), s.handler,
		protocol.WithSessionLogger(log),
		protocol.WithSessionMetrics(s.metrics),
		protocol.WithRateLimit(s.cfg.RateLimit, s.cfg.RateBurst),
	)

	if s.registry != nil {
		s.registry.Add(session)
		defer s.registry.Remove(session.ID())
	}
	if s.metrics != nil {
		s.metrics.IncConnection(protocol.TransportWebSocket)
		defer s.metrics.DecConnection(protocol.TransportWebSocket)
	}

	stopPing := s.startPing(transport)
	defer stopPing()

	session.Logger().Debug("session opened")
	if err := session.Run(s.baseCtx); err != nil && !errors.Is(err, protocol.ErrLimitExceeded) {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			session.Logger().Debug("websocket closed unexpectedly", "error", err)
		}
	}
}

// startPing pings the peer every 9/10 of the idle timeout; each pong
// renews the read deadline.
func (s *Server) startPing(c *conn) (stop func()) {
	if s.cfg.IdleTimeout <= 0 {
		return func() {}
	}
	period := s.cfg.IdleTimeout * 9 / 10
	ticker := time.NewTicker(period)
	quit := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.ping(); err != nil {
					return
				}
			case <-quit:
				return
			}
		}
	}()
	return func() { close(quit) }
}

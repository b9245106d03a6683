package udpserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/spaolacci/murmur3"

	"github.com/yndnr/pixelflut-go/internal/server/protocol"
	"github.com/yndnr/pixelflut-go/internal/telemetry/metric"
)

// MaxDatagramSize is the largest UDP payload over IPv4.
const MaxDatagramSize = 65507

// Config holds the UDP server configuration.
type Config struct {
	// Address is the listen address.
	Address string
	// Workers is the number of datagram workers. Zero uses GOMAXPROCS.
	Workers int
	// QueueSize is the per-worker queue length.
	QueueSize int
	// AllowQueries enables responses to HELP, SIZE, PX <x> <y> and STATE.
	// When false only pixel writes take effect.
	AllowQueries bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:      ":1234",
		Workers:      runtime.GOMAXPROCS(0),
		QueueSize:    1024,
		AllowQueries: true,
	}
}

type datagram struct {
	from netip.AddrPort
	buf  *[]byte
	n    int
}

// Server is the UDP listener.
type Server struct {
	cfg     *Config
	handler *protocol.Handler
	metrics *metric.Registry
	logger  *slog.Logger

	mu      sync.Mutex
	conn    *net.UDPConn
	queues  []chan datagram
	running atomic.Bool
	wg      sync.WaitGroup

	bufPool sync.Pool
}

// New creates a UDP server. metrics may be nil.
func New(cfg *Config, handler *protocol.Handler, metrics *metric.Registry, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		handler: handler.WithQueries(cfg.AllowQueries),
		metrics: metrics,
		logger:  logger,
	}
	s.bufPool.New = func() any {
		b := make([]byte, MaxDatagramSize)
		return &b
	}
	return s
}

// Listen opens the UDP socket. Start calls it if needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}
	addr, err := net.ResolveUDPAddr("udp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("udpserver: resolve %s: %w", s.cfg.Address, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("udpserver: listen %s: %w", s.cfg.Address, err)
	}
	s.conn = conn
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Start binds the socket and starts the reader and workers.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.running.Store(true)

	s.queues = make([]chan datagram, s.cfg.Workers)
	var workers sync.WaitGroup
	for i := range s.queues {
		q := make(chan datagram, s.cfg.QueueSize)
		s.queues[i] = q
		workers.Add(1)
		go func() {
			defer workers.Done()
			s.work(q)
		}()
	}

	s.logger.Info("udp server listening",
		"address", s.Addr().String(),
		"workers", s.cfg.Workers,
		"allow_queries", s.cfg.AllowQueries)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.readLoop(ctx); err != nil && s.running.Load() {
			s.logger.Error("udp read error", "error", err)
		}
		for _, q := range s.queues {
			close(q)
		}
		workers.Wait()
	}()
	return nil
}

// Shutdown closes the socket and waits for queued datagrams to be applied.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var closeErr error
	s.mu.Lock()
	if s.conn != nil {
		closeErr = s.conn.Close()
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

func (s *Server) readLoop(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	for {
		buf := s.bufPool.Get().(*[]byte)
		n, from, err := s.conn.ReadFromUDPAddrPort(*buf)
		if err != nil {
			s.bufPool.Put(buf)
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return err
		}
		if n == 0 {
			s.bufPool.Put(buf)
			continue
		}

		q := s.queues[workerIndex(from, len(s.queues))]
		select {
		case q <- datagram{from: from, buf: buf, n: n}:
		default:
			s.bufPool.Put(buf)
			if s.metrics != nil {
				s.metrics.IncDatagramDropped()
			}
		}
	}
}

// workerIndex maps a source address to a worker.
func workerIndex(from netip.AddrPort, workers int) int {
	var key [18]byte
	a16 := from.Addr().As16()
	copy(key[:16], a16[:])
	port := from.Port()
	key[16] = byte(port >> 8)
	key[17] = byte(port)
	return int(murmur3.Sum32(key[:]) % uint32(workers))
}

func (s *Server) work(q <-chan datagram) {
	session := protocol.NewSession(protocol.TransportUDP, nil, protocol.NewPayloadFramer(), s.handler,
		protocol.WithSessionLogger(s.logger),
		protocol.WithSessionMetrics(s.metrics),
	)

	for d := range q {
		out, _ := session.Process((*d.buf)[:d.n])
		if len(out) > 0 {
			s.reply(out, d.from)
		}
		s.bufPool.Put(d.buf)
	}
}

// reply sends out to addr in datagrams of at most MaxDatagramSize bytes,
// cutting only at line ends. A single line longer than a datagram is
// dropped.
func (s *Server) reply(out []byte, to netip.AddrPort) {
	for len(out) > 0 {
		chunk := out
		if len(chunk) > MaxDatagramSize {
			cut := bytes.LastIndexByte(chunk[:MaxDatagramSize], '\n')
			if cut < 0 {
				end := bytes.IndexByte(out, '\n')
				if end < 0 {
					end = len(out) - 1
				}
				s.logger.Debug("udp response line too large for a datagram", "to", to.String(), "size", end+1)
				out = out[end+1:]
				continue
			}
			chunk = chunk[:cut+1]
		}
		if _, err := s.conn.WriteToUDPAddrPort(chunk, to); err != nil {
			s.logger.Debug("udp reply failed", "to", to.String(), "error", err)
			return
		}
		out = out[len(chunk):]
	}
}

package localserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/yndnr/pixelflut-go/internal/server/protocol"
	"github.com/yndnr/pixelflut-go/internal/server/streamserver"
	"github.com/yndnr/pixelflut-go/internal/telemetry/metric"
)

// DefaultSocketMode is applied to the socket file after listening.
const DefaultSocketMode fs.FileMode = 0660

// Server is the Unix socket listener.
type Server struct {
	path   string
	mode   fs.FileMode
	stream *streamserver.Server
	logger *slog.Logger
}

// New creates a Unix socket server on path. Stream settings other than
// the network and address are taken from cfg.
func New(path string, cfg *streamserver.Config, handler *protocol.Handler, registry *protocol.Registry, metrics *metric.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = streamserver.DefaultConfig()
	}
	local := *cfg
	local.Network = "unix"
	local.Address = path

	return &Server{
		path:   path,
		mode:   DefaultSocketMode,
		stream: streamserver.New(&local, handler, registry, metrics, logger),
		logger: logger,
	}
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Start removes a stale socket, listens on the path and serves in the
// background.
func (s *Server) Start(ctx context.Context) error {
	if err := removeStale(s.path); err != nil {
		return err
	}
	if err := s.stream.Listen(); err != nil {
		return err
	}
	if err := os.Chmod(s.path, s.mode); err != nil {
		s.logger.Warn("failed to set socket permissions", "path", s.path, "error", err)
	}
	return s.stream.Start(ctx)
}

// Shutdown stops accepting, waits for sessions until ctx is done and
// removes the socket file.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.stream.Shutdown(ctx)
	if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

// removeStale deletes a socket file nobody is listening on. A live socket
// or a non-socket file at path is an error.
func removeStale(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("localserver: stat %s: %w", path, err)
	}
	if info.Mode().Type() != fs.ModeSocket {
		return fmt.Errorf("localserver: %s exists and is not a socket", path)
	}

	c, err := net.DialTimeout("unix", path, 200*time.Millisecond)
	if err == nil {
		c.Close()
		return fmt.Errorf("localserver: %s is in use by another process", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("localserver: remove stale socket: %w", err)
	}
	return nil
}

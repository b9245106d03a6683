package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yndnr/pixelflut-go/internal/server/protocol"
)

// ErrInvalid is wrapped by every Verify error.
var ErrInvalid = errors.New("invalid configuration")

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if cfg.Canvas.Width <= 0 || cfg.Canvas.Height <= 0 {
		return invalid("canvas dimensions must be positive, got %dx%d", cfg.Canvas.Width, cfg.Canvas.Height)
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyProtocol(&cfg.Protocol); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.TCP.Addr == "" && cfg.Unix.Path == "" && cfg.UDP.Addr == "" && cfg.WS.Addr == "" {
		return invalid("at least one of server.tcp.addr, server.unix.path, server.udp.addr, server.ws.addr is required")
	}
	if cfg.IdleTimeout < 0 {
		return invalid("server.idle_timeout must not be negative")
	}
	if cfg.WriteTimeout < 0 {
		return invalid("server.write_timeout must not be negative")
	}
	if cfg.GracePeriod < 0 {
		return invalid("server.grace_period must not be negative")
	}
	if cfg.UDP.Workers < 0 {
		return invalid("server.udp.workers must not be negative")
	}
	if cfg.UDP.Addr != "" && cfg.UDP.QueueSize <= 0 {
		return invalid("server.udp.queue_size must be positive")
	}
	if cfg.WS.Addr != "" && !strings.HasPrefix(cfg.WS.Path, "/") {
		return invalid("server.ws.path must start with /, got %q", cfg.WS.Path)
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.SnapshotInterval < 0 {
		return invalid("storage.snapshot_interval must not be negative")
	}
	switch cfg.OnLoadError {
	case "blank", "abort":
		return nil
	default:
		return invalid("storage.on_load_error must be blank or abort, got %q", cfg.OnLoadError)
	}
}

func verifyProtocol(cfg *ProtocolSection) error {
	if cfg.MaxLineLength < protocol.MinMaxLineLength {
		return invalid("protocol.max_line_length must be at least %d, got %d", protocol.MinMaxLineLength, cfg.MaxLineLength)
	}
	if cfg.MaxMessageSize < int64(cfg.MaxLineLength) {
		return invalid("protocol.max_message_size must be at least max_line_length")
	}
	if cfg.RateLimit < 0 {
		return invalid("protocol.rate_limit must not be negative")
	}
	if cfg.RateLimit > 0 && cfg.RateBurst < 1 {
		return invalid("protocol.rate_burst must be at least 1 when rate_limit is set")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text":
		return nil
	default:
		return invalid("log.format must be json or text, got %q", cfg.Format)
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

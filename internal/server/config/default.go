package config

import (
	"runtime"
	"time"
)

// Default configuration values.
const (
	DefaultTCPAddr      = ":1234"
	DefaultUDPAddr      = ":1234"
	DefaultWSAddr       = ":1235"
	DefaultWSPath       = "/"
	DefaultMetricsAddr  = "127.0.0.1:9100"
	DefaultUDPQueueSize = 1024

	DefaultIdleTimeout  = 5 * time.Minute
	DefaultWriteTimeout = 10 * time.Second
	DefaultGracePeriod  = 5 * time.Second

	DefaultWidth  = 800
	DefaultHeight = 600

	DefaultSnapshotPath     = "pixmap.snapshot"
	DefaultSnapshotInterval = 30 * time.Second
	DefaultOnLoadError      = "blank"

	DefaultMaxLineLength  = 1024
	DefaultMaxMessageSize = 64 * 1024
	DefaultRateBurst      = 1000

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			TCP: TCPConfig{Addr: DefaultTCPAddr},
			UDP: UDPConfig{
				Addr:         DefaultUDPAddr,
				Workers:      runtime.GOMAXPROCS(0),
				QueueSize:    DefaultUDPQueueSize,
				AllowQueries: true,
			},
			WS: WSConfig{
				Addr: DefaultWSAddr,
				Path: DefaultWSPath,
			},
			Metrics:      MetricsConfig{Addr: DefaultMetricsAddr},
			IdleTimeout:  DefaultIdleTimeout,
			WriteTimeout: DefaultWriteTimeout,
			GracePeriod:  DefaultGracePeriod,
		},
		Canvas: CanvasSection{
			Width:  DefaultWidth,
			Height: DefaultHeight,
		},
		Storage: StorageSection{
			SnapshotPath:     DefaultSnapshotPath,
			SnapshotInterval: DefaultSnapshotInterval,
			OnLoadError:      DefaultOnLoadError,
		},
		Protocol: ProtocolSection{
			MaxLineLength:  DefaultMaxLineLength,
			MaxMessageSize: DefaultMaxMessageSize,
			RateBurst:      DefaultRateBurst,
			StateEnabled:   true,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// DefaultMap returns Default as dotted keys for the configuration loader.
func DefaultMap() map[string]any {
	d := Default()
	return map[string]any{
		"server.tcp.addr":           d.Server.TCP.Addr,
		"server.unix.path":          d.Server.Unix.Path,
		"server.udp.addr":           d.Server.UDP.Addr,
		"server.udp.workers":        d.Server.UDP.Workers,
		"server.udp.queue_size":     d.Server.UDP.QueueSize,
		"server.udp.allow_queries":  d.Server.UDP.AllowQueries,
		"server.ws.addr":            d.Server.WS.Addr,
		"server.ws.path":            d.Server.WS.Path,
		"server.metrics.addr":       d.Server.Metrics.Addr,
		"server.idle_timeout":       d.Server.IdleTimeout,
		"server.write_timeout":      d.Server.WriteTimeout,
		"server.grace_period":       d.Server.GracePeriod,
		"canvas.width":              d.Canvas.Width,
		"canvas.height":             d.Canvas.Height,
		"storage.snapshot_path":     d.Storage.SnapshotPath,
		"storage.snapshot_interval": d.Storage.SnapshotInterval,
		"storage.on_load_error":     d.Storage.OnLoadError,
		"protocol.max_line_length":  d.Protocol.MaxLineLength,
		"protocol.max_message_size": d.Protocol.MaxMessageSize,
		"protocol.rate_limit":       d.Protocol.RateLimit,
		"protocol.rate_burst":       d.Protocol.RateBurst,
		"protocol.state_enabled":    d.Protocol.StateEnabled,
		"log.level":                 d.Log.Level,
		"log.format":                d.Log.Format,
	}
}

package config

import "time"

// ServerConfig is the root configuration for pixelflut-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Canvas   CanvasSection   `koanf:"canvas"`
	Storage  StorageSection  `koanf:"storage"`
	Protocol ProtocolSection `koanf:"protocol"`
	Log      LogSection      `koanf:"log"`
}

// ServerSection configures the listeners. An empty address disables
// the corresponding listener.
type ServerSection struct {
	TCP     TCPConfig     `koanf:"tcp"`
	Unix    UnixConfig    `koanf:"unix"`
	UDP     UDPConfig     `koanf:"udp"`
	WS      WSConfig      `koanf:"ws"`
	Metrics MetricsConfig `koanf:"metrics"`

	// IdleTimeout closes sessions that send nothing for this long. Zero disables.
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// GracePeriod is how long shutdown waits for sessions to finish
	// before force-closing them.
	GracePeriod time.Duration `koanf:"grace_period"`
}

// TCPConfig configures the TCP listener.
type TCPConfig struct {
	Addr string `koanf:"addr"`
}

// UnixConfig configures the Unix socket listener.
type UnixConfig struct {
	Path string `koanf:"path"`
}

// UDPConfig configures the UDP listener.
type UDPConfig struct {
	Addr string `koanf:"addr"`

	// Workers is the size of the worker pool. Zero means GOMAXPROCS.
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`

	// AllowQueries answers HELP, SIZE, PX reads and STATE to the sender.
	AllowQueries bool `koanf:"allow_queries"`
}

// WSConfig configures the WebSocket listener.
type WSConfig struct {
	Addr string `koanf:"addr"`
	Path string `koanf:"path"`
}

// MetricsConfig configures the /metrics and /healthz endpoint.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// CanvasSection configures the canvas dimensions.
type CanvasSection struct {
	Width  int `koanf:"width"`
	Height int `koanf:"height"`
}

// StorageSection configures snapshot persistence.
type StorageSection struct {
	// SnapshotPath is the snapshot file. Empty runs purely in memory.
	SnapshotPath     string        `koanf:"snapshot_path"`
	SnapshotInterval time.Duration `koanf:"snapshot_interval"`

	// OnLoadError is "blank" or "abort".
	OnLoadError string `koanf:"on_load_error"`
}

// ProtocolSection configures per-session protocol limits.
type ProtocolSection struct {
	MaxLineLength  int   `koanf:"max_line_length"`
	MaxMessageSize int64 `koanf:"max_message_size"`

	// RateLimit is commands per second per session. Zero disables.
	RateLimit    float64 `koanf:"rate_limit"`
	RateBurst    int     `koanf:"rate_burst"`
	StateEnabled bool    `koanf:"state_enabled"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

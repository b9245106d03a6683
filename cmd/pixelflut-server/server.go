package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/pixelflut-go/internal/infra/buildinfo"
	"github.com/yndnr/pixelflut-go/internal/infra/confloader"
	"github.com/yndnr/pixelflut-go/internal/infra/shutdown"
	"github.com/yndnr/pixelflut-go/internal/server/config"
	"github.com/yndnr/pixelflut-go/internal/server/httpserver"
	"github.com/yndnr/pixelflut-go/internal/server/localserver"
	"github.com/yndnr/pixelflut-go/internal/server/protocol"
	"github.com/yndnr/pixelflut-go/internal/server/streamserver"
	"github.com/yndnr/pixelflut-go/internal/server/udpserver"
	"github.com/yndnr/pixelflut-go/internal/server/wsserver"
	"github.com/yndnr/pixelflut-go/internal/storage"
	"github.com/yndnr/pixelflut-go/internal/telemetry/logger"
	"github.com/yndnr/pixelflut-go/internal/telemetry/metric"
)

// hookSlack is added to the grace period to bound the whole shutdown.
const hookSlack = 30 * time.Second

// loadConfig layers defaults, file, environment and flag overrides.
func loadConfig(configFile string, overrides map[string]any) (*config.ServerConfig, error) {
	loader := newLoader(configFile)

	cfg := &config.ServerConfig{}
	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, err
		}
		if err := loader.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("apply flags: %w", err)
		}
	}

	if err := config.Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLoader(configFile string) *confloader.Loader {
	opts := []confloader.Option{confloader.WithDefaults(config.DefaultMap())}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	return confloader.NewLoader(opts...)
}

type stopper interface {
	Shutdown(ctx context.Context) error
}

// server wires every component of a running pixelflut-server.
type server struct {
	cfg        *config.ServerConfig
	configFile string
	log        *slog.Logger

	metrics  *metric.Registry
	engine   *storage.Engine
	registry *protocol.Registry
	handler  *protocol.Handler

	tcp     *streamserver.Server
	unix    *localserver.Server
	udp     *udpserver.Server
	ws      *wsserver.Server
	http    *httpserver.Server
	watcher *confloader.Watcher

	listeners map[string]stopper
	ready     atomic.Bool
	shutdown  *shutdown.Handler
}

func newServer(cfg *config.ServerConfig, configFile string) (*server, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	info := buildinfo.Get()
	log.Info("starting pixelflut-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", configFile)
	log.Debug("effective configuration", "config", fmt.Sprintf("%+v", *config.Sanitize(cfg)))

	metrics := metric.NewRegistry()

	engine, err := storage.Open(storage.Config{
		Width:            cfg.Canvas.Width,
		Height:           cfg.Canvas.Height,
		SnapshotPath:     cfg.Storage.SnapshotPath,
		SnapshotInterval: cfg.Storage.SnapshotInterval,
		OnLoadError:      cfg.Storage.OnLoadError,
		Metrics:          metrics,
		Logger:           log,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	registry := protocol.NewRegistry()
	if err := metrics.Register(metric.NewCollector(engine.Canvas(), registry)); err != nil {
		return nil, fmt.Errorf("register canvas collector: %w", err)
	}

	handler := protocol.NewHandler(engine.Canvas(), protocol.HandlerConfig{
		StateEnabled: cfg.Protocol.StateEnabled,
		AllowQueries: true,
	}, metrics, log)

	return &server{
		cfg:        cfg,
		configFile: configFile,
		log:        log,
		metrics:    metrics,
		engine:     engine,
		registry:   registry,
		handler:    handler,
		listeners:  make(map[string]stopper),
		shutdown:   shutdown.NewHandler(cfg.Server.GracePeriod+hookSlack, log),
	}, nil
}

func (s *server) streamConfig() *streamserver.Config {
	sc := streamserver.DefaultConfig()
	sc.Address = s.cfg.Server.TCP.Addr
	sc.IdleTimeout = s.cfg.Server.IdleTimeout
	sc.WriteTimeout = s.cfg.Server.WriteTimeout
	sc.MaxLineLength = s.cfg.Protocol.MaxLineLength
	sc.RateLimit = s.cfg.Protocol.RateLimit
	sc.RateBurst = s.cfg.Protocol.RateBurst
	return sc
}

// start brings up storage, metrics and the listeners, and registers the
// shutdown hooks. On error everything already started is stopped.
func (s *server) start(ctx context.Context) error {
	s.engine.Start()
	s.shutdown.OnShutdown("storage", s.engine.Close)

	if addr := s.cfg.Server.Metrics.Addr; addr != "" {
		router := httpserver.NewRouter(&httpserver.RouterConfig{
			Metrics: s.metrics,
			Logger:  s.log,
			Ready:   s.ready.Load,
		})
		s.http = httpserver.New(addr, router).WithLogger(s.log)
		if err := s.http.Start(); err != nil {
			return s.abort(err)
		}
		s.log.Info("metrics server listening", "address", s.http.Addr().String())
		s.shutdown.OnShutdown("metrics", s.http.Shutdown)
	}

	s.shutdown.OnShutdown("sessions", func(context.Context) error {
		if n := s.registry.CloseAll(); n > 0 {
			s.log.Warn("force-closed sessions after grace period", "count", n)
		}
		return nil
	})

	if err := s.startListeners(ctx); err != nil {
		return s.abort(err)
	}
	s.shutdown.OnShutdown("listeners", s.stopListeners)

	if s.configFile != "" {
		if err := s.watchConfig(); err != nil {
			s.log.Warn("config watcher disabled", "error", err)
		}
	}

	s.ready.Store(true)
	s.log.Info("server started",
		"width", s.cfg.Canvas.Width,
		"height", s.cfg.Canvas.Height)
	return nil
}

func (s *server) startListeners(ctx context.Context) error {
	if addr := s.cfg.Server.TCP.Addr; addr != "" {
		s.tcp = streamserver.New(s.streamConfig(), s.handler, s.registry, s.metrics, s.log)
		if err := s.tcp.Start(ctx); err != nil {
			return err
		}
		s.listeners[protocol.TransportTCP] = s.tcp
	}

	if path := s.cfg.Server.Unix.Path; path != "" {
		s.unix = localserver.New(path, s.streamConfig(), s.handler, s.registry, s.metrics, s.log)
		if err := s.unix.Start(ctx); err != nil {
			return err
		}
		s.listeners[protocol.TransportUnix] = s.unix
	}

	if addr := s.cfg.Server.UDP.Addr; addr != "" {
		s.udp = udpserver.New(&udpserver.Config{
			Address:      addr,
			Workers:      s.cfg.Server.UDP.Workers,
			QueueSize:    s.cfg.Server.UDP.QueueSize,
			AllowQueries: s.cfg.Server.UDP.AllowQueries,
		}, s.handler, s.metrics, s.log)
		if err := s.udp.Start(ctx); err != nil {
			return err
		}
		s.listeners[protocol.TransportUDP] = s.udp
	}

	if addr := s.cfg.Server.WS.Addr; addr != "" {
		s.ws = wsserver.New(&wsserver.Config{
			Address:        addr,
			Path:           s.cfg.Server.WS.Path,
			IdleTimeout:    s.cfg.Server.IdleTimeout,
			WriteTimeout:   s.cfg.Server.WriteTimeout,
			MaxMessageSize: s.cfg.Protocol.MaxMessageSize,
			RateLimit:      s.cfg.Protocol.RateLimit,
			RateBurst:      s.cfg.Protocol.RateBurst,
		}, s.handler, s.registry, s.metrics, s.log)
		if err := s.ws.Start(ctx); err != nil {
			return err
		}
		s.listeners[protocol.TransportWebSocket] = s.ws
	}

	return nil
}

// stopListeners stops accepting everywhere at once and waits up to the
// grace period for sessions to end on their own.
func (s *server) stopListeners(ctx context.Context) error {
	s.ready.Store(false)

	graceCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.GracePeriod)
	defer cancel()

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for name, l := range s.listeners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Shutdown(graceCtx)
			if err == nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				s.log.Info("grace period expired with sessions open", "transport", name)
				return
			}
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			mu.Unlock()
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// abort stops whatever start managed to bring up and returns err.
func (s *server) abort(err error) error {
	ctx, cancel := context.WithTimeout(context.Background(), hookSlack)
	defer cancel()

	_ = s.stopListeners(ctx)
	s.registry.CloseAll()
	if s.http != nil {
		_ = s.http.Shutdown(ctx)
	}
	if closeErr := s.engine.Close(ctx); closeErr != nil {
		s.log.Error("close storage after failed start", "error", closeErr)
	}
	return err
}

// watchConfig applies log.level changes from the configuration file.
func (s *server) watchConfig() error {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(s.log))
	if err != nil {
		return err
	}
	if err := w.Watch(s.configFile); err != nil {
		w.Stop()
		return err
	}
	w.OnChange(func(string) { s.reloadLogLevel() })
	w.StartAsync()

	s.watcher = w
	s.shutdown.OnShutdown("config-watcher", func(context.Context) error {
		return w.Stop()
	})
	return nil
}

func (s *server) reloadLogLevel() {
	cfg := &config.ServerConfig{}
	if err := newLoader(s.configFile).Load(cfg); err != nil {
		s.log.Warn("config reload failed", "error", err)
		return
	}
	if cfg.Log.Level == logger.GetLevel() {
		return
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		s.log.Warn("config reload: invalid log level", "level", cfg.Log.Level, "error", err)
		return
	}
	s.log.Info("log level changed", "level", logger.GetLevel())
}

// wait blocks until a signal or stop and runs the shutdown hooks.
func (s *server) wait() error {
	err := s.shutdown.Wait()
	if err != nil {
		s.log.Error("shutdown completed with errors", "error", err)
		return err
	}
	s.log.Info("server stopped gracefully")
	return nil
}

// stop begins shutdown without a signal.
func (s *server) stop() {
	s.shutdown.Trigger()
}

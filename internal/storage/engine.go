package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/pixelflut-go/internal/storage/memory"
	"github.com/yndnr/pixelflut-go/internal/storage/snapshot"
	"github.com/yndnr/pixelflut-go/internal/telemetry/metric"
)

// Default configuration values.
const (
	DefaultWidth            = 800
	DefaultHeight           = 600
	DefaultSnapshotPath     = "pixmap.snapshot"
	DefaultSnapshotInterval = 30 * time.Second
)

// Load error policies.
const (
	LoadErrorBlank = "blank"
	LoadErrorAbort = "abort"
)

// ErrUnknownLoadPolicy is returned by Open for an unrecognized OnLoadError.
var ErrUnknownLoadPolicy = errors.New("storage: unknown on_load_error policy")

// Config configures the storage engine.
type Config struct {
	Width  int
	Height int

	// SnapshotPath is the snapshot file. Empty disables persistence.
	SnapshotPath string

	// SnapshotInterval is the period between background snapshots.
	// Zero disables the background loop; Close still saves.
	SnapshotInterval time.Duration

	// OnLoadError is LoadErrorBlank or LoadErrorAbort.
	OnLoadError string

	Metrics *metric.Registry
	Logger  *slog.Logger
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() Config {
	return Config{
		Width:            DefaultWidth,
		Height:           DefaultHeight,
		SnapshotPath:     DefaultSnapshotPath,
		SnapshotInterval: DefaultSnapshotInterval,
		OnLoadError:      LoadErrorBlank,
	}
}

// Engine holds the canvas and its snapshot store.
type Engine struct {
	cfg     Config
	canvas  *memory.Canvas
	store   *snapshot.Store
	metrics *metric.Registry
	logger  *slog.Logger

	saveMu sync.Mutex

	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Open creates the engine and restores the canvas according to cfg.
func Open(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.OnLoadError == "" {
		cfg.OnLoadError = LoadErrorBlank
	}
	if cfg.OnLoadError != LoadErrorBlank && cfg.OnLoadError != LoadErrorAbort {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLoadPolicy, cfg.OnLoadError)
	}

	e := &Engine{
		cfg:     cfg,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	if cfg.SnapshotPath != "" {
		store, err := snapshot.NewStore(cfg.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		e.store = store
	}

	canvas, err := e.recover()
	if err != nil {
		return nil, err
	}
	e.canvas = canvas
	return e, nil
}

func (e *Engine) recover() (*memory.Canvas, error) {
	if e.store == nil {
		e.logger.Info("snapshots disabled, starting with blank canvas",
			"width", e.cfg.Width,
			"height", e.cfg.Height)
		return e.blank()
	}

	canvas, info, err := e.store.Load(e.cfg.Width, e.cfg.Height)
	switch {
	case err == nil:
		e.logger.Info("snapshot loaded",
			"path", info.Path,
			"width", info.Width,
			"height", info.Height,
			"size_bytes", info.Size,
			"elapsed", info.Duration)
		return canvas, nil

	case errors.Is(err, snapshot.ErrNotFound):
		e.logger.Info("no snapshot found, starting with blank canvas",
			"path", e.store.Path())
		return e.blank()

	case e.cfg.OnLoadError == LoadErrorAbort:
		return nil, fmt.Errorf("storage: load snapshot: %w", err)

	default:
		e.logger.Warn("snapshot unusable, starting with blank canvas",
			"path", e.store.Path(),
			"error", err)
		return e.blank()
	}
}

func (e *Engine) blank() (*memory.Canvas, error) {
	canvas, err := memory.New(e.cfg.Width, e.cfg.Height)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return canvas, nil
}

// Canvas returns the live canvas.
func (e *Engine) Canvas() *memory.Canvas {
	return e.canvas
}

// Start launches the periodic snapshot loop. It is a no-op when
// persistence or the interval is disabled, and on repeated calls.
func (e *Engine) Start() {
	if e.store == nil || e.cfg.SnapshotInterval <= 0 {
		return
	}
	e.startOnce.Do(func() {
		e.started.Store(true)
		go e.backgroundLoop()
	})
}

// TriggerSnapshot saves the canvas once. Failures are logged and counted;
// the next tick retries.
func (e *Engine) TriggerSnapshot(ctx context.Context) (*snapshot.Info, error) {
	if e.store == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	info, err := e.store.Save(e.canvas)
	if err != nil {
		e.logger.Error("snapshot failed",
			"path", e.store.Path(),
			"error", err)
		if e.metrics != nil {
			e.metrics.IncSnapshotFailure()
		}
		return nil, fmt.Errorf("create snapshot: %w", err)
	}

	e.logger.Debug("snapshot created",
		"path", info.Path,
		"size_bytes", info.Size,
		"elapsed", info.Duration)
	if e.metrics != nil {
		e.metrics.ObserveSnapshot(info.Duration.Seconds(), info.Size, float64(time.Now().Unix()))
	}
	return info, nil
}

func (e *Engine) backgroundLoop() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = e.TriggerSnapshot(context.Background())
		case <-e.stopCh:
			return
		}
	}
}

// Close stops the background loop and writes a final snapshot.
func (e *Engine) Close(ctx context.Context) error {
	var err error
	e.closeOnce.Do(func() {
		e.logger.Info("shutting down storage engine")

		close(e.stopCh)
		if e.started.Load() {
			select {
			case <-e.doneCh:
			case <-ctx.Done():
				err = ctx.Err()
				return
			}
		}

		if e.store == nil {
			return
		}
		if _, err = e.TriggerSnapshot(ctx); err != nil {
			return
		}
		e.logger.Info("final snapshot written", "path", e.store.Path())
	})
	return err
}

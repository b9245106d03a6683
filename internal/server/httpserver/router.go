package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/pixelflut-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the operational router.
type RouterConfig struct {
	// Metrics is exposed at /metrics. Nil uses the global registry.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger *slog.Logger

	// Ready reports whether the server is serving. Nil means always ready.
	Ready func() bool
}

// NewRouter creates the router for /metrics and /healthz.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metricsHandler := metric.Handler()
	if cfg.Metrics != nil {
		metricsHandler = cfg.Metrics.Handler()
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if cfg.Ready != nil && !cfg.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("shutting down\n"))
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})

	return Chain(mux, RequestID(), Recover(logger), AccessLog(logger))
}

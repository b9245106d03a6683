package protocol

import (
	"context"
	"log/slog"

	"github.com/yndnr/pixelflut-go/internal/core/domain"
	"github.com/yndnr/pixelflut-go/internal/telemetry/metric"
)

// Canvas is the canvas surface commands are applied to.
type Canvas interface {
	View
	Set(x, y uint64, color domain.Color) error
}

// HandlerConfig controls which commands a Handler answers.
type HandlerConfig struct {
	// StateEnabled allows the STATE command. A disabled STATE is treated
	// like a malformed command.
	StateEnabled bool
	// AllowQueries allows commands that produce a response. When false only
	// SetPixel has an effect and everything else is dropped silently.
	AllowQueries bool
}

// DefaultHandlerConfig returns the default handler configuration.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		StateEnabled: true,
		AllowQueries: true,
	}
}

// Handler applies decoded commands to a canvas.
//
// A Handler is immutable and safe for concurrent use. WithLogger and
// WithQueries return adjusted copies.
type Handler struct {
	canvas  Canvas
	cfg     HandlerConfig
	metrics *metric.Registry
	logger  *slog.Logger
}

// NewHandler creates a Handler. metrics may be nil.
func NewHandler(canvas Canvas, cfg HandlerConfig, metrics *metric.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		canvas:  canvas,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// WithLogger returns a copy of h that logs to l.
func (h *Handler) WithLogger(l *slog.Logger) *Handler {
	c := *h
	c.logger = l
	return &c
}

// WithQueries returns a copy of h with AllowQueries set to allow.
func (h *Handler) WithQueries(allow bool) *Handler {
	c := *h
	c.cfg.AllowQueries = allow
	return &c
}

// commandCounts batches metric updates for one Apply call.
type commandCounts struct {
	help, size, get, set, oob, state, malformed int
}

// Apply applies cmds in order and appends their responses to dst.
func (h *Handler) Apply(dst []byte, cmds []Command) []byte {
	var n commandCounts

	for _, cmd := range cmds {
		switch c := cmd.(type) {
		case SetPixel:
			if err := h.canvas.Set(c.X, c.Y, c.Color); err != nil {
				n.oob++
				h.logRejected(c, err)
				continue
			}
			n.set++

		case GetPixel:
			if !h.cfg.AllowQueries {
				continue
			}
			before := len(dst)
			dst = AppendResponse(dst, c, h.canvas)
			if len(dst) == before {
				n.oob++
				continue
			}
			n.get++

		case Size:
			if !h.cfg.AllowQueries {
				continue
			}
			dst = AppendResponse(dst, c, h.canvas)
			n.size++

		case Help:
			if !h.cfg.AllowQueries {
				continue
			}
			dst = AppendResponse(dst, c, h.canvas)
			n.help++

		case State:
			if !h.cfg.StateEnabled {
				n.malformed++
				h.logMalformed(Malformed{Line: "STATE " + string(c.Encoding), Reason: "state disabled"})
				continue
			}
			if !h.cfg.AllowQueries {
				continue
			}
			dst = AppendResponse(dst, c, h.canvas)
			n.state++

		case Malformed:
			n.malformed++
			h.logMalformed(c)
		}
	}

	h.record(n)
	return dst
}

func (h *Handler) logMalformed(m Malformed) {
	if !h.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	h.logger.Debug("malformed command ignored", "line", m.Line, "reason", m.Reason)
}

func (h *Handler) logRejected(cmd Command, err error) {
	if !h.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	h.logger.Debug("command rejected", "command", cmd.Name(), "code", domain.GetErrorCode(err), "error", err)
}

func (h *Handler) record(n commandCounts) {
	if h.metrics == nil {
		return
	}
	h.metrics.AddCommands(metric.CommandSetPixel, n.set)
	h.metrics.AddCommands(metric.CommandGetPixel, n.get)
	h.metrics.AddCommands(metric.CommandOutOfBounds, n.oob)
	h.metrics.AddCommands(metric.CommandSize, n.size)
	h.metrics.AddCommands(metric.CommandHelp, n.help)
	h.metrics.AddCommands(metric.CommandState, n.state)
	h.metrics.AddCommands(metric.CommandMalformed, n.malformed)
}

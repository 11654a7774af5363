package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	output   io.Writer = os.Stderr
	outputMu sync.RWMutex
)

// switchWriter 每次写入时读取当前输出目标，SetOutput 对已创建的 Logger 同样生效
type switchWriter struct{}

func (switchWriter) Write(p []byte) (int, error) {
	outputMu.RLock()
	w := output
	outputMu.RUnlock()
	return w.Write(p)
}

// subsystemHandler 带独立可调级别的子系统 Handler
type subsystemHandler struct {
	level *slog.LevelVar
	inner slog.Handler
}

func newSubsystemHandler(subsystem string, cfg *Config) *subsystemHandler {
	level := new(slog.LevelVar)
	level.Set(cfg.LevelFor(subsystem))

	opts := &slog.HandlerOptions{
		// 级别过滤由 subsystemHandler 负责
		Level:     slog.LevelDebug,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	}

	var inner slog.Handler
	if cfg.Format == FormatJSON {
		inner = slog.NewJSONHandler(switchWriter{}, opts)
	} else {
		inner = slog.NewTextHandler(switchWriter{}, opts)
	}

	return &subsystemHandler{
		level: level,
		inner: inner.WithAttrs([]slog.Attr{slog.String("subsystem", subsystem)}),
	}
}

func (h *subsystemHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *subsystemHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *subsystemHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &subsystemHandler{level: h.level, inner: h.inner.WithAttrs(attrs)}
}

func (h *subsystemHandler) WithGroup(name string) slog.Handler {
	return &subsystemHandler{level: h.level, inner: h.inner.WithGroup(name)}
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Package logger 提供按子系统划分的结构化日志
//
// 基于标准库 log/slog：
//
//	var log = logger.Logger("multistream")
//
//	log.Debug("提议协议", "protocol", p)
//
// 级别与格式通过环境变量配置：
//
//	MSS_LOG_LEVEL=multistream=debug,info
//	MSS_LOG_FORMAT=json
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	loggers  sync.Map // subsystem -> *slog.Logger
	handlers sync.Map // subsystem -> *subsystemHandler
)

// Logger 返回子系统的 Logger，同一子系统总是返回同一实例
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	h := newSubsystemHandler(subsystem, ConfigFromEnv())
	actual, loaded := loggers.LoadOrStore(subsystem, slog.New(h))
	if !loaded {
		handlers.Store(subsystem, h)
	}
	return actual.(*slog.Logger)
}

// SetLevel 运行时调整子系统级别
func SetLevel(subsystem string, level slog.Level) {
	Logger(subsystem)
	if h, ok := handlers.Load(subsystem); ok {
		h.(*subsystemHandler).level.Set(level)
	}
}

// SetAllLevels 调整所有已创建子系统的级别
func SetAllLevels(level slog.Level) {
	handlers.Range(func(_, v any) bool {
		v.(*subsystemHandler).level.Set(level)
		return true
	})
}

// SetOutput 设置全部 Logger 的输出目标
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

// Discard 返回丢弃所有记录的 Logger
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Package log 提供对外的日志接口
//
// 各子系统的 Logger 由内部 logger 包统一创建，本包只暴露获取与调整的入口：
//
//	var logger = log.Logger("core/protocol")
//
//	log.SetLevel("multistream", log.LevelDebug)
//	log.SetOutput(file)
package log

import (
	"io"
	"log/slog"

	"github.com/dep2p/go-multiselect/internal/util/logger"
)

// 日志级别
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Logger 返回子系统的 Logger
func Logger(subsystem string) *slog.Logger {
	return logger.Logger(subsystem)
}

// SetLevel 调整单个子系统的级别
func SetLevel(subsystem string, level slog.Level) {
	logger.SetLevel(subsystem, level)
}

// SetAllLevels 调整全部已创建子系统的级别
func SetAllLevels(level slog.Level) {
	logger.SetAllLevels(level)
}

// SetOutput 设置日志输出目标
//
//	file, _ := os.OpenFile("mss.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
//	log.SetOutput(file)
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Discard 返回丢弃所有记录的 Logger
func Discard() *slog.Logger {
	return logger.Discard()
}

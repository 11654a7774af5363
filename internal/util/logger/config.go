package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// 环境变量
const (
	// EnvLogLevel 日志级别，格式: 子系统=级别,子系统=级别,默认级别
	EnvLogLevel = "MSS_LOG_LEVEL"

	// EnvLogFormat 输出格式: text 或 json
	EnvLogFormat = "MSS_LOG_FORMAT"

	// EnvLogAddSource 是否输出源码位置
	EnvLogAddSource = "MSS_LOG_ADD_SOURCE"
)

// Format 日志输出格式
type Format int

const (
	// FormatText 文本格式（默认）
	FormatText Format = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Config 日志配置
type Config struct {
	// DefaultLevel 未单独配置的子系统使用的级别
	DefaultLevel slog.Level

	// SubsystemLevels 各子系统的级别
	SubsystemLevels map[string]slog.Level

	// Format 输出格式
	Format Format

	// AddSource 是否输出源码位置
	AddSource bool
}

// LevelFor 返回子系统的日志级别
func (c *Config) LevelFor(subsystem string) slog.Level {
	if level, ok := c.SubsystemLevels[subsystem]; ok {
		return level
	}
	return c.DefaultLevel
}

var (
	envConfig     *Config
	envConfigOnce sync.Once
)

// ConfigFromEnv 从环境变量读取配置，结果在进程内缓存
//
// 示例: MSS_LOG_LEVEL=multistream=debug,warn MSS_LOG_FORMAT=json
func ConfigFromEnv() *Config {
	envConfigOnce.Do(func() {
		envConfig = ParseConfig(os.Getenv(EnvLogLevel), os.Getenv(EnvLogFormat), os.Getenv(EnvLogAddSource))
	})
	return envConfig
}

// ParseConfig 解析级别、格式与源码位置设置
func ParseConfig(levels, format, addSource string) *Config {
	cfg := &Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
		Format:          FormatText,
	}

	for _, part := range strings.Split(levels, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		subsystem, levelName, scoped := strings.Cut(part, "=")
		if !scoped {
			if level, ok := ParseLevel(part); ok {
				cfg.DefaultLevel = level
			}
			continue
		}
		if level, ok := ParseLevel(strings.TrimSpace(levelName)); ok {
			cfg.SubsystemLevels[strings.TrimSpace(subsystem)] = level
		}
	}

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		cfg.Format = FormatJSON
	}

	switch strings.ToLower(strings.TrimSpace(addSource)) {
	case "1", "true", "yes":
		cfg.AddSource = true
	}

	return cfg
}

// ParseLevel 解析级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ResetConfig 清除缓存的环境配置（仅用于测试）
func ResetConfig() {
	envConfigOnce = sync.Once{}
	envConfig = nil
}

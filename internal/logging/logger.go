// Package logging 封装 zerolog，按子系统派生日志器。
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger 各服务共用的 zerolog 句柄
type Logger struct {
	zl zerolog.Logger
}

// New 创建写到 w 的根日志器。
// w 为 nil 时输出到 stderr 的控制台格式。
func New(w io.Writer, level string) *Logger {
	if w == nil {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).With().Timestamp().Logger().Level(ParseLevel(level))
	return &Logger{zl: zl}
}

// Nop 丢弃所有输出的日志器，测试用
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Sub 返回带子系统名的子日志器
func (l *Logger) Sub(subsystem string) *Logger {
	if l == nil {
		return Nop()
	}
	return &Logger{zl: l.zl.With().Str("subsystem", subsystem).Logger()}
}

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }

func (l *Logger) Info() *zerolog.Event { return l.zl.Info() }

func (l *Logger) Warn() *zerolog.Event { return l.zl.Warn() }

func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

// Zerolog 返回底层 logger
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

// ParseLevel 解析日志级别，默认 info
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "silent", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

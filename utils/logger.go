package utils

import (
	"log"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"autoapply/config"
)

// Logger provides structured logging
type Logger struct {
	z *zap.Logger
}

// NewLogger creates a structured logger writing JSON to stdout and, when
// cfg.LogFile is set, to a rotated log file.
func NewLogger(cfg config.LoggerConfig) *Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.MessageKey = "message"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var consoleEncoder zapcore.Encoder
	if cfg.Format == "console" {
		consoleEncoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), level),
	}
	if cfg.LogFile != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), fileWriter, level))
	}

	z := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel))
	return &Logger{z: z}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{z: zap.NewNop()}
}

// Named returns a child logger scoped to a component.
func (l *Logger) Named(name string) *Logger {
	return &Logger{z: l.z.Named(name)}
}

// With returns a child logger carrying fields on every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

// Info logs an info message
func (l *Logger) Info(message string, fields ...zap.Field) {
	l.z.Info(message, fields...)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields ...zap.Field) {
	l.z.Warn(message, fields...)
}

// Error logs an error message
func (l *Logger) Error(message string, err error, fields ...zap.Field) {
	l.z.Error(message, append(fields, zap.Error(err))...)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields ...zap.Field) {
	l.z.Debug(message, fields...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.z.Sync()
}

// StdLog adapts the logger for APIs that take a *log.Logger, such as
// http.Server.ErrorLog. Lines are logged at error level.
func (l *Logger) StdLog() *log.Logger {
	std, err := zap.NewStdLogAt(l.z, zap.ErrorLevel)
	if err != nil {
		return zap.NewStdLog(l.z)
	}
	return std
}

var globalLogger atomic.Pointer[Logger]

func init() {
	globalLogger.Store(NewLogger(config.LoggerConfig{Level: "info"}))
}

// GlobalLogger returns the process-wide logger.
func GlobalLogger() *Logger {
	return globalLogger.Load()
}

// SetGlobalLogger replaces the process-wide logger.
func SetGlobalLogger(l *Logger) {
	if l != nil {
		globalLogger.Store(l)
	}
}

// Convenience functions for global logger
func LogInfo(message string, fields ...zap.Field) {
	GlobalLogger().Info(message, fields...)
}

func LogWarn(message string, fields ...zap.Field) {
	GlobalLogger().Warn(message, fields...)
}

func LogError(message string, err error, fields ...zap.Field) {
	GlobalLogger().Error(message, err, fields...)
}

func LogDebug(message string, fields ...zap.Field) {
	GlobalLogger().Debug(message, fields...)
}

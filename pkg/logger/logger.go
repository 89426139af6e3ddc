package logger

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"contextrelay/pkg/observability"
)

// Config 日志配置
type Config struct {
	// Level debug/info/warn/error
	Level string
	// Format json 或 console
	Format string
	// File 日志文件路径，为空时只输出到 stdout
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ZapLogger 基于 zap 的 kratos log.Logger 实现
type ZapLogger struct {
	log *zap.Logger
}

var _ log.Logger = (*ZapLogger)(nil)

// New 创建日志器
func New(c Config) (*ZapLogger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(c.Level))
	if err != nil && c.Level != "" {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	if c.Level == "" {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if c.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}

	// 文件输出按大小滚动
	if c.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    orDefault(c.MaxSizeMB, 10),
			MaxBackups: orDefault(c.MaxBackups, 5),
			MaxAge:     orDefault(c.MaxAgeDays, 30),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level))
	}

	return NewFromZap(zap.New(zapcore.NewTee(cores...))), nil
}

// NewFromZap 包装已有的 zap.Logger
func NewFromZap(l *zap.Logger) *ZapLogger {
	return &ZapLogger{log: l}
}

// Log 实现 log.Logger
func (l *ZapLogger) Log(level log.Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "KEYVALS UNPAIRED")
	}

	msg := ""
	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if key == log.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
			continue
		}
		fields = append(fields, zap.Any(key, keyvals[i+1]))
	}

	switch level {
	case log.LevelDebug:
		l.log.Debug(msg, fields...)
	case log.LevelWarn:
		l.log.Warn(msg, fields...)
	case log.LevelError:
		l.log.Error(msg, fields...)
	case log.LevelFatal:
		l.log.Fatal(msg, fields...)
	default:
		l.log.Info(msg, fields...)
	}
	return nil
}

// Sync 刷新缓冲
func (l *ZapLogger) Sync() error {
	return l.log.Sync()
}

// With 附带服务级字段（service.name 等），返回 kratos logger
func With(l log.Logger, service, version string) log.Logger {
	return log.With(l,
		"service.name", service,
		"service.version", version,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"trace.id", traceID(),
	)
}

// traceID 经 log.WithContext 记录时取当前 span 的 trace ID
func traceID() log.Valuer {
	return func(ctx context.Context) interface{} {
		return observability.TraceID(ctx)
	}
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

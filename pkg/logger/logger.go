// Package logger holds the process-wide zap logger. Every record carries the
// service name and build version; components log through Named children so
// their records can be filtered by the "component" key.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Level   string
	Format  string // json or console
	Output  string // stdout, stderr or a file path
	Service string
	Version string
}

// Log is a no-op until Init runs so packages can log before start-up completes.
var (
	Log     = zap.NewNop()
	closeFn = func() {}
)

// New builds a logger from opts without installing it.
func New(opts Options) (*zap.Logger, func(), error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.NameKey = "component"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.MillisDurationEncoder

	var enc zapcore.Encoder
	switch opts.Format {
	case "json", "":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	output := opts.Output
	if output == "" {
		output = "stdout"
	}
	sink, closeSink, err := zap.Open(output)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log output: %w", err)
	}

	var fields []zap.Field
	if opts.Service != "" {
		fields = append(fields, zap.String("service", opts.Service))
	}
	if opts.Version != "" {
		fields = append(fields, zap.String("version", opts.Version))
	}

	l := zap.New(zapcore.NewCore(enc, sink, level),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(fields...),
	)
	return l, closeSink, nil
}

// Init replaces Log. The previous output, if any, is synced and closed.
func Init(opts Options) error {
	l, closeSink, err := New(opts)
	if err != nil {
		return err
	}
	Sync()
	closeFn()
	Log, closeFn = l, closeSink
	return nil
}

// GetLogger is meant for libraries that take a *zap.Logger of their own.
func GetLogger() *zap.Logger {
	return Log.WithOptions(zap.AddCallerSkip(-1))
}

// Named returns a child of Log tagged with component. Nested names join
// with a dot.
func Named(component string) *zap.Logger {
	return GetLogger().Named(component)
}

func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
}

func Sync() {
	_ = Log.Sync()
}

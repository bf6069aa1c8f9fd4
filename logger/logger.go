package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Field is a structured log field.
type Field = zap.Field

// Field constructors, re-exported so callers only import this package.
var (
	String   = zap.String
	Float64  = zap.Float64
	Int      = zap.Int
	Bool     = zap.Bool
	Time     = zap.Time
	Duration = zap.Duration
	Err      = zap.Error
)

// Logger is the narrow logging surface used throughout the codebase.
type Logger interface {
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

type zapLogger struct {
	z *zap.Logger
}

func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

// Sync flushes buffered entries.
func (l *zapLogger) Sync() error { return l.z.Sync() }

// Options controls where and how verbosely NewZapLogger writes.
type Options struct {
	Level      string // debug|info|warn|error, default info
	File       string // optional rotating file, in addition to stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewZapLogger creates a production-ready logger (JSON encoding, ISO8601 ts).
func NewZapLogger(opts Options) (Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, err
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level),
	}
	if opts.File != "" {
		rotate := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(rotate), level))
	}

	z := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return &zapLogger{z: z}, nil
}

// Nop returns a logger that discards everything.
func Nop() Logger { return &zapLogger{z: zap.NewNop()} }

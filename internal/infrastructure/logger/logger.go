package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It stays nil until Init, and every helper
// below is a no-op until then so packages can log from tests.
var Log *zap.Logger

// Init builds a JSON logger at the given level ("debug", "info", ...). An
// unknown level falls back to info.
func Init(env, level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(lvl),
		Development: env == "development",
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields:    map[string]any{"env": env},
	}

	Log, err = config.Build()
	if err != nil {
		return err
	}

	zap.ReplaceGlobals(Log)
	return nil
}

func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}

func Info(msg string, fields ...zap.Field) {
	if Log == nil {
		return
	}
	Log.WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	if Log == nil {
		return
	}
	Log.WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	if Log == nil {
		return
	}
	Log.WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	if Log == nil {
		return
	}
	Log.WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

// Fatal logs and exits. Before Init it panics with msg.
func Fatal(msg string, fields ...zap.Field) {
	if Log == nil {
		panic(msg)
	}
	Log.WithOptions(zap.AddCallerSkip(1)).Fatal(msg, fields...)
}

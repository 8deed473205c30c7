package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global *zap.Logger

// Init configures the process logger. "production" gives JSON, anything else console output.
func Init(environment, level string) error {
	var cfg zap.Config
	if strings.EqualFold(environment, "production") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if l, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(l)
	}

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	global = l
	return nil
}

// Get returns the process logger, or a no-op logger before Init.
func Get() *zap.Logger {
	if global == nil {
		return zap.NewNop()
	}
	return global
}

// Set replaces the process logger (tests use zaptest/observer).
func Set(l *zap.Logger) {
	global = l
}

func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}

// Package logging builds the process-wide slog.Logger on top of zap.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing to stderr. format is "json" or "console".
// The returned sync func flushes buffered entries.
func New(level, format string) (*slog.Logger, func() error, error) {
	return NewWithWriter(level, format, zapcore.Lock(os.Stderr))
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(level, format string, w zapcore.WriteSyncer) (*slog.Logger, func() error, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	var enc zapcore.Encoder
	switch format {
	case "console":
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	case "json", "":
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "time"
		cfg.MessageKey = "msg"
		cfg.LevelKey = "level"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	default:
		return nil, nil, fmt.Errorf("invalid log format %q", format)
	}

	core := zapcore.NewCore(enc, w, zap.NewAtomicLevelAt(lvl))
	zl := zap.New(core)
	handler := zapslog.NewHandler(zl.Core(), zapslog.WithCaller(lvl == zapcore.DebugLevel))
	return slog.New(handler), zl.Sync, nil
}

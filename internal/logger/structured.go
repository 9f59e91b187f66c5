package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// Log level env: LOG_LEVEL=debug|info|warn|error (default: info).
const envLogLevel = "LOG_LEVEL"

type ShutdownFunc func() error

// NewStructured builds a JSON zap logger behind the slog interface. Output
// goes to the given paths ("stderr", "stdout" or files). An empty level
// falls back to LOG_LEVEL.
func NewStructured(level string, outputPaths ...string) (*slog.Logger, ShutdownFunc, error) {
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logConfig.Sampling = nil
	if len(outputPaths) > 0 {
		logConfig.OutputPaths = outputPaths
	}
	if level == "" {
		level = os.Getenv(envLogLevel)
	}
	if l := parseLogLevel(level); l != nil {
		logConfig.Level = zap.NewAtomicLevelAt(*l)
	}

	zapLog, err := logConfig.Build()
	if err != nil {
		return nil, nil, err
	}
	core := zapLog.Core()
	return slog.New(zapslog.NewHandler(core, zapslog.WithCaller(true))), core.Sync, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLogLevel(s string) *zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		l := zapcore.DebugLevel
		return &l
	case "warn":
		l := zapcore.WarnLevel
		return &l
	case "error":
		l := zapcore.ErrorLevel
		return &l
	default:
		return nil
	}
}

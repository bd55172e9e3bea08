package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/minihub-dev/minihub-core/internal/infrastructure/config"
)

// Logger is the hub's structured logger, a thin wrapper over slog that
// stamps every record with the service name and build version. Packages
// that only need a slice of it (mqtt, the bridge) declare their own
// small interface and take this by value.
//
// Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a logger from the logging section of config.yaml. JSON
// output is the default since most deployments ship logs to a
// collector; "format: text" is for watching a hub at a terminal.
func New(cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	out := outputWriter(cfg.Output)

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "minihub"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// With returns a child logger carrying extra default attributes,
// typically a component tag:
//
//	busLogger := logger.With("component", "bus")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a stdout JSON logger at info level for the window
// between process start and config load. Anything it logs is either a
// config error or the first startup line.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}

func outputWriter(name string) io.Writer {
	if strings.EqualFold(name, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

// parseLevel maps a config level string to slog. Unknown values fall
// back to info rather than erroring; a typo in config.yaml should not
// stop the hub from booting.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

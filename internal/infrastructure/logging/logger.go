package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/insteon-bridge/internal/infrastructure/config"
)

const serviceName = "insteon-bridge"

// Logger is the bridge's structured logger. It satisfies the small
// Logger interfaces the other packages declare.
type Logger struct {
	*slog.Logger
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

var outputs = map[string]io.Writer{
	"stdout":  os.Stdout,
	"stderr":  os.Stderr,
	"discard": io.Discard,
}

// New builds a Logger from cfg. Output is JSON unless cfg.Format is
// "text"; every entry is tagged with the service name and version.
func New(cfg config.LoggingConfig, version string) *Logger {
	out, ok := outputs[strings.ToLower(cfg.Output)]
	if !ok {
		out = os.Stdout
	}
	return newWithWriter(cfg, version, out)
}

func newWithWriter(cfg config.LoggingConfig, version string, out io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler = slog.NewJSONHandler(out, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(out, opts)
	}

	return &Logger{slog.New(h).With("service", serviceName, "version", version)}
}

// parseLevel maps a level name to slog; unknown names mean info.
func parseLevel(name string) slog.Level {
	if lvl, ok := levels[strings.ToLower(name)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// With returns a child logger carrying args on every entry.
//
//	log.With("component", "modem").Info("connected")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// Default is the logger used until the config file has been read.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}

package logging

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options identify the process in every log line.
type Options struct {
	Service string
	Env     string
	Level   slog.Level
}

// Rotation describes an optional rotating log file. An empty File keeps the
// output on stdout.
type Rotation struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Writer returns the destination described by r.
func (r Rotation) Writer() io.Writer {
	if strings.TrimSpace(r.File) == "" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   r.File,
		MaxSize:    r.MaxSizeMB,
		MaxBackups: r.MaxBackups,
		MaxAge:     r.MaxAgeDays,
		Compress:   true,
	}
}

// ParseLevel accepts debug, info, warn or error. Empty means info.
func ParseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(raw) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", raw, err)
	}
	return level, nil
}

// SetupRotating installs a JSON logger writing to rotation's destination.
func SetupRotating(rotation Rotation, opts Options) *slog.Logger {
	return SetupWriter(rotation.Writer(), opts)
}

// SetupWriter installs a JSON logger on out as the slog default and routes the
// standard library logger through it. Sensitive attributes are redacted.
func SetupWriter(out io.Writer, opts Options) *slog.Logger {
	var handler slog.Handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: replaceAttr,
	})
	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(opts.Service))}
	if env := strings.TrimSpace(opts.Env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}
	handler = handler.WithAttrs(attrs)

	logger := slog.New(handler)
	slog.SetDefault(logger)

	bridge := slog.NewLogLogger(handler, slog.LevelInfo)
	log.SetOutput(bridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")
	return logger
}

func replaceAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) == 0 {
		switch attr.Key {
		case slog.TimeKey:
			attr.Key = "timestamp"
			return attr
		case slog.LevelKey:
			return slog.String("severity", strings.ToUpper(attr.Value.String()))
		case slog.MessageKey:
			attr.Key = "message"
			return attr
		}
	}
	return redact(attr)
}

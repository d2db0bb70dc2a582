// Package logging builds the slog handlers used by every catalogd component: a
// charmbracelet/log handler for terminals and the standard JSON handler for log shippers.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/atlanticdynamic/catalogd/internal/logging/writers"
	"github.com/charmbracelet/log"
)

// levelSpec is a parsed level name. "trace" is debug plus caller reporting.
type levelSpec struct {
	level slog.Level
	trace bool
}

func parseLevel(name string) levelSpec {
	switch strings.ToLower(name) {
	case "trace":
		return levelSpec{level: slog.LevelDebug, trace: true}
	case "debug":
		return levelSpec{level: slog.LevelDebug}
	case "warn", "warning":
		return levelSpec{level: slog.LevelWarn}
	case "error":
		return levelSpec{level: slog.LevelError}
	default:
		return levelSpec{level: slog.LevelInfo}
	}
}

// SetupHandlerText returns a human readable handler. Timestamps are shown at debug and trace.
func SetupHandlerText(logLevel string, writer io.Writer) slog.Handler {
	if writer == nil {
		writer = os.Stderr
	}
	ls := parseLevel(logLevel)
	return log.NewWithOptions(writer, log.Options{
		ReportTimestamp: ls.level <= slog.LevelDebug,
		ReportCaller:    ls.trace,
		Level:           log.Level(ls.level),
	})
}

// SetupHandlerJSON returns a JSON handler.
func SetupHandlerJSON(logLevel string, writer io.Writer) slog.Handler {
	if writer == nil {
		writer = os.Stdout
	}
	ls := parseLevel(logLevel)
	return slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level:     ls.level,
		AddSource: ls.trace,
	})
}

// NewHandler builds a handler from the logging section of the service configuration. format is
// "text" (the default) or "json", output is anything writers.CreateWriter accepts.
func NewHandler(format, logLevel, output string) (slog.Handler, error) {
	w, err := writers.CreateWriter(output)
	if err != nil {
		return nil, fmt.Errorf("log output: %w", err)
	}
	switch strings.ToLower(format) {
	case "", "text", "txt":
		return SetupHandlerText(logLevel, w), nil
	case "json":
		return SetupHandlerJSON(logLevel, w), nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
}

// SetupLogger configures the default logger based on provided log level
func SetupLogger(logLevel string) {
	slog.SetDefault(slog.New(SetupHandlerText(logLevel, nil)))
}
